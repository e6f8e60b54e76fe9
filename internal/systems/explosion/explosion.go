// Package explosion manages fires. Each lit Fire object registers a named
// Fire POI on its scene; the scene posts changes.Fire whenever the set of
// fires changed so observers can refresh.
package explosion

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

const Name = "explosion"

type System struct {
	*system.BaseSystem
}

func New(ctx *system.Context) *System {
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypeExplosion, Name)}
}

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc := &Scene{}
	sc.BaseScene = system.NewBaseScene(s.Context(), s, sc, name, map[string]system.ObjectFactory{
		"Fire": newFire,
	})
	sc.SetChanges(changes.Fire, changes.None)
	sc.SetTask(&task{BaseTask: system.NewBaseTask(sc, system.Pooled, system.TypeInput), scene: sc})
	if err := s.AddScene(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func Module() engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypeExplosion,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx), nil
		},
	}
}

type Scene struct {
	*system.BaseScene
	dirty atomic.Bool
}

func (s *Scene) markDirty() { s.dirty.Store(true) }

type task struct {
	system.BaseTask
	scene *Scene
}

func (t *task) Update(time.Duration) error {
	if !t.scene.dirty.Swap(false) {
		return nil
	}
	return t.scene.PostChanges(changes.Fire)
}

// Fire burns inside a box. Pressing its Trigger action toggles it; water
// streams reaching into the box put it out.
type Fire struct {
	*system.BaseObject

	mu      sync.RWMutex
	center  geom.Vector3
	extents geom.Vector3
	trigger string
	lit     bool
}

func newFire(base *system.BaseObject) (system.Object, error) {
	f := &Fire{
		BaseObject: base,
		extents:    geom.Vector3{X: 1, Y: 1, Z: 1},
		trigger:    "ignite",
		lit:        true,
	}
	base.SetChanges(changes.Fire, changes.Firehose|changes.Stream)
	base.Capabilities().MustSet(system.CapGeometry, f)
	return f, nil
}

func (f *Fire) Initialize(props properties.Array) error {
	if err := f.BaseObject.Initialize(props); err != nil {
		return err
	}
	f.mu.Lock()
	err := properties.Apply(props, properties.Handlers{
		"Position": properties.BindVector3(&f.center),
		"Extents":  properties.BindVector3(&f.extents),
		"Trigger":  properties.BindString(&f.trigger),
		"Lit":      properties.BindBool(&f.lit),
	})
	lit := f.lit
	f.lit = false
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if lit {
		return f.ignite()
	}
	return nil
}

func (f *Fire) Properties() properties.Array {
	out := f.BaseObject.Properties()
	f.mu.RLock()
	defer f.mu.RUnlock()
	return out.Put(properties.Bool("Lit", f.lit))
}

func (f *Fire) Position() geom.Vector3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.center
}

func (f *Fire) Orientation() geom.Quaternion { return geom.Identity }

func (f *Fire) Scale() geom.Vector3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.extents
}

func (f *Fire) Lit() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lit
}

func (f *Fire) bounds() geom.AABB {
	return geom.Box(f.center, f.extents)
}

func (f *Fire) scene() *Scene { return f.Scene().(*Scene) }

func (f *Fire) ignite() error {
	f.mu.Lock()
	if f.lit {
		f.mu.Unlock()
		return nil
	}
	f.lit = true
	bounds := f.bounds()
	f.mu.Unlock()

	if err := f.scene().POI().AddFire(&poi.Fire{Name: f.Name(), Bounds: bounds}); err != nil {
		return err
	}
	f.scene().markDirty()
	f.Log().Debug("fire ignited")
	return f.PostChanges(changes.Fire)
}

func (f *Fire) extinguish() error {
	f.mu.Lock()
	if !f.lit {
		f.mu.Unlock()
		return nil
	}
	f.lit = false
	f.mu.Unlock()

	if err := f.scene().POI().RemoveFire(f.Name()); err != nil {
		return err
	}
	f.scene().markDirty()
	f.Log().Debug("fire extinguished")
	return f.PostChanges(changes.Fire)
}

// OnDestroy removes the fire's POI.
func (f *Fire) OnDestroy() error {
	f.mu.Lock()
	lit := f.lit
	f.lit = false
	f.mu.Unlock()
	if !lit {
		return nil
	}
	f.scene().markDirty()
	if err := f.scene().POI().RemoveFire(f.Name()); err != nil && !errors.Is(err, poi.ErrUnknownFire) {
		return err
	}
	return nil
}

// ChangeOccurred toggles on the trigger action and goes out when a water
// stream's spray lands inside the fire.
func (f *Fire) ChangeOccurred(subject observer.Subject, changed changes.Mask) error {
	if changed.IsShutdown() {
		return nil
	}
	if changed.Has(changes.Firehose) {
		if in, ok := system.AsInput(subject); ok {
			f.mu.RLock()
			trigger := f.trigger
			f.mu.RUnlock()
			for _, ev := range in.Events() {
				if ev.Action != trigger || !ev.Pressed {
					continue
				}
				var err error
				if f.Lit() {
					err = f.extinguish()
				} else {
					err = f.ignite()
				}
				if err != nil {
					return err
				}
			}
		}
	}
	if changed.Has(changes.Stream) && f.Lit() {
		if p, ok := subject.(observer.ChangeDataProvider); ok {
			if data, ok := p.ChangeData(changes.Stream); ok {
				if spray, ok := data.([]geom.Vector3); ok && f.doused(spray) {
					f.Log().Debug("fire doused", log.String("by", subject.SubjectKey()))
					return f.extinguish()
				}
			}
		}
	}
	return nil
}

func (f *Fire) doused(spray []geom.Vector3) bool {
	f.mu.RLock()
	box := f.bounds()
	f.mu.RUnlock()
	for _, p := range spray {
		if box.Contains(p) {
			return true
		}
	}
	return false
}
