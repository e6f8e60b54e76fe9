// Package water simulates hoses. A WaterStream follows the geometry it is
// linked to (usually a camera) and sprays from each of its nozzles; the
// spray end points are published as changes.Stream data.
package water

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

const Name = "water"

type System struct {
	*system.BaseSystem
}

func New(ctx *system.Context) *System {
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypeWater, Name)}
}

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc := &Scene{}
	sc.BaseScene = system.NewBaseScene(s.Context(), s, sc, name, map[string]system.ObjectFactory{
		"WaterStream": newStream,
	})
	sc.SetTask(&task{BaseTask: system.NewBaseTask(sc, system.Pooled, system.TypeGraphics), scene: sc})
	if err := s.AddScene(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func Module() engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypeWater,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx), nil
		},
	}
}

type Scene struct {
	*system.BaseScene
}

// Stream sprays along each nozzle direction, scaled by Pressure.
type Stream struct {
	*system.BaseObject

	mu       sync.RWMutex
	origin   geom.Vector3
	facing   geom.Quaternion
	nozzles  []geom.Vector3
	pressure float64
	enabled  bool
	spray    []geom.Vector3
}

var _ observer.ChangeDataProvider = (*Stream)(nil)

func newStream(base *system.BaseObject) (system.Object, error) {
	s := &Stream{BaseObject: base, facing: geom.Identity, pressure: 1, enabled: true}
	base.SetChanges(changes.Stream, changes.Position|changes.Orientation)
	base.Capabilities().MustSet(system.CapGeometry, s)
	return s, nil
}

func (s *Stream) Initialize(props properties.Array) error {
	if err := s.BaseObject.Initialize(props); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nozzles = s.nozzles[:0]
	return properties.Apply(props, s.handlers())
}

// SetProperties adds nozzles; it never removes them.
func (s *Stream) SetProperties(props properties.Array) error {
	if err := s.BaseObject.SetProperties(props); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return properties.Apply(props, s.handlers())
}

func (s *Stream) handlers() properties.Handlers {
	return properties.Handlers{
		"Position": properties.BindVector3(&s.origin),
		"Pressure": properties.BindFloat(&s.pressure),
		"Enabled":  properties.BindBool(&s.enabled),
		"Nozzle": func(p properties.Property) error {
			v, err := p.AsVector3()
			if err != nil {
				return err
			}
			s.nozzles = append(s.nozzles, v)
			return nil
		},
	}
}

func (s *Stream) Properties() properties.Array {
	out := s.BaseObject.Properties()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out = out.Put(properties.Vec3("Position", s.origin))
	out = out.Put(properties.Float("Pressure", s.pressure))
	return out.Put(properties.Bool("Enabled", s.enabled))
}

func (s *Stream) Position() geom.Vector3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin
}

func (s *Stream) Orientation() geom.Quaternion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facing
}

func (s *Stream) Scale() geom.Vector3 { return geom.Vector3{X: 1, Y: 1, Z: 1} }

func (s *Stream) Nozzles() []geom.Vector3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]geom.Vector3(nil), s.nozzles...)
}

func (s *Stream) ChangeOccurred(subject observer.Subject, changed changes.Mask) error {
	if changed.IsShutdown() {
		return nil
	}
	g, ok := system.AsGeometry(subject)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if changed.Has(changes.Position) {
		s.origin = g.Position()
	}
	if changed.Has(changes.Orientation) {
		s.facing = g.Orientation()
	}
	return nil
}

// ChangeData returns the spray end points of the last update.
func (s *Stream) ChangeData(kind changes.Mask) (any, bool) {
	if kind != changes.Stream {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]geom.Vector3(nil), s.spray...), true
}

// update recomputes the spray and reports whether the stream is flowing.
func (s *Stream) update() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spray = s.spray[:0]
	if !s.enabled {
		return false
	}
	angle := s.facing.YawAngle()
	for _, n := range s.nozzles {
		s.spray = append(s.spray, s.origin.Add(rotateYaw(n, angle).Scale(s.pressure)))
	}
	return len(s.spray) > 0
}

func rotateYaw(v geom.Vector3, angle float64) geom.Vector3 {
	if angle == 0 {
		return v
	}
	sin, cos := math.Sincos(angle)
	return geom.Vector3{X: v.X*cos + v.Z*sin, Y: v.Y, Z: -v.X*sin + v.Z*cos}
}

type task struct {
	system.BaseTask
	scene *Scene
}

func (t *task) Update(time.Duration) error {
	var errs []error
	for _, o := range t.scene.Objects() {
		s, ok := o.(*Stream)
		if !ok {
			continue
		}
		if s.update() {
			if err := s.PostChanges(changes.Stream); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
