// Package ai is the behavior leaf system: chickens that wander and flee from
// fires reported by linked scenes.
package ai

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/service"
	"github.com/zeusync/smoke/internal/core/service/collision"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

const Name = "ai"

type System struct {
	*system.BaseSystem
}

func New(ctx *system.Context) *System {
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypeAI, Name)}
}

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc := &Scene{physicsScene: name, fires: make(map[string][]geom.AABB)}
	sc.BaseScene = system.NewBaseScene(s.Context(), s, sc, name, map[string]system.ObjectFactory{
		"Chicken": newChicken,
	})
	sc.SetChanges(changes.None, changes.Fire)
	sc.SetTask(&task{
		BaseTask: system.NewBaseTask(sc, system.Pooled, system.TypePhysics, system.TypeExplosion),
		scene:    sc,
	})
	if err := s.AddScene(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func Module() engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypeAI,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx), nil
		},
	}
}

// poiSource is implemented by every scene.
type poiSource interface {
	POI() *poi.List
}

// Scene keeps the fire bounds reported by the scenes it observes, keyed by
// subject.
type Scene struct {
	*system.BaseScene

	mu           sync.RWMutex
	physicsScene string
	fires        map[string][]geom.AABB
}

func (s *Scene) Initialize(props properties.Array) error {
	if err := s.BaseScene.Initialize(props); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return properties.Apply(props, properties.Handlers{
		"PhysicsScene": properties.BindString(&s.physicsScene),
	})
}

func (s *Scene) ChangeOccurred(subject observer.Subject, changed changes.Mask) error {
	key := subject.SubjectKey()
	if changed.IsShutdown() {
		s.mu.Lock()
		delete(s.fires, key)
		s.mu.Unlock()
		return nil
	}
	if !changed.Has(changes.Fire) {
		return nil
	}
	src, ok := subject.(poiSource)
	if !ok {
		return nil
	}
	var boxes []geom.AABB
	for _, p := range src.POI().OfKind(poi.KindFire) {
		boxes = append(boxes, p.(*poi.Fire).Bounds)
	}
	s.mu.Lock()
	s.fires[key] = boxes
	s.mu.Unlock()
	return nil
}

// Fires returns every known fire, ordered by source.
func (s *Scene) Fires() []geom.AABB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.fires))
	for k := range s.fires {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []geom.AABB
	for _, k := range keys {
		out = append(out, s.fires[k]...)
	}
	return out
}

type task struct {
	system.BaseTask
	scene *Scene
	svc   *collision.Service
}

func (t *task) collision() *collision.Service {
	if t.svc != nil {
		return t.svc
	}
	t.scene.mu.RLock()
	name := collision.ServiceName(t.scene.physicsScene)
	t.scene.mu.RUnlock()
	svc, err := service.Lookup[*collision.Service](t.scene.Context().Services, name)
	if err != nil {
		return nil
	}
	t.scene.Log().Debug("using collision service", log.String("service", name))
	t.svc = svc
	return svc
}

func (t *task) Update(dt time.Duration) error {
	fires := t.scene.Fires()
	svc := t.collision()
	var errs []error
	for _, o := range t.scene.Objects() {
		c, ok := o.(*Chicken)
		if !ok {
			continue
		}
		if mask := c.think(dt, fires, svc); mask != changes.None {
			if err := c.PostChanges(mask); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
