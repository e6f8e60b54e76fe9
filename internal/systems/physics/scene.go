package physics

import (
	"fmt"
	"sync"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/service/collision"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

// Scene owns bodies and the scene's collision service. It posts
// changes.Contact after a step that produced contacts; the contacts are
// available as change data.
type Scene struct {
	*system.BaseScene

	svc *collision.Service

	mu       sync.RWMutex
	gravity  geom.Vector3
	backend  broadphase
	contacts []*poi.Contact
}

func newScene(sys *System, name string) (*Scene, error) {
	sc := &Scene{}
	sc.BaseScene = system.NewBaseScene(sys.Context(), sys, sc, name, map[string]system.ObjectFactory{
		"Body": newBody,
	})
	sc.SetChanges(changes.Contact, changes.None)
	sc.backend, _ = newBroadphase(BackendBruteForce, 0)

	ttl := int(sys.Context().Env.Float(engine.EnvCollisionTTL, collision.DefaultTTL))
	sc.svc = collision.New(collision.ServiceName(name), ttl)
	if err := sys.Context().Services.Register(sc.svc); err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	sc.SetTask(newTask(sc))
	return sc, nil
}

func (s *Scene) Initialize(props properties.Array) error {
	if err := s.BaseScene.Initialize(props); err != nil {
		return err
	}
	backendName := BackendBruteForce
	cellSize := 0.0
	s.mu.Lock()
	defer s.mu.Unlock()
	err := properties.Apply(props, properties.Handlers{
		"Gravity":  properties.BindVector3(&s.gravity),
		"Backend":  properties.BindString(&backendName),
		"CellSize": properties.BindFloat(&cellSize),
	})
	if err != nil {
		return err
	}
	s.backend, err = newBroadphase(backendName, cellSize)
	if err != nil {
		return err
	}
	s.Log().Debug("physics scene ready", log.String("backend", s.backend.Name()))
	return nil
}

// Collision returns the scene's query service.
func (s *Scene) Collision() *collision.Service { return s.svc }

// ChangeData exposes the contacts of the last step under changes.Contact.
func (s *Scene) ChangeData(kind changes.Mask) (any, bool) {
	if kind != changes.Contact {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*poi.Contact(nil), s.contacts...), true
}

func (s *Scene) bodies() []*Body {
	objs := s.Objects()
	out := make([]*Body, 0, len(objs))
	for _, o := range objs {
		if b, ok := o.(*Body); ok {
			out = append(out, b)
		}
	}
	return out
}

func (s *Scene) Destroy() error {
	err := s.BaseScene.Destroy()
	s.unregister()
	return err
}

func (s *Scene) unregister() {
	s.Context().Services.Unregister(s.svc.Name())
}
