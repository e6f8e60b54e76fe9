package system

import (
	"fmt"
	"sync"

	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/properties"
)

// BaseSystem implements scene bookkeeping and the initialization gate for
// concrete systems.
type BaseSystem struct {
	ctx  *Context
	typ  Type
	name string
	log  log.Log

	mu          sync.RWMutex
	scenes      []Scene
	props       properties.Array
	initialized bool
}

func NewBaseSystem(ctx *Context, typ Type, name string) *BaseSystem {
	return &BaseSystem{
		ctx:  ctx,
		typ:  typ,
		name: name,
		log:  ctx.Log.Named(name),
	}
}

func (s *BaseSystem) Type() Type        { return s.typ }
func (s *BaseSystem) Name() string      { return s.name }
func (s *BaseSystem) Context() *Context { return s.ctx }
func (s *BaseSystem) Log() log.Log      { return s.log }

func (s *BaseSystem) Initialize(props properties.Array) error {
	s.mu.Lock()
	s.props = append(properties.Array(nil), props...)
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *BaseSystem) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// CheckInitialized fails with ErrNotInitialized before Initialize ran.
func (s *BaseSystem) CheckInitialized() error {
	if !s.Initialized() {
		return fmt.Errorf("system %s: %w", s.name, ErrNotInitialized)
	}
	return nil
}

func (s *BaseSystem) Properties() properties.Array {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(properties.Array(nil), s.props...)
}

func (s *BaseSystem) SetProperties(props properties.Array) error {
	s.mu.Lock()
	for _, p := range props {
		s.props = s.props.Put(p)
	}
	s.mu.Unlock()
	return nil
}

// AddScene records a freshly built scene. Scene names are unique per system.
func (s *BaseSystem) AddScene(scene Scene) error {
	if err := CheckName(scene.Name()); err != nil {
		return fmt.Errorf("system %s: scene %w", s.name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scenes {
		if sc.Name() == scene.Name() {
			return fmt.Errorf("system %s: scene %q: %w", s.name, scene.Name(), ErrDuplicateName)
		}
	}
	s.scenes = append(s.scenes, scene)
	return nil
}

func (s *BaseSystem) Scenes() []Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Scene(nil), s.scenes...)
}

func (s *BaseSystem) Scene(name string) (Scene, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.scenes {
		if sc.Name() == name {
			return sc, true
		}
	}
	return nil, false
}

// DestroyScene removes scene and destroys its objects and task.
func (s *BaseSystem) DestroyScene(scene Scene) error {
	s.mu.Lock()
	idx := -1
	for i, sc := range s.scenes {
		if sc == scene {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("system %s: %w", s.name, ErrSceneNotFound)
	}
	s.scenes = append(s.scenes[:idx], s.scenes[idx+1:]...)
	s.mu.Unlock()

	return scene.Destroy()
}
