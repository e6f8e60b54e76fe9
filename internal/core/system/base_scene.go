package system

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/zeusync/smoke/internal/core/arena"
	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/properties"
)

// BaseScene implements object ownership for concrete scenes. Objects live in
// an arena in insertion order; names are unique per scene.
type BaseScene struct {
	ctx       *Context
	self      Scene
	system    System
	name      string
	log       log.Log
	factories map[string]ObjectFactory
	types     []string

	potential changes.Mask
	desired   changes.Mask

	mu          sync.RWMutex
	objects     *arena.Arena[Object]
	names       map[string]arena.Handle
	pending     []Object
	task        Task
	points      *poi.List
	props       properties.Array
	initialized bool
}

// NewBaseScene prepares the plumbing for self, the concrete scene embedding
// the returned value.
func NewBaseScene(ctx *Context, sys System, self Scene, name string, factories map[string]ObjectFactory) *BaseScene {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return &BaseScene{
		ctx:       ctx,
		self:      self,
		system:    sys,
		name:      name,
		log:       ctx.Log.Named(sys.Name()).With(log.String("scene", name)),
		factories: factories,
		types:     types,
		objects:   arena.New[Object](32),
		names:     make(map[string]arena.Handle),
		points:    poi.NewList(),
	}
}

func (s *BaseScene) System() System                 { return s.system }
func (s *BaseScene) Name() string                   { return s.name }
func (s *BaseScene) Context() *Context              { return s.ctx }
func (s *BaseScene) Log() log.Log                   { return s.log }
func (s *BaseScene) POI() *poi.List                 { return s.points }
func (s *BaseScene) PotentialChanges() changes.Mask { return s.potential }
func (s *BaseScene) DesiredChanges() changes.Mask   { return s.desired }
func (s *BaseScene) SubjectKey() string             { return s.system.Name() + PathSeparator + s.name }

// SetChanges declares what the scene itself may post and wants to hear.
func (s *BaseScene) SetChanges(potential, desired changes.Mask) {
	s.potential = potential
	s.desired = desired
}

func (s *BaseScene) ChangeOccurred(observer.Subject, changes.Mask) error {
	return nil
}

// PostChanges posts on behalf of the scene.
func (s *BaseScene) PostChanges(changed changes.Mask) error {
	return s.ctx.Changes.PostChanges(s.self, changed)
}

func (s *BaseScene) Initialize(props properties.Array) error {
	s.mu.Lock()
	s.props = append(properties.Array(nil), props...)
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *BaseScene) Properties() properties.Array {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(properties.Array(nil), s.props...)
}

func (s *BaseScene) SetProperties(props properties.Array) error {
	s.mu.Lock()
	for _, p := range props {
		s.props = s.props.Put(p)
	}
	s.mu.Unlock()
	return nil
}

func (s *BaseScene) ObjectTypes() []string {
	return append([]string(nil), s.types...)
}

// SetTask installs the scene's task; concrete scenes call it once while
// being constructed.
func (s *BaseScene) SetTask(t Task) {
	s.mu.Lock()
	s.task = t
	s.mu.Unlock()
}

func (s *BaseScene) Task() Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.task
}

// CreateObject builds an object of the advertised type typ. The object still
// has to be initialized with its properties.
func (s *BaseScene) CreateObject(name, typ string) (Object, error) {
	if err := CheckName(name); err != nil {
		return nil, fmt.Errorf("scene %s: object %w", s.SubjectKey(), err)
	}
	factory, ok := s.factories[typ]
	if !ok {
		return nil, fmt.Errorf("scene %s: %q: %w", s.SubjectKey(), typ, ErrUnknownType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, fmt.Errorf("scene %s: %w", s.SubjectKey(), ErrNotInitialized)
	}
	if _, exists := s.names[name]; exists {
		return nil, fmt.Errorf("scene %s: object %q: %w", s.SubjectKey(), name, ErrDuplicateName)
	}

	base := newBaseObject(s.ctx, s.self, name, typ, s.log)
	obj, err := factory(base)
	if err != nil {
		return nil, fmt.Errorf("scene %s: create %s %q: %w", s.SubjectKey(), typ, name, err)
	}
	h := s.objects.Insert(obj)
	base.bind(obj, h)
	s.names[name] = h
	return obj, nil
}

// Object finds a live object by name.
func (s *BaseScene) Object(name string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.names[name]
	if !ok {
		return nil, false
	}
	return s.objects.Get(h)
}

// Objects returns the live objects in creation order.
func (s *BaseScene) Objects() []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects.Values()
}

// DestroyObject shuts obj down: every observer of obj receives the terminal
// notification, obj's own subscriptions are dropped, then its slot is freed.
// If obj is in the middle of posting a change, destruction is deferred to
// EndFrame instead of happening reentrantly.
func (s *BaseScene) DestroyObject(obj Object) error {
	if obj == nil {
		return ErrObjectNotFound
	}
	if obj.Scene() != s.self {
		return fmt.Errorf("scene %s: object %q: %w", s.SubjectKey(), obj.Name(), ErrForeignObject)
	}

	s.mu.Lock()
	cur, ok := s.objects.Get(obj.Handle())
	if !ok || cur != obj {
		s.mu.Unlock()
		return fmt.Errorf("scene %s: object %q: %w", s.SubjectKey(), obj.Name(), ErrObjectNotFound)
	}
	if s.ctx.Changes.Notifying(obj) {
		for _, p := range s.pending {
			if p == obj {
				s.mu.Unlock()
				return nil
			}
		}
		s.pending = append(s.pending, obj)
		s.mu.Unlock()
		s.log.Debug("object destruction deferred to end of frame", log.String("target", obj.Name()))
		return nil
	}
	s.mu.Unlock()

	return s.destroyNow(obj)
}

func (s *BaseScene) destroyNow(obj Object) error {
	s.mu.Lock()
	cur, ok := s.objects.Get(obj.Handle())
	if !ok || cur != obj {
		s.mu.Unlock()
		return fmt.Errorf("scene %s: object %q: %w", s.SubjectKey(), obj.Name(), ErrObjectNotFound)
	}
	s.objects.Remove(obj.Handle())
	delete(s.names, obj.Name())
	s.mu.Unlock()

	var all error
	if d, ok := obj.(Destroyer); ok {
		if err := d.OnDestroy(); err != nil {
			all = errors.Join(all, fmt.Errorf("object %q: on destroy: %w", obj.Name(), err))
		}
	}
	if err := s.ctx.Changes.Shutdown(obj); err != nil {
		all = errors.Join(all, err)
	}
	s.ctx.Changes.DetachObserver(obj)
	return all
}

// PendingDestroys reports how many destructions wait for EndFrame.
func (s *BaseScene) PendingDestroys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// EndFrame flushes deferred destructions and ages the POI list.
func (s *BaseScene) EndFrame() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	var all error
	for _, obj := range pending {
		if s.ctx.Changes.Notifying(obj) {
			s.mu.Lock()
			s.pending = append(s.pending, obj)
			s.mu.Unlock()
			continue
		}
		if err := s.destroyNow(obj); err != nil && !errors.Is(err, ErrObjectNotFound) {
			all = errors.Join(all, err)
		}
	}
	s.points.EndFrame()
	return all
}

// Destroy tears the scene down: objects in reverse creation order, then the
// scene's own edges, then the task. Failures are logged and teardown of the
// remaining objects continues.
func (s *BaseScene) Destroy() error {
	objs := s.Objects()
	var all error
	for i := len(objs) - 1; i >= 0; i-- {
		if err := s.destroyNow(objs[i]); err != nil {
			s.log.Warn("destroy object failed", log.String("target", objs[i].Name()), log.Error(err))
			all = errors.Join(all, err)
		}
	}

	s.mu.Lock()
	s.pending = nil
	task := s.task
	s.task = nil
	s.mu.Unlock()

	if err := s.ctx.Changes.Shutdown(s.self); err != nil {
		all = errors.Join(all, err)
	}
	s.ctx.Changes.DetachObserver(s.self)

	if closer, ok := task.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			all = errors.Join(all, fmt.Errorf("scene %s: close task: %w", s.SubjectKey(), err))
		}
	}
	return all
}
