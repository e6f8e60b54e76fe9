// Package input forwards device events to controllers, which post them as a
// firehose of changes.Firehose notifications.
package input

import (
	"errors"
	"sync"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

const Name = "input"

type System struct {
	*system.BaseSystem
	device Device
}

// New builds the input system. With a nil device every scene replays its own
// Timeline.
func New(ctx *system.Context, d Device) *System {
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypeInput, Name), device: d}
}

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc := &Scene{device: s.device}
	sc.BaseScene = system.NewBaseScene(s.Context(), s, sc, name, map[string]system.ObjectFactory{
		"Controller": newController,
	})
	sc.SetTask(&task{BaseTask: system.NewBaseTask(sc, system.Primary), scene: sc})
	if err := s.AddScene(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func Module() engine.Module { return NewModule(nil) }

func NewModule(d Device) engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypeInput,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx, d), nil
		},
	}
}

type Scene struct {
	*system.BaseScene

	mu     sync.RWMutex
	device Device
}

func (s *Scene) Initialize(props properties.Array) error {
	if err := s.BaseScene.Initialize(props); err != nil {
		return err
	}
	entries := props.All("Timeline")
	if len(entries) == 0 {
		return nil
	}
	tl, err := parseTimeline(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.device == nil {
		s.device = tl
	}
	s.mu.Unlock()
	return nil
}

func (s *Scene) Device() Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

// Controller receives the device events whose action it is bound to. An
// unbound controller receives every event.
type Controller struct {
	*system.BaseObject

	mu       sync.RWMutex
	bindings map[string]bool
	events   []system.InputEvent
}

var _ system.InputObject = (*Controller)(nil)

func newController(base *system.BaseObject) (system.Object, error) {
	c := &Controller{BaseObject: base, bindings: make(map[string]bool)}
	base.SetChanges(changes.Firehose, changes.None)
	base.Capabilities().MustSet(system.CapInput, c)
	return c, nil
}

func (c *Controller) Initialize(props properties.Array) error {
	if err := c.BaseObject.Initialize(props); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return properties.Apply(props, properties.Handlers{
		"Bind": func(p properties.Property) error {
			action, err := p.AsString()
			if err != nil {
				return err
			}
			c.bindings[action] = true
			return nil
		},
	})
}

// Events returns the events delivered during the current frame.
func (c *Controller) Events() []system.InputEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]system.InputEvent(nil), c.events...)
}

func (c *Controller) deliver(events []system.InputEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	for _, ev := range events {
		if len(c.bindings) == 0 || c.bindings[ev.Action] {
			c.events = append(c.events, ev)
		}
	}
	return len(c.events) > 0
}

type task struct {
	system.BaseTask
	scene *Scene
}

func (t *task) Update(time.Duration) error {
	var events []system.InputEvent
	if d := t.scene.Device(); d != nil {
		events = d.Poll(t.scene.Context().Frame())
	}
	var errs []error
	for _, o := range t.scene.Objects() {
		c, ok := o.(*Controller)
		if !ok {
			continue
		}
		if c.deliver(events) {
			if err := c.PostChanges(changes.Firehose); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
