package system

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/service"
)

// Platform abstracts the host.
type Platform interface {
	NumProcessors() int
	Now() time.Time
}

type hostPlatform struct{}

func (hostPlatform) NumProcessors() int { return runtime.NumCPU() }
func (hostPlatform) Now() time.Time     { return time.Now() }

// HostPlatform reports the machine the engine runs on.
func HostPlatform() Platform { return hostPlatform{} }

// Environment holds engine-wide named properties every system can read.
type Environment struct {
	mu    sync.RWMutex
	props properties.Array
}

func NewEnvironment(props properties.Array) *Environment {
	return &Environment{props: append(properties.Array(nil), props...)}
}

func (e *Environment) Get(name string) (properties.Property, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.props.Get(name)
}

func (e *Environment) Set(p properties.Property) {
	e.mu.Lock()
	e.props = e.props.Put(p)
	e.mu.Unlock()
}

// Float returns the named value or def when missing or not numeric.
func (e *Environment) Float(name string, def float64) float64 {
	p, ok := e.Get(name)
	if !ok {
		return def
	}
	v, err := p.AsFloat()
	if err != nil {
		return def
	}
	return v
}

func (e *Environment) All() properties.Array {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append(properties.Array(nil), e.props...)
}

// Context is handed to every module, system, scene and object. It replaces
// process-wide manager singletons, so several engines can share a process.
type Context struct {
	Log      log.Log
	Changes  *observer.Registry
	Services *service.Registry
	Env      *Environment
	Platform Platform

	frame atomic.Uint64
}

// ContextOption customises NewContext.
type ContextOption func(*Context)

func WithRegistry(r *observer.Registry) ContextOption {
	return func(c *Context) { c.Changes = r }
}

func WithServices(s *service.Registry) ContextOption {
	return func(c *Context) { c.Services = s }
}

func WithEnvironment(env *Environment) ContextOption {
	return func(c *Context) { c.Env = env }
}

func WithPlatform(p Platform) ContextOption {
	return func(c *Context) { c.Platform = p }
}

func NewContext(logger log.Log, opts ...ContextOption) *Context {
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Context{Log: logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.Changes == nil {
		c.Changes = observer.NewRegistry()
	}
	if c.Services == nil {
		c.Services = service.NewRegistry()
	}
	if c.Env == nil {
		c.Env = NewEnvironment(nil)
	}
	if c.Platform == nil {
		c.Platform = HostPlatform()
	}
	return c
}

// Frame returns the number of the frame currently running.
func (c *Context) Frame() uint64 { return c.frame.Load() }

// AdvanceFrame is called by the frame driver once per completed frame.
func (c *Context) AdvanceFrame() uint64 { return c.frame.Add(1) }
