package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/smoke/internal/config"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/scheduler"
	"github.com/zeusync/smoke/internal/core/service"
	"github.com/zeusync/smoke/internal/core/system"
)

var (
	ErrAlreadyLoaded = errors.New("world already loaded")
	ErrNotLoaded     = errors.New("no world loaded")
	ErrShutdown      = errors.New("engine shut down")
)

// EnvCollisionTTL is the environment property physics scenes read to size
// their collision service TTL.
const EnvCollisionTTL = "CollisionTTLFrames"

// FrameReport summarises one completed frame.
type FrameReport struct {
	Engine   string                    `json:"engine"`
	Frame    uint64                    `json:"frame"`
	Duration time.Duration             `json:"duration"`
	Tasks    []scheduler.TaskStats     `json:"-"`
	POI      map[string]map[string]int `json:"poi"`
	Err      error                     `json:"-"`
}

// Reporter receives a report after every frame.
type Reporter interface {
	ReportFrame(FrameReport)
}

type Option func(*Engine)

func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithMonitor installs an observer registry monitor.
func WithMonitor(m observer.Monitor) Option {
	return func(e *Engine) { e.monitor = m }
}

func WithPlatform(p system.Platform) Option {
	return func(e *Engine) { e.platform = p }
}

type loadedSystem struct {
	module Module
	sys    system.System
}

// Stats is a snapshot of engine counters.
type Stats struct {
	ID        string
	Frames    uint64
	Systems   []string
	Services  []string
	Changes   observer.Stats
	Scheduler scheduler.Stats
}

// Engine owns one world: its systems, the change registry, the service
// registry and the scheduler. Several engines may share a process.
type Engine struct {
	id       uuid.UUID
	cfg      config.Config
	table    Table
	log      log.Log
	reporter Reporter
	monitor  observer.Monitor
	platform system.Platform

	ctx   *system.Context
	sched *scheduler.Scheduler

	mu       sync.Mutex
	systems  []loadedSystem
	loaded   bool
	shutdown bool
}

func New(cfg config.Config, table Table, logger log.Log, opts ...Option) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	e := &Engine{
		id:    uuid.New(),
		cfg:   cfg,
		table: table,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logger.With(log.String("engine", e.id.String()))

	registryOpts := []observer.Option{}
	if e.monitor != nil {
		registryOpts = append(registryOpts, observer.WithMonitor(e.monitor))
	}
	ctxOpts := []system.ContextOption{
		system.WithRegistry(observer.NewRegistry(registryOpts...)),
		system.WithServices(service.NewRegistry()),
	}
	if e.platform != nil {
		ctxOpts = append(ctxOpts, system.WithPlatform(e.platform))
	}
	e.ctx = system.NewContext(e.log, ctxOpts...)
	e.ctx.Env.Set(properties.Int(EnvCollisionTTL, cfg.Collision.TTLFrames))

	e.sched = scheduler.New(
		scheduler.WithWorkers(cfg.Engine.Workers),
		scheduler.WithLogger(e.log.Named("scheduler")),
	)
	return e
}

func (e *Engine) ID() string               { return e.id.String() }
func (e *Engine) Context() *system.Context { return e.ctx }
func (e *Engine) Log() log.Log             { return e.log }

// Load builds the world: environment, systems, scenes, objects, links and
// tasks, in that order. Any failure aborts startup and releases everything
// created so far; the engine cannot be reused afterwards.
func (e *Engine) Load(w *World) (err error) {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrShutdown
	}
	if e.loaded {
		e.mu.Unlock()
		return ErrAlreadyLoaded
	}
	e.loaded = true
	e.mu.Unlock()

	defer func() {
		if err != nil {
			e.log.Error("world load failed", log.Error(err))
			e.Shutdown()
		}
	}()

	if err := w.Validate(e.table); err != nil {
		return err
	}

	env, err := properties.FromMap(w.Environment)
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	for _, p := range env {
		e.ctx.Env.Set(p)
	}

	for _, sd := range w.Systems {
		if err := e.loadSystem(sd); err != nil {
			return err
		}
	}
	for _, l := range w.Links {
		if err := e.link(l); err != nil {
			return err
		}
	}
	for _, ls := range e.loadedSystems() {
		for _, sc := range ls.sys.Scenes() {
			if t := sc.Task(); t != nil {
				if err := e.sched.Add(t); err != nil {
					return err
				}
			}
		}
	}
	if _, err := e.sched.Order(); err != nil {
		return err
	}

	e.log.Info("world loaded",
		log.Int("systems", len(w.Systems)),
		log.Int("links", len(w.Links)),
		log.Int("edges", e.ctx.Changes.Stats().Edges),
	)
	return nil
}

func (e *Engine) loadSystem(sd SystemDef) error {
	mod, ok := e.table.Lookup(sd.Module)
	if !ok {
		return fmt.Errorf("system %q: %w", sd.Module, ErrUnknownModule)
	}
	if _, dup := e.system(sd.Module); dup {
		return fmt.Errorf("system %q: %w", sd.Module, ErrDuplicateModule)
	}
	if mod.Init != nil {
		if err := mod.Init(e.ctx); err != nil {
			return fmt.Errorf("module %s: init: %w", mod.Name, err)
		}
	}
	sys, err := mod.Create(e.ctx)
	if err != nil {
		return fmt.Errorf("module %s: create: %w", mod.Name, err)
	}
	e.mu.Lock()
	e.systems = append(e.systems, loadedSystem{module: mod, sys: sys})
	e.mu.Unlock()

	props, err := properties.FromMap(sd.Properties)
	if err != nil {
		return fmt.Errorf("system %s: %w", mod.Name, err)
	}
	if err := sys.Initialize(props); err != nil {
		return fmt.Errorf("system %s: initialize: %w", mod.Name, err)
	}

	for _, scd := range sd.Scenes {
		sc, err := sys.CreateScene(scd.Name)
		if err != nil {
			return fmt.Errorf("system %s: create scene %q: %w", mod.Name, scd.Name, err)
		}
		props, err := properties.FromMap(scd.Properties)
		if err != nil {
			return fmt.Errorf("scene %s: %w", sc.SubjectKey(), err)
		}
		if err := sc.Initialize(props); err != nil {
			return fmt.Errorf("scene %s: initialize: %w", sc.SubjectKey(), err)
		}
		for _, od := range scd.Objects {
			obj, err := sc.CreateObject(od.Name, od.Type)
			if err != nil {
				return err
			}
			props, err := properties.FromMap(od.Properties)
			if err != nil {
				return fmt.Errorf("object %s: %w", obj.SubjectKey(), err)
			}
			if err := obj.Initialize(props); err != nil {
				return fmt.Errorf("object %s: initialize: %w", obj.SubjectKey(), err)
			}
		}
	}
	return nil
}

func (e *Engine) link(l LinkDef) error {
	subject, err := e.Resolve(l.Subject)
	if err != nil {
		return fmt.Errorf("link subject: %w", err)
	}
	obs, err := e.Resolve(l.Observer)
	if err != nil {
		return fmt.Errorf("link observer: %w", err)
	}
	if l.Changes == 0 {
		_, err = e.ctx.Changes.AttachDesired(subject, obs)
	} else {
		_, err = e.ctx.Changes.Attach(subject, obs, l.Changes)
	}
	if err != nil {
		return fmt.Errorf("link %s -> %s: %w", l.Subject, l.Observer, err)
	}
	return nil
}

// Resolve finds the scene or object at a "system/scene[/object]" path.
func (e *Engine) Resolve(path string) (Endpoint, error) {
	sysName, sceneName, objName, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	sys, ok := e.system(sysName)
	if !ok {
		return nil, fmt.Errorf("%q: %w", path, ErrUnknownSubject)
	}
	var scene system.Scene
	for _, sc := range sys.Scenes() {
		if sc.Name() == sceneName {
			scene = sc
			break
		}
	}
	if scene == nil {
		return nil, fmt.Errorf("%q: %w", path, ErrUnknownSubject)
	}
	if objName == "" {
		return scene, nil
	}
	obj, ok := scene.Object(objName)
	if !ok {
		return nil, fmt.Errorf("%q: %w", path, ErrUnknownSubject)
	}
	return obj, nil
}

func (e *Engine) system(name string) (system.System, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ls := range e.systems {
		if ls.module.Name == name {
			return ls.sys, true
		}
	}
	return nil, false
}

// System returns the loaded system created by module name.
func (e *Engine) System(name string) (system.System, bool) { return e.system(name) }

func (e *Engine) loadedSystems() []loadedSystem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]loadedSystem(nil), e.systems...)
}

// Frame runs one frame: all task phases, then the frame boundary work.
func (e *Engine) Frame(ctx context.Context, dt time.Duration) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrShutdown
	}
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	e.mu.Unlock()

	start := time.Now()
	taskErr := e.sched.Frame(ctx, dt)
	boundaryErr := e.endFrame()
	err := errors.Join(taskErr, boundaryErr)
	frame := e.ctx.AdvanceFrame()

	if e.reporter != nil {
		e.reporter.ReportFrame(FrameReport{
			Engine:   e.id.String(),
			Frame:    frame,
			Duration: time.Since(start),
			Tasks:    e.sched.Stats().PerTask,
			POI:      e.poiCounts(),
			Err:      err,
		})
	}
	return err
}

// endFrame flushes deferred destructions, ages POIs and reaps stale
// collision results.
func (e *Engine) endFrame() error {
	var all error
	for _, ls := range e.loadedSystems() {
		for _, sc := range ls.sys.Scenes() {
			if err := sc.EndFrame(); err != nil {
				all = errors.Join(all, fmt.Errorf("scene %s: end frame: %w", sc.SubjectKey(), err))
			}
		}
	}
	frame := e.ctx.Frame()
	e.ctx.Services.Each(func(svc service.Service) {
		if r, ok := svc.(interface{ Reap(frame uint64) int }); ok {
			if n := r.Reap(frame); n > 0 {
				e.log.Debug("reaped stale collision results", log.String("service", svc.Name()), log.Int("count", n))
			}
		}
	})
	return all
}

func (e *Engine) poiCounts() map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, ls := range e.loadedSystems() {
		for _, sc := range ls.sys.Scenes() {
			counts := sc.POI().Counts()
			if len(counts) == 0 {
				continue
			}
			m := make(map[string]int, len(counts))
			for k, n := range counts {
				m[k.String()] = n
			}
			out[sc.SubjectKey()] = m
		}
	}
	return out
}

// Run drives frames at the configured tick rate until ctx is done or the
// configured frame limit is reached. Frame errors are logged; with
// halt_on_error the first one stops Run and is returned.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.Engine.FrameInterval()
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	e.log.Info("engine running",
		log.Int("tick_rate", e.cfg.Engine.TickRate),
		log.Uint64("max_frames", e.cfg.Engine.MaxFrames),
	)

	last := e.ctx.Platform.Now().Add(-interval)
	for {
		if ctx.Err() != nil {
			return nil
		}
		now := e.ctx.Platform.Now()
		dt := now.Sub(last)
		last = now

		if err := e.Frame(ctx, dt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if e.cfg.Engine.HaltOnError {
				return err
			}
			e.log.Error("frame failed", log.Uint64("frame", e.ctx.Frame()), log.Error(err))
		}
		if max := e.cfg.Engine.MaxFrames; max > 0 && e.ctx.Frame() >= max {
			e.log.Info("frame limit reached", log.Uint64("frames", e.ctx.Frame()))
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}

// Shutdown destroys every scene, then every system through its module, then
// stops the scheduler. Failures are logged and teardown continues.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true
	systems := e.systems
	e.systems = nil
	e.mu.Unlock()

	for i := len(systems) - 1; i >= 0; i-- {
		ls := systems[i]
		scenes := ls.sys.Scenes()
		for j := len(scenes) - 1; j >= 0; j-- {
			if err := ls.sys.DestroyScene(scenes[j]); err != nil {
				e.log.Warn("destroy scene failed", log.String("scene", scenes[j].SubjectKey()), log.Error(err))
			}
		}
		if ls.module.Destroy != nil {
			if err := ls.module.Destroy(ls.sys); err != nil {
				e.log.Warn("destroy system failed", log.String("system", ls.module.Name), log.Error(err))
			}
		}
	}
	e.sched.Close()

	st := e.ctx.Changes.Stats()
	e.log.Info("engine shut down",
		log.Uint64("frames", e.ctx.Frame()),
		log.Uint64("posts", st.Posts),
		log.Int("edges_left", st.Edges),
	)
}

// ObjectTypes maps each loaded system to the object types its scenes accept.
func (e *Engine) ObjectTypes() map[string][]string {
	out := make(map[string][]string)
	for _, ls := range e.loadedSystems() {
		seen := make(map[string]bool)
		for _, sc := range ls.sys.Scenes() {
			for _, t := range sc.ObjectTypes() {
				seen[t] = true
			}
		}
		types := make([]string, 0, len(seen))
		for t := range seen {
			types = append(types, t)
		}
		sort.Strings(types)
		out[ls.module.Name] = types
	}
	return out
}

func (e *Engine) Stats() Stats {
	st := Stats{
		ID:        e.id.String(),
		Frames:    e.ctx.Frame(),
		Services:  e.ctx.Services.Names(),
		Changes:   e.ctx.Changes.Stats(),
		Scheduler: e.sched.Stats(),
	}
	for _, ls := range e.loadedSystems() {
		st.Systems = append(st.Systems, ls.module.Name)
	}
	return st
}

// Discover loads one empty scene per module of table and reports the object
// types each advertises.
func Discover(cfg config.Config, table Table, logger log.Log) (map[string][]string, error) {
	w := &World{}
	for _, m := range table {
		w.Systems = append(w.Systems, SystemDef{
			Module: m.Name,
			Scenes: []SceneDef{{Name: "discover"}},
		})
	}
	e := New(cfg, table, logger)
	if err := e.Load(w); err != nil {
		return nil, err
	}
	defer e.Shutdown()
	return e.ObjectTypes(), nil
}
