package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/pkg/concurrent"
)

var (
	ErrClosed      = errors.New("scheduler closed")
	ErrUnknownTask = errors.New("task not registered")
	ErrDuplicate   = errors.New("task already registered")
)

// Phase is one pass over all tasks within a frame.
type Phase uint8

const (
	PhasePre Phase = iota
	PhaseUpdate
	PhasePost
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseUpdate:
		return "update"
	case PhasePost:
		return "post"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// TaskStats is the timing of one task during the last frame.
type TaskStats struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Frames    uint64
	Tasks     int
	Levels    int
	LastFrame time.Duration
	Errors    uint64
	PerTask   []TaskStats
}

type Option func(*Scheduler)

// WithWorkers caps how many thread-safe tasks run at once.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithLogger(l log.Log) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler runs every registered task once per frame in dependency order.
type Scheduler struct {
	log     log.Log
	workers int
	primary *primary

	mu     sync.Mutex
	tasks  []system.Task
	levels [][]system.Task
	dirty  bool
	closed bool

	statsMu   sync.Mutex
	frames    uint64
	errCount  uint64
	lastFrame time.Duration
	perTask   map[system.Task]*TaskStats
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:     log.NewNop(),
		workers: runtime.NumCPU(),
		perTask: make(map[system.Task]*TaskStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.primary = startPrimary()
	return s
}

func (s *Scheduler) Add(t system.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, existing := range s.tasks {
		if existing == t {
			return fmt.Errorf("%s: %w", t.Name(), ErrDuplicate)
		}
	}
	s.tasks = append(s.tasks, t)
	s.dirty = true
	return nil
}

func (s *Scheduler) Remove(t system.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tasks {
		if existing == t {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			s.dirty = true
			s.statsMu.Lock()
			delete(s.perTask, t)
			s.statsMu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%s: %w", t.Name(), ErrUnknownTask)
}

// Order returns the current levels, recomputing them after Add or Remove.
func (s *Scheduler) Order() ([][]system.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderLocked()
}

func (s *Scheduler) orderLocked() ([][]system.Task, error) {
	if !s.dirty && s.levels != nil {
		return s.levels, nil
	}
	levels, err := order(s.tasks)
	if err != nil {
		return nil, err
	}
	s.levels = levels
	s.dirty = false
	return levels, nil
}

// Frame runs PreUpdate, Update and PostUpdate over every level. A task error
// aborts only that task's phase; all errors of the frame are joined.
func (s *Scheduler) Frame(ctx context.Context, dt time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	levels, err := s.orderLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.statsMu.Lock()
	for _, st := range s.perTask {
		st.Duration = 0
		st.Err = nil
	}
	s.statsMu.Unlock()

	start := time.Now()
	var frameErr error
	for _, phase := range []Phase{PhasePre, PhaseUpdate, PhasePost} {
		for _, level := range levels {
			if err := ctx.Err(); err != nil {
				return errors.Join(frameErr, err)
			}
			frameErr = errors.Join(frameErr, s.runLevel(ctx, phase, level, dt))
		}
	}

	s.statsMu.Lock()
	s.frames++
	s.lastFrame = time.Since(start)
	s.statsMu.Unlock()
	return frameErr
}

func (s *Scheduler) runLevel(ctx context.Context, phase Phase, level []system.Task, dt time.Duration) error {
	var pinned, pooled []system.Task
	for _, t := range level {
		if runner(phase, t) == nil {
			continue
		}
		if t.Affinity().Pinned() {
			pinned = append(pinned, t)
		} else {
			pooled = append(pooled, t)
		}
	}

	var pinnedErr error
	var wg sync.WaitGroup
	if len(pinned) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.primary.run(func() {
				for _, t := range pinned {
					pinnedErr = errors.Join(pinnedErr, s.runTask(phase, t, dt))
				}
			})
			if err != nil {
				pinnedErr = err
			}
		}()
	}

	pooledErr := concurrent.ForEach(ctx, pooled, s.workers, func(_ context.Context, t system.Task) error {
		return s.runTask(phase, t, dt)
	})
	wg.Wait()

	return errors.Join(pinnedErr, pooledErr)
}

func runner(phase Phase, t system.Task) func(time.Duration) error {
	switch phase {
	case PhasePre:
		if p, ok := t.(system.PreUpdater); ok {
			return p.PreUpdate
		}
	case PhaseUpdate:
		return t.Update
	case PhasePost:
		if p, ok := t.(system.PostUpdater); ok {
			return p.PostUpdate
		}
	}
	return nil
}

func (s *Scheduler) runTask(phase Phase, t system.Task, dt time.Duration) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s %s: panic: %v", t.Name(), phase, r)
		}
		s.record(phase, t, time.Since(start), err)
	}()

	if runErr := runner(phase, t)(dt); runErr != nil {
		return fmt.Errorf("task %s %s: %w", t.Name(), phase, runErr)
	}
	return nil
}

func (s *Scheduler) record(phase Phase, t system.Task, elapsed time.Duration, err error) {
	s.statsMu.Lock()
	st, ok := s.perTask[t]
	if !ok {
		st = &TaskStats{Name: t.Name()}
		s.perTask[t] = st
	}
	st.Duration += elapsed
	if err != nil {
		st.Err = err
		s.errCount++
	}
	s.statsMu.Unlock()

	if err != nil {
		s.log.Warn("task failed",
			log.String("task", t.Name()),
			log.Stringer("phase", phase),
			log.Error(err),
		)
	}
}

// Stats reports per-task durations of the last frame in registration order.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	tasks := append([]system.Task(nil), s.tasks...)
	levels := len(s.levels)
	s.mu.Unlock()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	st := Stats{
		Frames:    s.frames,
		Tasks:     len(tasks),
		Levels:    levels,
		LastFrame: s.lastFrame,
		Errors:    s.errCount,
	}
	for _, t := range tasks {
		if ts, ok := s.perTask[t]; ok {
			st.PerTask = append(st.PerTask, *ts)
		}
	}
	return st
}

// Close stops the primary thread. Frame fails with ErrClosed afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.primary.stop()
}
