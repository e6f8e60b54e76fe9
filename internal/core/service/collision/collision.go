// Package collision implements the asynchronous collision query service.
// Requests are enqueued from any goroutine, serviced once per frame by the
// owning physics task, and collected by polling Finalize.
package collision

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zeusync/smoke/internal/core/geom"
)

var (
	// ErrNotReady is a polling signal, not a failure: the request has not been
	// serviced yet.
	ErrNotReady      = errors.New("collision result not ready")
	ErrInvalidHandle = errors.New("invalid collision handle")
)

// DefaultTTL is how many frames a serviced result waits for Finalize before
// it is reaped.
const DefaultTTL = 120

// ServiceName is the registry name of the collision service owned by the
// physics scene called scene.
func ServiceName(scene string) string { return "collision/" + scene }

// Handle identifies one request. Handles increase monotonically and are
// never reused.
type Handle uint64

type Shape uint8

const (
	ShapeSphere Shape = iota
	ShapeBox
	ShapeLine
)

// Request describes a query volume. Ignore lists body names to skip, usually
// the querying object itself.
type Request struct {
	Shape   Shape
	Center  geom.Vector3
	Radius  float64
	Extents geom.Vector3
	Ignore  []string
}

func (r Request) Ignores(body string) bool {
	for _, name := range r.Ignore {
		if name == body {
			return true
		}
	}
	return false
}

type Hit struct {
	Body     string
	Point    geom.Vector3
	Normal   geom.Vector3
	Distance float64
}

type Result struct {
	Handle Handle
	Hits   []Hit
	// Frame is the frame in which the request was serviced.
	Frame uint64
}

// Backend is the strategy a physics implementation plugs in.
type Backend interface {
	Name() string
	Test(req Request) []Hit
	LineTest(start, end geom.Vector3, req Request) []Hit
}

type queued struct {
	handle     Handle
	req        Request
	line       bool
	start, end geom.Vector3
}

// Stats is a snapshot of service counters.
type Stats struct {
	Issued    uint64
	Serviced  uint64
	Finalized uint64
	Reaped    uint64
	Pending   int
	Waiting   int
}

// Service is one scene's collision query endpoint. Test, LineTest and
// Finalize are safe from any goroutine; ProcessRequests and Reap belong to
// the owning task. The request queue, result map and dead list each have
// their own mutex, held only for the duration of a container mutation.
type Service struct {
	name string
	ttl  uint64

	next atomic.Uint64

	reqMu sync.Mutex
	queue []queued

	resMu   sync.Mutex
	results map[Handle]Result

	deadMu  sync.Mutex
	dead    map[Handle]struct{}
	deadLow Handle // every handle <= deadLow is dead

	serviced  atomic.Uint64
	finalized atomic.Uint64
	reaped    atomic.Uint64
}

// New creates a service published under name. ttl <= 0 selects DefaultTTL.
func New(name string, ttl int) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		name:    name,
		ttl:     uint64(ttl),
		results: make(map[Handle]Result),
		dead:    make(map[Handle]struct{}),
	}
}

func (s *Service) Name() string { return s.name }

// NextHandle issues a fresh handle.
func (s *Service) NextHandle() Handle {
	return Handle(s.next.Add(1))
}

// Test enqueues a volume query and returns immediately.
func (s *Service) Test(req Request) Handle {
	h := s.NextHandle()
	s.reqMu.Lock()
	s.queue = append(s.queue, queued{handle: h, req: req})
	s.reqMu.Unlock()
	return h
}

// LineTest enqueues a segment query and returns immediately.
func (s *Service) LineTest(start, end geom.Vector3, req Request) Handle {
	h := s.NextHandle()
	req.Shape = ShapeLine
	s.reqMu.Lock()
	s.queue = append(s.queue, queued{handle: h, req: req, line: true, start: start, end: end})
	s.reqMu.Unlock()
	return h
}

// Finalize returns the result for h exactly once. Before the owning task has
// serviced h it returns ErrNotReady; after the result was collected, or for a
// handle that was never issued, it returns ErrInvalidHandle.
func (s *Service) Finalize(h Handle) (Result, error) {
	if h == 0 || uint64(h) > s.next.Load() {
		return Result{}, fmt.Errorf("handle %d: %w", h, ErrInvalidHandle)
	}

	// Retiring under resMu keeps a concurrent second Finalize from
	// observing the gap between removal and retirement as NotReady.
	s.resMu.Lock()
	res, ok := s.results[h]
	if ok {
		delete(s.results, h)
		s.retire(h)
	}
	s.resMu.Unlock()

	if ok {
		s.finalized.Add(1)
		return res, nil
	}
	if s.isDead(h) {
		return Result{}, fmt.Errorf("handle %d: %w", h, ErrInvalidHandle)
	}
	return Result{}, ErrNotReady
}

// ProcessRequests drains the queue and services every request through
// backend. The backend runs with no lock held.
func (s *Service) ProcessRequests(backend Backend, frame uint64) int {
	s.reqMu.Lock()
	batch := s.queue
	s.queue = nil
	s.reqMu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	out := make([]Result, len(batch))
	for i, q := range batch {
		var hits []Hit
		if q.line {
			hits = backend.LineTest(q.start, q.end, q.req)
		} else {
			hits = backend.Test(q.req)
		}
		out[i] = Result{Handle: q.handle, Hits: hits, Frame: frame}
	}

	s.resMu.Lock()
	for _, res := range out {
		s.results[res.Handle] = res
	}
	s.resMu.Unlock()

	s.serviced.Add(uint64(len(batch)))
	return len(batch)
}

// Reap retires results nobody collected within the TTL.
func (s *Service) Reap(frame uint64) int {
	expired := 0
	s.resMu.Lock()
	for h, res := range s.results {
		if frame > res.Frame && frame-res.Frame > s.ttl {
			delete(s.results, h)
			s.retire(h)
			expired++
		}
	}
	s.resMu.Unlock()

	s.reaped.Add(uint64(expired))
	return expired
}

// Pending reports the number of queued, unserviced requests.
func (s *Service) Pending() int {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	return len(s.queue)
}

func (s *Service) Stats() Stats {
	st := Stats{
		Issued:    s.next.Load(),
		Serviced:  s.serviced.Load(),
		Finalized: s.finalized.Load(),
		Reaped:    s.reaped.Load(),
		Pending:   s.Pending(),
	}
	s.resMu.Lock()
	st.Waiting = len(s.results)
	s.resMu.Unlock()
	return st
}

// retire moves h to the dead list. The contiguous prefix of dead handles is
// folded into deadLow so the list does not grow without bound. Lock order is
// resMu before deadMu.
func (s *Service) retire(h Handle) {
	s.deadMu.Lock()
	defer s.deadMu.Unlock()
	if h <= s.deadLow {
		return
	}
	s.dead[h] = struct{}{}
	for {
		if _, ok := s.dead[s.deadLow+1]; !ok {
			break
		}
		delete(s.dead, s.deadLow+1)
		s.deadLow++
	}
}

func (s *Service) isDead(h Handle) bool {
	s.deadMu.Lock()
	defer s.deadMu.Unlock()
	if h <= s.deadLow {
		return true
	}
	_, ok := s.dead[h]
	return ok
}
