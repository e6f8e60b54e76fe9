package observer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/pkg/generic"
)

var (
	ErrNoOverlap       = errors.New("observer desires none of the subject's potential changes")
	ErrAlreadyAttached = errors.New("observer already attached to subject")
	ErrNotAttached     = errors.New("observer not attached to subject")
	ErrReservedMask    = errors.New("changes.None is reserved for subject shutdown")
	ErrNilParticipant  = errors.New("nil subject or observer")
)

const defaultShards = 16

// Subscription is one subject to observer edge.
type Subscription struct {
	id       string
	subject  Subject
	observer Observer
	mask     changes.Mask
	active   atomic.Bool
	registry *Registry
}

func (s *Subscription) ID() string         { return s.id }
func (s *Subscription) Subject() Subject   { return s.subject }
func (s *Subscription) Observer() Observer { return s.observer }
func (s *Subscription) Mask() changes.Mask { return s.mask }
func (s *Subscription) IsActive() bool     { return s.active.Load() }

// Cancel detaches the edge. Multiple calls are safe.
func (s *Subscription) Cancel() error {
	if !s.active.Load() {
		return nil
	}
	return s.registry.Detach(s.subject, s.observer)
}

type subjectEntry struct {
	subject   Subject
	edges     []*Subscription
	notifying int
}

type shard struct {
	mu       sync.RWMutex
	subjects map[string]*subjectEntry
}

// Option configures a Registry.
type Option func(*Registry)

// WithShards sets the number of lock shards subjects are spread over.
func WithShards(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shards = make([]shard, n)
		}
	}
}

// WithMonitor installs a Monitor at construction time.
func WithMonitor(m Monitor) Option {
	return func(r *Registry) { r.SetMonitor(m) }
}

// Registry is the change propagation backbone. Edges are kept per subject in
// registration order; subjects are spread over xxhash-selected shards so
// tasks posting for disjoint objects rarely contend.
type Registry struct {
	shards []shard

	obsMu      sync.Mutex
	byObserver map[Observer][]*Subscription

	monitor atomic.Pointer[monitorBox]
	scratch *generic.SlicePool[*Subscription]

	posts      atomic.Uint64
	deliveries atomic.Uint64
	errs       atomic.Uint64
	shutdowns  atomic.Uint64
}

type monitorBox struct{ m Monitor }

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		shards:     make([]shard, defaultShards),
		byObserver: make(map[Observer][]*Subscription),
		scratch:    generic.NewSlicePool[*Subscription](8),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.shards {
		r.shards[i].subjects = make(map[string]*subjectEntry)
	}
	return r
}

// SetMonitor replaces the monitor; nil removes it.
func (r *Registry) SetMonitor(m Monitor) {
	if m == nil {
		r.monitor.Store(nil)
		return
	}
	r.monitor.Store(&monitorBox{m: m})
}

func (r *Registry) shardFor(key string) *shard {
	return &r.shards[xxhash.Sum64String(key)%uint64(len(r.shards))]
}

// Attach registers observer for the changes of subject it desires. The stored
// filter is desired ∩ subject.PotentialChanges().
func (r *Registry) Attach(subject Subject, observer Observer, desired changes.Mask) (*Subscription, error) {
	if subject == nil || observer == nil {
		return nil, ErrNilParticipant
	}
	mask := desired.Intersect(subject.PotentialChanges())
	if mask == changes.None {
		return nil, fmt.Errorf("attach to %s (desired %s, potential %s): %w",
			subject.SubjectKey(), desired, subject.PotentialChanges(), ErrNoOverlap)
	}

	key := subject.SubjectKey()
	sh := r.shardFor(key)

	sh.mu.Lock()
	entry, ok := sh.subjects[key]
	if !ok {
		entry = &subjectEntry{subject: subject}
		sh.subjects[key] = entry
	}
	for _, e := range entry.edges {
		if e.observer == observer {
			sh.mu.Unlock()
			return nil, fmt.Errorf("attach to %s: %w", key, ErrAlreadyAttached)
		}
	}
	sub := &Subscription{
		id:       uuid.NewString(),
		subject:  subject,
		observer: observer,
		mask:     mask,
		registry: r,
	}
	sub.active.Store(true)
	entry.edges = append(entry.edges, sub)
	sh.mu.Unlock()

	r.obsMu.Lock()
	r.byObserver[observer] = append(r.byObserver[observer], sub)
	r.obsMu.Unlock()

	return sub, nil
}

// AttachDesired attaches using the observer's own DesiredChanges.
func (r *Registry) AttachDesired(subject Subject, observer Observer) (*Subscription, error) {
	if observer == nil {
		return nil, ErrNilParticipant
	}
	return r.Attach(subject, observer, observer.DesiredChanges())
}

// Detach removes a single edge.
func (r *Registry) Detach(subject Subject, observer Observer) error {
	if subject == nil || observer == nil {
		return ErrNilParticipant
	}
	key := subject.SubjectKey()
	sh := r.shardFor(key)

	sh.mu.Lock()
	entry, ok := sh.subjects[key]
	var removed *Subscription
	if ok {
		for i, e := range entry.edges {
			if e.observer == observer {
				removed = e
				entry.edges = append(entry.edges[:i:i], entry.edges[i+1:]...)
				break
			}
		}
		if len(entry.edges) == 0 && entry.notifying == 0 {
			delete(sh.subjects, key)
		}
	}
	sh.mu.Unlock()

	if removed == nil {
		return fmt.Errorf("detach from %s: %w", key, ErrNotAttached)
	}
	removed.active.Store(false)
	r.forgetObserverEdge(removed)
	return nil
}

// DetachObserver removes every edge out of observer without notifying anyone.
func (r *Registry) DetachObserver(observer Observer) int {
	r.obsMu.Lock()
	subs := r.byObserver[observer]
	delete(r.byObserver, observer)
	r.obsMu.Unlock()

	for _, sub := range subs {
		sub.active.Store(false)
		key := sub.subject.SubjectKey()
		sh := r.shardFor(key)
		sh.mu.Lock()
		if entry, ok := sh.subjects[key]; ok {
			for i, e := range entry.edges {
				if e == sub {
					entry.edges = append(entry.edges[:i:i], entry.edges[i+1:]...)
					break
				}
			}
			if len(entry.edges) == 0 && entry.notifying == 0 {
				delete(sh.subjects, key)
			}
		}
		sh.mu.Unlock()
	}
	return len(subs)
}

// PostChanges synchronously delivers changed to every observer of subject in
// registration order, each filtered by its edge mask. The edge list is
// snapshotted first: observers may attach or detach during delivery, and an
// edge detached mid-delivery is skipped. The first observer error stops
// delivery and is returned to the caller.
func (r *Registry) PostChanges(subject Subject, changed changes.Mask) error {
	if subject == nil {
		return ErrNilParticipant
	}
	if changed == changes.None {
		return ErrReservedMask
	}
	start := time.Now()
	key := subject.SubjectKey()
	sh := r.shardFor(key)

	snapshot := r.scratch.Get()
	defer r.scratch.Put(snapshot)

	sh.mu.Lock()
	entry, ok := sh.subjects[key]
	if ok {
		*snapshot = append(*snapshot, entry.edges...)
		entry.notifying++
	}
	sh.mu.Unlock()

	r.posts.Add(1)
	delivered := 0
	var err error
	if ok {
		defer r.finishNotify(sh, key, entry)
		for _, sub := range *snapshot {
			if !sub.active.Load() {
				continue
			}
			m := changed.Intersect(sub.mask)
			if m == changes.None {
				continue
			}
			if cbErr := sub.observer.ChangeOccurred(subject, m); cbErr != nil {
				r.errs.Add(1)
				err = fmt.Errorf("deliver %s from %s: %w", m, key, cbErr)
				break
			}
			delivered++
		}
	}
	r.deliveries.Add(uint64(delivered))

	if box := r.monitor.Load(); box != nil {
		box.m.OnPosted(key, changed, delivered, err, time.Since(start))
	}
	return err
}

func (r *Registry) finishNotify(sh *shard, key string, entry *subjectEntry) {
	sh.mu.Lock()
	entry.notifying--
	if entry.notifying == 0 && len(entry.edges) == 0 && sh.subjects[key] == entry {
		delete(sh.subjects, key)
	}
	sh.mu.Unlock()
}

// Notifying reports whether a PostChanges for subject is currently on the
// stack of some goroutine.
func (r *Registry) Notifying(subject Subject) bool {
	key := subject.SubjectKey()
	sh := r.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	entry, ok := sh.subjects[key]
	return ok && entry.notifying > 0
}

// Shutdown removes every edge into subject. Each former observer receives the
// terminal changes.None notification, in registration order, before Shutdown
// returns. All observers are notified even if some fail; failures are joined.
func (r *Registry) Shutdown(subject Subject) error {
	if subject == nil {
		return ErrNilParticipant
	}
	key := subject.SubjectKey()
	sh := r.shardFor(key)

	sh.mu.Lock()
	entry, ok := sh.subjects[key]
	var edges []*Subscription
	if ok {
		edges = entry.edges
		entry.edges = nil
		if entry.notifying == 0 {
			delete(sh.subjects, key)
		}
	}
	sh.mu.Unlock()

	var all error
	for _, sub := range edges {
		sub.active.Store(false)
		r.forgetObserverEdge(sub)
	}
	for _, sub := range edges {
		if err := sub.observer.ChangeOccurred(subject, changes.None); err != nil {
			all = errors.Join(all, fmt.Errorf("shutdown of %s: %w", key, err))
		}
	}
	r.shutdowns.Add(1)
	return all
}

// Observers returns the edges into subject in registration order.
func (r *Registry) Observers(subject Subject) []Edge {
	key := subject.SubjectKey()
	sh := r.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	entry, ok := sh.subjects[key]
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(entry.edges))
	for _, e := range entry.edges {
		out = append(out, Edge{ID: e.id, Observer: e.observer, Mask: e.mask})
	}
	return out
}

// Subjects returns the subjects observer is attached to.
func (r *Registry) Subjects(observer Observer) []Subject {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	subs := r.byObserver[observer]
	out := make([]Subject, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.subject)
	}
	return out
}

func (r *Registry) Stats() Stats {
	st := Stats{
		Posts:      r.posts.Load(),
		Deliveries: r.deliveries.Load(),
		Errors:     r.errs.Load(),
		Shutdowns:  r.shutdowns.Load(),
	}
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for _, entry := range sh.subjects {
			if len(entry.edges) > 0 {
				st.Subjects++
				st.Edges += len(entry.edges)
			}
		}
		sh.mu.RUnlock()
	}
	return st
}

func (r *Registry) forgetObserverEdge(sub *Subscription) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	subs := r.byObserver[sub.observer]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(r.byObserver, sub.observer)
		return
	}
	r.byObserver[sub.observer] = subs
}
