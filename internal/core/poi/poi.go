// Package poi keeps the per-scene list of points of interest: world events
// such as contacts, sounds and fires that other subsystems scan and react to
// without being the originator of the change.
package poi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zeusync/smoke/internal/core/geom"
)

var (
	ErrDuplicateFire = errors.New("fire already registered")
	ErrUnknownFire   = errors.New("fire not registered")
)

type Kind uint8

const (
	KindContact Kind = iota + 1
	KindSound
	KindFire
)

func (k Kind) String() string {
	switch k {
	case KindContact:
		return "Contact"
	case KindSound:
		return "Sound"
	case KindFire:
		return "Fire"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Point is one point of interest. Expired reports whether the point is stale
// and may be reaped at the next frame boundary.
type Point interface {
	Kind() Kind
	Position() geom.Vector3
	Expired() bool
}

// transient is embedded by the short-lived kinds.
type transient struct {
	expired bool
}

func (t *transient) Expired() bool { return t.expired }
func (t *transient) expire()       { t.expired = true }

type expirer interface{ expire() }

// Contact is produced by physics when two bodies touch.
type Contact struct {
	transient
	At         geom.Vector3
	Normal     geom.Vector3
	Impact     float64
	Velocities [2]geom.Vector3
	Bodies     [2]string
}

func (c *Contact) Kind() Kind             { return KindContact }
func (c *Contact) Position() geom.Vector3 { return c.At }

// Sound marks an audible event.
type Sound struct {
	transient
	At     geom.Vector3
	Gain   float64
	Source string
}

func (s *Sound) Kind() Kind             { return KindSound }
func (s *Sound) Position() geom.Vector3 { return s.At }

// Fire is a standing marker. It never expires and is removed only through
// RemoveFire.
type Fire struct {
	Name   string
	Bounds geom.AABB
}

func (f *Fire) Kind() Kind             { return KindFire }
func (f *Fire) Position() geom.Vector3 { return f.Bounds.Center() }
func (f *Fire) Expired() bool          { return false }

// List is a scene's POI collection. Producers append during their task's
// update; consumers read snapshots later the same frame or the next one.
type List struct {
	mu     sync.RWMutex
	points []Point
	fires  map[string]*Fire
}

func NewList() *List {
	return &List{fires: make(map[string]*Fire)}
}

// Add appends a transient point. Fires are routed to AddFire and can fail
// with ErrDuplicateFire.
func (l *List) Add(p Point) error {
	if f, ok := p.(*Fire); ok {
		return l.AddFire(f)
	}
	l.mu.Lock()
	l.points = append(l.points, p)
	l.mu.Unlock()
	return nil
}

// AddFire registers a named fire.
func (l *List) AddFire(f *Fire) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.fires[f.Name]; exists {
		return fmt.Errorf("fire %q: %w", f.Name, ErrDuplicateFire)
	}
	l.fires[f.Name] = f
	l.points = append(l.points, f)
	return nil
}

// RemoveFire unregisters the fire called name.
func (l *List) RemoveFire(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.fires[name]
	if !ok {
		return fmt.Errorf("fire %q: %w", name, ErrUnknownFire)
	}
	delete(l.fires, name)
	for i, p := range l.points {
		if p == Point(f) {
			l.points = append(l.points[:i], l.points[i+1:]...)
			break
		}
	}
	return nil
}

// Fire looks up a registered fire.
func (l *List) Fire(name string) (*Fire, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.fires[name]
	return f, ok
}

// Snapshot copies the current list. The copy is stable even if the producer
// appends afterwards.
func (l *List) Snapshot() []Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Point(nil), l.points...)
}

// OfKind returns the points of kind k, in insertion order.
func (l *List) OfKind(k Kind) []Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Point
	for _, p := range l.points {
		if p.Kind() == k {
			out = append(out, p)
		}
	}
	return out
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.points)
}

// Counts returns the number of points per kind.
func (l *List) Counts() map[Kind]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[Kind]int, 3)
	for _, p := range l.points {
		out[p.Kind()]++
	}
	return out
}

// EndFrame runs at the frame boundary: points already marked expired are
// reaped, survivors are marked expired so they are reaped one frame later.
// A point produced in frame N is therefore visible in frames N and N+1.
func (l *List) EndFrame() (reaped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.points[:0]
	for _, p := range l.points {
		if p.Expired() {
			reaped++
			continue
		}
		if e, ok := p.(expirer); ok {
			e.expire()
		}
		kept = append(kept, p)
	}
	clear(l.points[len(kept):])
	l.points = kept
	return reaped
}
