// Package arena stores values behind generational handles. A handle that
// outlives its slot fails every lookup instead of aliasing a newer value.
package arena

import "fmt"

// Handle encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. The zero Handle is never issued.
type Handle uint64

func newHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }
func (h Handle) IsZero() bool       { return h == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index(), h.Generation())
}

type slot[T any] struct {
	value      T
	generation uint32
	alive      bool
	order      uint64
}

// Arena owns values of T. Iteration follows insertion order. Not safe for
// concurrent use; scenes guard it with their own lock.
type Arena[T any] struct {
	slots    []slot[T]
	freeList []uint32
	order    []uint32
	sequence uint64
	live     int
}

func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots:    make([]slot[T], 0, capacity),
		freeList: make([]uint32, 0, capacity/4),
		order:    make([]uint32, 0, capacity),
	}
}

// Insert stores v and returns its handle. Generations start at 1 so the zero
// handle stays invalid.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.freeList); n > 0 {
		idx = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{generation: 1})
	}
	a.sequence++
	s := &a.slots[idx]
	s.value = v
	s.alive = true
	s.order = a.sequence
	a.order = append(a.order, idx)
	a.live++
	return newHandle(idx, s.generation)
}

func (a *Arena[T]) Alive(h Handle) bool {
	idx := h.Index()
	if int(idx) >= len(a.slots) {
		return false
	}
	s := &a.slots[idx]
	return s.alive && s.generation == h.Generation()
}

func (a *Arena[T]) Get(h Handle) (T, bool) {
	if !a.Alive(h) {
		var zero T
		return zero, false
	}
	return a.slots[h.Index()].value, true
}

// Remove frees the slot and bumps its generation. Removing a stale handle is
// a no-op that returns false.
func (a *Arena[T]) Remove(h Handle) bool {
	if !a.Alive(h) {
		return false
	}
	idx := h.Index()
	s := &a.slots[idx]
	var zero T
	s.value = zero
	s.alive = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	a.freeList = append(a.freeList, idx)
	for i, o := range a.order {
		if o == idx {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	a.live--
	return true
}

func (a *Arena[T]) Len() int { return a.live }

// Each visits live values in insertion order until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for _, idx := range a.order {
		s := &a.slots[idx]
		if !fn(newHandle(idx, s.generation), s.value) {
			return
		}
	}
}

// Values returns the live values in insertion order.
func (a *Arena[T]) Values() []T {
	out := make([]T, 0, a.live)
	for _, idx := range a.order {
		out = append(out, a.slots[idx].value)
	}
	return out
}
