package generic

import "sync"

// SlicePool recycles scratch slices. Slices handed back through Put are
// cleared so pooled memory never pins the elements it used to hold.
type SlicePool[T any] struct {
	pool     sync.Pool
	capacity int
}

func NewSlicePool[T any](capacity int) *SlicePool[T] {
	p := &SlicePool[T]{capacity: capacity}
	p.pool.New = func() any {
		s := make([]T, 0, p.capacity)
		return &s
	}
	return p
}

// Get returns an empty slice with at least the pool's capacity.
func (p *SlicePool[T]) Get() *[]T {
	s := p.pool.Get().(*[]T)
	*s = (*s)[:0]
	return s
}

func (p *SlicePool[T]) Put(s *[]T) {
	if s == nil {
		return
	}
	clear(*s)
	*s = (*s)[:0]
	p.pool.Put(s)
}
