// Package sequence holds small ordered containers.
package sequence

import "container/heap"

type item[T any] struct {
	value T
	seq   uint64
}

type itemHeap[T any] struct {
	items []item[T]
	less  func(a, b T) bool
}

func (h *itemHeap[T]) Len() int { return len(h.items) }

// Less breaks ties by insertion order so equal values pop FIFO.
func (h *itemHeap[T]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.value, b.value) {
		return true
	}
	if h.less(b.value, a.value) {
		return false
	}
	return a.seq < b.seq
}

func (h *itemHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *itemHeap[T]) Push(x any) { h.items = append(h.items, x.(item[T])) }

func (h *itemHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = item[T]{}
	h.items = old[:n-1]
	return it
}

// PriorityQueue pops the element that sorts first under less. It is not safe
// for concurrent use.
type PriorityQueue[T any] struct {
	h   itemHeap[T]
	seq uint64
}

func NewPriorityQueue[T any](less func(a, b T) bool) *PriorityQueue[T] {
	return &PriorityQueue[T]{h: itemHeap[T]{less: less}}
}

func (q *PriorityQueue[T]) Enqueue(v T) {
	q.seq++
	heap.Push(&q.h, item[T]{value: v, seq: q.seq})
}

func (q *PriorityQueue[T]) Dequeue() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&q.h).(item[T]).value, true
}

func (q *PriorityQueue[T]) Peek() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.h.items[0].value, true
}

func (q *PriorityQueue[T]) Len() int { return q.h.Len() }

// Drain pops everything in order.
func (q *PriorityQueue[T]) Drain() []T {
	out := make([]T, 0, q.h.Len())
	for q.h.Len() > 0 {
		out = append(out, heap.Pop(&q.h).(item[T]).value)
	}
	return out
}
