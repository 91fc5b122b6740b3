// Package taskq provides the timestamp-keyed min-heap and the stack of
// nested virtual-time domains the schedulers drain.
package taskq

import "container/heap"

// item pairs a payload with its sort key. seq is a monotonically
// increasing insertion index; it breaks timestamp ties first-in
// first-out, which the sequential back-end's ordering contract needs
// and the parallel back-ends tolerate.
type item[T any] struct {
	key uint64
	seq uint64
	v   T
}

type heapSlice[T any] []item[T]

func (h heapSlice[T]) Len() int { return len(h) }

func (h heapSlice[T]) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}

func (h heapSlice[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapSlice[T]) Push(x any) { *h = append(*h, x.(item[T])) }

func (h *heapSlice[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	var zero item[T]
	old[n-1] = zero
	*h = old[:n-1]
	return it
}

// Queue is a binary min-heap keyed on timestamp.
type Queue[T any] struct {
	h       heapSlice[T]
	nextSeq uint64
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push inserts v with the given key.
func (q *Queue[T]) Push(key uint64, v T) {
	heap.Push(&q.h, item[T]{key: key, seq: q.nextSeq, v: v})
	q.nextSeq++
}

// Pop removes and returns a currently-minimal-key element.
func (q *Queue[T]) Pop() (T, uint64, bool) {
	if len(q.h) == 0 {
		var zero T
		return zero, 0, false
	}
	it := heap.Pop(&q.h).(item[T])
	return it.v, it.key, true
}

// PeekMin returns the minimum key without removing its element.
func (q *Queue[T]) PeekMin() (uint64, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].key, true
}

// PeekMinOr returns the minimum key, or def when the queue is empty.
func (q *Queue[T]) PeekMinOr(def uint64) uint64 {
	if len(q.h) == 0 {
		return def
	}
	return q.h[0].key
}

func (q *Queue[T]) Len() int { return len(q.h) }

func (q *Queue[T]) Empty() bool { return len(q.h) == 0 }
