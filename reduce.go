package pls

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/behrlich/go-pls/internal/constants"
)

// padSlot keeps one worker's reduction intermediate on its own cache
// line.
type padSlot[T any] struct {
	v T
	_ [constants.CacheLineBytes]byte
}

// reducer is the control block of one in-flight reduction: a
// worker-private intermediate per worker plus the completion chain.
type reducer[T any] struct {
	op            func(T, T) T
	intermediates []padSlot[T]
	pending       atomic.Int64
	ts            Timestamp
	cb            func(w *Worker, ts Timestamp, result T)
	undeepen      bool
}

func (r *reducer[T]) updateIntermediate(w *Worker, val T) {
	slot := &r.intermediates[w.TID()]
	slot.v = r.op(slot.v, val)
}

// collapse folds the per-worker intermediates sequentially. The body
// is unrolled four wide so the loads of independent slots overlap.
func (r *reducer[T]) collapse(identity T) T {
	acc0, acc1, acc2, acc3 := identity, identity, identity, identity
	i := 0
	for ; i+4 <= len(r.intermediates); i += 4 {
		acc0 = r.op(acc0, r.intermediates[i].v)
		acc1 = r.op(acc1, r.intermediates[i+1].v)
		acc2 = r.op(acc2, r.intermediates[i+2].v)
		acc3 = r.op(acc3, r.intermediates[i+3].v)
	}
	for ; i < len(r.intermediates); i++ {
		acc0 = r.op(acc0, r.intermediates[i].v)
	}
	return r.op(r.op(acc0, acc1), r.op(acc2, acc3))
}

// Reduce folds src with the associative op, starting from identity,
// and hands the result to cb in a task at the given timestamp.
// Per-block accumulate tasks merge into worker-private intermediates;
// a final collapse task folds those and enqueues the callback. When
// the calling back-end supports domains, the whole reduction runs in a
// deepened sub-domain so its sub-tasks appear atomic to the caller.
func Reduce[T any](q Enqueuer, src []T, identity T, op func(T, T) T, ts Timestamp, cb func(w *Worker, ts Timestamp, result T)) {
	rt, w := q.base()

	if len(src) == 0 {
		// Empty range: the callback still runs, with the identity.
		q.EnqueueLambda(func(w *Worker, wts Timestamp) {
			cb(w, wts, identity)
		}, ts, NoHint())
		return
	}

	r := &reducer[T]{
		op:            op,
		intermediates: make([]padSlot[T], rt.NumThreads()),
		ts:            ts,
		cb:            cb,
	}
	for i := range r.intermediates {
		r.intermediates[i].v = identity
	}

	if w != nil && w.cur != nil && rt.sched.supportsDomains() {
		w.Deepen(NoTimestamp)
		// The oracle pops the drained sub-domain on its own; other
		// domain-aware back-ends need the explicit pop after the
		// callback runs.
		r.undeepen = rt.kind != Oracle
	}

	grain := constants.ReduceGrainLines * elemsPerLine[T]()
	blocks := (len(src) + grain - 1) / grain
	r.pending.Store(int64(blocks))

	for b := 0; b < blocks; b++ {
		lo := b * grain
		hi := lo + grain
		if hi > len(src) {
			hi = len(src)
		}
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			acc := identity
			for i := lo; i < hi; i++ {
				acc = r.op(acc, src[i])
			}
			r.updateIntermediate(w, acc)
			if r.pending.Add(-1) == 0 {
				w.EnqueueLambda(func(w *Worker, _ Timestamp) {
					result := r.collapse(identity)
					w.EnqueueLambda(func(w *Worker, wts Timestamp) {
						r.cb(w, wts, result)
						if r.undeepen {
							w.Undeepen()
						}
					}, r.ts, NoHint())
				}, r.ts, NoHint())
			}
		}, ts, CacheLineHint(unsafe.Pointer(&src[lo])))
	}
}

// SumOp returns the addition reduction operator.
func SumOp[T constraints.Integer | constraints.Float]() func(T, T) T {
	return func(a, b T) T { return a + b }
}

// MinOp returns the minimum reduction operator.
func MinOp[T constraints.Ordered]() func(T, T) T {
	return func(a, b T) T {
		if b < a {
			return b
		}
		return a
	}
}

// MaxOp returns the maximum reduction operator.
func MaxOp[T constraints.Ordered]() func(T, T) T {
	return func(a, b T) T {
		if b > a {
			return b
		}
		return a
	}
}
