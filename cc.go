// Continuation-passing helpers: the ForAll family fans iteration
// ranges across bounded strands, ForAllRed folds them through an
// expansion tree, and CallCC/GetCC/LoopCC chain asynchronous work
// through single-shot continuations.

package pls

import (
	"sync"
	"sync/atomic"
)

// Continuation is a heap-allocated single-shot callable used to resume
// control after an asynchronous sub-computation. Running it enqueues
// the captured function at the continuation's timestamp; running it
// twice is a contract violation. No reference counting is needed: the
// invoker frees its reference by dropping it.
type Continuation[R any] struct {
	fn   func(w *Worker, ts Timestamp, r R)
	ts   Timestamp
	h    Hint
	used atomic.Bool
}

// NewContinuation captures fn to run at ts with the given hint.
func NewContinuation[R any](fn func(w *Worker, ts Timestamp, r R), ts Timestamp, h Hint) *Continuation[R] {
	return &Continuation[R]{fn: fn, ts: ts, h: h}
}

// Run fires the continuation with the sub-computation's result.
func (c *Continuation[R]) Run(q Enqueuer, r R) {
	if !c.used.CompareAndSwap(false, true) {
		panic(NewError("CONTINUATION", ErrCodeContract, "continuation run twice"))
	}
	q.EnqueueLambda(func(w *Worker, ts Timestamp) {
		c.fn(w, ts, r)
	}, c.ts, c.h)
}

// CallCC enqueues f with a one-shot continuation carrying its return
// value; when f (or work it spawned) runs the continuation, cb
// executes at the same timestamp.
func CallCC[R any](q Enqueuer, f func(w *Worker, ts Timestamp, cc *Continuation[R]), cb func(w *Worker, ts Timestamp, r R), ts Timestamp, h Hint) {
	cc := NewContinuation(cb, ts, h)
	q.EnqueueLambda(func(w *Worker, wts Timestamp) {
		f(w, wts, cc)
	}, ts, h)
}

// GetCC captures a continuation for explicit later resumption without
// enqueueing anything now.
func GetCC[R any](fn func(w *Worker, ts Timestamp, r R), ts Timestamp, h Hint) *Continuation[R] {
	return NewContinuation(fn, ts, h)
}

// forallState counts strand terminations; the strand that observes the
// final count fires the termination lambda.
type forallState struct {
	finished atomic.Int64
	strands  int64
}

// ForAll runs body for every i in [first, sup) across a bounded set of
// strands at the given timestamp. The strand that finishes last
// enqueues done in its own unhinted task.
func ForAll(q Enqueuer, first, sup int, body func(w *Worker, i int), done func(w *Worker, ts Timestamp), ts Timestamp, h Hint) {
	n := sup - first
	if n <= 0 {
		if done != nil {
			q.EnqueueLambda(done, ts, NoHint())
		}
		return
	}
	rt, _ := q.base()
	strands := maxStrands(rt)
	if strands > n {
		strands = n
	}
	st := &forallState{strands: int64(strands)}

	for s := 0; s < strands; s++ {
		start := first + s
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			for i := start; i < sup; i += strands {
				body(w, i)
			}
			if st.finished.Add(1) == st.strands && done != nil {
				w.EnqueueLambda(done, ts, NoHint())
			}
		}, ts, h)
	}
}

// ForAllTS runs body for every i in [first, sup), each iteration in
// its own task at tsfn(i). done runs after every iteration completed.
func ForAllTS(q Enqueuer, first, sup int, body func(w *Worker, i int), done func(w *Worker, ts Timestamp), tsfn func(i int) Timestamp, h Hint) {
	n := sup - first
	if n <= 0 {
		if done != nil {
			q.EnqueueLambda(done, tsfn(first), NoHint())
		}
		return
	}
	var remaining atomic.Int64
	remaining.Store(int64(n))
	lastTS := tsfn(sup - 1)
	for i := first; i < sup; i++ {
		i := i
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			body(w, i)
			if remaining.Add(-1) == 0 && done != nil {
				w.EnqueueLambda(done, lastTS, NoHint())
			}
		}, tsfn(i), h)
	}
}

// ForAllCC is ForAll for asynchronous bodies: each iteration receives
// a one-shot continuation and counts as complete only once the body
// (or work it spawned) runs it.
func ForAllCC(q Enqueuer, first, sup int, body func(w *Worker, i int, cc *Continuation[struct{}]), done func(w *Worker, ts Timestamp), ts Timestamp, h Hint) {
	n := sup - first
	if n <= 0 {
		if done != nil {
			q.EnqueueLambda(done, ts, NoHint())
		}
		return
	}
	var remaining atomic.Int64
	remaining.Store(int64(n))
	rt, _ := q.base()
	strands := maxStrands(rt)
	if strands > n {
		strands = n
	}
	for s := 0; s < strands; s++ {
		start := first + s
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			for i := start; i < sup; i += strands {
				cc := NewContinuation(func(w *Worker, _ Timestamp, _ struct{}) {
					if remaining.Add(-1) == 0 && done != nil {
						w.EnqueueLambda(done, ts, NoHint())
					}
				}, ts, NoHint())
				body(w, i, cc)
			}
		}, ts, h)
	}
}

// redNode is one node of ForAllRed's expansion tree: an accumulator
// merged by its children, reported upward when the last child lands.
type redNode[R any] struct {
	mu      sync.Mutex
	acc     R
	pending int
	parent  *redNode[R]
}

func (n *redNode[R]) complete(w *Worker, op func(R, R) R, val R, root func(w *Worker, r R)) {
	n.mu.Lock()
	n.acc = op(n.acc, val)
	n.pending--
	fire := n.pending == 0
	acc := n.acc
	n.mu.Unlock()
	if !fire {
		return
	}
	if n.parent == nil {
		root(w, acc)
		return
	}
	n.parent.complete(w, op, acc, root)
}

// forAllRedLeaf bounds the range one leaf folds serially.
const forAllRedLeaf = 8

// ForAllRed folds body(i) over [first, sup) with the associative op
// through a variable-radix expansion tree (radix up to 8) carrying a
// per-node accumulator, then hands the total to done at ts.
func ForAllRed[R any](q Enqueuer, first, sup int, identity R, op func(R, R) R, body func(w *Worker, i int) R, done func(w *Worker, ts Timestamp, total R), ts Timestamp, h Hint) {
	if sup <= first {
		q.EnqueueLambda(func(w *Worker, wts Timestamp) {
			done(w, wts, identity)
		}, ts, NoHint())
		return
	}
	root := func(w *Worker, total R) {
		w.EnqueueLambda(func(w *Worker, wts Timestamp) {
			done(w, wts, total)
		}, ts, NoHint())
	}
	top := &redNode[R]{acc: identity, pending: 1}
	q.EnqueueLambda(func(w *Worker, _ Timestamp) {
		forAllRedNode(w, top, first, sup, identity, op, body, root, ts, h)
	}, ts, h.WithFlags(EnqProducer))
}

func forAllRedNode[R any](w *Worker, node *redNode[R], first, sup int, identity R, op func(R, R) R, body func(w *Worker, i int) R, root func(w *Worker, r R), ts Timestamp, h Hint) {
	n := sup - first
	if n <= forAllRedLeaf {
		acc := identity
		for i := first; i < sup; i++ {
			acc = op(acc, body(w, i))
		}
		node.complete(w, op, acc, root)
		return
	}

	radix := redRadix(n)
	child := &redNode[R]{acc: identity, pending: radix, parent: node}
	chunk := (n + radix - 1) / radix
	for c := 0; c < radix; c++ {
		lo := first + c*chunk
		hi := lo + chunk
		if hi > sup {
			hi = sup
		}
		if lo >= hi {
			// Short tail: settle the unused child slots immediately.
			child.complete(w, op, identity, root)
			continue
		}
		w.EnqueueLambda(func(w *Worker, _ Timestamp) {
			forAllRedNode(w, child, lo, hi, identity, op, body, root, ts, h)
		}, ts, h.WithFlags(EnqProducer))
	}
}

// redRadix widens the expansion with the range, up to 8 children.
func redRadix(n int) int {
	switch {
	case n > 4*forAllRedLeaf:
		return 8
	case n > 2*forAllRedLeaf:
		return 4
	default:
		return 2
	}
}

// LoopCC chains [first, sup) as a sequential asynchronous loop: body
// receives the continuation that advances to the next iteration; done
// runs after the last iteration advances.
func LoopCC(q Enqueuer, first, sup int, body func(w *Worker, i int, next *Continuation[struct{}]), done func(w *Worker, ts Timestamp), ts Timestamp, h Hint) {
	var step func(q Enqueuer, i int)
	step = func(q Enqueuer, i int) {
		if i >= sup {
			if done != nil {
				q.EnqueueLambda(done, ts, NoHint())
			}
			return
		}
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			next := NewContinuation(func(w *Worker, _ Timestamp, _ struct{}) {
				step(w, i+1)
			}, ts, h)
			body(w, i, next)
		}, ts, h)
	}
	step(q, first)
}
