package pls

import (
	"github.com/behrlich/go-pls/internal/constants"
)

// EnqueueFn enqueues the work for one iterator position. The Enqueuer
// is the context the call runs under: the calling scope for small
// ranges handled serially, otherwise the worker running an enqueuer
// task.
type EnqueueFn func(q Enqueuer, i int)

// EnqueueAll walks [first, last) calling enq exactly once per
// position. Small ranges are handled serially in the caller; larger
// ranges fan out a tree of enqueuer tasks at the given timestamp, with
// fanout widening as the range grows.
func EnqueueAll(q Enqueuer, first, last int, enq EnqueueFn, ts Timestamp, h Hint) {
	enqueueAllTree(q, first, last, enq, nil, ts, h)
}

// EnqueueAllTS is EnqueueAll with a per-subrange timestamp: each child
// enqueuer runs at tsfn of its first position. Callers are expected to
// enqueue in non-decreasing timestamp order along the range.
func EnqueueAllTS(q Enqueuer, first, last int, enq EnqueueFn, tsfn func(i int) Timestamp, h Hint) {
	if last <= first {
		return
	}
	enqueueAllTree(q, first, last, enq, tsfn, tsfn(first), h)
}

func enqueueAllTree(q Enqueuer, first, last int, enq EnqueueFn, tsfn func(i int) Timestamp, ts Timestamp, h Hint) {
	if last <= first {
		return
	}
	if last-first <= constants.MaxBaseEnqs {
		for i := first; i < last; i++ {
			enq(q, i)
		}
		return
	}

	_, cw := q.base()
	inTask := cw != nil && cw.cur != nil

	k := treeFanout(last - first)
	chunk := (last - first + k - 1) / k
	for c := 0; c < k; c++ {
		lo := first + c*chunk
		hi := lo + chunk
		if hi > last {
			hi = last
		}
		if lo >= hi {
			break
		}
		childH := h
		if c == 0 && inTask && h.Flags&EnqNoHint != 0 {
			// The left-most child stays on the caller's tile rather
			// than taking an off-tile hop.
			childH.Flags = (h.Flags &^ EnqNoHint) | EnqSameHint
		}
		childTS := ts
		if tsfn != nil {
			childTS = tsfn(lo)
		}
		q.EnqueueLambda(func(w *Worker, wts Timestamp) {
			enqueueAllTree(w, lo, hi, enq, tsfn, wts, childH)
		}, childTS, childH.WithFlags(EnqProducer))
	}
}

// treeFanout widens with the range: full width for long ranges,
// halved width mid-range, binary otherwise.
func treeFanout(length int) int {
	wide := constants.MaxEnqueuerChildren
	switch {
	case length > wide*wide/2:
		return wide
	case length > wide*wide/4:
		return wide / 2
	default:
		return 2
	}
}

// strandDesc is the state shared by one strand family. It exists until
// the cleanup task drops it.
type strandDesc struct {
	enq    EnqueueFn
	last   int
	stride int
	ts     Timestamp
	h      Hint
}

// EnqueueAllStrands splits [first, last) into bounded-width strands of
// consecutive slices; each strand task enqueues one slice and chains
// to its next slot. The strand that reaches the end of the range
// enqueues a cleanup task one timestamp later to drop the shared
// descriptor.
func EnqueueAllStrands(q Enqueuer, first, last int, enq EnqueueFn, ts Timestamp, h Hint) {
	if last <= first {
		return
	}
	rt, _ := q.base()
	slices := (last - first + constants.EnqueuesPerTask - 1) / constants.EnqueuesPerTask
	strands := maxStrands(rt)
	if strands > slices {
		strands = slices
	}

	d := &strandDesc{
		enq:    enq,
		last:   last,
		stride: strands * constants.EnqueuesPerTask,
		ts:     ts,
		h:      h,
	}
	for s := 0; s < strands; s++ {
		start := first + s*constants.EnqueuesPerTask
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			strandStep(w, d, start)
		}, ts, h.WithFlags(EnqProducer))
	}
}

func strandStep(w *Worker, d *strandDesc, start int) {
	end := start + constants.EnqueuesPerTask
	if end > d.last {
		end = d.last
	}
	for i := start; i < end; i++ {
		d.enq(w, i)
	}
	switch {
	case end == d.last:
		// Last strand done: schedule the descriptor cleanup after
		// every sibling's timestamp.
		w.EnqueueLambda(func(w *Worker, _ Timestamp) {
			if w.log != nil {
				w.log.Debugf("strand family [..%d) complete", d.last)
			}
		}, d.ts+1, NoHint())
	case start+d.stride < d.last:
		next := start + d.stride
		w.EnqueueLambda(func(w *Worker, _ Timestamp) {
			strandStep(w, d, next)
		}, d.ts, d.h.WithFlags(EnqProducer))
	}
}

// EnqueueAllProgressive begins with a single strand and widens by
// doubling: a strand at begin with stride s enqueues its slice, then
// spawns strands at begin+s and begin+2s with stride 2s until the
// stride cap, delivering the earliest positions first and parallel
// breadth progressively.
func EnqueueAllProgressive(q Enqueuer, first, last int, enq EnqueueFn, ts Timestamp, h Hint) {
	if last <= first {
		return
	}
	rt, _ := q.base()
	maxStride := maxStrands(rt) * constants.EnqueuesPerTask
	q.EnqueueLambda(func(w *Worker, _ Timestamp) {
		progressiveStep(w, enq, first, constants.EnqueuesPerTask, last, maxStride, ts, h)
	}, ts, h.WithFlags(EnqProducer))
}

func progressiveStep(w *Worker, enq EnqueueFn, begin, stride, last, maxStride int, ts Timestamp, h Hint) {
	end := begin + constants.EnqueuesPerTask
	if end > last {
		end = last
	}
	for i := begin; i < end; i++ {
		enq(w, i)
	}

	spawn := func(b, s int) {
		w.EnqueueLambda(func(w *Worker, _ Timestamp) {
			progressiveStep(w, enq, b, s, last, maxStride, ts, h)
		}, ts, h.WithFlags(EnqProducer))
	}
	if begin+2*stride < last && stride < maxStride {
		spawn(begin+stride, 2*stride)
		spawn(begin+2*stride, 2*stride)
	} else if begin+stride < last {
		spawn(begin+stride, stride)
	}
}

func maxStrands(rt *Runtime) int {
	n := constants.StrandsPerThread * rt.NumThreads()
	if n > constants.MaxStrandsCap {
		n = constants.MaxStrandsCap
	}
	if n < 1 {
		n = 1
	}
	return n
}
