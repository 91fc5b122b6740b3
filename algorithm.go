package pls

import (
	"unsafe"

	"github.com/behrlich/go-pls/internal/constants"
)

// grainLines picks a grain size in cache lines, widening for long
// ranges so each worker sees a few grains without drowning the queue
// in leaves.
func grainLines(blocks, threads int) int {
	g := 16
	for g > 1 && blocks < g*4*threads {
		g /= 2
	}
	return g
}

func elemsPerLine[T any]() int {
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if sz == 0 || sz >= constants.CacheLineBytes {
		return 1
	}
	return constants.CacheLineBytes / sz
}

// alignMid pulls a midpoint back so the split lands on a cache-line
// boundary of the slice's backing array, avoiding false sharing
// between the two halves' writers.
func alignMid[T any](s []T, mid int) int {
	var zero T
	sz := uintptr(unsafe.Sizeof(zero))
	if sz == 0 || mid <= 0 || mid >= len(s) {
		return mid
	}
	off := int((uintptr(unsafe.Pointer(&s[mid])) % constants.CacheLineBytes) / sz)
	if off < mid {
		mid -= off
	}
	return mid
}

// Fill sets every element of dst to v through recursive halving filler
// tasks at the given timestamp; leaves below the grain run a serial
// fill on their own cache lines.
func Fill[T any](q Enqueuer, dst []T, v T, ts Timestamp) {
	if len(dst) == 0 {
		return
	}
	rt, _ := q.base()
	grain := grainLines(len(dst)/elemsPerLine[T]()+1, rt.NumThreads()) * elemsPerLine[T]()
	q.EnqueueLambda(func(w *Worker, wts Timestamp) {
		fillTask(w, dst, v, grain, wts)
	}, ts, CacheLineHint(unsafe.Pointer(&dst[0])))
}

func fillTask[T any](w *Worker, dst []T, v T, grain int, ts Timestamp) {
	if len(dst) <= grain {
		for i := range dst {
			dst[i] = v
		}
		return
	}
	mid := alignMid(dst, len(dst)/2)
	if mid == 0 {
		mid = len(dst) / 2
	}
	lo, hi := dst[:mid], dst[mid:]
	w.EnqueueLambda(func(w *Worker, wts Timestamp) {
		fillTask(w, lo, v, grain, wts)
	}, ts, SameHint())
	w.EnqueueLambda(func(w *Worker, wts Timestamp) {
		fillTask(w, hi, v, grain, wts)
	}, ts, CacheLineHint(unsafe.Pointer(&hi[0])))
}

// Copy copies src into dst (equal lengths) with the same halving
// scheme, aligned on the destination side. Overlapping ranges are a
// contract violation.
func Copy[T any](q Enqueuer, dst, src []T, ts Timestamp) {
	if len(dst) != len(src) {
		panic(NewError("COPY", ErrCodeContract, "source and destination lengths differ"))
	}
	if len(dst) == 0 {
		return
	}
	if slicesOverlap(dst, src) {
		panic(NewError("COPY", ErrCodeContract, "source and destination ranges overlap"))
	}
	rt, _ := q.base()
	grain := grainLines(len(dst)/elemsPerLine[T]()+1, rt.NumThreads()) * elemsPerLine[T]()
	q.EnqueueLambda(func(w *Worker, wts Timestamp) {
		copyTask(w, dst, src, grain, wts)
	}, ts, CacheLineHint(unsafe.Pointer(&dst[0])))
}

func copyTask[T any](w *Worker, dst, src []T, grain int, ts Timestamp) {
	if len(dst) <= grain {
		copy(dst, src)
		return
	}
	mid := alignMid(dst, len(dst)/2)
	if mid == 0 {
		mid = len(dst) / 2
	}
	dlo, dhi := dst[:mid], dst[mid:]
	slo, shi := src[:mid], src[mid:]
	w.EnqueueLambda(func(w *Worker, wts Timestamp) {
		copyTask(w, dlo, slo, grain, wts)
	}, ts, SameHint())
	w.EnqueueLambda(func(w *Worker, wts Timestamp) {
		copyTask(w, dhi, shi, grain, wts)
	}, ts, CacheLineHint(unsafe.Pointer(&dhi[0])))
}

func slicesOverlap[T any](a, b []T) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	aLo := uintptr(unsafe.Pointer(&a[0]))
	aHi := uintptr(unsafe.Pointer(&a[len(a)-1]))
	bLo := uintptr(unsafe.Pointer(&b[0]))
	bHi := uintptr(unsafe.Pointer(&b[len(b)-1]))
	return aLo <= bHi && bLo <= aHi
}

// Transform writes f(src[i]) into dst[i] as a tiled walk: one task per
// output cache line's worth of elements, hinted by its output line.
func Transform[T, U any](q Enqueuer, dst []U, src []T, f func(T) U, ts Timestamp) {
	if len(dst) != len(src) {
		panic(NewError("TRANSFORM", ErrCodeContract, "source and destination lengths differ"))
	}
	if len(dst) == 0 {
		return
	}
	per := elemsPerLine[U]()
	blocks := (len(dst) + per - 1) / per
	EnqueueAll(q, 0, blocks, func(q Enqueuer, b int) {
		lo := b * per
		hi := lo + per
		if hi > len(dst) {
			hi = len(dst)
		}
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			for i := lo; i < hi; i++ {
				dst[i] = f(src[i])
			}
		}, ts, CacheLineHint(unsafe.Pointer(&dst[lo])))
	}, ts, NoHint())
}
