package pls

import (
	"sync"
	"sync/atomic"
	"testing"
)

// enqCounter returns an enqueue lambda that marks each position,
// failing the test on duplicates via the per-position counters.
func enqCounter(n int) ([]atomic.Int32, EnqueueFn) {
	counts := make([]atomic.Int32, n)
	return counts, func(q Enqueuer, i int) {
		counts[i].Add(1)
	}
}

func checkExactlyOnce(t *testing.T, counts []atomic.Int32) {
	t.Helper()
	for i := range counts {
		if c := counts[i].Load(); c != 1 {
			t.Fatalf("position %d enqueued %d times, want 1", i, c)
		}
	}
}

func TestEnqueueAllVariantsExactlyOnce(t *testing.T) {
	const n = 1000
	variants := []struct {
		name string
		call func(q Enqueuer, enq EnqueueFn)
	}{
		{"tree", func(q Enqueuer, enq EnqueueFn) {
			EnqueueAll(q, 0, n, enq, 5, NoHint())
		}},
		{"strands", func(q Enqueuer, enq EnqueueFn) {
			EnqueueAllStrands(q, 0, n, enq, 5, NoHint())
		}},
		{"progressive", func(q Enqueuer, enq EnqueueFn) {
			EnqueueAllProgressive(q, 0, n, enq, 5, NoHint())
		}},
	}
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			rt := NewSequentialRuntime()
			counts, enq := enqCounter(n)
			v.call(rt, enq)
			if err := rt.Run(); err != nil {
				t.Fatal(err)
			}
			checkExactlyOnce(t, counts)
		})
	}
}

func TestEnqueueAllEmptyAndSingle(t *testing.T) {
	rt := NewSequentialRuntime()
	called := 0
	enq := func(q Enqueuer, i int) { called++ }

	EnqueueAll(rt, 3, 3, enq, 0, NoHint())
	EnqueueAllStrands(rt, 3, 3, enq, 0, NoHint())
	EnqueueAllProgressive(rt, 3, 3, enq, 0, NoHint())
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if called != 0 {
		t.Errorf("empty ranges invoked enq %d times", called)
	}

	rt2 := NewSequentialRuntime()
	var got int
	EnqueueAll(rt2, 7, 8, func(q Enqueuer, i int) { got = i }, 0, NoHint())
	if err := rt2.Run(); err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("single element position = %d, want 7", got)
	}
}

func TestEnqueueAllThousandBodies(t *testing.T) {
	// enqueue_all over 1000 positions, each enqueueing a body at the
	// caller's timestamp: exactly 1000 body invocations, all at ts 5.
	rt := NewSequentialRuntime()
	var invocations atomic.Int64
	var wrongTS atomic.Int64
	EnqueueAll(rt, 0, 1000, func(q Enqueuer, i int) {
		q.EnqueueLambda(func(w *Worker, ts Timestamp) {
			invocations.Add(1)
			if ts != 5 {
				wrongTS.Add(1)
			}
		}, 5, NoHint())
	}, 5, NoHint())
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if invocations.Load() != 1000 {
		t.Errorf("body ran %d times, want 1000", invocations.Load())
	}
	if wrongTS.Load() != 0 {
		t.Errorf("%d bodies saw a timestamp other than 5", wrongTS.Load())
	}
}

func TestEnqueueAllTSOrdersSubranges(t *testing.T) {
	rt := NewSequentialRuntime()
	var mu sync.Mutex
	var order []int
	EnqueueAllTS(rt, 0, 64, func(q Enqueuer, i int) {
		q.EnqueueLambda(func(w *Worker, _ Timestamp) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}, Timestamp(i), NoHint())
	}, func(i int) Timestamp { return Timestamp(i) }, NoHint())
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 64 {
		t.Fatalf("ran %d bodies, want 64", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("position %d ran body %d; bodies run in timestamp order", i, v)
		}
	}
}

func TestEnqueueAllOnTLS(t *testing.T) {
	rt := newTLSRuntime(t, 4)
	const n = 3000
	counts, enq := enqCounter(n)
	EnqueueAllStrands(rt, 0, n, enq, 1, NoHint())
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	checkExactlyOnce(t, counts)
}

func TestEnqueueAllProgressiveDeliversEarliestFirst(t *testing.T) {
	// The first progressive strand covers the leftmost slice before
	// any widening happens, so position 0 is always marked first.
	rt := NewSequentialRuntime()
	var first atomic.Int64
	first.Store(-1)
	EnqueueAllProgressive(rt, 0, 512, func(q Enqueuer, i int) {
		first.CompareAndSwap(-1, int64(i))
	}, 0, NoHint())
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if first.Load() != 0 {
		t.Errorf("first enqueued position = %d, want 0", first.Load())
	}
}
