package pls

import (
	"testing"
)

func TestBindScalarArgs(t *testing.T) {
	rt := NewSequentialRuntime()
	var gotA int
	var gotB uint8
	var gotC float64
	body := Bind3(func(w *Worker, ts Timestamp, a int, b uint8, c float64) {
		gotA, gotB, gotC = a, b, c
	})
	Enqueue3(rt, body, 1, NoHint(), -5, uint8(200), 2.5)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if gotA != -5 || gotB != 200 || gotC != 2.5 {
		t.Errorf("args = %d %d %v, want -5 200 2.5", gotA, gotB, gotC)
	}
}

func TestBindFiveArgs(t *testing.T) {
	rt := NewSequentialRuntime()
	var sum int64
	body := Bind5(func(w *Worker, ts Timestamp, a, b, c, d, e int64) {
		sum = a + b + c + d + e
	})
	Enqueue5(rt, body, 0, NoHint(), int64(1), int64(2), int64(3), int64(4), int64(5))
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if sum != 15 {
		t.Errorf("sum = %d, want 15", sum)
	}
}

func TestBindInlineTuple(t *testing.T) {
	// Three words: spread across the frame tile, no heap traffic.
	type triple struct {
		A uint64
		B int64
		C uint64
	}
	rt := NewSequentialRuntime()
	var got triple
	body := Bind1(func(w *Worker, ts Timestamp, v triple) {
		got = v
	})
	in := triple{A: 10, B: -20, C: 30}
	Enqueue1(rt, body, 0, NoHint(), in)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Errorf("tuple = %+v, want %+v", got, in)
	}
}

func TestBindHeapTuple(t *testing.T) {
	// Seven words: too wide for the tile, so it rides the heap path.
	type wide struct {
		Vals [6]uint64
		Tag  uint64
	}
	rt := NewSequentialRuntime()
	var got wide
	body := Bind1(func(w *Worker, ts Timestamp, v wide) {
		got = v
	})
	in := wide{Vals: [6]uint64{1, 2, 3, 4, 5, 6}, Tag: 7}
	Enqueue1(rt, body, 0, NoHint(), in)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Errorf("heap tuple = %+v, want %+v", got, in)
	}
	// The runner consumed the tuple's handle.
	if live := rt.handles.Live(); live != 0 {
		t.Errorf("%d handles leaked", live)
	}
}

func TestBindOversizedScalarPanics(t *testing.T) {
	type wide struct{ a, b uint64 }
	defer func() {
		if recover() == nil {
			t.Error("Bind2 must reject a two-word argument type at construction")
		}
	}()
	Bind2(func(w *Worker, ts Timestamp, a wide, b int) {})
}

func TestEnqueueTooManyWordsPanics(t *testing.T) {
	rt := NewSequentialRuntime()
	defer func() {
		if recover() == nil {
			t.Error("raw enqueue past the register count must abort")
		}
	}()
	rt.Enqueue(Bind0(func(w *Worker, ts Timestamp) {}), 0, NoHint(), 1, 2, 3, 4, 5, 6)
}

func TestSameFlagsOutsideTaskPanic(t *testing.T) {
	rt := NewSequentialRuntime()
	defer func() {
		if recover() == nil {
			t.Error("EnqSameTime outside a task must abort")
		}
	}()
	rt.EnqueueLambda(func(w *Worker, _ Timestamp) {}, 0, Hint{Flags: EnqSameTime})
}

func TestSameTask(t *testing.T) {
	rt := NewSequentialRuntime()
	var rec OrderRecorder
	body := Bind1(func(w *Worker, ts Timestamp, depth int) {
		rec.Record(uint64(depth))
		if depth > 0 {
			// Re-enqueue the current function without naming it.
			w.Enqueue(nil, ts+1, Hint{Flags: EnqSameTask}, Word(depth-1))
		}
	})
	Enqueue1(rt, body, 0, NoHint(), 3)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	got := rec.Order()
	want := []uint64{3, 2, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("ran %d times, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("run %d = %d, want %d", i, got[i], want[i])
		}
	}
}
