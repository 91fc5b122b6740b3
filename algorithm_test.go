package pls

import (
	"testing"
)

func TestFillSequential(t *testing.T) {
	rt := NewSequentialRuntime()
	buf := make([]int, 1000)
	Fill(rt, buf, 7, 0)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	for i, v := range buf {
		if v != 7 {
			t.Fatalf("buf[%d] = %d, want 7", i, v)
		}
	}
}

func TestFillTLS(t *testing.T) {
	rt := newTLSRuntime(t, 4)
	buf := make([]uint64, 4096)
	Fill(rt, buf, 0xAB, 0)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	for i, v := range buf {
		if v != 0xAB {
			t.Fatalf("buf[%d] = %#x, want 0xab", i, v)
		}
	}
}

func TestFillEmptyAndTiny(t *testing.T) {
	rt := NewSequentialRuntime()
	Fill(rt, []int{}, 1, 0)
	one := []int{0}
	Fill(rt, one, 9, 0)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if one[0] != 9 {
		t.Errorf("one[0] = %d, want 9", one[0])
	}
}

func TestCopySequential(t *testing.T) {
	rt := NewSequentialRuntime()
	src := make([]int, 777)
	for i := range src {
		src[i] = i * 3
	}
	dst := make([]int, len(src))
	Copy(rt, dst, src, 0)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestCopyOverlapPanics(t *testing.T) {
	rt := NewSequentialRuntime()
	buf := make([]int, 100)
	defer func() {
		if recover() == nil {
			t.Error("overlapping copy must abort")
		}
	}()
	Copy(rt, buf[10:60], buf[0:50], 0)
}

func TestCopyLengthMismatchPanics(t *testing.T) {
	rt := NewSequentialRuntime()
	defer func() {
		if recover() == nil {
			t.Error("length mismatch must abort")
		}
	}()
	Copy(rt, make([]int, 3), make([]int, 4), 0)
}

func TestTransform(t *testing.T) {
	rt := newTLSRuntime(t, 2)
	src := make([]int32, 1500)
	for i := range src {
		src[i] = int32(i)
	}
	dst := make([]int64, len(src))
	Transform(rt, dst, src, func(v int32) int64 { return int64(v) * 2 }, 0)
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	for i := range dst {
		if dst[i] != int64(i)*2 {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], int64(i)*2)
		}
	}
}

func TestFillVisibleToLaterTimestamps(t *testing.T) {
	// A reader task after the fill's completion timestamp sees every
	// element written.
	rt := NewSequentialRuntime()
	buf := make([]byte, 300)
	Fill(rt, buf, byte(0x5A), 1)
	holes := -1
	rt.EnqueueLambda(func(w *Worker, _ Timestamp) {
		holes = 0
		for _, b := range buf {
			if b != 0x5A {
				holes++
			}
		}
	}, 1000, NoHint())
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	if holes != 0 {
		t.Errorf("%d elements unwritten when read at a later timestamp", holes)
	}
}
