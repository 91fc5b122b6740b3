package sim

import (
	"errors"
	"testing"
)

func TestDescMarshalRoundTrip(t *testing.T) {
	in := TaskDesc{
		TS:    1234567,
		FnID:  0x0000ABCD1234,
		Flags: 0x00210090, // persistent + transient bits
		Hint:  0xfeedface,
		NArgs: 3,
	}
	in.Args = [5]uint64{1, ^uint64(0), 42, 0, 0}

	var buf [DescSize]byte
	MarshalDesc(&in, buf[:])

	var out TaskDesc
	if err := UnmarshalDesc(buf[:], &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestUnmarshalShortBuffer(t *testing.T) {
	var d TaskDesc
	if err := UnmarshalDesc(make([]byte, DescSize-1), &d); err != ErrInsufficientData {
		t.Errorf("short buffer = %v, want ErrInsufficientData", err)
	}
}

func TestPackFnFlags(t *testing.T) {
	fnID, flags, nargs := UnpackFnFlags(PackFnFlags(0x7777, 0xffffffff, 5))
	if fnID != 0x7777 {
		t.Errorf("fnID = %#x, want 0x7777", fnID)
	}
	if flags != persistentFlagMask {
		t.Errorf("flags = %#x; only persistent bits should be packed", flags)
	}
	if nargs != 5 {
		t.Errorf("nargs = %d, want 5", nargs)
	}
}

func TestStubDequeueOrder(t *testing.T) {
	s := NewStub(StubConfig{Capacity: 8})
	for _, ts := range []uint64{30, 10, 20} {
		if err := s.EnqueueTask(TaskDesc{TS: ts, FnID: ts}); err != nil {
			t.Fatalf("enqueue ts=%d: %v", ts, err)
		}
	}
	for _, want := range []uint64{10, 20, 30} {
		d, ok := s.DequeueTask()
		if !ok || d.TS != want {
			t.Fatalf("dequeue = %d,%v, want %d", d.TS, ok, want)
		}
	}
	if _, ok := s.DequeueTask(); ok {
		t.Error("queue should be empty")
	}
}

func TestStubUntimestampedFirstProducerLast(t *testing.T) {
	s := NewStub(StubConfig{Capacity: 8})
	_ = s.EnqueueTask(TaskDesc{TS: 5, FnID: 1})
	_ = s.EnqueueTask(TaskDesc{TS: 99, FnID: 2, Flags: descFlagNoTimestamp})
	_ = s.EnqueueTask(TaskDesc{TS: 5, FnID: 3, Flags: descFlagProducer})

	d, _ := s.DequeueTask()
	if d.FnID != 2 {
		t.Errorf("first dequeue FnID = %d; untimestamped tasks dispatch first", d.FnID)
	}
	d, _ = s.DequeueTask()
	if d.FnID != 1 {
		t.Errorf("second dequeue FnID = %d; producers lose timestamp ties", d.FnID)
	}
}

func TestStubCapacityAndEscapeSlot(t *testing.T) {
	s := NewStub(StubConfig{Capacity: 2})
	if err := s.EnqueueTask(TaskDesc{TS: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueTask(TaskDesc{TS: 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueTask(TaskDesc{TS: 3}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("over-capacity enqueue = %v, want ErrQueueFull", err)
	}
	// A requeuer may use the reserved slot.
	if err := s.EnqueueTask(TaskDesc{TS: 3, Flags: descFlagRequeuer}); err != nil {
		t.Errorf("requeuer should fit the escape slot: %v", err)
	}
	if used, capacity := s.Pressure(); used != 3 || capacity != 2 {
		t.Errorf("Pressure = %d/%d, want 3/2", used, capacity)
	}
}

func TestStubRemoveUntied(t *testing.T) {
	s := NewStub(StubConfig{Capacity: 8})
	_ = s.EnqueueTask(TaskDesc{TS: 10, FnID: 1})
	_ = s.EnqueueTask(TaskDesc{TS: 20, FnID: 2})
	_ = s.EnqueueTask(TaskDesc{TS: 30, FnID: 3, Flags: descFlagRequeuer})

	// Dequeue order for the forward spiller.
	d, ok := s.RemoveUntied(^uint64(0), false)
	if !ok || d.FnID != 1 {
		t.Fatalf("remove = %d,%v, want task 1", d.FnID, ok)
	}

	// maxTS bound rejects later tasks.
	if _, ok := s.RemoveUntied(5, false); ok {
		t.Error("remove with maxTS=5 should find nothing at ts=20")
	}

	// Out-of-frame extraction takes from the back.
	d, ok = s.RemoveUntied(^uint64(0), true)
	if !ok || d.FnID != 2 {
		t.Fatalf("frame remove = %d,%v; requeuers are pinned, task 2 is the back", d.FnID, ok)
	}

	// Only the requeuer remains; it must not be spillable.
	if _, ok := s.RemoveUntied(^uint64(0), false); ok {
		t.Error("requeuer must never be extracted")
	}
}

func TestStubControls(t *testing.T) {
	s := NewStub(StubConfig{Capacity: 4, Threads: 3})
	if s.NumThreads() != 3 {
		t.Errorf("NumThreads = %d, want 3", s.NumThreads())
	}
	s.SetGvt(77)
	if s.Gvt() != 77 {
		t.Errorf("Gvt = %d, want 77", s.Gvt())
	}
	s.DomainDrained(5)
	s.DomainDrained(9)
	if d := s.Drains(); len(d) != 2 || d[0] != 5 || d[1] != 9 {
		t.Errorf("Drains = %v, want [5 9]", d)
	}
	s.Halt()
	if !s.Halted() {
		t.Error("Halted should report true after Halt")
	}
}
