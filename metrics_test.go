package pls

import (
	"testing"
)

func TestMetricsCountersThroughRun(t *testing.T) {
	rt := NewSequentialRuntime()
	for i := 0; i < 10; i++ {
		rt.EnqueueLambda(func(w *Worker, _ Timestamp) {}, Timestamp(i), NoHint())
	}
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	snap := rt.Metrics().GetSnapshot()
	if snap.Enqueues != 10 {
		t.Errorf("Enqueues = %d, want 10", snap.Enqueues)
	}
	if snap.Dispatches != 10 {
		t.Errorf("Dispatches = %d, want 10", snap.Dispatches)
	}
	if snap.ElapsedNs <= 0 {
		t.Errorf("ElapsedNs = %d, want positive", snap.ElapsedNs)
	}
}

func TestMetricsRecordDomainDepth(t *testing.T) {
	m := NewMetrics()
	m.RecordDomainDepth(2)
	m.RecordDomainDepth(5)
	m.RecordDomainDepth(3)
	if got := m.MaxDomainDepth.Load(); got != 5 {
		t.Errorf("MaxDomainDepth = %d, want 5", got)
	}
}

func TestMetricsRunBuckets(t *testing.T) {
	m := NewMetrics()
	m.RecordRun(500)       // lands in every bucket from 1us up
	m.RecordRun(2_000_000) // only 10ms and wider
	if got := m.RunBuckets[1].Load(); got != 1 {
		t.Errorf("1us bucket = %d, want 1", got)
	}
	if got := m.RunBuckets[numRunBuckets-1].Load(); got != 2 {
		t.Errorf("widest bucket = %d, want 2", got)
	}
	if got := m.TotalRunNs.Load(); got != 2_000_500 {
		t.Errorf("TotalRunNs = %d", got)
	}
}

func TestObserverCallbacks(t *testing.T) {
	obs := &MockObserver{}
	rt, err := New(Config{Backend: Sequential, Observer: obs})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		rt.EnqueueLambda(func(w *Worker, _ Timestamp) {}, 0, NoHint())
	}
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	enq, disp := obs.Counts()
	if enq != 4 || disp != 4 {
		t.Errorf("observer saw %d/%d, want 4/4", enq, disp)
	}
}
