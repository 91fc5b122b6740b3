package pls

import (
	"sync/atomic"
	"time"
)

// RunLatencyBuckets defines the task run-time histogram buckets in
// nanoseconds, 100ns to 1s with logarithmic spacing.
var RunLatencyBuckets = []uint64{
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
}

const numRunBuckets = 8

// Metrics tracks scheduling statistics for a runtime
type Metrics struct {
	// Task lifecycle counters
	Enqueues   atomic.Uint64 // Tasks created by enqueue
	Dispatches atomic.Uint64 // Tasks invoked by a worker
	Discarded  atomic.Uint64 // Abort-handler tasks dropped at enqueue

	// Spill protocol counters
	Spills         atomic.Uint64 // Spiller passes that extracted tasks
	SpilledTasks   atomic.Uint64 // Tasks evicted into descriptor blocks
	Requeues       atomic.Uint64 // Descriptors reinstated by requeuers
	RequeuerYields atomic.Uint64 // Requeuer yields on a full queue

	// Fractal time counters
	Deepens        atomic.Uint64 // Domains entered
	Undeepens      atomic.Uint64 // Domains left
	MaxDomainDepth atomic.Uint64 // Deepest observed domain stack

	// Task run-time tracking; recorded only when an Observer is
	// configured
	TotalRunNs atomic.Uint64 // Cumulative task run time in nanoseconds
	RunBuckets [numRunBuckets]atomic.Uint64

	// Runtime lifecycle
	StartTime atomic.Int64 // Runtime creation timestamp (UnixNano)
	StopTime  atomic.Int64 // Run completion timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRun records one task invocation's run time
func (m *Metrics) RecordRun(latencyNs uint64) {
	m.TotalRunNs.Add(latencyNs)
	for i, bound := range RunLatencyBuckets {
		if latencyNs <= bound {
			m.RunBuckets[i].Add(1)
		}
	}
}

// RecordDomainDepth folds a new domain stack depth into the maximum
func (m *Metrics) RecordDomainDepth(depth int) {
	d := uint64(depth)
	for {
		cur := m.MaxDomainDepth.Load()
		if d <= cur || m.MaxDomainDepth.CompareAndSwap(cur, d) {
			return
		}
	}
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Enqueues       uint64
	Dispatches     uint64
	Discarded      uint64
	Spills         uint64
	SpilledTasks   uint64
	Requeues       uint64
	RequeuerYields uint64
	Deepens        uint64
	Undeepens      uint64
	MaxDomainDepth uint64
	TotalRunNs     uint64
	ElapsedNs      int64
}

// GetSnapshot returns a consistent-enough copy for reporting
func (m *Metrics) GetSnapshot() Snapshot {
	stop := m.StopTime.Load()
	if stop == 0 {
		stop = time.Now().UnixNano()
	}
	return Snapshot{
		Enqueues:       m.Enqueues.Load(),
		Dispatches:     m.Dispatches.Load(),
		Discarded:      m.Discarded.Load(),
		Spills:         m.Spills.Load(),
		SpilledTasks:   m.SpilledTasks.Load(),
		Requeues:       m.Requeues.Load(),
		RequeuerYields: m.RequeuerYields.Load(),
		Deepens:        m.Deepens.Load(),
		Undeepens:      m.Undeepens.Load(),
		MaxDomainDepth: m.MaxDomainDepth.Load(),
		TotalRunNs:     m.TotalRunNs.Load(),
		ElapsedNs:      stop - m.StartTime.Load(),
	}
}
