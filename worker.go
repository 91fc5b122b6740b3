package pls

import (
	"fmt"

	"github.com/behrlich/go-pls/internal/interfaces"
	"github.com/behrlich/go-pls/internal/logging"
)

// Worker is the per-worker handle task functions receive. It carries
// the in-task API: enqueueing, fractal-time control, speculation-layer
// calls, and identity queries. A Worker is only valid on its own
// dequeue loop; tasks must not hand it to other goroutines.
type Worker struct {
	rt   *Runtime
	id   int
	cur  *Task
	log  interfaces.Logger
	slot *tsSlot // TLS minTs slot; nil on other back-ends
}

func newWorker(rt *Runtime, id int) *Worker {
	w := &Worker{rt: rt, id: id, log: rt.logger}
	if lg, ok := rt.logger.(*logging.Logger); ok {
		w.log = lg.WithTag(fmt.Sprintf("worker %d", id))
	}
	return w
}

// TID returns this worker's thread id, in [0, NumThreads).
func (w *Worker) TID() int { return w.id }

// NumThreads returns the runtime's worker count.
func (w *Worker) NumThreads() int { return w.rt.sched.numThreads() }

// Timestamp returns the running task's timestamp. Between tasks it
// returns 0 on the sequential back-end and NoTimestamp elsewhere.
func (w *Worker) Timestamp() Timestamp {
	if w.cur != nil {
		return w.cur.ts
	}
	if w.rt.kind == Sequential {
		return 0
	}
	return NoTimestamp
}

// TaskUID returns the running task's enqueue-order id, or 0 between
// tasks.
func (w *Worker) TaskUID() uint64 {
	if w.cur == nil {
		return 0
	}
	return w.cur.uid
}

// SuperTimestamp returns the super-timestamp of the current domain:
// the timestamp of the task that deepened into it, or NoTimestamp at
// the root domain.
func (w *Worker) SuperTimestamp() Timestamp {
	return w.rt.sched.superTimestamp(w)
}

// Enqueue binds fn to a timestamp, hint, and packed argument words.
// EnqSameHint, EnqSameTime, and EnqSameTask resolve against the
// running task.
func (w *Worker) Enqueue(fn TaskFn, ts Timestamp, h Hint, args ...uint64) {
	t := w.rt.newTask(w, fn, nil, ts, h, args)
	if t == nil {
		return
	}
	w.rt.sched.enqueue(w, t)
}

// EnqueueLambda binds a closure that owns its arguments.
func (w *Worker) EnqueueLambda(fn func(w *Worker, ts Timestamp), ts Timestamp, h Hint) {
	t := w.rt.newTask(w, nil, fn, ts, h, nil)
	if t == nil {
		return
	}
	w.rt.sched.enqueue(w, t)
}

func (w *Worker) base() (*Runtime, *Worker) { return w.rt, w }

// Deepen enters a child virtual-time domain whose super-timestamp is
// the running task's timestamp. maxTS bounds the child's interval;
// pass NoTimestamp for an unbounded domain. Not supported by the
// sequential back-end.
func (w *Worker) Deepen(maxTS Timestamp) {
	if w.cur == nil {
		contractViolation("DEEPEN", w.id, "deepen outside a task")
	}
	w.rt.metrics.Deepens.Add(1)
	w.rt.sched.deepen(w, maxTS)
}

// Undeepen leaves the current domain. On the oracle and TLS back-ends
// the domain must be empty, and a non-empty undeepen is a contract
// violation (the oracle additionally pops drained domains on its own).
// The sequential back-end rejects every undeepen; the hardware
// back-end forwards the call to the simulator without a check.
func (w *Worker) Undeepen() {
	w.rt.metrics.Undeepens.Add(1)
	w.rt.sched.undeepen(w)
}

// SetGvt advances global virtual time in the simulator.
func (w *Worker) SetGvt(ts Timestamp) {
	if w.rt.simBk != nil {
		w.rt.simBk.SetGvt(uint64(ts))
	}
}

// Serialize forces the running task to continue non-speculatively.
func (w *Worker) Serialize() {
	if w.rt.simBk != nil {
		w.rt.simBk.Serialize()
	}
}

// ClearReadSet drops the running task's conflict read set.
func (w *Worker) ClearReadSet() {
	if w.rt.simBk != nil {
		w.rt.simBk.ClearReadSet()
	}
}

// RecordAsAborted counts the running task as an abort.
func (w *Worker) RecordAsAborted() {
	if w.rt.simBk != nil {
		w.rt.simBk.RecordAsAborted()
	}
}

// Info logs a diagnostic line through the runtime's logger.
func (w *Worker) Info(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
		return
	}
	if w.rt.logger != nil {
		w.rt.logger.Printf(format, args...)
	}
}
