package pls

import (
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/behrlich/go-pls/internal/sim"
)

// taskBody is the runtime-side half of a task that crossed into the
// simulator: everything a descriptor cannot carry as words.
type taskBody struct {
	fn     TaskFn
	lambda func(w *Worker, ts Timestamp)
	uid    uint64
}

// hwSched delegates queueing to the simulator through the magic-op
// channel. Each worker loops dequeuing descriptors and dispatching
// them; queue overflow is absorbed by the spill/requeue protocol. An
// enqueue panics with ErrCodeQueueFull only when neither a plain nor a
// frame spill frees more than one slot.
type hwSched struct {
	rt         *Runtime
	sb         sim.Backend
	threads    int
	spillBatch int
	running    atomic.Int64
	workers    []*Worker
}

func newHWSched(rt *Runtime, threads int, spillBatch int) *hwSched {
	s := &hwSched{
		rt:         rt,
		sb:         rt.simBk,
		threads:    threads,
		spillBatch: spillBatch,
		workers:    make([]*Worker, threads),
	}
	for i := 0; i < threads; i++ {
		s.workers[i] = newWorker(rt, i)
	}
	return s
}

// descFor packs a task into the descriptor form that crosses the
// simulator boundary. The function (and closure, for lambda tasks)
// stays on this side behind a 48-bit handle.
func (s *hwSched) descFor(t *Task) sim.TaskDesc {
	fnID := s.rt.handles.Put(taskBody{fn: t.fn, lambda: t.lambda, uid: t.uid})
	return sim.TaskDesc{
		TS:    uint64(t.ts),
		FnID:  fnID,
		Flags: uint32(t.flags),
		Hint:  t.hint,
		NArgs: t.nargs,
		Args:  t.args,
	}
}

// resolve rebuilds a runnable task from a dequeued descriptor,
// consuming its function handle.
func (s *hwSched) resolve(d sim.TaskDesc) *Task {
	body := s.rt.handles.Take(d.FnID).(taskBody)
	t := &Task{
		ts:     Timestamp(d.TS),
		uid:    body.uid,
		hint:   d.Hint,
		flags:  EnqFlags(d.Flags),
		fn:     body.fn,
		lambda: body.lambda,
		nargs:  d.NArgs,
		args:   d.Args,
	}
	return t
}

func (s *hwSched) enqueue(w *Worker, t *Task) {
	desc := s.descFor(t)
	hint := uint64(0)
	if w != nil && w.cur != nil {
		hint = w.cur.hint
	}
	for {
		err := s.sb.EnqueueTask(desc)
		if err == nil {
			return
		}
		if !errors.Is(err, sim.ErrQueueFull) {
			panic(WrapError("ENQUEUE", err))
		}
		// Queue over-full: spill untied tasks into memory. A pass that
		// freed a single slot is a wash once its requeuer lands, so
		// fall back to a frame spill before giving up.
		if s.spill(false, s.spillBatch, hint) <= 1 {
			if s.spill(true, s.spillBatch, hint) <= 1 {
				panic(NewWorkerError("ENQUEUE", workerID(w), ErrCodeQueueFull,
					"task queue full and nothing spillable"))
			}
		}
	}
}

func (s *hwSched) run() error {
	var g errgroup.Group
	for i := 0; i < s.threads; i++ {
		w := s.workers[i]
		g.Go(func() error {
			return s.workerLoop(w)
		})
	}
	return g.Wait()
}

func (s *hwSched) workerLoop(w *Worker) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		d, ok := s.sb.DequeueTask()
		if !ok {
			if s.running.Load() == 0 {
				// A finished task's enqueues are visible before its
				// running count drops, so one re-check suffices.
				if d, ok = s.sb.DequeueTask(); !ok {
					return nil
				}
			} else {
				runtime.Gosched()
				continue
			}
		}
		s.running.Add(1)
		s.rt.dispatch(w, s.resolve(d))
		s.running.Add(-1)
	}
}

func (s *hwSched) numThreads() int { return s.threads }

// Fractal time lives in the simulator for this back-end; the runtime
// only forwards the transitions.
func (s *hwSched) supportsDomains() bool { return false }

func (s *hwSched) deepen(w *Worker, maxTS Timestamp) {
	s.sb.Deepen(uint64(maxTS))
}

func (s *hwSched) undeepen(w *Worker) {
	s.sb.Undeepen()
}

func (s *hwSched) superTimestamp(w *Worker) Timestamp {
	// The stub simulator does not model domains, so there is no
	// super-timestamp to report.
	return NoTimestamp
}
