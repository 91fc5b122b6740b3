package pls

import (
	"errors"

	"github.com/behrlich/go-pls/internal/sim"
)

// taskDescriptors is the heap-resident block a spiller evicts tasks
// into. The block is exclusively owned by its requeuer until every
// descriptor has been reinstated; the requeuer truncates it as it
// yields, so a resumed requeuer picks up exactly where it stopped.
type taskDescriptors struct {
	descs []sim.TaskDesc
}

// frameRequeuerTS is the fixed sentinel timestamp frame requeuers are
// enqueued at.
const frameRequeuerTS Timestamp = 0

// spill evicts untied tasks (or out-of-frame tasks, with fromFrame)
// into a descriptor block of up to n entries and enqueues a single
// requeuer in their place; extracted requeuers are coalesced into the
// new block rather than nested. Returns the number of queue slots
// freed; zero means nothing was extractable and no requeuer exists.
func (s *hwSched) spill(fromFrame bool, n int, hint uint64) int {
	var descs []sim.TaskDesc
	minTS := uint64(NoTimestamp)
	maxTS := uint64(NoTimestamp)

	// Folded across every extracted task: the requeuer is
	// untimestamped iff all of them are, and non-speculative iff all
	// of them are.
	reqFlags := EnqNoTimestamp | EnqCantSpec

	fold := func(d sim.TaskDesc) {
		f := EnqFlags(d.Flags)
		reqFlags &= f
		if f&EnqNoTimestamp != 0 {
			// Once an untimestamped task is extracted, only
			// untimestamped or ts-0 tasks may follow it.
			maxTS = 0
		} else if d.TS < minTS {
			minTS = d.TS
		}
		descs = append(descs, d)
	}

	// Removing a lone requeuer and re-adding our own is a wash, so
	// keep extracting until at least two slots came free.
	removed, plain := 0, 0
	for len(descs) < n || removed < 2 {
		d, ok := s.sb.RemoveUntied(maxTS, fromFrame)
		if !ok {
			break
		}
		removed++
		if EnqFlags(d.Flags)&EnqRequeuer != 0 {
			// Coalesce: splice the extracted requeuer's block into
			// this one instead of re-queueing it behind a handle.
			// Its tasks were already counted spilled once.
			s.rt.handles.Delete(d.FnID)
			inner := s.rt.handles.Take(d.Args[0]).(*taskDescriptors)
			for _, id := range inner.descs {
				fold(id)
			}
			continue
		}
		plain++
		fold(d)
	}

	if len(descs) == 0 {
		// Nothing extracted: free the block, enqueue nothing. A
		// requeuer here would recurse trivially.
		return 0
	}

	s.rt.metrics.Spills.Add(1)
	s.rt.metrics.SpilledTasks.Add(uint64(plain))
	if s.rt.obs != nil {
		s.rt.obs.ObserveSpill(plain)
	}

	flags := EnqSameHint | EnqNonSerialHint | EnqNoHash | EnqProducer | EnqRequeuer | reqFlags
	ts := Timestamp(minTS)
	if fromFrame {
		flags |= EnqCantSpec
		ts = frameRequeuerTS
	}

	blockID := s.rt.handles.Put(&taskDescriptors{descs: descs})
	rq := sim.TaskDesc{
		TS:    uint64(ts),
		FnID:  s.rt.handles.Put(taskBody{fn: s.requeue}),
		Flags: uint32(flags),
		Hint:  hint,
		NArgs: 1,
	}
	rq.Args[0] = blockID
	if err := s.sb.EnqueueTask(rq); err != nil {
		// The extraction freed at least one slot, and requeuers may
		// use the reserved escape slot besides.
		panic(WrapError("SPILL", err))
	}
	return removed
}

// requeue is the requeuer task body. It walks its descriptor block
// from the highest index down, reinstating each task with its
// persistent flags; when the target queue fills mid-walk it yields,
// re-enqueuing itself with the remaining block.
func (s *hwSched) requeue(w *Worker, ts Timestamp, args []uint64) {
	blockID := args[0]
	block := s.rt.handles.Get(blockID).(*taskDescriptors)

	for i := len(block.descs) - 1; i >= 0; i-- {
		d := block.descs[i]
		// Persistent flag bits are re-applied per descriptor;
		// transient bits are re-derived from context (none apply to a
		// reinstated task).
		d.Flags = uint32(EnqFlags(d.Flags).Persistent())
		for {
			err := s.sb.EnqueueTask(d)
			if err == nil {
				break
			}
			if !errors.Is(err, sim.ErrQueueFull) {
				panic(WrapError("REQUEUE", err))
			}
			// Target full: make room by spilling other tasks into a
			// fresh block. A spill that freed one slot is a wash once
			// its own requeuer lands, so yield unless it made net
			// progress.
			if s.spill(false, s.spillBatch, w.cur.hint) <= 1 {
				s.yieldRequeuer(w, block, blockID, i+1)
				return
			}
		}
		s.rt.metrics.Requeues.Add(1)
	}

	if s.rt.obs != nil {
		s.rt.obs.ObserveRequeue(len(block.descs))
	}
	// Block freed after the last descriptor went back.
	s.rt.handles.Delete(blockID)
}

// yieldRequeuer reinstates the requeuer itself with the untransferred
// prefix of its block, preserving progress when the queue is full.
func (s *hwSched) yieldRequeuer(w *Worker, block *taskDescriptors, blockID uint64, remaining int) {
	block.descs = block.descs[:remaining]
	s.rt.metrics.RequeuerYields.Add(1)

	self := sim.TaskDesc{
		TS:    uint64(w.cur.ts),
		FnID:  s.rt.handles.Put(taskBody{fn: s.requeue}),
		Flags: uint32(w.cur.flags),
		Hint:  w.cur.hint,
		NArgs: 1,
	}
	self.Args[0] = blockID
	if err := s.sb.EnqueueTask(self); err != nil {
		// The escape slot exists so a yielding requeuer can always
		// get back in; failing here means the block would leak.
		panic(WrapError("REQUEUE", err))
	}
}
