package pls

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/behrlich/go-pls/internal/constants"
	"github.com/behrlich/go-pls/internal/taskq"
)

// tsSlot is one worker's minTs: a conservative lower bound on the
// timestamp of any task that worker may subsequently dequeue. Padded
// to a cache line so concurrent readers don't false-share.
type tsSlot struct {
	v atomic.Uint64
	_ [constants.CacheLineBytes - 8]byte
}

// tlsSched is the thread-level-speculation back-end: N workers each
// repeatedly pulling the top of a shared, globally-locked heap. The
// domain stack is shared too; deepen and undeepen are rare, so the one
// lock covers both.
type tlsSched struct {
	rt       *Runtime
	threads  int
	affinity []int

	mu      sync.Mutex
	domains *taskq.Stack[*Task]

	running atomic.Int64
	slots   []tsSlot
	workers []*Worker
}

func newTLSSched(rt *Runtime, threads int, affinity []int) *tlsSched {
	s := &tlsSched{
		rt:       rt,
		threads:  threads,
		affinity: affinity,
		domains:  taskq.NewStack[*Task](uint64(NoTimestamp)),
		slots:    make([]tsSlot, threads),
		workers:  make([]*Worker, threads),
	}
	for i := 0; i < threads; i++ {
		s.workers[i] = newWorker(rt, i)
		s.workers[i].slot = &s.slots[i]
	}
	return s
}

func (s *tlsSched) target(w *Worker, flags EnqFlags) *taskq.Domain[*Task] {
	switch {
	case flags&EnqParentDomain != 0:
		p := s.domains.Parent()
		if p == nil {
			contractViolation("ENQUEUE", workerID(w), "EnqParentDomain at the root domain")
		}
		return p
	case flags&EnqSuperDomain != 0:
		return s.domains.Root()
	default:
		return s.domains.Top()
	}
}

func (s *tlsSched) enqueue(w *Worker, t *Task) {
	s.mu.Lock()
	s.target(w, t.flags).Q.Push(t.key(), t)
	s.mu.Unlock()

	// An enqueue checking "does this timestamp precede in-flight
	// work?" must see a bound covering the new task, so the enqueuing
	// worker lowers its own minTs when the new timestamp is smaller.
	if w != nil && w.slot != nil {
		key := t.key()
		for {
			cur := w.slot.v.Load()
			if key >= cur || w.slot.v.CompareAndSwap(cur, key) {
				break
			}
		}
	}
}

func (s *tlsSched) run() error {
	var g errgroup.Group
	for i := 0; i < s.threads; i++ {
		w := s.workers[i]
		g.Go(func() error {
			return s.workerLoop(w)
		})
	}
	return g.Wait()
}

func (s *tlsSched) workerLoop(w *Worker) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// Pin to a CPU if configured, round-robin across the mask.
	// Failure is not fatal; the worker just runs unpinned.
	if len(s.affinity) > 0 {
		cpu := s.affinity[w.id%len(s.affinity)]
		var mask unix.CPUSet
		mask.Set(cpu)
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			w.Info("failed to set CPU affinity to CPU %d: %v", cpu, err)
		} else if w.log != nil {
			w.log.Debugf("pinned to CPU %d", cpu)
		}
	}

	s.mu.Lock()
	w.slot.v.Store(s.domains.Top().Q.PeekMinOr(0))
	s.mu.Unlock()

	for {
		s.mu.Lock()
		d := s.domains.Top()
		t, key, ok := d.Q.Pop()
		if !ok {
			// Exit only when nothing is queued in any domain and no
			// worker is mid-task; a running task's enqueues land in
			// the queue before its running count drops, so this check
			// cannot miss future work.
			if s.domains.TotalLen() == 0 && s.running.Load() == 0 {
				s.mu.Unlock()
				return nil
			}
			s.mu.Unlock()
			runtime.Gosched()
			continue
		}
		s.running.Add(1)
		// Publish the bound before invoking: the next candidate is the
		// new heap top, or this task's own timestamp if the heap
		// emptied.
		w.slot.v.Store(d.Q.PeekMinOr(key))
		s.mu.Unlock()

		s.rt.dispatch(w, t)
		s.running.Add(-1)
	}
}

func (s *tlsSched) numThreads() int { return s.threads }

func (s *tlsSched) supportsDomains() bool { return true }

func (s *tlsSched) deepen(w *Worker, maxTS Timestamp) {
	s.mu.Lock()
	s.domains.Deepen(uint64(w.cur.ts), uint64(maxTS))
	depth := s.domains.Depth()
	s.mu.Unlock()
	if s.rt.simBk != nil {
		s.rt.simBk.Deepen(uint64(maxTS))
	}
	s.rt.metrics.RecordDomainDepth(depth)
	if s.rt.obs != nil {
		s.rt.obs.ObserveDomainDepth(depth)
	}
}

func (s *tlsSched) undeepen(w *Worker) {
	s.mu.Lock()
	err := s.domains.Undeepen()
	s.mu.Unlock()
	if err != nil {
		contractViolation("UNDEEPEN", workerID(w), err.Error())
	}
	if s.rt.simBk != nil {
		s.rt.simBk.Undeepen()
	}
}

func (s *tlsSched) superTimestamp(w *Worker) Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Timestamp(s.domains.SuperTimestamp())
}

// minTS returns worker i's published lower bound. Reads are relaxed;
// the value is a hint.
func (s *tlsSched) minTS(i int) uint64 {
	return s.slots[i].v.Load()
}
