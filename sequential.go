package pls

import (
	"github.com/behrlich/go-pls/internal/taskq"
)

// seqSched is the single-worker back-end: pop the top of one priority
// queue, run it, repeat until empty. Timestamp ties dispatch in
// insertion order. No domain support.
type seqSched struct {
	rt *Runtime
	q  *taskq.Queue[*Task]
	w  *Worker
}

func newSeqSched(rt *Runtime) *seqSched {
	s := &seqSched{rt: rt, q: taskq.New[*Task]()}
	s.w = newWorker(rt, 0)
	return s
}

func (s *seqSched) enqueue(w *Worker, t *Task) {
	if t.flags&EnqParentDomain != 0 {
		contractViolation("ENQUEUE", workerID(w), "EnqParentDomain at the root domain")
	}
	s.q.Push(t.key(), t)
}

func (s *seqSched) run() error {
	for {
		t, _, ok := s.q.Pop()
		if !ok {
			return nil
		}
		s.rt.dispatch(s.w, t)
	}
}

func (s *seqSched) numThreads() int { return 1 }

func (s *seqSched) supportsDomains() bool { return false }

func (s *seqSched) deepen(w *Worker, maxTS Timestamp) {
	contractViolation("DEEPEN", workerID(w), "sequential runtime has no domain support")
}

func (s *seqSched) undeepen(w *Worker) {
	contractViolation("UNDEEPEN", workerID(w), "sequential runtime has no domain support")
}

func (s *seqSched) superTimestamp(w *Worker) Timestamp { return NoTimestamp }
