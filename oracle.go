package pls

import (
	"github.com/behrlich/go-pls/internal/taskq"
)

// oracleSched models ideal speculation: one worker draining a stack of
// per-domain priority queues. Deepen pushes a fresh queue recording
// the creating task's timestamp as the child's super-timestamp; when
// the top queue drains, the scheduler pops it and notifies the
// simulator. The loop runs on its own goroutine so the simulator
// underneath perceives a clean task-only stack.
type oracleSched struct {
	rt      *Runtime
	domains *taskq.Stack[*Task]
	w       *Worker
}

func newOracleSched(rt *Runtime) *oracleSched {
	s := &oracleSched{
		rt:      rt,
		domains: taskq.NewStack[*Task](uint64(NoTimestamp)),
	}
	s.w = newWorker(rt, 0)
	return s
}

// target resolves the domain an enqueue lands in: the top domain by
// default, the enclosing one with EnqParentDomain, the outermost with
// EnqSuperDomain.
func (s *oracleSched) target(w *Worker, flags EnqFlags) *taskq.Domain[*Task] {
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

func (s *oracleSched) enqueue(w *Worker, t *Task) {
	s.target(w, t.flags).Q.Push(t.key(), t)
}

func (s *oracleSched) run() error {
	done := make(chan error, 1)
	go func() {
		done <- s.loop()
	}()
	return <-done
}

func (s *oracleSched) loop() error {
	for {
		d := s.domains.Top()
		t, _, ok := d.Q.Pop()
		if !ok {
			if s.domains.Depth() == 1 {
				// All domains empty: done.
				return nil
			}
			super := d.SuperTS
			if err := s.domains.Undeepen(); err != nil {
				return WrapError("RUN", err)
			}
			if s.rt.simBk != nil {
				s.rt.simBk.DomainDrained(super)
			}
			if s.rt.obs != nil {
				s.rt.obs.ObserveDomainDepth(s.domains.Depth())
			}
			continue
		}
		s.rt.dispatch(s.w, t)
	}
}

func (s *oracleSched) numThreads() int { return 1 }

func (s *oracleSched) supportsDomains() bool { return true }

func (s *oracleSched) deepen(w *Worker, maxTS Timestamp) {
	s.domains.Deepen(uint64(w.cur.ts), uint64(maxTS))
	if s.rt.simBk != nil {
		s.rt.simBk.Deepen(uint64(maxTS))
	}
	s.rt.metrics.RecordDomainDepth(s.domains.Depth())
	if s.rt.obs != nil {
		s.rt.obs.ObserveDomainDepth(s.domains.Depth())
	}
}

func (s *oracleSched) undeepen(w *Worker) {
	if err := s.domains.Undeepen(); err != nil {
		contractViolation("UNDEEPEN", workerID(w), err.Error())
	}
	if s.rt.simBk != nil {
		s.rt.simBk.Undeepen()
	}
}

func (s *oracleSched) superTimestamp(w *Worker) Timestamp {
	return Timestamp(s.domains.SuperTimestamp())
}
