package pls

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/behrlich/go-pls/internal/constants"
	"github.com/behrlich/go-pls/internal/frame"
	"github.com/behrlich/go-pls/internal/interfaces"
	"github.com/behrlich/go-pls/internal/logging"
	"github.com/behrlich/go-pls/internal/sim"
)

// Logger is the optional diagnostics sink components accept.
// Any type with Printf and Debugf satisfies it.
type Logger = interfaces.Logger

// Observer receives metrics callbacks from the worker loops.
type Observer = interfaces.Observer

// BackendKind selects which scheduler executes the task soup.
type BackendKind int

const (
	// Sequential runs every task on a single worker in strict
	// (timestamp, insertion) order.
	Sequential BackendKind = iota

	// Oracle models ideal speculation with a stack of per-domain
	// priority queues drained by one worker.
	Oracle

	// TLS runs thread-level speculation over a shared software
	// priority queue with one dequeue loop per worker.
	TLS

	// Hardware delegates queueing to a simulator through the magic-op
	// channel and hosts the spill/requeue protocol.
	Hardware
)

func (k BackendKind) String() string {
	switch k {
	case Sequential:
		return "sequential"
	case Oracle:
		return "oracle"
	case TLS:
		return "tls"
	case Hardware:
		return "hardware"
	default:
		return "unknown"
	}
}

// Config configures a Runtime.
type Config struct {
	// Backend selects the scheduler. Default: Sequential.
	Backend BackendKind

	// Threads is the worker count for the TLS and Hardware back-ends.
	// 0 means one worker per CPU (TLS) or the simulator's count
	// (Hardware).
	Threads int

	// QueueCapacity sizes the stub simulator's task queue when the
	// Hardware back-end is created without an explicit Sim.
	QueueCapacity int

	// SpillBatch is the number of untied tasks a spiller evicts per
	// pass in the Hardware back-end.
	SpillBatch int

	// CPUAffinity optionally pins TLS workers to CPUs, round-robin:
	// worker N runs on CPUAffinity[N % len].
	CPUAffinity []int

	// Sim is the simulator the Hardware back-end talks to, and the
	// target of the speculation-control calls on every back-end.
	// Hardware defaults to a stub simulator when nil.
	Sim sim.Backend

	// Logger receives runtime diagnostics (may be nil).
	Logger interfaces.Logger

	// Observer receives metrics callbacks (may be nil).
	Observer interfaces.Observer
}

// scheduler is the per-back-end core behind the public Runtime surface.
type scheduler interface {
	enqueue(w *Worker, t *Task)
	run() error
	numThreads() int
	supportsDomains() bool
	deepen(w *Worker, maxTS Timestamp)
	undeepen(w *Worker)
	superTimestamp(w *Worker) Timestamp
}

// Runtime owns a task scheduler and its workers. Create one with New,
// seed it with Enqueue calls, then Run it to completion.
type Runtime struct {
	kind    BackendKind
	logger  interfaces.Logger
	obs     interfaces.Observer
	metrics *Metrics
	handles *frame.HandleTable
	simBk   sim.Backend
	sched   scheduler
	uidGen  atomic.Uint64
	started atomic.Bool
}

// New creates a runtime for the configured back-end.
func New(config Config) (*Runtime, error) {
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := &Runtime{
		kind:    config.Backend,
		logger:  logger,
		obs:     config.Observer,
		metrics: NewMetrics(),
		handles: frame.NewHandleTable(),
		simBk:   config.Sim,
	}

	switch config.Backend {
	case Sequential:
		r.sched = newSeqSched(r)
	case Oracle:
		r.sched = newOracleSched(r)
	case TLS:
		threads := config.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		r.sched = newTLSSched(r, threads, config.CPUAffinity)
	case Hardware:
		if r.simBk == nil {
			r.simBk = sim.NewStub(sim.StubConfig{
				Capacity: config.QueueCapacity,
				Threads:  config.Threads,
			})
		}
		threads := config.Threads
		if threads <= 0 {
			threads = r.simBk.NumThreads()
		}
		spillBatch := config.SpillBatch
		if spillBatch <= 0 {
			spillBatch = constants.SpillBatch
		}
		r.sched = newHWSched(r, threads, spillBatch)
	default:
		return nil, NewError("NEW", ErrCodeInvalidConfig, "unknown back-end kind")
	}

	logger.Debugf("created %s runtime with %d worker(s)", r.kind, r.sched.numThreads())
	return r, nil
}

// Run starts the scheduler and returns when all domains are empty.
func (r *Runtime) Run() error {
	if !r.started.CompareAndSwap(false, true) {
		return NewError("RUN", ErrCodeInvalidState, "runtime already ran")
	}
	r.logger.Debugf("starting %s runtime", r.kind)
	err := r.sched.run()
	r.metrics.StopTime.Store(time.Now().UnixNano())
	if err != nil {
		return WrapError("RUN", err)
	}
	return nil
}

// NumThreads returns the worker count.
func (r *Runtime) NumThreads() int { return r.sched.numThreads() }

// Backend returns the back-end kind this runtime schedules with.
func (r *Runtime) Backend() BackendKind { return r.kind }

// Metrics returns the runtime's counters.
func (r *Runtime) Metrics() *Metrics { return r.metrics }

// Enqueuer is the common enqueue surface of Runtime (outside any task)
// and Worker (inside a task). The parallel algorithms accept either.
type Enqueuer interface {
	// Enqueue binds fn to a timestamp, hint, and packed argument words.
	Enqueue(fn TaskFn, ts Timestamp, h Hint, args ...uint64)

	// EnqueueLambda binds a closure that owns its arguments.
	EnqueueLambda(fn func(w *Worker, ts Timestamp), ts Timestamp, h Hint)

	base() (*Runtime, *Worker)
}

// Enqueue creates a task from outside any running task. Flags that
// reference the current task (EnqSameHint, EnqSameTime, EnqSameTask)
// are contract violations here.
func (r *Runtime) Enqueue(fn TaskFn, ts Timestamp, h Hint, args ...uint64) {
	t := r.newTask(nil, fn, nil, ts, h, args)
	if t == nil {
		return
	}
	r.sched.enqueue(nil, t)
}

// EnqueueLambda creates a closure task from outside any running task.
func (r *Runtime) EnqueueLambda(fn func(w *Worker, ts Timestamp), ts Timestamp, h Hint) {
	t := r.newTask(nil, nil, fn, ts, h, nil)
	if t == nil {
		return
	}
	r.sched.enqueue(nil, t)
}

func (r *Runtime) base() (*Runtime, *Worker) { return r, nil }

// newTask builds the immutable task record, resolving the flags that
// reference the current task. Returns nil for tasks the runtime
// discards (EnqRunOnAbort with no speculation underneath: the parent
// always commits, so the task never runs).
func (r *Runtime) newTask(w *Worker, fn TaskFn, lambda func(*Worker, Timestamp), ts Timestamp, h Hint, args []uint64) *Task {
	if len(args) > constants.MaxArgs {
		panic(NewError("ENQUEUE", ErrCodeArgOverflow,
			"argument tile exceeds the frame register count"))
	}

	flags := h.Flags
	if flags&EnqRunOnAbort != 0 && r.kind != Hardware {
		r.metrics.Discarded.Add(1)
		return nil
	}

	t := &Task{
		ts:     ts,
		uid:    r.uidGen.Add(1),
		hint:   h.Key,
		flags:  flags,
		fn:     fn,
		lambda: lambda,
		nargs:  uint8(len(args)),
	}
	copy(t.args[:], args)

	cur := func(op string) *Task {
		if w == nil || w.cur == nil {
			contractViolation(op, workerID(w), "flag references the current task outside a task")
		}
		return w.cur
	}
	if flags&EnqSameTime != 0 {
		t.ts = cur("ENQUEUE").ts
	}
	if flags&EnqSameHint != 0 {
		t.hint = cur("ENQUEUE").hint
	}
	if flags&EnqSameTask != 0 {
		c := cur("ENQUEUE")
		if c.fn == nil {
			contractViolation("ENQUEUE", workerID(w), "EnqSameTask inside a closure task")
		}
		t.fn = c.fn
	}

	r.metrics.Enqueues.Add(1)
	if r.obs != nil {
		r.obs.ObserveEnqueue(uint64(t.ts))
	}
	return t
}

// dispatch runs one task on the given worker.
func (r *Runtime) dispatch(w *Worker, t *Task) {
	w.cur = t
	var start time.Time
	if r.obs != nil {
		start = time.Now()
	}
	t.invoke(w)
	r.metrics.Dispatches.Add(1)
	if r.obs != nil {
		elapsed := uint64(time.Since(start).Nanoseconds())
		r.obs.ObserveDispatch(uint64(t.ts), elapsed)
		r.metrics.RecordRun(elapsed)
	}
	w.cur = nil
}

func workerID(w *Worker) int {
	if w == nil {
		return -1
	}
	return w.id
}
