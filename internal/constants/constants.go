package constants

// Default configuration constants
const (
	// MaxArgs is the maximum argument count a task frame can carry.
	// It matches the spill descriptor layout, so it bounds both the
	// register tile and the spill record.
	MaxArgs = 5

	// MaxRegs is the number of argument registers available to a task
	// call frame before the marshaller falls back to a heap tuple.
	MaxRegs = 5

	// CacheLineBytes is the cache line size assumed by the spatial
	// hint helpers and the fill/copy midpoint alignment.
	CacheLineBytes = 64

	// DefaultQueueCapacity is the default per-tile task queue capacity
	// in the stub simulator.
	DefaultQueueCapacity = 64

	// SpillBatch is the default number of untied tasks a spiller tries
	// to evict in one pass.
	SpillBatch = 16

	// MaxBaseEnqs is the largest range enqueue_all handles serially
	// before switching to tree fanout.
	MaxBaseEnqs = 8

	// MaxEnqueuerChildren is the widest fanout an enqueuer tree node
	// may use. Must be a power of two.
	MaxEnqueuerChildren = 8

	// EnqueuesPerTask is the slice length each strand task enqueues
	// before chaining to its next slice.
	EnqueuesPerTask = 8

	// MaxStrandsCap bounds the strand count independently of the
	// worker count.
	MaxStrandsCap = 64

	// StrandsPerThread scales the strand count with the worker count;
	// strands = min(StrandsPerThread * num_threads, MaxStrandsCap).
	StrandsPerThread = 4

	// ReduceGrainLines is the number of cache lines of input each
	// reduce accumulate task covers.
	ReduceGrainLines = 4
)
