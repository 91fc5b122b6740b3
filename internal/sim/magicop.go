package sim

// Magic opcode numbers forming the ABI between the runtime and the
// simulator. On real hardware these are exchanged through a reserved
// register-swap instruction; each Backend interface method maps onto
// one of them (OpThreadID, OpGetTimeNs and OpYield have no method). The
// numbers are stable across versions of the two
// components and must not be renumbered.
const (
	// Task queue operations (1025-1054)
	OpTaskEnqueue      = 1025 // enqueue a task descriptor
	OpTaskDequeue      = 1026 // dequeue the next runnable descriptor
	OpTaskRemoveUntied = 1027 // remove one untied task for spilling
	OpQueuePressure    = 1028 // report queue occupancy and capacity
	OpDeepen           = 1029 // enter a child virtual-time domain
	OpUndeepen         = 1030 // leave the current domain
	OpDomainDrained    = 1031 // notify that a domain emptied
	OpSetGvt           = 1032 // advance global virtual time
	OpGetGvt           = 1033 // read global virtual time
	OpSerialize        = 1034 // force non-speculative execution
	OpClearReadSet     = 1035 // drop the running task's read set
	OpRecordAsAborted  = 1036 // count the running task as aborted

	// Environment queries (2048-2052)
	OpNumThreads = 2048 // worker thread count chosen by the simulator
	OpThreadID   = 2049 // calling worker's thread id
	OpGetTimeNs  = 2050 // simulated wall clock
	OpYield      = 2051 // yield the calling worker
	OpHalt       = 2052 // stop the simulation

	// Allocation channel (8192+); owned by the malloc shim, listed here
	// only to reserve the range.
	OpAllocBase = 8192
)
