// Package sim defines the interface between the runtime and the
// hardware simulator: the task descriptor layout, the magic-op ABI
// numbers, and a channel-free in-process stub used for testing and for
// running the hardware back-end without a simulator underneath.
package sim

import (
	"errors"

	"github.com/behrlich/go-pls/internal/constants"
)

// ErrQueueFull is returned by EnqueueTask when the task queue has no
// free descriptor slot. The runtime reacts by spilling untied tasks to
// memory; a requeuer that still finds the queue full yields by
// re-enqueuing itself with the rest of its block.
var ErrQueueFull = errors.New("sim: task queue full")

// TaskDesc is the uniform call frame a task crosses the simulator
// boundary as. FnID is a 48-bit handle resolving to the task's
// function on the runtime side; it shares a packed word with the
// persistent flag bits in the marshalled form.
type TaskDesc struct {
	TS    uint64
	FnID  uint64
	Flags uint32
	Hint  uint64
	NArgs uint8
	Args  [constants.MaxArgs]uint64
}

// Backend is the simulator as seen by the runtime. Each method maps to
// one magic opcode (see magicop.go). Implementations must be safe for
// concurrent use by all worker threads.
type Backend interface {
	// EnqueueTask places a descriptor into the task queue.
	// Returns ErrQueueFull when no slot is free; descriptors flagged
	// as requeuers may use the reserved escape slot instead.
	EnqueueTask(d TaskDesc) error

	// DequeueTask removes and returns the next runnable descriptor.
	DequeueTask() (TaskDesc, bool)

	// RemoveUntied removes one untied task for spilling, following the
	// queue's dequeue order. Tasks with timestamps above maxTS are not
	// eligible. fromFrame selects out-of-frame extraction instead.
	RemoveUntied(maxTS uint64, fromFrame bool) (TaskDesc, bool)

	// Pressure reports the occupied and total descriptor slots.
	Pressure() (used, capacity int)

	// SetGvt advances global virtual time.
	SetGvt(ts uint64)

	// Gvt reads global virtual time.
	Gvt() uint64

	// DomainDrained notifies the simulator that the domain created at
	// superTS has emptied and been popped.
	DomainDrained(superTS uint64)

	// Deepen and Undeepen forward fractal-time transitions.
	Deepen(maxTS uint64)
	Undeepen()

	// Serialize forces the running task to continue non-speculatively.
	Serialize()

	// ClearReadSet drops the running task's conflict read set.
	ClearReadSet()

	// RecordAsAborted counts the running task as an abort.
	RecordAsAborted()

	// NumThreads reports the worker count the simulator provisioned.
	NumThreads() int

	// Halt stops the simulation.
	Halt()
}
