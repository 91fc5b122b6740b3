// Package pls is a user-space runtime for ordered speculative parallelism.
// Applications express computation as small tasks carrying a 64-bit virtual
// timestamp and an optional spatial hint; the runtime executes them in
// apparent timestamp order on one of several interchangeable back-ends.
package pls

import (
	"unsafe"

	"github.com/behrlich/go-pls/internal/constants"
)

// Timestamp is the 64-bit virtual time a task is ordered by.
// Smaller is earlier.
type Timestamp uint64

// NoTimestamp is the sentinel for "no timestamp" / "not inside a task".
const NoTimestamp Timestamp = ^Timestamp(0)

// EnqFlags modify enqueue semantics. Bits 0-3 are reserved for the
// argument count in packed task descriptors; bits 4-15 are persistent
// (preserved when a task is spilled to memory and later requeued);
// bits 16-29 are transient (discarded by spillers).
type EnqFlags uint32

const (
	// EnqNoHash maps the hint to a tile by modulo rather than by hash.
	EnqNoHash EnqFlags = 1 << 4

	// EnqProducer deprioritises the task against same-timestamp peers.
	// Used for enqueuers and splitters so real work dispatches first.
	EnqProducer EnqFlags = 1 << 5

	// EnqMaySpec marks the task as allowed to run speculatively.
	EnqMaySpec EnqFlags = 1 << 6

	// EnqCantSpec forces the task to run non-speculatively.
	EnqCantSpec EnqFlags = 1 << 7

	// EnqNoTimestamp marks the task as untimestamped; it is excluded
	// from GVT and may dispatch at any time.
	EnqNoTimestamp EnqFlags = 1 << 9

	// EnqRequeuer marks the non-speculative task that reinstates
	// spilled tasks from a descriptor block.
	EnqRequeuer EnqFlags = 1 << 10

	// EnqNonSerialHint allows the task to run in parallel with peers
	// sharing its hint.
	EnqNonSerialHint EnqFlags = 1 << 11

	// EnqNoHint indicates no spatial hint was supplied.
	EnqNoHint EnqFlags = 1 << 16

	// EnqSameHint reuses the current task's hint.
	EnqSameHint EnqFlags = 1 << 17

	// EnqSameTask reuses the current task's function.
	EnqSameTask EnqFlags = 1 << 18

	// EnqSameTime reuses the current task's timestamp.
	//
	// Deprecated: pass the timestamp explicitly.
	EnqSameTime EnqFlags = 1 << 19

	// EnqYieldIfFull is carried in the flag word but not interpreted by
	// any back-end: the hardware back-end spills on a full queue whatever
	// the flags. Only a requeuer yields (re-enqueuing itself with the
	// rest of its block) when the queue stays full.
	EnqYieldIfFull EnqFlags = 1 << 20

	// EnqParentDomain targets the enclosing virtual-time domain.
	EnqParentDomain EnqFlags = 1 << 21

	// EnqSubDomain targets the current (deepest) child domain.
	EnqSubDomain EnqFlags = 1 << 22

	// EnqSuperDomain targets the outermost enclosing domain.
	EnqSuperDomain EnqFlags = 1 << 23

	// EnqRunOnAbort makes the task run only if its parent aborts;
	// it is discarded on commit.
	EnqRunOnAbort EnqFlags = 1 << 24
)

const (
	// ArgCountMask covers the bits reserved for the packed argument count.
	ArgCountMask EnqFlags = 0xf

	// PersistentMask covers the flag bits preserved across spill/requeue
	// cycles.
	PersistentMask EnqFlags = 0xfff0

	// TransientMask covers the flag bits discarded by spillers.
	TransientMask EnqFlags = 0x3fff0000
)

// Persistent returns only the flag bits that survive a spill.
func (f EnqFlags) Persistent() EnqFlags { return f & PersistentMask }

// Has reports whether all bits in mask are set.
func (f EnqFlags) Has(mask EnqFlags) bool { return f&mask == mask }

// Hint pairs a spatial locality key with enqueue flags. The key is
// hashed (or, with EnqNoHash, taken modulo) to pick a tile.
type Hint struct {
	Key   uint64
	Flags EnqFlags
}

// HintKey returns a plain spatial hint for the given key.
func HintKey(key uint64) Hint { return Hint{Key: key} }

// NoHint returns a hint carrying no spatial information.
func NoHint() Hint { return Hint{Flags: EnqNoHint} }

// SameHint returns a hint that reuses the current task's hint.
func SameHint() Hint { return Hint{Flags: EnqSameHint} }

// WithFlags returns a copy of h with the given flags added.
func (h Hint) WithFlags(f EnqFlags) Hint {
	h.Flags |= f
	return h
}

// CacheLineHint derives a spatial hint from the cache line holding p.
func CacheLineHint(p unsafe.Pointer) Hint {
	return Hint{Key: uint64(uintptr(p)) / constants.CacheLineBytes}
}
