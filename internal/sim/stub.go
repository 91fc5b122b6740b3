package sim

import (
	"encoding/binary"
	"sync"

	"github.com/behrlich/go-pls/internal/constants"
)

// Stub is an in-process Backend emulating the hardware task queue: a
// fixed-capacity array of marshalled descriptor slots scanned for the
// minimum timestamp on dequeue. One slot beyond the nominal capacity is
// reserved for requeuer descriptors so a yielding requeuer can always
// reinsert itself.
//
// Speculation, conflict detection, and aborts are not modelled; the
// speculation-control opcodes only count their invocations.
type Stub struct {
	mu       sync.Mutex
	buf      []byte
	used     []bool
	occupied int
	capacity int

	gvt     uint64
	threads int
	halted  bool

	drains     []uint64
	deepens    int
	undeepens  int
	serializes int
	clears     int
	aborts     int
}

// StubConfig configures a stub simulator.
type StubConfig struct {
	Capacity int // descriptor slots; default constants.DefaultQueueCapacity
	Threads  int // reported worker count; default 1
}

// NewStub creates a stub simulator.
func NewStub(config StubConfig) *Stub {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = constants.DefaultQueueCapacity
	}
	threads := config.Threads
	if threads <= 0 {
		threads = 1
	}
	return &Stub{
		// One extra physical slot: the requeuer escape slot.
		buf:      make([]byte, (capacity+1)*DescSize),
		used:     make([]bool, capacity+1),
		capacity: capacity,
		threads:  threads,
	}
}

// slotKey orders descriptors for dequeue: untimestamped tasks dispatch
// first, then ascending timestamp. Producer-flagged tasks lose ties so
// real work dispatches before enqueuers at the same timestamp.
func slotKey(ts uint64, flags uint32) (key uint64, producer bool) {
	if flags&descFlagNoTimestamp != 0 {
		ts = 0
	}
	return ts, flags&descFlagProducer != 0
}

func (s *Stub) slot(i int) []byte {
	return s.buf[i*DescSize : (i+1)*DescSize]
}

// scan returns the occupied slot that dequeues next, or -1. With back
// set it instead returns the slot that dequeues last, for out-of-frame
// extraction. skipRequeuers excludes requeuer slots: spilling a
// requeuer could strand its descriptor block.
func (s *Stub) scan(back, skipRequeuers bool) int {
	best := -1
	var bestKey uint64
	var bestProd bool
	for i, u := range s.used {
		if !u {
			continue
		}
		b := s.slot(i)
		flags := binary.LittleEndian.Uint32(b[16:20])
		if skipRequeuers && flags&descFlagRequeuer != 0 {
			continue
		}
		key, prod := slotKey(binary.LittleEndian.Uint64(b[0:8]), flags)
		if best == -1 {
			best, bestKey, bestProd = i, key, prod
			continue
		}
		better := key < bestKey || (key == bestKey && bestProd && !prod)
		if back {
			better = key > bestKey || (key == bestKey && prod && !bestProd)
		}
		if better {
			best, bestKey, bestProd = i, key, prod
		}
	}
	return best
}

func (s *Stub) EnqueueTask(d TaskDesc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := s.capacity
	if d.Flags&descFlagRequeuer != 0 {
		limit = s.capacity + 1
	}
	if s.occupied >= limit {
		return ErrQueueFull
	}
	for i, u := range s.used {
		if u {
			continue
		}
		if i == s.capacity && d.Flags&descFlagRequeuer == 0 {
			continue
		}
		MarshalDesc(&d, s.slot(i))
		s.used[i] = true
		s.occupied++
		return nil
	}
	return ErrQueueFull
}

func (s *Stub) DequeueTask() (TaskDesc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.scan(false, false)
	if i < 0 {
		return TaskDesc{}, false
	}
	return s.take(i), true
}

func (s *Stub) take(i int) TaskDesc {
	var d TaskDesc
	_ = UnmarshalDesc(s.slot(i), &d)
	s.used[i] = false
	s.occupied--
	return d
}

func (s *Stub) RemoveUntied(maxTS uint64, fromFrame bool) (TaskDesc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.scan(fromFrame, true)
	if i < 0 {
		// Nothing plain left: hand out a requeuer so the spiller can
		// coalesce its block instead of deadlocking on a queue full
		// of requeuers.
		i = s.scan(fromFrame, false)
	}
	if i < 0 {
		return TaskDesc{}, false
	}
	b := s.slot(i)
	key, _ := slotKey(binary.LittleEndian.Uint64(b[0:8]), binary.LittleEndian.Uint32(b[16:20]))
	if key > maxTS {
		return TaskDesc{}, false
	}
	return s.take(i), true
}

func (s *Stub) Pressure() (used, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupied, s.capacity
}

func (s *Stub) SetGvt(ts uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gvt = ts
}

func (s *Stub) Gvt() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gvt
}

func (s *Stub) DomainDrained(superTS uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drains = append(s.drains, superTS)
}

func (s *Stub) Deepen(maxTS uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deepens++
}

func (s *Stub) Undeepen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undeepens++
}

func (s *Stub) Serialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serializes++
}

func (s *Stub) ClearReadSet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *Stub) RecordAsAborted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts++
}

func (s *Stub) NumThreads() int { return s.threads }

func (s *Stub) Halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = true
}

// Drains returns the recorded DomainDrained notifications.
func (s *Stub) Drains() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.drains))
	copy(out, s.drains)
	return out
}

// Halted reports whether Halt was called.
func (s *Stub) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}
