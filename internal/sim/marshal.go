package sim

import (
	"encoding/binary"
	"errors"
)

// DescSize is the marshalled size of one task descriptor.
//
// Layout (little endian):
//
//	0:8   timestamp
//	8:16  fnPtrAndFlags — FnID in the high 48 bits, persistent flag
//	      bits 4-15 and the argument count in bits 0-3 below it
//	16:20 full flag word (transient bits included while in-queue)
//	20:24 pad
//	24:32 hint
//	32:72 argument words
const DescSize = 72

// ErrInsufficientData is returned when unmarshalling from a short buffer.
var ErrInsufficientData = errors.New("sim: insufficient data for descriptor")

// Flag bits the simulator itself interprets. These mirror the runtime's
// EnqFlags values; they are part of the descriptor ABI and must stay in
// sync with the runtime's flag table.
const (
	descFlagProducer    = 1 << 5
	descFlagNoTimestamp = 1 << 9
	descFlagRequeuer    = 1 << 10

	persistentFlagMask = 0xfff0
	argCountMask       = 0xf
	fnIDShift          = 16
)

// PackFnFlags packs a function handle, the persistent flag bits, and
// the argument count into the descriptor's 48:16 pointer word.
func PackFnFlags(fnID uint64, flags uint32, nargs uint8) uint64 {
	return fnID<<fnIDShift | uint64(flags&persistentFlagMask) | uint64(nargs&argCountMask)
}

// UnpackFnFlags reverses PackFnFlags.
func UnpackFnFlags(w uint64) (fnID uint64, flags uint32, nargs uint8) {
	return w >> fnIDShift, uint32(w & persistentFlagMask), uint8(w & argCountMask)
}

// MarshalDesc writes d into buf, which must hold DescSize bytes.
func MarshalDesc(d *TaskDesc, buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], d.TS)
	binary.LittleEndian.PutUint64(buf[8:16], PackFnFlags(d.FnID, d.Flags, d.NArgs))
	binary.LittleEndian.PutUint32(buf[16:20], d.Flags)
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	binary.LittleEndian.PutUint64(buf[24:32], d.Hint)
	for i := 0; i < len(d.Args); i++ {
		binary.LittleEndian.PutUint64(buf[32+8*i:40+8*i], d.Args[i])
	}
}

// UnmarshalDesc reads a descriptor from buf.
func UnmarshalDesc(buf []byte, d *TaskDesc) error {
	if len(buf) < DescSize {
		return ErrInsufficientData
	}
	d.TS = binary.LittleEndian.Uint64(buf[0:8])
	var pflags uint32
	d.FnID, pflags, d.NArgs = UnpackFnFlags(binary.LittleEndian.Uint64(buf[8:16]))
	d.Flags = binary.LittleEndian.Uint32(buf[16:20]) | pflags
	d.Hint = binary.LittleEndian.Uint64(buf[24:32])
	for i := 0; i < len(d.Args); i++ {
		d.Args[i] = binary.LittleEndian.Uint64(buf[32+8*i : 40+8*i])
	}
	return nil
}
