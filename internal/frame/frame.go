// Package frame packs typed task arguments into the fixed-width word
// tile a task call frame carries. Word-sized values are bit-cast in
// place; larger values are spread across consecutive words; values too
// large for the tile go through a handle table (see handle.go).
package frame

import (
	"fmt"
	"unsafe"

	"github.com/behrlich/go-pls/internal/constants"
)

const wordBytes = 8

// Fits reports whether T occupies at most one argument word.
func Fits[T any]() bool {
	var zero T
	return unsafe.Sizeof(zero) <= wordBytes
}

// Words returns the number of argument words T occupies when spread.
func Words[T any]() int {
	var zero T
	return int((unsafe.Sizeof(zero) + wordBytes - 1) / wordBytes)
}

// Word bit-casts a word-sized value into an argument word. Integers
// keep their sign bits and pointers their addresses; Value reverses the
// cast exactly. Pointer arguments are raw words here, so the pointee
// must stay reachable through user structures until the task runs.
func Word[T any](v T) uint64 {
	if unsafe.Sizeof(v) > wordBytes {
		panic(fmt.Sprintf("frame: %T exceeds one argument word", v))
	}
	var w uint64
	*(*T)(unsafe.Pointer(&w)) = v
	return w
}

// Value recovers a word-sized value from an argument word.
func Value[T any](w uint64) T {
	return *(*T)(unsafe.Pointer(&w))
}

// Spread bit-copies v across consecutive words of out and returns the
// word count. Panics if v does not fit the tile.
func Spread[T any](v T, out []uint64) int {
	n := Words[T]()
	if n > constants.MaxRegs || n > len(out) {
		panic(fmt.Sprintf("frame: %T does not fit a %d-word tile", v, len(out)))
	}
	if n == 0 {
		return 0
	}
	*(*T)(unsafe.Pointer(&out[0])) = v
	return n
}

// Gather reconstructs a spread value from consecutive argument words.
func Gather[T any](words []uint64) T {
	n := Words[T]()
	if n == 0 {
		var zero T
		return zero
	}
	if len(words) < n {
		panic(fmt.Sprintf("frame: gather needs %d words, have %d", n, len(words)))
	}
	return *(*T)(unsafe.Pointer(&words[0]))
}
