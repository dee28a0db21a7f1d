// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

import "unsafe"

// Bottom is the owner-side interface of a work-stealing deque.
//
// Exactly one goroutine per deque may use the Bottom operations for the
// lifetime of the deque. The owner pushes and pops at the bottom end in
// LIFO order.
type Bottom[V any] interface {
	// PushBottom adds a value at the bottom of the deque.
	// Push always succeeds; the deque grows without bound.
	PushBottom(v *V)

	// PopBottom removes and returns the most recently pushed value.
	// Returns (nil, ErrWouldBlock) if the deque is empty or a thief
	// won the race for the last value.
	PopBottom() (*V, error)
}

// Top is the thief-side interface of a work-stealing deque.
//
// Any number of goroutines may use the Top operations concurrently with
// each other and with the owner.
type Top[V any] interface {
	// PopTop steals the oldest value in the deque.
	// The bool result is the empty hint: true means the caller took
	// (or raced for) the last stealable value and should stop polling
	// this deque. Returns ErrWouldBlock when empty or on a lost race.
	PopTop() (*V, bool, error)
}

// ptrSize is the size of a pointer in bytes.
const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
