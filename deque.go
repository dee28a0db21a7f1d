// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Deque is an unbounded lock-free work-stealing deque of *V.
//
// Based on "Correct and Efficient Work-Stealing for Weak Memory Models"
// (Lê, Pop, Cohen, Zappa Nardelli), with the circular buffer replaced
// by doubly linked blocks in the manner of "A Dynamic-Sized Nonblocking
// Work Stealing Deque" (Hendler, Lev, Moir, Shavit), so capacity grows
// without reallocation or copying.
//
// Access discipline: exactly one owner goroutine calls PushBottom,
// PopBottom, Reclaim, and Release for the lifetime of the deque; any
// number of thief goroutines call PopTop. Violating the discipline
// causes undefined behavior including data corruption. Use
// [Deque.Handles] to encode the split in the type system.
//
// The deque stores raw pointers and does not keep referents live: the
// caller must keep pushed values reachable (a task arena, a slice of
// tasks) until they are popped.
//
// Memory ordering: slot accesses are relaxed; all publication rides on
// the bot/top indices. Go exposes no standalone fences, so the
// store-fence and load-fence pairs of the original protocol are carried
// by the unsuffixed sequentially consistent operations below. Do not
// weaken them.
type Deque[V any] struct {
	arr *carray
	_   pad
	bot atomix.Uint64 // next index the owner pushes into
	_   padShort
	top atomix.Uint64 // smallest index still stealable
	_   padShort
}

// NewDeque creates a deque backed by the package-level default pool.
func NewDeque[V any]() *Deque[V] {
	return NewDequeIn[V](DefaultPool())
}

// NewDequeIn creates a deque that draws its blocks from pool. Workers
// of one scheduler typically share a pool so that blocks retired by one
// deque can back the growth of another.
func NewDequeIn[V any](pool *PoolAllocator) *Deque[V] {
	return &Deque[V]{arr: newCarray(pool)}
}

// PushBottom adds v at the bottom of the deque. Owner only.
// Push always succeeds; a push that crosses a block boundary may
// allocate, every other push is allocation-free.
func (d *Deque[V]) PushBottom(v *V) {
	b := d.bot.LoadRelaxed()
	d.arr.putHead(b, uintptr(unsafe.Pointer(v)))
	// Publishes the slot to thieves and orders it against their
	// top/bot reads.
	d.bot.Store(b + 1)
}

// PopBottom removes and returns the most recently pushed value. Owner
// only. Returns ErrWouldBlock when the deque is empty or a thief won
// the race for the last value.
func (d *Deque[V]) PopBottom() (*V, error) {
	b := d.bot.LoadRelaxed()
	if b == 0 {
		return nil, ErrWouldBlock
	}
	b--
	// Tentatively claim the slot; the store/load pair below stands in
	// for the store-fence-load of the original protocol.
	d.bot.Store(b)
	t := d.top.Load()
	if t > b {
		// Empty; re-establish bot >= top.
		d.bot.StoreRelaxed(b + 1)
		return nil, ErrWouldBlock
	}
	v := d.arr.getHead(b)
	if t == b {
		// One value left and at least one thief may be after it.
		won := d.top.CompareAndSwap(t, t+1)
		d.bot.StoreRelaxed(b + 1)
		if !won {
			return nil, ErrWouldBlock
		}
	}
	return (*V)(unsafe.Pointer(v)), nil
}

// PopTop steals the oldest value in the deque. Safe for any goroutine.
//
// The bool result is the empty hint: true means the caller took (or
// raced for) what was the last stealable value. The hint is
// conservative; a concurrent push may already have refilled the deque.
// Thieves treat it as a signal to stop polling this deque.
//
// Returns ErrWouldBlock when the deque is empty or another pop won the
// CAS on top; the caller retries or moves to another deque.
func (d *Deque[V]) PopTop() (*V, bool, error) {
	t := d.top.Load()
	b := d.bot.Load()
	if b+1 < t {
		panic("wsd: bottom index strayed below top")
	}
	if b <= t {
		return nil, true, ErrWouldBlock
	}
	if d.top.CompareAndSwap(t, t+1) {
		v := d.arr.getTail(t)
		return (*V)(unsafe.Pointer(v)), b == t+1, nil
	}
	return nil, b == t+1, ErrWouldBlock
}

// Reclaim moves blocks retired by thieves into the owner's reuse list,
// returning excess blocks to the pool. Owner only, and only from a
// quiescent window: the caller guarantees no thief is still inside a
// PopTop that started before the blocks were retired (hazard pointers,
// epochs, or a scheduler barrier; the deque does not define when
// reclamation is safe, it only provides the hook).
func (d *Deque[V]) Reclaim() {
	d.arr.reclaimRetired()
}

// Release returns every block to the pool. Not concurrent: the deque
// must not be used again afterwards.
func (d *Deque[V]) Release() {
	d.arr.release()
}
