// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	// blockShift sets the block granularity: 1<<14 slots per block.
	blockShift = 14
	blockSlots = 1 << blockShift
	blockMask  = blockSlots - 1
)

// blockHeader carries the list links and identity of a block.
//
// prev points toward smaller ids (tail direction) while the block is on
// the main chain. Off the main chain the same field links the block
// into the retire stack or the reuse list, so membership in the three
// lists shares one word.
type blockHeader struct {
	prev atomix.Uintptr
	next atomix.Uintptr // toward larger ids
	id   uint64
}

// block owns logical indices [id*blockSlots, (id+1)*blockSlots).
// The header is padded so the slot array starts on its own cache line;
// the pool aligns the block itself to 128 bytes.
type block struct {
	blockHeader
	_     [(MaxAlignment - unsafe.Sizeof(blockHeader{})%MaxAlignment) % MaxAlignment]byte
	slots [blockSlots]atomix.Uintptr
}

// blockBytes is the allocation size of one block.
const blockBytes = uint64(unsafe.Sizeof(block{}))

// reuseKeep bounds the owner's reuse list. Blocks reclaimed beyond this
// many go back to the pool, so a worker whose working set shrank does
// not hoard dead blocks.
const reuseKeep = 8

// carray presents a doubly linked list of fixed-size blocks as an
// unbounded array of uintptr slots, addressed by a monotonically
// increasing 64-bit index.
//
// The owner extends the head side and moves cursor one block at a time;
// thieves read from the tail side and retire blocks as the stealable
// range advances past them. Slot accesses are relaxed: publication is
// carried entirely by the deque's bot/top synchronization.
type carray struct {
	head   *block // largest id currently allocated (owner only)
	cursor *block // block the owner reads/writes (owner only)
	reuse  *block // recycled blocks, linked via prev (owner only)
	reuseN int
	nextID uint64
	pool   *PoolAllocator

	_       pad
	tail    atomix.Uintptr // smallest id still live (shared)
	_       padShort
	retired atomix.Uintptr // LIFO of unlinked blocks awaiting reclaim (shared)
	_       padShort
}

func blockAt(p uintptr) *block {
	return (*block)(unsafe.Pointer(p))
}

func blockRef(b *block) uintptr {
	if b == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(b))
}

func newCarray(pool *PoolAllocator) *carray {
	a := &carray{pool: pool}
	first := a.getBlock()
	first.prev.StoreRelaxed(0)
	first.next.StoreRelaxed(0)
	first.id = 0
	a.nextID = 1
	a.head = first
	a.cursor = first
	a.tail.Store(blockRef(first))
	return a
}

// getBlock takes a block from the reuse list, or the pool if none.
func (a *carray) getBlock() *block {
	if b := a.reuse; b != nil {
		a.reuse = blockAt(b.prev.LoadRelaxed())
		a.reuseN--
		return b
	}
	return (*block)(a.pool.Allocate(blockBytes))
}

// pushReuse stores b for a future grow.
func (a *carray) pushReuse(b *block) {
	b.prev.StoreRelaxed(blockRef(a.reuse))
	a.reuse = b
	a.reuseN++
}

// grow links one new block past head.
func (a *carray) grow() {
	nb := a.getBlock()
	nb.prev.StoreRelaxed(blockRef(a.head))
	nb.next.StoreRelaxed(0)
	nb.id = a.nextID
	a.nextID++
	a.head.next.StoreRelease(blockRef(nb))
	a.head = nb
}

// putHead stores v at index i. Owner only; i must be the current bottom
// index, so the cursor crosses at most one block boundary forward.
func (a *carray) putHead(i uint64, v uintptr) {
	id, off := i>>blockShift, i&blockMask
	if off == 0 {
		if a.nextID == id {
			a.grow()
		}
		if a.cursor.id != id {
			a.cursor = blockAt(a.cursor.next.LoadRelaxed())
		}
	}
	a.cursor.slots[off].StoreRelaxed(v)
}

// getHead loads the slot at index i. Owner only; the cursor steps at
// most one block backward because the bottom index moves by one.
func (a *carray) getHead(i uint64) uintptr {
	id, off := i>>blockShift, i&blockMask
	if a.cursor.id != id {
		a.cursor = blockAt(a.cursor.prev.LoadRelaxed())
	}
	return a.cursor.slots[off].LoadRelaxed()
}

// getTail loads the slot at index i on behalf of a thief that committed
// its CAS on top with top <= i < bot.
//
// The walk starts from a tail snapshot and goes forward via next, then
// backward via prev: tail can advance after the snapshot, leaving the
// wanted block behind the current tail on the retire side, where it is
// still reachable through prev.
func (a *carray) getTail(i uint64) uintptr {
	id, off := i>>blockShift, i&blockMask
	t := blockAt(a.tail.LoadAcquire())
	b := t
	for b != nil && b.id < id {
		b = blockAt(b.next.LoadRelaxed())
	}
	for b != nil && b.id > id {
		b = blockAt(b.prev.LoadRelaxed())
	}
	if b == nil || b.id != id {
		panic("wsd: index not backed by a reachable block")
	}
	if off == 0 && b != t && t.id == id-1 {
		// The snapshot block is exactly one behind the accessed block
		// and will never be read again: unlink it.
		a.retireTail()
	}
	return b.slots[off].LoadRelaxed()
}

// retireTail swings tail one block forward and pushes the old tail onto
// the retire stack.
func (a *carray) retireTail() {
	old := blockAt(a.tail.LoadRelaxed())
	next := blockAt(old.next.LoadRelaxed())
	sw := spin.Wait{}
	for !a.tail.CompareAndSwapAcqRel(blockRef(old), blockRef(next)) {
		if next.id <= blockAt(a.tail.LoadRelaxed()).id {
			// Another thief already advanced tail at least this far and
			// queued old for retirement with it.
			return
		}
		sw.Once()
	}
	for {
		r := a.retired.LoadRelaxed()
		old.prev.StoreRelaxed(r)
		if a.retired.CompareAndSwapAcqRel(r, blockRef(old)) {
			return
		}
		sw.Once()
	}
}

// drainRetired atomically empties the retire stack and returns its head.
func (a *carray) drainRetired() *block {
	sw := spin.Wait{}
	for {
		r := a.retired.LoadRelaxed()
		if r == 0 {
			return nil
		}
		if a.retired.CompareAndSwapAcqRel(r, 0) {
			return blockAt(r)
		}
		sw.Once()
	}
}

// reclaimRetired moves retired blocks into the reuse list. Owner only,
// and only once no thief can still be reading those blocks (external
// reclamation protocol; the array never frees on its own schedule).
// Blocks beyond the reuse high-water mark go back to the pool.
func (a *carray) reclaimRetired() {
	r := a.drainRetired()
	for r != nil {
		next := blockAt(r.prev.LoadRelaxed())
		if a.reuseN >= reuseKeep {
			a.pool.Deallocate(unsafe.Pointer(r), blockBytes)
		} else {
			a.pushReuse(r)
		}
		r = next
	}
}

// release returns every block to the pool. Not concurrent: the caller
// guarantees no other goroutine touches the array again.
func (a *carray) release() {
	if a.head == nil {
		return
	}
	t := blockAt(a.tail.Load())
	// tail.prev may hold a stale retire link from an abandoned
	// retirement; overwrite it unconditionally with the drained list so
	// the prev walk below covers retired blocks too.
	t.prev.StoreRelaxed(blockRef(a.drainRetired()))
	b := a.head
	for b != nil {
		prev := blockAt(b.prev.LoadRelaxed())
		a.pool.Deallocate(unsafe.Pointer(b), blockBytes)
		b = prev
	}
	for a.reuse != nil {
		b = a.reuse
		a.reuse = blockAt(b.prev.LoadRelaxed())
		a.pool.Deallocate(unsafe.Pointer(b), blockBytes)
	}
	a.reuseN = 0
	a.head = nil
	a.cursor = nil
	a.tail.Store(0)
}
