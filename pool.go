// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

import (
	"runtime"
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// MaxAlignment is the alignment guaranteed for every pointer returned
// by a PoolAllocator.
const MaxAlignment = 128

// largeThreshold splits size classes into small (sharded free lists,
// chunked growth) and large (one shared lock-free stack per class).
const largeThreshold = 1 << 18

// PoolAllocator hands out headerless raw blocks from pools of different
// sizes. A slice of class sizes is given to the constructor; sizes must
// be at least 8 bytes and strictly increasing.
//
// Classes below 256 KiB are small: each keeps sharded free lists and
// grows capacity in chunks carved from one backing slab; each operation
// picks its shard with an atomic round-robin counter shared by the
// class. Classes at or above the threshold
// share one tagged lock-free stack each. Requests larger than the
// largest class go straight to the system allocator and are not pooled.
//
// All returned pointers are aligned to [MaxAlignment] bytes. The
// allocator keeps every backing slab referenced until [PoolAllocator.Clear]
// (large classes) or until the allocator itself becomes unreachable
// (small classes), so blocks handed out as raw pointers stay live even
// while they sit in a free list.
//
// Allocation failure is fatal: a work-stealing scheduler has no
// recoverable path out of memory, so the runtime's own out-of-memory
// behavior applies.
type PoolAllocator struct {
	sizes    []uint64
	numSmall int
	maxSmall uint64 // largest small class, 0 if none
	maxSize  uint64 // largest class overall

	small []smallClass
	large []paddedStack // one stack per large class

	_              pad
	largeAllocated atomix.Int64 // bytes of large blocks allocated
	_              padShort
	largeUsed      atomix.Int64 // bytes of large blocks held by callers
	_              padShort

	mu         sync.Mutex
	slabs      [][]byte           // small-class chunk slabs
	largeSlabs map[uintptr][]byte // large and oversize slabs by block pointer
}

// smallClass is one small size class: sharded free lists with
// round-robin shard selection and chunked refill.
type smallClass struct {
	size   uint64
	shards []paddedStack
	_         pad
	rr        atomix.Int64 // shard cursor
	_         padShort
	allocated atomix.Int64 // blocks carved from slabs
	_         padShort
	free      atomix.Int64 // blocks currently in the free lists
	_         padShort
}

// ClassStat describes one size class for observability.
type ClassStat struct {
	Size      uint64 // class size in bytes
	Allocated uint64 // blocks carved for this class
	Used      uint64 // blocks currently held by callers
}

// NewPoolAllocator creates a pool over the given size classes.
// Panics if sizes is empty, any size is below 8 bytes, or sizes are not
// strictly increasing.
func NewPoolAllocator(sizes []uint64) *PoolAllocator {
	if len(sizes) == 0 {
		panic("wsd: pool needs at least one size class")
	}
	prev := uint64(0)
	numSmall := 0
	for _, s := range sizes {
		if s < 8 {
			panic("wsd: size class below 8 bytes")
		}
		if s <= prev {
			panic("wsd: size classes must be strictly increasing")
		}
		prev = s
		if s < largeThreshold {
			numSmall++
		}
	}

	a := &PoolAllocator{
		sizes:      append([]uint64(nil), sizes...),
		numSmall:   numSmall,
		maxSize:    sizes[len(sizes)-1],
		small:      make([]smallClass, numSmall),
		large:      make([]paddedStack, len(sizes)-numSmall),
		largeSlabs: make(map[uintptr][]byte),
	}
	if numSmall > 0 {
		a.maxSmall = sizes[numSmall-1]
	}

	nshard := roundToPow2(runtime.GOMAXPROCS(0))
	for i := range a.small {
		a.small[i].size = sizes[i]
		a.small[i].shards = make([]paddedStack, nshard)
	}
	return a
}

// Allocate returns a block of at least n bytes, aligned to MaxAlignment.
func (a *PoolAllocator) Allocate(n uint64) unsafe.Pointer {
	if n > a.maxSmall {
		return a.allocateLarge(n)
	}
	return a.small[a.smallBucket(n)].alloc(a)
}

// Deallocate returns the block p of size n to its pool. n must be the
// size passed to the matching Allocate call.
func (a *PoolAllocator) Deallocate(p unsafe.Pointer, n uint64) {
	if n > a.maxSmall {
		a.deallocateLarge(p, n)
		return
	}
	c := &a.small[a.smallBucket(n)]
	idx := uint64(c.rr.Add(1)) & uint64(len(c.shards)-1)
	c.shards[idx].push(uintptr(p))
	c.free.Add(1)
}

// Stats returns the total bytes currently held by callers and the total
// bytes the allocator has in reserve beyond that.
func (a *PoolAllocator) Stats() (used, reserved uint64) {
	allocated := uint64(a.largeAllocated.Load())
	used = uint64(a.largeUsed.Load())
	for i := range a.small {
		c := &a.small[i]
		alloc := c.allocated.Load()
		// The free counter is updated after the list CAS; clamp the
		// transient skew visible during concurrent churn.
		free := min(max(c.free.Load(), 0), alloc)
		allocated += uint64(alloc) * c.size
		used += uint64(alloc-free) * c.size
	}
	return used, allocated - used
}

// ClassStats returns per-class allocation counters for the small
// classes, smallest class first. Large classes are not listed; their
// bytes appear only in the totals of [PoolAllocator.Stats].
func (a *PoolAllocator) ClassStats() []ClassStat {
	out := make([]ClassStat, 0, a.numSmall)
	for i := range a.small {
		c := &a.small[i]
		alloc := c.allocated.Load()
		free := min(max(c.free.Load(), 0), alloc)
		out = append(out, ClassStat{Size: c.size, Allocated: uint64(alloc), Used: uint64(alloc - free)})
	}
	return out
}

// Clear drains the large-class free stacks and releases their blocks to
// the system. Blocks currently held by callers are unaffected; small
// classes keep their slabs until the allocator is unreachable.
func (a *PoolAllocator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.large {
		size := int64(alignUp(a.sizes[a.numSmall+i]))
		for {
			p := a.large[i].pop()
			if p == 0 {
				break
			}
			a.largeAllocated.Add(-size)
			delete(a.largeSlabs, p)
		}
	}
}

// smallBucket returns the index of the smallest small class that fits n.
func (a *PoolAllocator) smallBucket(n uint64) int {
	b := 0
	for n > a.sizes[b] {
		b++
	}
	return b
}

// alignUp rounds n up to a multiple of MaxAlignment. Footprint
// accounting uses the rounded size so allocate, deallocate and Clear
// move the counters by the same amount.
func alignUp(n uint64) uint64 {
	if rem := n % MaxAlignment; rem != 0 {
		n += MaxAlignment - rem
	}
	return n
}

func (a *PoolAllocator) allocateLarge(n uint64) unsafe.Pointer {
	a.largeUsed.Add(int64(n))

	allocSize := n
	if n <= a.maxSize {
		bucket := a.numSmall
		for n > a.sizes[bucket] {
			bucket++
		}
		if p := a.large[bucket-a.numSmall].pop(); p != 0 {
			return unsafe.Pointer(p)
		}
		allocSize = a.sizes[bucket]
	}
	allocSize = alignUp(allocSize)

	p := a.newSlabLocked(allocSize, true)
	a.largeAllocated.Add(int64(allocSize))
	return unsafe.Pointer(p)
}

func (a *PoolAllocator) deallocateLarge(p unsafe.Pointer, n uint64) {
	a.largeUsed.Add(-int64(n))
	if n > a.maxSize {
		// Oversize blocks are not pooled; dropping the slab reference
		// releases the memory.
		a.largeAllocated.Add(-int64(alignUp(n)))
		a.mu.Lock()
		delete(a.largeSlabs, uintptr(p))
		a.mu.Unlock()
		return
	}
	bucket := a.numSmall
	for n > a.sizes[bucket] {
		bucket++
	}
	a.large[bucket-a.numSmall].push(uintptr(p))
}

// newSlabLocked allocates an aligned slab and registers it so the
// memory stays referenced while blocks carved from it circulate as raw
// pointers. Takes a.mu internally.
func (a *PoolAllocator) newSlabLocked(size uint64, isLarge bool) uintptr {
	buf := make([]byte, size+MaxAlignment)
	p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	if off := p & (MaxAlignment - 1); off != 0 {
		p += MaxAlignment - off
	}
	a.mu.Lock()
	if isLarge {
		a.largeSlabs[p] = buf
	} else {
		a.slabs = append(a.slabs, buf)
	}
	a.mu.Unlock()
	return p
}

// alloc pops a block from the class's shards, refilling from a fresh
// slab when every shard is empty.
func (c *smallClass) alloc(a *PoolAllocator) unsafe.Pointer {
	idx := uint64(c.rr.Add(1)) & uint64(len(c.shards)-1)
	if p := c.shards[idx].pop(); p != 0 {
		c.free.Add(-1)
		return unsafe.Pointer(p)
	}
	// Home shard empty: scan the rest before growing.
	for i := range c.shards {
		if p := c.shards[i].pop(); p != 0 {
			c.free.Add(-1)
			return unsafe.Pointer(p)
		}
	}
	return unsafe.Pointer(c.refill(a, idx))
}

// refill carves a chunk of blocks from one slab, keeps the first and
// pushes the rest onto the shard at idx.
func (c *smallClass) refill(a *PoolAllocator, idx uint64) uintptr {
	per := uint64(1<<20) / c.size
	if per < 4 {
		per = 4
	} else if per > 256 {
		per = 256
	}
	// Keep each carved block on an alignment boundary.
	stride := c.size
	if rem := stride % MaxAlignment; rem != 0 {
		stride += MaxAlignment - rem
	}

	base := a.newSlabLocked(per*stride, false)
	c.allocated.Add(int64(per))
	for i := uint64(1); i < per; i++ {
		c.shards[idx].push(base + uintptr(i*stride))
	}
	c.free.Add(int64(per - 1))
	return base
}
