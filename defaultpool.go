// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

// defaultSizeClasses are powers of two from 64 bytes to 4 MiB, with one
// extra class sized exactly for deque blocks so block recycling goes
// through the sharded small-class path instead of rounding up to the
// next power of two.
func defaultSizeClasses() []uint64 {
	var sizes []uint64
	for s := uint64(64); s <= 1<<22; s <<= 1 {
		if blockBytes > s/2 && blockBytes < s {
			sizes = append(sizes, blockBytes)
		}
		sizes = append(sizes, s)
	}
	return sizes
}

var defaultPool = NewPoolAllocator(defaultSizeClasses())

// DefaultPool returns the process-wide pool that backs deques created
// with [NewDeque]. Schedulers that want isolation construct their own
// pool with [NewPoolAllocator] and use [NewDequeIn].
func DefaultPool() *PoolAllocator {
	return defaultPool
}
