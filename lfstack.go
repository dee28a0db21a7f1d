// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// lfstack is an intrusive Treiber stack of free memory blocks.
//
// The link to the next block is stored in the first word of the block
// itself, so blocks must be at least one pointer wide (the pool's
// minimum class size of 8 bytes guarantees this).
//
// The head packs a tag and the top pointer into a single 128-bit entry:
// [lo=tag | hi=pointer]. The tag increments on every successful CAS,
// so a pop that raced with a pop-push cycle of the same block fails
// instead of swinging head to a stale next link (ABA).
type lfstack struct {
	head atomix.Uint128 // lo=tag, hi=pointer
}

// push adds block p to the stack.
func (s *lfstack) push(p uintptr) {
	sw := spin.Wait{}
	for {
		tag, top := s.head.LoadAcquire()
		*(*uintptr)(unsafe.Pointer(p)) = uintptr(top)
		if s.head.CompareAndSwapAcqRel(tag, top, tag+1, uint64(p)) {
			return
		}
		sw.Once()
	}
}

// pop removes and returns the most recently pushed block, or 0 if the
// stack is empty.
func (s *lfstack) pop() uintptr {
	sw := spin.Wait{}
	for {
		tag, top := s.head.LoadAcquire()
		if top == 0 {
			return 0
		}
		next := *(*uintptr)(unsafe.Pointer(uintptr(top)))
		if s.head.CompareAndSwapAcqRel(tag, top, tag+1, uint64(next)) {
			return uintptr(top)
		}
		sw.Once()
	}
}

// paddedStack keeps per-shard stacks on separate cache lines.
type paddedStack struct {
	lfstack
	_ [64 - 16]byte
}
