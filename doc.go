// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wsd provides an unbounded lock-free work-stealing deque.
//
// The deque is the scheduling primitive of a task-parallel runtime: one
// owner goroutine pushes and pops tasks at the bottom, while any number
// of thief goroutines steal from the top. The protocol is the ABP deque
// of "Correct and Efficient Work-Stealing for Weak Memory Models" (Lê
// et al.); storage is a linked list of fixed-size blocks rather than a
// circular buffer, so the deque grows without reallocation, copying, or
// a capacity parameter.
//
// # Quick Start
//
//	d := wsd.NewDeque[Task]()
//	owner, stealer := d.Handles()
//
//	// Owner goroutine: LIFO local work
//	owner.PushBottom(&t)
//	v, err := owner.PopBottom()
//
//	// Any other goroutine: FIFO stealing
//	v, hint, err := stealer.PopTop()
//
// # Basic Usage
//
// The three operations never block and never fail; every negative
// outcome is [ErrWouldBlock] with a protocol-defined meaning:
//
//	// Owner loop
//	for {
//	    v, err := owner.PopBottom()
//	    if err != nil {
//	        break // no local work: go steal
//	    }
//	    run(v)
//	}
//
//	// Thief loop
//	backoff := iox.Backoff{}
//	for {
//	    v, hint, err := stealer.PopTop()
//	    if err == nil {
//	        backoff.Reset()
//	        run(v)
//	        continue
//	    }
//	    if hint {
//	        break // deque drained, pick another victim
//	    }
//	    backoff.Wait()
//	}
//
// The empty hint returned by PopTop is conservative: it reports that
// the caller took (or raced for) what was the last stealable value. A
// concurrent push may already have refilled the deque; thieves treat
// the hint as "stop polling this deque", not as a global termination
// signal.
//
// # Access Discipline
//
// Exactly one goroutine owns a deque for its lifetime and calls
// PushBottom, PopBottom, Reclaim, and Release. Any number of goroutines
// call PopTop. Violating the discipline causes undefined behavior
// including data corruption and lost values. [Deque.Handles] splits the
// deque into [Owner] and [Stealer] capability types so the discipline
// is visible in function signatures instead of comments.
//
// # Storage
//
// Values travel through blocks of 1<<14 slots carved from a
// [PoolAllocator], a size-classed pool of 128-byte-aligned raw blocks.
// Deques created with [NewDeque] share the process-wide [DefaultPool];
// a scheduler that wants isolation passes its own pool to [NewDequeIn].
//
// The deque stores raw pointers and does not keep referents live. Keep
// pushed values reachable (task arena, slice of task structs) until
// they are popped.
//
// # Block Reclamation
//
// Thieves unlink exhausted blocks from the tail side onto a retire
// list. The deque does not decide when those blocks are safe to recycle
// — that requires knowing no thief is still reading them (hazard
// pointers, epochs, or a scheduler barrier). The owner calls
// [Deque.Reclaim] from such a quiescent window; reclaimed blocks back
// future growth, and blocks beyond a small reserve return to the pool.
//
// # Memory Ordering
//
// Slot loads and stores are relaxed; publication is carried entirely by
// the bot/top indices, which reproduce the fence placement of the ABP
// proof. Go exposes no standalone fences, so the fences appear as
// sequentially consistent operations on bot and top. Do not weaken any
// of them: the relaxed slot accesses are correct only because bot/top
// carry publication.
//
// # Race Detection
//
// Go's race detector tracks happens-before through explicit
// synchronization primitives and cannot observe ordering established by
// atomic operations on separate variables. The deque's relaxed slot
// accesses are protected exactly that way, so the detector reports
// false positives on concurrent use. Stress tests incompatible with
// race detection are skipped via [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions in CAS retry loops.
package wsd
