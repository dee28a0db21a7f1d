// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd

// Owner is the owner-side capability of a deque: the one goroutine that
// pushes and pops at the bottom. Only Owner carries the bottom
// operations and the reclamation hooks, so holding the right handle
// type is holding the right to call them.
//
// Obtain the pair from [Deque.Handles]:
//
//	d := wsd.NewDeque[Task]()
//	owner, stealer := d.Handles()
//	go worker(owner)
//	for range nthieves {
//	    go thief(stealer) // Stealer is freely copyable
//	}
type Owner[V any] struct {
	d *Deque[V]
}

// PushBottom adds v at the bottom of the deque.
func (o Owner[V]) PushBottom(v *V) {
	o.d.PushBottom(v)
}

// PopBottom removes and returns the most recently pushed value.
// Returns ErrWouldBlock when empty or when a thief won the last value.
func (o Owner[V]) PopBottom() (*V, error) {
	return o.d.PopBottom()
}

// Reclaim recycles retired blocks. See [Deque.Reclaim] for the safety
// contract.
func (o Owner[V]) Reclaim() {
	o.d.Reclaim()
}

// Release returns all storage to the pool. See [Deque.Release].
func (o Owner[V]) Release() {
	o.d.Release()
}

// Stealer is the thief-side capability of a deque. Stealer values are
// freely copyable; any number of goroutines may steal concurrently.
type Stealer[V any] struct {
	d *Deque[V]
}

// PopTop steals the oldest value in the deque. See [Deque.PopTop] for
// the empty hint semantics.
func (s Stealer[V]) PopTop() (*V, bool, error) {
	return s.d.PopTop()
}

// Handles splits the deque into its owner and stealer capabilities.
// The raw Deque methods remain available for callers that manage the
// owner/thief discipline themselves.
func (d *Deque[V]) Handles() (Owner[V], Stealer[V]) {
	return Owner[V]{d: d}, Stealer[V]{d: d}
}

var (
	_ Bottom[int] = Owner[int]{}
	_ Top[int]    = Stealer[int]{}
)
