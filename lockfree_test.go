// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Lock-free algorithm tests excluded from race detection.
//
// The deque protects its slots with relaxed atomics ordered by the
// bot/top indices. The algorithm is correct, but the race detector
// cannot observe happens-before established through atomic operations
// on separate variables and reports false positives on these tests.

package wsd_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/wsd"
)

// TestConcurrentOwnerAndThieves pushes distinct non-zero values, then
// drains with one owner and 31 thieves. The union of everything popped
// must equal the pushed multiset, each value exactly once.
func TestConcurrentOwnerAndThieves(t *testing.T) {
	if wsd.RaceEnabled {
		t.Skip("skip: deque uses cross-variable memory ordering")
	}
	n := 1 << 20
	if testing.Short() {
		n = 1 << 16
	}
	const nthreads = 32

	d := wsd.NewDeque[int]()
	owner, stealer := d.Handles()
	defer owner.Release()

	vals := make([]int, n)
	for i := 1; i < n; i++ { // 0 marks "no result"
		vals[i] = i
		owner.PushBottom(&vals[i])
	}

	results := make([][]int, nthreads)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for tid := range nthreads {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			out := make([]int, 0, n)
			<-start
			if tid == 0 {
				for {
					v, err := owner.PopBottom()
					if err != nil {
						break
					}
					out = append(out, *v)
				}
			} else {
				for {
					v, hint, err := stealer.PopTop()
					if err == nil {
						out = append(out, *v)
					}
					if hint {
						break
					}
				}
			}
			results[tid] = out
		}(tid)
	}
	close(start)
	wg.Wait()

	seen := make([]int, n)
	total := 0
	for tid := range nthreads {
		for _, v := range results[tid] {
			if v <= 0 || v >= n {
				t.Fatalf("thread %d popped out-of-range value %d", tid, v)
			}
			seen[v]++
			total++
		}
	}
	if total != n-1 {
		t.Fatalf("popped %d values, want %d", total, n-1)
	}
	for v := 1; v < n; v++ {
		if seen[v] != 1 {
			t.Fatalf("value %d popped %d times, want exactly once", v, seen[v])
		}
	}
}

// TestSingleElementRace repeatedly races one PopBottom against one
// PopTop over a single value: exactly one side must win each round.
func TestSingleElementRace(t *testing.T) {
	if wsd.RaceEnabled {
		t.Skip("skip: deque uses cross-variable memory ordering")
	}
	rounds := 100000
	if testing.Short() {
		rounds = 10000
	}

	d := wsd.NewDeque[int]()
	owner, stealer := d.Handles()
	defer owner.Release()

	var ownerWins, thiefWins atomix.Int64
	for range rounds {
		x := 1
		owner.PushBottom(&x)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := owner.PopBottom(); err == nil {
				ownerWins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if _, _, err := stealer.PopTop(); err == nil {
				thiefWins.Add(1)
			}
		}()
		wg.Wait()
	}

	if got := ownerWins.Load() + thiefWins.Load(); got != int64(rounds) {
		t.Fatalf("wins: owner %d + thief %d = %d, want %d (each value taken exactly once)",
			ownerWins.Load(), thiefWins.Load(), got, rounds)
	}
}

// TestSizeOneInterleave keeps the deque at size one: the owner pushes
// and pops while one thief hammers PopTop. Every pushed value must be
// returned by exactly one of the two ends.
func TestSizeOneInterleave(t *testing.T) {
	if wsd.RaceEnabled {
		t.Skip("skip: deque uses cross-variable memory ordering")
	}
	iters := 1000000
	if testing.Short() {
		iters = 100000
	}

	d := wsd.NewDeque[int]()
	owner, stealer := d.Handles()
	defer owner.Release()

	vals := make([]int, iters)
	stop := make(chan struct{})
	var stolen atomix.Int64
	stolenSet := make([]int, iters+1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			v, _, err := stealer.PopTop()
			if err == nil {
				stolenSet[*v]++
				stolen.Add(1)
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	owned := 0
	ownedSet := make([]int, iters+1)
	for i := range iters {
		vals[i] = i + 1
		owner.PushBottom(&vals[i])
		if v, err := owner.PopBottom(); err == nil {
			ownedSet[*v]++
			owned++
		}
	}
	close(stop)
	wg.Wait()

	if int64(owned)+stolen.Load() != int64(iters) {
		t.Fatalf("returned %d values, want %d", int64(owned)+stolen.Load(), iters)
	}
	for v := 1; v <= iters; v++ {
		if got := ownedSet[v] + stolenSet[v]; got != 1 {
			t.Fatalf("value %d returned %d times, want exactly once", v, got)
		}
	}
}

// TestManyStealersFIFOPrefix spot-checks P2 under concurrency: with the
// owner quiet, each individual thief observes values in increasing
// order even though thieves interleave.
func TestManyStealersFIFOPrefix(t *testing.T) {
	if wsd.RaceEnabled {
		t.Skip("skip: deque uses cross-variable memory ordering")
	}
	n := 1 << 16
	if testing.Short() {
		n = 1 << 13
	}
	const nthieves = 8

	d := wsd.NewDeque[int]()
	owner, stealer := d.Handles()
	defer owner.Release()

	vals := make([]int, n)
	for i := range vals {
		vals[i] = i + 1
		owner.PushBottom(&vals[i])
	}

	var wg sync.WaitGroup
	perThief := make([][]int, nthieves)
	for tid := range nthieves {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			var out []int
			for {
				v, hint, err := stealer.PopTop()
				if err == nil {
					out = append(out, *v)
				}
				if hint {
					break
				}
			}
			perThief[tid] = out
		}(tid)
	}
	wg.Wait()

	total := 0
	for tid := range nthieves {
		out := perThief[tid]
		total += len(out)
		for i := 1; i < len(out); i++ {
			if out[i] <= out[i-1] {
				t.Fatalf("thief %d observed %d after %d; steals must be increasing", tid, out[i], out[i-1])
			}
		}
	}
	if total != n {
		t.Fatalf("stole %d values, want %d", total, n)
	}
}
