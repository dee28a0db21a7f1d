// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsd_test

import (
	"fmt"
	"sort"
	"sync"

	"code.hybscloud.com/wsd"
)

// ExampleDeque demonstrates the owner's LIFO view and a thief's FIFO view.
func ExampleDeque() {
	d := wsd.NewDeque[int]()
	defer d.Release()

	tasks := []int{1, 2, 3}
	for i := range tasks {
		d.PushBottom(&tasks[i])
	}

	stolen, _, _ := d.PopTop() // oldest
	local, _ := d.PopBottom()  // newest
	fmt.Println(*stolen, *local)
	// Output: 1 3
}

// ExampleDeque_Handles runs one owner and several thieves over the
// capability handles.
func ExampleDeque_Handles() {
	d := wsd.NewDeque[int]()
	owner, stealer := d.Handles()
	defer owner.Release()

	tasks := make([]int, 100)
	for i := range tasks {
		tasks[i] = i + 1
		owner.PushBottom(&tasks[i])
	}

	var mu sync.Mutex
	var done []int
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, hint, err := stealer.PopTop()
				if err == nil {
					mu.Lock()
					done = append(done, *v)
					mu.Unlock()
				}
				if hint {
					return
				}
			}
		}()
	}
	wg.Wait()

	sort.Ints(done)
	fmt.Println(len(done), done[0], done[len(done)-1])
	// Output: 100 1 100
}

// ExamplePoolAllocator shows direct use of the size-classed pool.
func ExamplePoolAllocator() {
	pool := wsd.NewPoolAllocator([]uint64{64, 4096, 1 << 18})
	defer pool.Clear()

	p := pool.Allocate(100) // served by the 4096-byte class
	used, _ := pool.Stats()
	fmt.Println(used)

	pool.Deallocate(p, 100)
	used, _ = pool.Stats()
	fmt.Println(used)
	// Output:
	// 4096
	// 0
}
