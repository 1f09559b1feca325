// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package freemap

import (
	"fmt"
	"sync"

	"github.com/oslab-fs/blockfs/blockdev"
)

// BitmapAllocator tracks sector occupancy with a flat []bool, one entry per
// sector. It favors simplicity over speed: allocation does a linear scan for
// the first fitting run, which is adequate for the sector counts this
// teaching file system deals in (at most 16384 sectors for an 8MiB file,
// times a modest number of open files).
type BitmapAllocator struct {
	mu   sync.Mutex
	bits []bool // true = allocated
	free int
}

var _ Allocator = (*BitmapAllocator)(nil)

// NewBitmapAllocator returns an allocator over `count` sectors, all initially
// free. The caller is responsible for marking any sectors that are already
// spoken for (e.g. reserved for a boot sector) as allocated before handing
// the allocator to the rest of the file system.
func NewBitmapAllocator(count blockdev.Sector) *BitmapAllocator {
	return &BitmapAllocator{
		bits: make([]bool, count),
		free: int(count),
	}
}

// MarkAllocated reserves [start, start+n) up front, without going through
// Allocate. Used to carve out space for a superblock or other fixed layout
// before the allocator is handed to callers.
func (a *BitmapAllocator) MarkAllocated(start blockdev.Sector, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < n; i++ {
		idx := int(start) + i
		if !a.bits[idx] {
			a.bits[idx] = true
			a.free--
		}
	}
}

func (a *BitmapAllocator) Allocate(n int) (blockdev.Sector, bool) {
	if n <= 0 {
		return 0, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if n > a.free {
		return 0, false
	}

	run := 0
	for i, used := range a.bits {
		if used {
			run = 0
			continue
		}
		run++
		if run == n {
			start := i - n + 1
			for j := start; j <= i; j++ {
				a.bits[j] = true
			}
			a.free -= n
			return blockdev.Sector(start), true
		}
	}

	return 0, false
}

func (a *BitmapAllocator) Release(start blockdev.Sector, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	end := int(start) + n
	if int(start) < 0 || end > len(a.bits) {
		panic(fmt.Sprintf("freemap: release range [%d, %d) out of bounds [0, %d)", start, end, len(a.bits)))
	}

	for i := int(start); i < end; i++ {
		if !a.bits[i] {
			panic(fmt.Sprintf("freemap: double release of sector %d", i))
		}
		a.bits[i] = false
		a.free++
	}
}

func (a *BitmapAllocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.free
}
