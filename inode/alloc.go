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

package inode

import (
	"fmt"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/cache"
	"github.com/oslab-fs/blockfs/freemap"
)

// Sector 0 is reserved for the free-sector map itself and therefore never
// a valid data sector; it doubles as the "unallocated" sentinel in
// Disk.Direct/Indirect/DoubleIndirect.
const unallocated blockdev.Sector = 0

// extend grows d's index so that sectors [oldCount, newCount) are backed
// by zero-filled sectors, allocating pointer blocks lazily as the
// direct/indirect/double-indirect boundaries are crossed.
//
// If oldCount is zero (the inode has no sectors yet, i.e. this is a fresh
// Create rather than an extension of an already-live file) and allocation
// runs out of space partway through, every sector allocated so far by this
// call is released before returning an error. If oldCount is non-zero
// (extending a file that already holds data), a failed allocation leaves
// whatever was already wired in place: the file keeps the sectors it
// successfully gained, and Length is left for the caller to reconcile with
// however many sectors actually got linked in. This asymmetry mirrors the
// sector-allocation routine it's grounded on, which only unwinds a failed
// allocation when `old` is zero.
func extend(bc *cache.BufferCache, alloc freemap.Allocator, d *Disk, oldCount, newCount int) error {
	if newCount <= oldCount {
		return nil
	}

	fresh := oldCount == 0
	var allocated []blockdev.Sector
	rollback := func() {
		for _, s := range allocated {
			releaseSector(bc, alloc, s)
		}
	}

	allocOne := func() (blockdev.Sector, error) {
		s, ok := alloc.Allocate(1)
		if !ok {
			if fresh {
				rollback()
			}
			return 0, fmt.Errorf("inode: out of free sectors extending file")
		}
		allocated = append(allocated, s)
		if err := bc.ZeroFill(s); err != nil {
			if fresh {
				rollback()
			}
			return 0, fmt.Errorf("inode: zero-fill sector %d: %w", s, err)
		}
		return s, nil
	}

	for n := oldCount; n < newCount; n++ {
		region, idx, firstIdx, secondIdx := sectorIndex(int64(n) * blockdev.SectorSize)

		switch region {
		case 0:
			s, err := allocOne()
			if err != nil {
				return err
			}
			d.Direct[idx] = s

		case 1:
			if d.Indirect == unallocated {
				s, err := allocOne()
				if err != nil {
					return err
				}
				d.Indirect = s
			}
			s, err := allocOne()
			if err != nil {
				return err
			}
			if err := writePointerAt(bc, d.Indirect, idx, s); err != nil {
				return err
			}

		default:
			if d.DoubleIndirect == unallocated {
				s, err := allocOne()
				if err != nil {
					return err
				}
				d.DoubleIndirect = s
			}
			firstLevel, err := readPointerBlock(bc, d.DoubleIndirect)
			if err != nil {
				return err
			}
			firstBlockSector := firstLevel[firstIdx]
			if firstBlockSector == unallocated {
				s, err := allocOne()
				if err != nil {
					return err
				}
				firstBlockSector = s
				if err := writePointerAt(bc, d.DoubleIndirect, firstIdx, firstBlockSector); err != nil {
					return err
				}
			}
			s, err := allocOne()
			if err != nil {
				return err
			}
			if err := writePointerAt(bc, firstBlockSector, secondIdx, s); err != nil {
				return err
			}
		}
	}

	return nil
}

// dealloc releases every sector referenced by d's index, including its
// indirect and double-indirect pointer blocks, back to alloc. It does not
// release d's own sector; callers own that separately since it may be
// reused immediately for a new inode at the same location.
func dealloc(bc *cache.BufferCache, alloc freemap.Allocator, d *Disk) {
	count := SectorsForLength(d.Length)
	counts := sectorsDivide(count)

	for n := 0; n < count; n++ {
		region, idx, firstIdx, secondIdx := sectorIndex(int64(n) * blockdev.SectorSize)

		switch region {
		case 0:
			releaseSector(bc, alloc, d.Direct[idx])
		case 1:
			if ptrs, err := readPointerBlock(bc, d.Indirect); err == nil {
				releaseSector(bc, alloc, ptrs[idx])
			}
		default:
			firstLevel, err := readPointerBlock(bc, d.DoubleIndirect)
			if err != nil {
				continue
			}
			if secondLevel, err := readPointerBlock(bc, firstLevel[firstIdx]); err == nil {
				releaseSector(bc, alloc, secondLevel[secondIdx])
			}
		}
	}

	if d.Indirect != unallocated {
		releaseSector(bc, alloc, d.Indirect)
	}
	if d.DoubleIndirect != unallocated {
		if firstLevel, err := readPointerBlock(bc, d.DoubleIndirect); err == nil {
			for i := 0; i < counts.doubleIndirectBlocks; i++ {
				releaseSector(bc, alloc, firstLevel[i])
			}
		}
		releaseSector(bc, alloc, d.DoubleIndirect)
	}
}

func releaseSector(bc *cache.BufferCache, alloc freemap.Allocator, s blockdev.Sector) {
	if s == unallocated {
		return
	}
	bc.Invalidate(s)
	alloc.Release(s, 1)
}
