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
	"encoding/binary"
	"fmt"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/cache"
)

// sectorCounts describes how a given number of sectors decomposes across
// the direct, indirect and double-indirect regions of the index.
type sectorCounts struct {
	direct               int
	indirect             int
	doubleIndirectBlocks int
	doubleIndirectLast   int // sectors used in the last first-level block
}

// sectorsDivide computes how `cnt` sectors are laid out across the three
// index regions.
func sectorsDivide(cnt int) sectorCounts {
	var c sectorCounts
	if cnt <= DirectEntries {
		c.direct = cnt
		return c
	}
	c.direct = DirectEntries
	remaining := cnt - DirectEntries

	if remaining <= IndirectEntries {
		c.indirect = remaining
		return c
	}
	c.indirect = IndirectEntries
	remaining -= IndirectEntries

	c.doubleIndirectBlocks = remaining / IndirectEntries
	remainder := remaining % IndirectEntries
	if remainder != 0 {
		c.doubleIndirectBlocks++
		c.doubleIndirectLast = remainder
	}
	return c
}

// readPointerBlock reads the 128 sector pointers stored in the block at
// sector.
func readPointerBlock(c *cache.BufferCache, sector blockdev.Sector) ([IndirectEntries]blockdev.Sector, error) {
	var out [IndirectEntries]blockdev.Sector
	buf := make([]byte, blockdev.SectorSize)
	if err := c.ReadAt(sector, buf, 0); err != nil {
		return out, err
	}
	for i := range out {
		out[i] = blockdev.Sector(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return out, nil
}

// writePointerAt stores a single sector pointer at index idx of the
// pointer block held at blockSector.
func writePointerAt(c *cache.BufferCache, blockSector blockdev.Sector, idx int, value blockdev.Sector) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))
	return c.WriteAt(blockSector, buf, idx*4)
}

// sectorIndex returns the region and within-region index for byte offset
// pos: 0 = direct, 1 = indirect, 2 = double-indirect.
func sectorIndex(pos int64) (region int, idx int, firstIdx int, secondIdx int) {
	sectorNum := int(pos / blockdev.SectorSize)
	if sectorNum < DirectEntries {
		return 0, sectorNum, 0, 0
	}
	sectorNum -= DirectEntries
	if sectorNum < IndirectEntries {
		return 1, sectorNum, 0, 0
	}
	sectorNum -= IndirectEntries
	return 2, 0, sectorNum / IndirectEntries, sectorNum % IndirectEntries
}

// byteToSector translates a byte offset within the file described by d
// into the device sector holding it. It returns an error if pos is beyond
// the file's current length.
func byteToSector(c *cache.BufferCache, d *Disk, pos int64) (blockdev.Sector, error) {
	if pos >= d.Length {
		return 0, fmt.Errorf("inode: offset %d is beyond length %d", pos, d.Length)
	}

	region, idx, firstIdx, secondIdx := sectorIndex(pos)
	switch region {
	case 0:
		return d.Direct[idx], nil
	case 1:
		ptrs, err := readPointerBlock(c, d.Indirect)
		if err != nil {
			return 0, err
		}
		return ptrs[idx], nil
	default:
		firstLevel, err := readPointerBlock(c, d.DoubleIndirect)
		if err != nil {
			return 0, err
		}
		secondLevel, err := readPointerBlock(c, firstLevel[firstIdx])
		if err != nil {
			return 0, err
		}
		return secondLevel[secondIdx], nil
	}
}
