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

// Package inode implements the indexed inode layer: the on-disk inode
// layout, the direct/indirect/double-indirect index used to translate a
// byte offset into a device sector, sector allocation on extension and
// deallocation when a removed inode is closed (there is no truncation), and
// the open-inode handle table.
package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/oslab-fs/blockfs/blockdev"
)

const (
	// Magic tags a sector as holding a valid inode, to catch the file
	// system being pointed at an uninitialized or corrupt device.
	Magic uint32 = 0x494E4F44 // "INOD" in ASCII, read big-endian.

	// DirectEntries is the number of direct sector pointers held inline in
	// the on-disk inode.
	DirectEntries = 122

	// IndirectEntries is the number of sector pointers held in one
	// indirect (or second-level double-indirect) block.
	IndirectEntries = blockdev.SectorSize / 4 // 128

	// DoubleIndirectBlockMax is the number of first-level (indirect)
	// blocks referenced from the double-indirect block, capped so that
	// direct+indirect+double-indirect exactly covers MaxFileSize.
	DoubleIndirectBlockMax = 127

	// DoubleIndirectLastMax is how many sectors are used in the final
	// first-level block of the double-indirect tree once
	// DoubleIndirectBlockMax is reached.
	DoubleIndirectLastMax = 6

	// MaxFileSize is the largest file this inode layout can address:
	// (122 + 128 + 127*128) sectors, truncated to the last indirect
	// block's 6-sector cap, at 512 bytes per sector.
	MaxFileSize = 8 * 1024 * 1024

	// diskSize is the on-disk footprint of a Disk value: one sector.
	diskSize = blockdev.SectorSize
)

// Disk is the on-disk inode layout: a 512-byte sector holding file
// metadata plus the index root (direct pointers, one indirect block
// pointer, one double-indirect block pointer).
type Disk struct {
	SelfSector blockdev.Sector
	MagicTag   uint32
	Length     int64
	IsDir      bool

	Direct         [DirectEntries]blockdev.Sector
	Indirect       blockdev.Sector
	DoubleIndirect blockdev.Sector
}

// NewDisk returns a zeroed Disk stamped with the magic tag and self
// pointer, describing an empty file (or directory) at selfSector.
func NewDisk(selfSector blockdev.Sector, isDir bool) *Disk {
	return &Disk{
		SelfSector: selfSector,
		MagicTag:   Magic,
		IsDir:      isDir,
	}
}

// Encode serializes d into a freshly-allocated 512-byte sector buffer.
func (d *Disk) Encode() []byte {
	buf := make([]byte, diskSize)
	bo := binary.LittleEndian

	bo.PutUint32(buf[0:4], uint32(d.SelfSector))
	bo.PutUint32(buf[4:8], d.MagicTag)
	bo.PutUint32(buf[8:12], uint32(d.Length))
	if d.IsDir {
		bo.PutUint32(buf[12:16], 1)
	}

	off := 16
	for i := 0; i < DirectEntries; i++ {
		bo.PutUint32(buf[off:off+4], uint32(d.Direct[i]))
		off += 4
	}
	bo.PutUint32(buf[off:off+4], uint32(d.Indirect))
	off += 4
	bo.PutUint32(buf[off:off+4], uint32(d.DoubleIndirect))

	return buf
}

// DecodeDisk parses a 512-byte sector buffer into a Disk value. It returns
// an error if the buffer is the wrong size or the magic tag doesn't match,
// the two signs of reading garbage or an uninitialized sector as an inode.
func DecodeDisk(buf []byte) (*Disk, error) {
	if len(buf) != diskSize {
		return nil, fmt.Errorf("inode: disk buffer has length %d, want %d", len(buf), diskSize)
	}

	bo := binary.LittleEndian
	d := &Disk{
		SelfSector: blockdev.Sector(bo.Uint32(buf[0:4])),
		MagicTag:   bo.Uint32(buf[4:8]),
		Length:     int64(int32(bo.Uint32(buf[8:12]))),
		IsDir:      bo.Uint32(buf[12:16]) != 0,
	}
	if d.MagicTag != Magic {
		return nil, fmt.Errorf("inode: sector %d has bad magic %#x, want %#x", d.SelfSector, d.MagicTag, Magic)
	}

	off := 16
	for i := 0; i < DirectEntries; i++ {
		d.Direct[i] = blockdev.Sector(bo.Uint32(buf[off : off+4]))
		off += 4
	}
	d.Indirect = blockdev.Sector(bo.Uint32(buf[off : off+4]))
	off += 4
	d.DoubleIndirect = blockdev.Sector(bo.Uint32(buf[off : off+4]))

	return d, nil
}

// SectorsForLength returns how many 512-byte sectors are needed to hold a
// file of the given byte length.
func SectorsForLength(length int64) int {
	if length <= 0 {
		return 0
	}
	return int((length + blockdev.SectorSize - 1) / blockdev.SectorSize)
}
