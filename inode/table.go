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
	"sync"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/cache"
	"github.com/oslab-fs/blockfs/freemap"
)

// Table is the registry of open inode handles. Opening the same sector
// twice returns the same *Handle with its reference count bumped, so
// concurrent openers observe a consistent view of in-flight writes and so
// a remove-while-open doesn't free sectors out from under an active
// reader.
type Table struct {
	bc    *cache.BufferCache
	alloc freemap.Allocator

	mu   sync.Mutex
	open map[blockdev.Sector]*Handle
}

// NewTable returns an empty handle registry backed by bc for sector I/O
// and alloc for sector allocation.
func NewTable(bc *cache.BufferCache, alloc freemap.Allocator) *Table {
	return &Table{
		bc:    bc,
		alloc: alloc,
		open:  make(map[blockdev.Sector]*Handle),
	}
}

// Handle is an in-memory, reference-counted handle onto an on-disk inode.
type Handle struct {
	table  *Table
	sector blockdev.Sector

	mu      sync.Mutex
	openCnt int
	removed bool
	denyCnt int
	dirPos  int64 // directory-entry read cursor; unused for regular files
}

func (t *Table) readDisk(sector blockdev.Sector) (*Disk, error) {
	buf := make([]byte, blockdev.SectorSize)
	if err := t.bc.ReadAt(sector, buf, 0); err != nil {
		return nil, err
	}
	return DecodeDisk(buf)
}

func (t *Table) writeDisk(d *Disk) error {
	return t.bc.WriteAt(d.SelfSector, d.Encode(), 0)
}

// Create initializes a new inode at sector with the given length and type,
// allocating whatever sectors the length requires.
func (t *Table) Create(sector blockdev.Sector, length int64, isDir bool) error {
	if length < 0 {
		return fmt.Errorf("inode: negative length %d", length)
	}
	if length > MaxFileSize {
		return fmt.Errorf("inode: length %d exceeds max file size %d", length, MaxFileSize)
	}

	d := NewDisk(sector, isDir)
	if err := extend(t.bc, t.alloc, d, 0, SectorsForLength(length)); err != nil {
		return err
	}
	d.Length = length
	return t.writeDisk(d)
}

// Open returns a Handle for the inode at sector, validating that the
// sector actually holds one. Opening an already-open sector returns the
// existing Handle with its open count incremented.
func (t *Table) Open(sector blockdev.Sector) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.open[sector]; ok {
		h.mu.Lock()
		h.openCnt++
		h.mu.Unlock()
		return h, nil
	}

	d, err := t.readDisk(sector)
	if err != nil {
		return nil, err
	}
	if d.SelfSector != sector {
		return nil, fmt.Errorf("inode: sector %d holds an inode stamped for sector %d", sector, d.SelfSector)
	}

	h := &Handle{table: t, sector: sector, openCnt: 1}
	t.open[sector] = h
	return h, nil
}

// Reopen increments h's reference count and returns h, mirroring
// inode_reopen.
func (h *Handle) Reopen() *Handle {
	h.mu.Lock()
	h.openCnt++
	h.mu.Unlock()
	return h
}

// Inumber returns the sector this handle's inode lives at.
func (h *Handle) Inumber() blockdev.Sector {
	return h.sector
}

// Length returns the inode's current length in bytes.
func (h *Handle) Length() (int64, error) {
	d, err := h.table.readDisk(h.sector)
	if err != nil {
		return 0, err
	}
	return d.Length, nil
}

// IsDir reports whether the inode was created as a directory.
func (h *Handle) IsDir() (bool, error) {
	d, err := h.table.readDisk(h.sector)
	if err != nil {
		return false, err
	}
	return d.IsDir, nil
}

// DirPos and SetDirPos track a directory handle's read cursor, so repeated
// directory-entry reads through the same handle resume where the last one
// left off, the way a file descriptor's own offset would for a regular
// file. They have no effect on regular-file handles beyond holding a
// number nobody reads.
func (h *Handle) DirPos() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirPos
}

func (h *Handle) SetDirPos(pos int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirPos = pos
}

// DenyWrite disables writes through this and every other handle sharing
// the inode, used while it's being executed as swappable program image in
// the originating teaching OS; kept here for fidelity even though this
// file system has no loader of its own.
func (h *Handle) DenyWrite() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.denyCnt++
	if h.denyCnt > h.openCnt {
		panic("inode: deny_write_cnt exceeds open_cnt")
	}
}

// AllowWrite reverses one DenyWrite call.
func (h *Handle) AllowWrite() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.denyCnt <= 0 {
		panic("inode: allow_write with no matching deny_write")
	}
	h.denyCnt--
}

// Remove marks the inode for deletion once its last handle closes.
func (h *Handle) Remove() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = true
}

// Close decrements h's open count. Once it reaches zero, h is dropped from
// the table, and if it was marked removed, its sectors (including the
// inode's own) are returned to the allocator.
func (h *Handle) Close() error {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()

	h.mu.Lock()
	h.openCnt--
	last := h.openCnt == 0
	removed := h.removed
	h.mu.Unlock()

	if !last {
		return nil
	}
	delete(h.table.open, h.sector)

	if !removed {
		return nil
	}
	d, err := h.table.readDisk(h.sector)
	if err != nil {
		return err
	}
	dealloc(h.table.bc, h.table.alloc, d)
	releaseSector(h.table.bc, h.table.alloc, h.sector)
	return nil
}

// ReadAt copies up to len(buf) bytes starting at offset into buf, stopping
// at end of file. It returns the number of bytes actually read.
func (h *Handle) ReadAt(buf []byte, offset int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.table.readDisk(h.sector)
	if err != nil {
		return 0, err
	}

	read := 0
	for read < len(buf) {
		pos := offset + int64(read)
		if pos >= d.Length {
			break
		}

		sector, err := byteToSector(h.table.bc, d, pos)
		if err != nil {
			break
		}

		sectorOfs := int(pos % blockdev.SectorSize)
		left := int(d.Length - pos)
		chunk := blockdev.SectorSize - sectorOfs
		if chunk > left {
			chunk = left
		}
		if chunk > len(buf)-read {
			chunk = len(buf) - read
		}
		if chunk <= 0 {
			break
		}

		if err := h.table.bc.ReadAt(sector, buf[read:read+chunk], sectorOfs); err != nil {
			return read, err
		}
		read += chunk
	}
	return read, nil
}

// WriteAt copies buf into the file starting at offset, extending the file
// (allocating new sectors) if the write runs past the current length. It
// returns the number of bytes actually written, which is short of
// len(buf) only if writes are currently denied or the file hit
// MaxFileSize or the device ran out of space.
func (h *Handle) WriteAt(buf []byte, offset int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.denyCnt > 0 {
		return 0, nil
	}

	d, err := h.table.readDisk(h.sector)
	if err != nil {
		return 0, err
	}

	written := 0
	for written < len(buf) {
		pos := offset + int64(written)

		if pos >= d.Length {
			needed := offset + int64(len(buf))
			if needed > MaxFileSize {
				needed = MaxFileSize
			}
			if needed <= d.Length {
				break
			}

			oldCount := SectorsForLength(d.Length)
			newCount := SectorsForLength(needed)
			if err := extend(h.table.bc, h.table.alloc, d, oldCount, newCount); err != nil {
				if oldCount == 0 {
					return written, err
				}
				// A true extension (oldCount != 0) leaves whatever sectors
				// were linked before the failure in place; stop here
				// rather than roll the file back.
				break
			}

			d.Length = needed
			if err := h.table.writeDisk(d); err != nil {
				return written, err
			}
		}

		sector, err := byteToSector(h.table.bc, d, pos)
		if err != nil {
			return written, err
		}

		sectorOfs := int(pos % blockdev.SectorSize)
		chunk := blockdev.SectorSize - sectorOfs
		if chunk > len(buf)-written {
			chunk = len(buf) - written
		}

		if err := h.table.bc.WriteAt(sector, buf[written:written+chunk], sectorOfs); err != nil {
			return written, err
		}
		written += chunk
	}
	return written, nil
}
