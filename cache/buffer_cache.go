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

// Package cache implements a fixed-size write-back buffer cache sitting
// between the inode layer and a blockdev.Device. Slots are reclaimed with a
// clock (second-chance) policy, and dirty slots are flushed to the device
// either on eviction or by a periodic write-behind loop.
package cache

import (
	"container/list"
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/oslab-fs/blockfs/blockdev"
)

// NumSlots is the number of buffer cache slots, matching the 64-sector
// cache this package's algorithms were grounded on.
const NumSlots = 64

// BufferCache is a fixed-size, write-back cache of device sectors. It is
// safe for concurrent use by multiple goroutines.
type BufferCache struct {
	device blockdev.Device

	// mu guards the cache-global bookkeeping below: the resident-set list
	// and the clock hand. It does not need to be held while copying bytes
	// into or out of an already-resident entry's buffer; Entry.pin's own
	// lock covers that. It mirrors fs/fs.go's syncutil.InvariantMutex,
	// which runs checkInvariants on every Lock/Unlock.
	mu syncutil.InvariantMutex

	slots  []*Entry
	bySect map[blockdev.Sector]*Entry
	hand   *list.Element // next candidate the clock sweep will examine
	reside *list.List    // resident-set list; front = oldest admitted
}

// New returns a BufferCache with NumSlots empty slots over device.
func New(device blockdev.Device) *BufferCache {
	c := &BufferCache{
		device: device,
		slots:  make([]*Entry, NumSlots),
		bySect: make(map[blockdev.Sector]*Entry, NumSlots),
		reside: list.New(),
	}
	for i := range c.slots {
		c.slots[i] = newEntry()
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

func (c *BufferCache) checkInvariants() {
	if len(c.bySect) != c.reside.Len() {
		panic(fmt.Sprintf("cache: bySect has %d entries but resident list has %d", len(c.bySect), c.reside.Len()))
	}
}

// get returns the entry backing sector, loading it from device on a miss.
// Callers must hold c.mu for the duration of the returned entry's use of
// cache-global state (done implicitly: get is only called with c.mu held).
func (c *BufferCache) get(sector blockdev.Sector) (*Entry, error) {
	if e, ok := c.bySect[sector]; ok {
		return e, nil
	}

	e, err := c.findFreeOrEvict()
	if err != nil {
		return nil, err
	}
	if err := c.load(e, sector); err != nil {
		return nil, err
	}
	return e, nil
}

// findFreeOrEvict returns a slot ready to be repurposed: either one that was
// never used, or the result of flushing and releasing a clock victim.
func (c *BufferCache) findFreeOrEvict() (*Entry, error) {
	for _, e := range c.slots {
		if !e.inUse {
			return e, nil
		}
	}
	return c.evictVictim()
}

// evictVictim runs the clock (second-chance) sweep over the resident set.
// A pinned candidate (an in-flight reader or writer) is never selected and
// is passed over without consuming its second chance; of the unpinned
// candidates, each with its access bit set is given a second chance and the
// bit cleared, and the first found with the bit already clear is evicted.
func (c *BufferCache) evictVictim() (*Entry, error) {
	if c.hand == nil {
		c.hand = c.reside.Front()
	}

	for {
		elem := c.hand
		e := elem.Value.(*Entry)

		c.hand = c.hand.Next()
		if c.hand == nil {
			c.hand = c.reside.Front()
		}

		e.mu.Lock()
		if e.accessingCount > 0 {
			e.mu.Unlock()
			continue
		}
		accessed := e.access
		e.access = false
		e.mu.Unlock()

		if accessed {
			continue
		}

		c.reside.Remove(elem)
		delete(c.bySect, e.sector)

		err := c.flushAndRelease(e)
		e.reset()
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// flushAndRelease waits out any in-flight accessors, writes the entry back
// to device if dirty, then marks it free. e must already be detached from
// the cache-global bookkeeping. A flush failure is surfaced to the caller
// that triggered the eviction rather than swallowed; a genuine device I/O
// failure never reaches here as an error in the first place, since
// blockdev panics on one instead of returning it.
func (c *BufferCache) flushAndRelease(e *Entry) error {
	e.beginEvict()
	defer e.finishEvict()

	if e.dirty && e.data != nil {
		if err := c.device.WriteSector(e.sector, e.data); err != nil {
			return fmt.Errorf("cache: flush sector %d during eviction: %w", e.sector, err)
		}
	}
	return nil
}

// load reads sector from device into e and admits e to the resident set.
func (c *BufferCache) load(e *Entry, sector blockdev.Sector) error {
	buf := make([]byte, blockdev.SectorSize)
	if err := c.device.ReadSector(sector, buf); err != nil {
		return err
	}

	e.mu.Lock()
	e.sector = sector
	e.data = buf
	e.inUse = true
	e.access = true
	e.dirty = false
	e.mu.Unlock()

	e.listElem = c.reside.PushBack(e)
	c.bySect[sector] = e
	return nil
}

// admitZeroed admits a newly-allocated sector, initialized to zero, without
// reading it from device. Used when the inode index extends a file onto a
// sector that has never been written.
func (c *BufferCache) admitZeroed(sector blockdev.Sector) (*Entry, error) {
	e, err := c.findFreeOrEvict()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.sector = sector
	e.data = make([]byte, blockdev.SectorSize)
	e.inUse = true
	e.access = true
	e.dirty = true
	e.mu.Unlock()

	e.listElem = c.reside.PushBack(e)
	c.bySect[sector] = e
	return e, nil
}

// ReadAt copies bytes [offset, offset+len(dst)) of sector into dst. The
// range must not cross a sector boundary.
func (c *BufferCache) ReadAt(sector blockdev.Sector, dst []byte, offset int) error {
	if offset < 0 || offset+len(dst) > blockdev.SectorSize {
		return fmt.Errorf("cache: read range [%d,%d) out of bounds for sector", offset, offset+len(dst))
	}

	c.mu.Lock()
	e, err := c.get(sector)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	e.readAt(dst, offset)
	return nil
}

// WriteAt copies src into sector at offset, extending the resident copy in
// place. The range must not cross a sector boundary.
func (c *BufferCache) WriteAt(sector blockdev.Sector, src []byte, offset int) error {
	if offset < 0 || offset+len(src) > blockdev.SectorSize {
		return fmt.Errorf("cache: write range [%d,%d) out of bounds for sector", offset, offset+len(src))
	}

	c.mu.Lock()
	e, err := c.get(sector)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	e.writeAt(src, offset)
	return nil
}

// ZeroFill admits sector as all-zero without a device read, for sectors a
// file extension allocates but has not yet written. Marks the slot dirty so
// the zero content is eventually flushed.
func (c *BufferCache) ZeroFill(sector blockdev.Sector) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.bySect[sector]; ok {
		return nil
	}
	_, err := c.admitZeroed(sector)
	return err
}

// FlushAll writes every dirty resident slot back to the device, without
// evicting any of them. Used on unmount and by the write-behind loop.
func (c *BufferCache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, e := range c.slots {
		if !e.inUse || !e.isDirty() {
			continue
		}

		e.beginEvict()
		err := c.device.WriteSector(e.sector, e.data)
		if err == nil {
			e.mu.Lock()
			e.dirty = false
			e.mu.Unlock()
		} else if firstErr == nil {
			firstErr = err
		}
		e.finishEvict()
	}
	return firstErr
}

// Invalidate drops sector from the cache without writing it back,
// regardless of its dirty bit. Used when a sector is freed by the
// allocator so a stale cached copy can never be reused for a different
// purpose.
func (c *BufferCache) Invalidate(sector blockdev.Sector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.bySect[sector]
	if !ok {
		return
	}

	e.beginEvict()
	c.reside.Remove(e.listElem)
	delete(c.bySect, sector)
	e.reset()
	e.finishEvict()
}
