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

package cache

import (
	"container/list"
	"sync"

	"github.com/oslab-fs/blockfs/blockdev"
)

// Entry is one slot of the buffer cache, the Go re-expression of Pintos's
// buffer_head. Its evict_lock/accessed/evicted condition-variable pair is
// re-expressed here as a single condition variable guarding a per-slot
// reader count, with a flusher waiting for the count to reach zero.
type Entry struct {
	mu   sync.Mutex
	cond *sync.Cond

	sector blockdev.Sector
	data   []byte

	inUse    bool // slot currently mirrors a valid sector copy
	dirty    bool // local copy differs from disk
	access   bool // clock "recently touched" bit
	evicting bool // a flush+release is in progress

	accessingCount int // number of in-flight readers/writers

	// listElem is this entry's position in the cache's resident-set list,
	// maintained by BufferCache so eviction has O(1) removal by reference.
	// Nil when the slot is not resident.
	listElem *list.Element
}

func newEntry() *Entry {
	e := &Entry{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// pin blocks until no eviction is in flight, then marks the entry as being
// accessed so a concurrent flush will wait for it to finish. The returned
// func must be called exactly once to unpin.
func (e *Entry) pin() func() {
	e.mu.Lock()
	for e.evicting {
		e.cond.Wait()
	}
	e.accessingCount++
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		e.accessingCount--
		e.access = true
		e.cond.Broadcast()
		e.mu.Unlock()
	}
}

// readAt copies data[offset:offset+len(dst)] into dst.
func (e *Entry) readAt(dst []byte, offset int) {
	unpin := e.pin()
	defer unpin()

	copy(dst, e.data[offset:offset+len(dst)])
}

// writeAt copies src into data[offset:offset+len(src)] and marks the entry
// dirty.
func (e *Entry) writeAt(src []byte, offset int) {
	unpin := e.pin()
	defer unpin()

	copy(e.data[offset:offset+len(src)], src)

	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// beginEvict marks the entry as evicting. The cache's clock sweep never
// selects a slot with accessingCount > 0, so by the time this is called the
// count is normally already zero; the wait below only covers the narrow
// race where a pin lands between the sweep's check and this call. Must be
// paired with finishEvict.
func (e *Entry) beginEvict() {
	e.mu.Lock()
	e.evicting = true
	for e.accessingCount > 0 {
		e.cond.Wait()
	}
	e.mu.Unlock()
}

// finishEvict clears the evicting flag and wakes anyone waiting to pin.
func (e *Entry) finishEvict() {
	e.mu.Lock()
	e.evicting = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

// isDirty reports the entry's dirty bit under its own lock.
func (e *Entry) isDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// reset clears a slot back to its pristine, non-resident state. Called only
// while the entry is not in the resident list and no one can be pinning it.
func (e *Entry) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sector = 0
	e.data = nil
	e.inUse = false
	e.dirty = false
	e.access = false
	e.evicting = false
	e.accessingCount = 0
	e.listElem = nil
}
