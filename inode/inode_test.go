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

package inode_test

import (
	"bytes"
	"testing"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/cache"
	"github.com/oslab-fs/blockfs/freemap"
	"github.com/oslab-fs/blockfs/inode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFixture wires a device, cache and allocator large enough for the
// given sector count, reserving sector 0 the way the free map itself
// would.
func newFixture(t *testing.T, sectors blockdev.Sector) (*cache.BufferCache, freemap.Allocator, *inode.Table) {
	t.Helper()
	dev := blockdev.NewMemDevice(sectors)
	bc := cache.New(dev)
	alloc := freemap.NewBitmapAllocator(sectors)
	alloc.MarkAllocated(0, 1)
	return bc, alloc, inode.NewTable(bc, alloc)
}

// TestHelloWorld mirrors the smallest end-to-end scenario: create a file,
// write a handful of bytes, read them back.
func TestHelloWorld(t *testing.T) {
	bc, alloc, table := newFixture(t, 16)

	sector, ok := alloc.Allocate(1)
	require.True(t, ok)
	require.NoError(t, table.Create(sector, 0, false))

	h, err := table.Open(sector)
	require.NoError(t, err)

	n, err := h.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got := make([]byte, 5)
	n, err = h.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(got))

	length, err := h.Length()
	require.NoError(t, err)
	assert.EqualValues(t, 5, length)

	require.NoError(t, h.Close())
	_ = bc
}

// TestExtendPastIndirectBoundary writes far enough to force allocation
// through the indirect block (past DirectEntries sectors).
func TestExtendPastIndirectBoundary(t *testing.T) {
	sectorCount := blockdev.Sector(inode.DirectEntries + inode.IndirectEntries + 4)
	_, alloc, table := newFixture(t, sectorCount)

	sector, ok := alloc.Allocate(1)
	require.True(t, ok)
	require.NoError(t, table.Create(sector, 0, false))

	h, err := table.Open(sector)
	require.NoError(t, err)
	defer h.Close()

	// 200 sectors worth of data crosses from direct into the indirect
	// region (DirectEntries == 122).
	payload := bytes.Repeat([]byte{0xAB}, 200*blockdev.SectorSize)
	n, err := h.WriteAt(payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	got := make([]byte, len(payload))
	n, err = h.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, got))
}

// TestExtendPastDoubleIndirectBoundary forces allocation into the
// double-indirect tree, writing a handful of bytes at the boundary sector
// rather than the whole range (an 8 MiB write would make tests slow, not
// more correct).
func TestExtendPastDoubleIndirectBoundary(t *testing.T) {
	boundarySector := inode.DirectEntries + inode.IndirectEntries + 1
	sectorCount := blockdev.Sector(boundarySector + 8)

	_, alloc, table := newFixture(t, sectorCount)

	sector, ok := alloc.Allocate(1)
	require.True(t, ok)
	require.NoError(t, table.Create(sector, 0, false))

	h, err := table.Open(sector)
	require.NoError(t, err)
	defer h.Close()

	offset := int64(boundarySector) * blockdev.SectorSize
	want := []byte("double-indirect")
	n, err := h.WriteAt(want, offset)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	got := make([]byte, len(want))
	n, err = h.ReadAt(got, offset)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, got)
}

// TestRemoveWhileOpenDefersReclamation checks that removing an inode while
// a second handle is still open doesn't reclaim its sectors until the
// last handle closes.
func TestRemoveWhileOpenDefersReclamation(t *testing.T) {
	_, alloc, table := newFixture(t, 8)

	sector, ok := alloc.Allocate(1)
	require.True(t, ok)
	require.NoError(t, table.Create(sector, blockdev.SectorSize, false))

	h1, err := table.Open(sector)
	require.NoError(t, err)
	h2, err := table.Open(sector)
	require.NoError(t, err)

	freeBefore := alloc.FreeCount()

	h1.Remove()
	require.NoError(t, h1.Close())
	assert.Equal(t, freeBefore, alloc.FreeCount(), "sectors must not be reclaimed while a handle is still open")

	require.NoError(t, h2.Close())
	assert.Greater(t, alloc.FreeCount(), freeBefore, "sectors must be reclaimed once the last handle closes")
}

// TestDenyWriteBlocksWrites exercises the deny/allow-write pair.
func TestDenyWriteBlocksWrites(t *testing.T) {
	_, alloc, table := newFixture(t, 4)

	sector, ok := alloc.Allocate(1)
	require.True(t, ok)
	require.NoError(t, table.Create(sector, 0, false))

	h, err := table.Open(sector)
	require.NoError(t, err)
	defer h.Close()

	h.DenyWrite()
	n, err := h.WriteAt([]byte("nope"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h.AllowWrite()
	n, err = h.WriteAt([]byte("now ok"), 0)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestOpenSameSectorSharesHandle(t *testing.T) {
	_, alloc, table := newFixture(t, 4)

	sector, ok := alloc.Allocate(1)
	require.True(t, ok)
	require.NoError(t, table.Create(sector, 0, false))

	h1, err := table.Open(sector)
	require.NoError(t, err)
	h2, err := table.Open(sector)
	require.NoError(t, err)

	assert.Same(t, h1, h2, "opening the same sector twice should share one handle")

	require.NoError(t, h1.Close())
	require.NoError(t, h2.Close())
}
