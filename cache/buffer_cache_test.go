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

package cache_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/cache"
	"github.com/oslab-fs/blockfs/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(8)
	c := cache.New(dev)

	want := bytes.Repeat([]byte{0x42}, blockdev.SectorSize)
	require.NoError(t, c.WriteAt(3, want, 0))

	got := make([]byte, blockdev.SectorSize)
	require.NoError(t, c.ReadAt(3, got, 0))
	assert.Equal(t, want, got)
}

func TestWriteIsBufferedUntilFlush(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	c := cache.New(dev)

	payload := bytes.Repeat([]byte{0x7}, 16)
	require.NoError(t, c.WriteAt(1, payload, 0))

	// The device itself should still read as zero: the write lives only in
	// the cache until a flush.
	raw := make([]byte, blockdev.SectorSize)
	require.NoError(t, dev.ReadSector(1, raw))
	assert.True(t, bytes.Equal(raw, make([]byte, blockdev.SectorSize)))

	require.NoError(t, c.FlushAll())
	require.NoError(t, dev.ReadSector(1, raw))
	assert.Equal(t, payload, raw[:len(payload)])
}

// TestEvictionUnderPressure writes more distinct sectors than there are
// slots, so at least one slot is evicted along the way, and checks that no
// write is lost whether its sector was evicted or is still resident.
func TestEvictionUnderPressure(t *testing.T) {
	total := cache.NumSlots + 1
	dev := blockdev.NewMemDevice(blockdev.Sector(total))
	c := cache.New(dev)

	for s := 0; s < total; s++ {
		buf := make([]byte, blockdev.SectorSize)
		buf[0] = byte(s)
		require.NoError(t, c.WriteAt(blockdev.Sector(s), buf, 0))
	}

	// Every write went through the cache, so flushing all of them back
	// must succeed and every sector on the underlying device must reflect
	// its last write, evicted or not.
	require.NoError(t, c.FlushAll())
	for s := 0; s < total; s++ {
		got := make([]byte, blockdev.SectorSize)
		require.NoError(t, dev.ReadSector(blockdev.Sector(s), got))
		assert.Equal(t, byte(s), got[0], "sector %d lost its write across eviction", s)
	}
}

func TestInvalidateDropsWithoutFlush(t *testing.T) {
	dev := blockdev.NewMemDevice(2)
	c := cache.New(dev)

	require.NoError(t, c.WriteAt(0, []byte{1, 2, 3}, 0))
	c.Invalidate(0)
	require.NoError(t, c.FlushAll())

	got := make([]byte, 3)
	require.NoError(t, dev.ReadSector(0, got))
	assert.Equal(t, []byte{0, 0, 0}, got, "invalidated sector must not be written back")
}

func TestRunWriteBehindFlushesPeriodically(t *testing.T) {
	dev := blockdev.NewMemDevice(1)
	c := cache.New(dev)
	require.NoError(t, c.WriteAt(0, []byte{9}, 0))

	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- cache.RunWriteBehind(ctx, c, clk, time.Second) }()

	// Step the clock on every poll: the loop may register its wakeup after
	// an earlier step, and a single step would then never fire it.
	require.Eventually(t, func() bool {
		clk.AdvanceTime(time.Second)
		got := make([]byte, 1)
		_ = dev.ReadSector(0, got)
		return got[0] == 9
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}
