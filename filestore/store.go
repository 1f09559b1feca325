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

// Package filestore assembles the block device, buffer cache, free-sector
// allocator and inode layer into a single mountable file store, the way
// fs.NewServer wires gcsfuse's bucket, lease pool and kernel-facing inode
// table into one fuseutil.FileSystem.
package filestore

import (
	"context"
	"fmt"
	"time"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/cache"
	"github.com/oslab-fs/blockfs/clock"
	"github.com/oslab-fs/blockfs/freemap"
	"github.com/oslab-fs/blockfs/inode"
	"golang.org/x/sync/errgroup"
)

// freeMapSector is reserved for the allocator's own bookkeeping and is
// never handed out as a data sector.
const freeMapSector blockdev.Sector = 0

// Config describes how to mount a Store.
type Config struct {
	// Device is the backing block device. Required.
	Device blockdev.Device

	// TotalSectors is the number of sectors the allocator should track;
	// normally Device.SectorCount().
	TotalSectors blockdev.Sector

	// FlushInterval is the write-behind period. Zero selects
	// cache.DefaultFlushInterval.
	FlushInterval time.Duration

	// Clock lets tests substitute a simulated clock for the write-behind
	// loop. Nil selects clock.RealClock{}.
	Clock clock.Clock
}

// Store is a mounted file store: a buffer cache and inode handle table
// sitting atop a block device, with a write-behind goroutine keeping dirty
// sectors from drifting too far from disk.
type Store struct {
	bc    *cache.BufferCache
	alloc freemap.Allocator
	table *inode.Table

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Mount brings up a Store over cfg.Device, reserving sector 0 for the free
// map and starting the write-behind loop.
func Mount(cfg Config) (*Store, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("filestore: Config.Device is required")
	}
	if cfg.TotalSectors == 0 {
		cfg.TotalSectors = cfg.Device.SectorCount()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = cache.DefaultFlushInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}

	bc := cache.New(cfg.Device)
	alloc := freemap.NewBitmapAllocator(cfg.TotalSectors)
	alloc.MarkAllocated(freeMapSector, 1)
	table := inode.NewTable(bc, alloc)

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := cache.RunWriteBehind(groupCtx, bc, cfg.Clock, cfg.FlushInterval); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	return &Store{bc: bc, alloc: alloc, table: table, cancel: cancel, group: group}, nil
}

// Unmount stops the write-behind loop and flushes every dirty sector.
func (s *Store) Unmount() error {
	s.cancel()
	err := s.group.Wait()

	if flushErr := s.bc.FlushAll(); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}

// AllocateSectors reserves n consecutive sectors for a new inode or data
// extent, bypassing the inode layer's own extension path, e.g. to pick the
// sector for a brand new inode before CreateFile or CreateDir.
func (s *Store) AllocateSectors(n int) (blockdev.Sector, bool) {
	return s.alloc.Allocate(n)
}

// FreeSectors returns how many sectors remain unallocated.
func (s *Store) FreeSectors() int {
	return s.alloc.FreeCount()
}

// CreateFile initializes a new regular-file inode at sector with the given
// initial length.
func (s *Store) CreateFile(sector blockdev.Sector, length int64) error {
	return s.table.Create(sector, length, false)
}

// CreateDir initializes a new empty directory inode at sector.
func (s *Store) CreateDir(sector blockdev.Sector) error {
	return s.table.Create(sector, 0, true)
}

// Open returns a handle onto the inode at sector.
func (s *Store) Open(sector blockdev.Sector) (*inode.Handle, error) {
	return s.table.Open(sector)
}
