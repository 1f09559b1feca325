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

package blockdev

import "sync"

// MemDevice is a Device backed entirely by heap memory. It is primarily
// useful for tests, where persistence across process restarts does not
// matter.
type MemDevice struct {
	mu      sync.Mutex
	sectors [][SectorSize]byte
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice returns a MemDevice with the given sector count, zeroed.
func NewMemDevice(sectorCount Sector) *MemDevice {
	return &MemDevice{
		sectors: make([][SectorSize]byte, sectorCount),
	}
}

func (d *MemDevice) SectorCount() Sector {
	return Sector(len(d.sectors))
}

func (d *MemDevice) ReadSector(sector Sector, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkBounds(sector, Sector(len(d.sectors))); err != nil {
		return err
	}

	copy(buf, d.sectors[sector][:])
	return nil
}

func (d *MemDevice) WriteSector(sector Sector, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkBounds(sector, Sector(len(d.sectors))); err != nil {
		return err
	}

	copy(d.sectors[sector][:], buf)
	return nil
}
