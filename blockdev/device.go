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

// Package blockdev provides the sector-addressable block device that the
// buffer cache and inode layer sit on top of. Sectors are fixed at
// SectorSize bytes; devices never return a partial read or write.
package blockdev

import "fmt"

// SectorSize is the fixed size, in bytes, of every sector on the device.
const SectorSize = 512

// Sector identifies a fixed-size unit on the device.
type Sector uint32

// Device is the raw block device collaborator: synchronous, sector-granular
// reads and writes with no partial I/O.
type Device interface {
	// ReadSector reads exactly SectorSize bytes from the given sector into
	// buf, which must have length SectorSize.
	ReadSector(sector Sector, buf []byte) error

	// WriteSector writes exactly SectorSize bytes from buf to the given
	// sector. buf must have length SectorSize.
	WriteSector(sector Sector, buf []byte) error

	// SectorCount returns the total number of addressable sectors.
	SectorCount() Sector
}

// checkBuf validates that buf is exactly one sector long.
func checkBuf(buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("blockdev: buffer has length %d, want %d", len(buf), SectorSize)
	}
	return nil
}

// checkBounds validates that sector is addressable on a device of the given
// capacity.
func checkBounds(sector, count Sector) error {
	if sector >= count {
		return fmt.Errorf("blockdev: sector %d out of range [0, %d)", sector, count)
	}
	return nil
}
