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

package blockdev_test

import (
	"path/filepath"
	"testing"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(4)

	in := make([]byte, blockdev.SectorSize)
	for i := range in {
		in[i] = byte(i)
	}

	require.NoError(t, dev.WriteSector(2, in))

	out := make([]byte, blockdev.SectorSize)
	require.NoError(t, dev.ReadSector(2, out))
	assert.Equal(t, in, out)

	// Other sectors remain untouched (zeroed).
	zero := make([]byte, blockdev.SectorSize)
	require.NoError(t, dev.ReadSector(0, out))
	assert.Equal(t, zero, out)
}

func TestMemDeviceOutOfRange(t *testing.T) {
	dev := blockdev.NewMemDevice(1)
	buf := make([]byte, blockdev.SectorSize)

	assert.Error(t, dev.ReadSector(1, buf))
	assert.Error(t, dev.WriteSector(1, buf))
}

func TestMemDeviceRejectsShortBuffer(t *testing.T) {
	dev := blockdev.NewMemDevice(1)
	assert.Error(t, dev.ReadSector(0, make([]byte, 10)))
	assert.Error(t, dev.WriteSector(0, make([]byte, 10)))
}

func TestFileBackedDeviceReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")

	dev, err := blockdev.OpenFileBackedDevice(path, 8)
	require.NoError(t, err)
	defer dev.Close()

	in := make([]byte, blockdev.SectorSize)
	for i := range in {
		in[i] = byte(i * 3)
	}
	require.NoError(t, dev.WriteSector(5, in))

	out := make([]byte, blockdev.SectorSize)
	require.NoError(t, dev.ReadSector(5, out))
	assert.Equal(t, in, out)

	// Reopening the same backing file observes the previously written data.
	dev2, err := blockdev.OpenFileBackedDevice(path, 8)
	require.NoError(t, err)
	defer dev2.Close()

	out2 := make([]byte, blockdev.SectorSize)
	require.NoError(t, dev2.ReadSector(5, out2))
	assert.Equal(t, in, out2)
}
