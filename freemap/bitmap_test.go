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

package freemap_test

import (
	"testing"

	"github.com/oslab-fs/blockfs/blockdev"
	"github.com/oslab-fs/blockfs/freemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAndRelease(t *testing.T) {
	a := freemap.NewBitmapAllocator(10)
	assert.Equal(t, 10, a.FreeCount())

	s, ok := a.Allocate(4)
	require.True(t, ok)
	assert.Equal(t, blockdev.Sector(0), s)
	assert.Equal(t, 6, a.FreeCount())

	a.Release(s, 4)
	assert.Equal(t, 10, a.FreeCount())
}

func TestAllocateExhaustion(t *testing.T) {
	a := freemap.NewBitmapAllocator(4)

	_, ok := a.Allocate(4)
	require.True(t, ok)

	_, ok = a.Allocate(1)
	assert.False(t, ok, "allocator should report exhaustion rather than panic")
}

func TestAllocateFindsRunAfterFragmentation(t *testing.T) {
	a := freemap.NewBitmapAllocator(6)

	s1, ok := a.Allocate(2) // [0,2)
	require.True(t, ok)
	_, ok = a.Allocate(2) // [2,4)
	require.True(t, ok)

	a.Release(s1, 2) // free [0,2) again

	s3, ok := a.Allocate(2)
	require.True(t, ok)
	assert.Equal(t, blockdev.Sector(0), s3, "should reuse the freed run rather than extend")
}

func TestDoubleReleasePanics(t *testing.T) {
	a := freemap.NewBitmapAllocator(4)
	assert.Panics(t, func() {
		a.Release(0, 1)
	})
}

func TestMarkAllocated(t *testing.T) {
	a := freemap.NewBitmapAllocator(4)
	a.MarkAllocated(0, 1)
	assert.Equal(t, 3, a.FreeCount())

	_, ok := a.Allocate(4)
	assert.False(t, ok)
}
