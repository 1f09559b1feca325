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

// Package freemap provides the free-sector bitmap collaborator: allocation
// and release of runs of sectors, with a thread-safe concrete
// implementation so the rest of the stack can be exercised end to end
// without a mock.
package freemap

import "github.com/oslab-fs/blockfs/blockdev"

// Allocator reserves and releases sectors. Implementations must be safe for
// concurrent use.
type Allocator interface {
	// Allocate reserves n consecutive free sectors and returns the first
	// one. ok is false if there is no run of n free sectors available, in
	// which case no sectors are reserved.
	Allocate(n int) (start blockdev.Sector, ok bool)

	// Release returns n consecutive sectors starting at start to the free
	// pool. Releasing an already-free sector is a bug in the caller and may
	// panic.
	Release(start blockdev.Sector, n int)

	// FreeCount returns the number of currently-unallocated sectors.
	FreeCount() int
}
