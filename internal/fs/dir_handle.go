// Copyright 2026 The zffmount Authors
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

package fs

import (
	"sync"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// dirHandle is the per-open-directory state OpenDir allocates and ReadDir
// serves from. The entry list is computed once, at OpenDir time, exactly
// like gcsfuse's dirHandle caches a listing across ReadDir calls so that a
// rewinddir-then-readdir sequence sees a consistent snapshot (spec §4.4
// "readdir" construction rules; §9's reader-cursor notes don't apply here
// since the listing is already materialized).
type dirHandle struct {
	Mu sync.Mutex

	// entries is fixed at OpenDir time. GUARDED_BY(Mu) only by convention;
	// the single-threaded dispatcher never mutates it after construction.
	entries []fuseops.Dirent
}

func newDirHandle(entries []fuseops.Dirent) *dirHandle {
	return &dirHandle{entries: entries}
}

// ReadDir serves op by skipping the first op.Offset entries and writing as
// many of the rest as fit in op.Size bytes, stopping at the kernel's first
// buffer-full signal (spec §4.4).
func (dh *dirHandle) ReadDir(op *fuseops.ReadDirOp) error {
	dh.Mu.Lock()
	defer dh.Mu.Unlock()

	if int(op.Offset) > len(dh.entries) {
		op.Data = nil
		return nil
	}

	buf := make([]byte, op.Size)
	n := 0
	for _, e := range dh.entries[op.Offset:] {
		written := fuseutil.WriteDirent(buf[n:], e)
		if written == 0 {
			break
		}
		n += written
	}
	op.Data = buf[:n]
	return nil
}
