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
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/zff-team/zffmount/internal/zffio"
)

// Permission bits are not recovered from the container in this revision
// (spec §4.3, §9 "Permission bits"): directories, symlinks, and logical
// files all get 0o755; a physical object's data file gets 0o644.
const (
	dirPerm         os.FileMode = 0o755
	logicalFilePerm os.FileMode = 0o755
	physicalFilePerm os.FileMode = 0o644
)

func epoch() time.Time {
	return time.Unix(0, 0)
}

func pickTime(primary, fallback *int64) time.Time {
	switch {
	case primary != nil:
		return time.Unix(*primary, 0)
	case fallback != nil:
		return time.Unix(*fallback, 0)
	default:
		return epoch()
	}
}

// fileTimes resolves atime/mtime/ctime/crtime per spec §4.3: read from the
// file's own extended metadata; if absent, fall back to the file header's;
// if still absent, substitute the unix epoch. crtime is seeded from btime.
func fileTimes(meta, header zffio.ExtendedMetadata) (atime, mtime, ctime, crtime time.Time) {
	atime = pickTime(meta.Atime, header.Atime)
	mtime = pickTime(meta.Mtime, header.Mtime)
	ctime = pickTime(meta.Ctime, header.Ctime)
	crtime = pickTime(meta.Btime, header.Btime)
	return
}

// attrsForObjectRoot builds the synthetic directory attributes for an
// object-root inode (spec §4.2 step 4a, §4.3 "For object-root directories").
func attrsForObjectRoot(acquisitionStart, acquisitionEnd uint64, uid, gid uint32) fuseops.InodeAttributes {
	t := time.Unix(int64(acquisitionEnd), 0)
	return fuseops.InodeAttributes{
		Nlink:  2,
		Mode:   os.ModeDir | dirPerm,
		Atime:  t,
		Mtime:  t,
		Ctime:  t,
		Crtime: time.Unix(int64(acquisitionStart), 0),
		Uid:    uid,
		Gid:    gid,
	}
}

// attrsForPhysicalFile builds the attributes of a Physical object's single
// data file (spec §4.2 step 4b).
func attrsForPhysicalFile(size, acquisitionStart, acquisitionEnd uint64, uid, gid uint32) fuseops.InodeAttributes {
	t := time.Unix(int64(acquisitionEnd), 0)
	return fuseops.InodeAttributes{
		Size:   size,
		Nlink:  1,
		Mode:   physicalFilePerm,
		Atime:  t,
		Mtime:  t,
		Ctime:  t,
		Crtime: time.Unix(int64(acquisitionStart), 0),
		Uid:    uid,
		Gid:    gid,
	}
}

// typeModeFor derives the os.FileMode type bits for a logical file's kind,
// resolving a special file's sub-kind by inspecting its payload's last byte
// (spec §4.3). For FileKindHardlink the caller must already have resolved to
// the target's kind; this function never recurses.
func typeModeFor(fileKind zffio.FileKind, specialPayload []byte) (os.FileMode, error) {
	switch fileKind {
	case zffio.FileKindRegular:
		return 0, nil
	case zffio.FileKindDirectory:
		return os.ModeDir, nil
	case zffio.FileKindSymlink:
		return os.ModeSymlink, nil
	case zffio.FileKindSpecial:
		if len(specialPayload) == 0 {
			return 0, zffio.ErrUnknownSpecialKind
		}
		switch zffio.SpecialKind(specialPayload[len(specialPayload)-1]) {
		case zffio.SpecialKindFifo:
			return os.ModeNamedPipe, nil
		case zffio.SpecialKindChar:
			return os.ModeCharDevice | os.ModeDevice, nil
		case zffio.SpecialKindBlock:
			return os.ModeDevice, nil
		default:
			return 0, zffio.ErrUnknownSpecialKind
		}
	default:
		return 0, zffio.ErrUnknownSpecialKind
	}
}

// attrsForLogicalFile builds a logical file's attributes from its resolved
// (possibly hardlink-target) metadata and the fallback header, per §4.3.
func attrsForLogicalFile(size uint64, typeMode os.FileMode, meta, header zffio.ExtendedMetadata, uid, gid uint32) fuseops.InodeAttributes {
	atime, mtime, ctime, crtime := fileTimes(meta, header)
	return fuseops.InodeAttributes{
		Size:   size,
		Nlink:  1,
		Mode:   typeMode | logicalFilePerm,
		Atime:  atime,
		Mtime:  mtime,
		Ctime:  ctime,
		Crtime: crtime,
		Uid:    uid,
		Gid:    gid,
	}
}

// direntTypeFor maps a resolved file kind to the kernel dirent type used in
// readdir responses (spec §4.2 step 4c "emitting a child entry").
func direntTypeFor(typeMode os.FileMode) fuseops.DirentType {
	switch {
	case typeMode&os.ModeDir != 0:
		return fuseops.DT_Directory
	case typeMode&os.ModeSymlink != 0:
		return fuseops.DT_Link
	case typeMode&os.ModeNamedPipe != 0:
		return fuseops.DT_FIFO
	case typeMode&os.ModeCharDevice != 0:
		return fuseops.DT_Char
	case typeMode&os.ModeDevice != 0:
		return fuseops.DT_Block
	default:
		return fuseops.DT_File
	}
}
