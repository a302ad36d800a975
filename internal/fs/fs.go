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

// Package fs implements the request dispatcher: the fuseutil.FileSystem
// that turns kernel ops into lookups against the inode maps a projection
// built at mount time, and into reader-facade calls for file content (spec
// §4.4, §5). There is exactly one mutable cursor shared by every request,
// mirroring gcsfuse's fs package shape but with a single inverted-index
// reader in place of a GCS bucket.
package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/zff-team/zffmount/internal/fs/inode"
	"github.com/zff-team/zffmount/internal/metrics"
	"github.com/zff-team/zffmount/internal/zffio"
	"github.com/zff-team/zffmount/internal/zffio/codec"
)

// attrTTL is how long the kernel may cache an inode's attributes and a
// lookup's entry before re-asking (spec §6.2).
const attrTTL = time.Second

// physicalDataFileName is the single file a Physical object's root exposes
// (spec §4.2 step 4b, §4.4).
const physicalDataFileName = "zff_image.dd"

// ServerConfig bundles everything NewServer needs to stand up the
// dispatcher over an already-built projection.
type ServerConfig struct {
	Reader zffio.Reader
	Maps   *inode.Maps
	Clock  timeutil.Clock
	Uid    uint32
	Gid    uint32
}

// NewServer builds a fuse.Server from a completed ServerConfig.
func NewServer(cfg *ServerConfig) (fuse.Server, error) {
	fsys := &fileSystem{
		reader:     cfg.Reader,
		maps:       cfg.Maps,
		clock:      cfg.Clock,
		uid:        cfg.Uid,
		gid:        cfg.Gid,
		dirHandles: make(map[fuseops.HandleID]*dirHandle),
	}
	fsys.mu = syncutil.NewInvariantMutex(fsys.checkInvariants)

	return fuseutil.NewFileSystemServer(fsys), nil
}

// LOCK ORDERING
//
// fs.mu guards the reader facade's mutable cursor and the directory handle
// table. Each dirHandle also has its own Mu, which ReadDir takes only after
// releasing fs.mu, so the two are never held together. Every dispatcher
// method takes fs.mu
// for the duration of its reader-facade calls, since the facade itself is
// not safe for concurrent use (spec §5 "Concurrency model"): two requests
// racing to SetActiveObject/SetActiveFile/Seek/Read on the same reader
// would corrupt each other's cursor. The kernel already serializes FUSE ops
// against us one at a time in practice, but the lock makes that assumption
// explicit rather than load-bearing.

type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	/////////////////////////
	// Dependencies
	/////////////////////////

	reader zffio.Reader // GUARDED_BY(mu)
	maps   *inode.Maps  // immutable after construction
	clock  timeutil.Clock

	/////////////////////////
	// Constant data
	/////////////////////////

	uid uint32
	gid uint32

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	dirHandles map[fuseops.HandleID]*dirHandle

	// GUARDED_BY(mu)
	nextHandleID fuseops.HandleID
}

func (fs *fileSystem) checkInvariants() {
	// INVARIANT: the synthesized root inode never appears as a reverse-map
	// key (Design Notes I4).
	for in := range fs.maps.ReverseMap {
		if in == inode.RootInode {
			panic("root inode must never appear in the reverse map")
		}
	}

	// INVARIANT: for all keys k in dirHandles, k < nextHandleID.
	for k := range fs.dirHandles {
		if k >= fs.nextHandleID {
			panic(fmt.Sprintf("illegal handle id: %v >= %v", k, fs.nextHandleID))
		}
	}
}

func (fs *fileSystem) Init(op *fuseops.InitOp) error {
	return nil
}

func (fs *fileSystem) rootAttrs() fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Nlink:  2,
		Mode:   os.ModeDir | dirPerm,
		Atime:  epoch(),
		Mtime:  epoch(),
		Ctime:  epoch(),
		Crtime: epoch(),
		Uid:    fs.uid,
		Gid:    fs.gid,
	}
}

func isTrashName(name string, uid uint32) bool {
	return name == ".Trash" || name == fmt.Sprintf(".Trash-%d", uid)
}

func parseObjectName(name string) (uint64, bool) {
	rest := strings.TrimPrefix(name, "object_")
	if rest == name {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) LookUpInode(op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	metrics.OpsTotal.WithLabelValues("lookup").Inc()

	attrs, child, err := fs.lookUpLocked(op.Parent, op.Name)
	if err != nil {
		return err
	}

	op.Entry.Child = child
	op.Entry.Attributes = attrs
	op.Entry.AttributesExpiration = fs.clock.Now().Add(attrTTL)
	op.Entry.EntryExpiration = op.Entry.AttributesExpiration

	return nil
}

// lookUpLocked implements spec §4.4 "lookup": the root dispatches to
// object-name parsing, a Physical object root's single data file is read
// straight off its footer, and everything else (including a Logical object
// root's children) is a filename-table scan.
func (fs *fileSystem) lookUpLocked(parent fuseops.InodeID, name string) (fuseops.InodeAttributes, fuseops.InodeID, error) {
	if parent == inode.RootInode {
		if isTrashName(name, fs.uid) {
			return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
		}

		objNum, ok := parseObjectName(name)
		if !ok {
			return fuseops.InodeAttributes{}, 0, downgrade(kindInvalidArgument, "lookup", name, nil)
		}
		if _, ok := fs.maps.Kind(objNum); !ok {
			return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
		}

		child := inode.ObjectInode(objNum)
		attrs, ok := fs.maps.Attr(child)
		if !ok {
			return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
		}
		return attrs, child, nil
	}

	if uint64(parent) <= fs.maps.Shift {
		objNum := uint64(parent) - 1
		objKind, ok := fs.maps.Kind(objNum)
		if !ok {
			return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
		}
		if objKind == zffio.ObjectKindPhysical {
			if name != physicalDataFileName {
				return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
			}
			if err := fs.reader.SetActiveObject(objNum); err != nil {
				return fuseops.InodeAttributes{}, 0, downgrade(kindIO, "lookup", "set_active_object", err)
			}
			footer, err := fs.reader.ActiveObjectFooter()
			if err != nil {
				return fuseops.InodeAttributes{}, 0, downgrade(kindIO, "lookup", "active_object_footer", err)
			}
			child := fs.maps.FileInode(footer.Physical.FirstChunkNumber)
			attrs, ok := fs.maps.Attr(child)
			if !ok {
				return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
			}
			return attrs, child, nil
		}
	}

	child, ok := fs.maps.Lookup(parent, name)
	if !ok {
		return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
	}
	attrs, ok := fs.maps.Attr(child)
	if !ok {
		return fuseops.InodeAttributes{}, 0, downgrade(kindNotFound, "lookup", name, nil)
	}
	return attrs, child, nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	metrics.OpsTotal.WithLabelValues("getattr").Inc()

	if op.Inode == inode.RootInode {
		op.Attributes = fs.rootAttrs()
		op.AttributesExpiration = fs.clock.Now().Add(attrTTL)
		return nil
	}

	attrs, ok := fs.maps.Attr(op.Inode)
	if !ok {
		return downgrade(kindNotFound, "getattr", fmt.Sprintf("inode %d", op.Inode), nil)
	}

	op.Attributes = attrs
	op.AttributesExpiration = fs.clock.Now().Add(attrTTL)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenDir(op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	metrics.OpsTotal.WithLabelValues("opendir").Inc()

	entries, err := fs.buildDirEntriesLocked(op.Inode)
	if err != nil {
		return err
	}

	handleID := fs.nextHandleID
	fs.nextHandleID++
	fs.dirHandles[handleID] = newDirHandle(entries)
	op.Handle = handleID

	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadDir(op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	fs.mu.Unlock()

	if !ok {
		return downgrade(kindNotFound, "readdir", fmt.Sprintf("handle %d", op.Handle), nil)
	}

	metrics.OpsTotal.WithLabelValues("readdir").Inc()
	return dh.ReadDir(op)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.dirHandles, op.Handle)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenFile(op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	metrics.OpsTotal.WithLabelValues("open").Inc()

	if _, ok := fs.maps.Resolve(op.Inode); !ok {
		return downgrade(kindNotFound, "open", fmt.Sprintf("inode %d", op.Inode), nil)
	}
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadFile(op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	metrics.OpsTotal.WithLabelValues("read").Inc()

	if op.Offset < 0 {
		return downgrade(kindInvalidArgument, "read", "negative offset", nil)
	}

	entry, ok := fs.maps.Resolve(op.Inode)
	if !ok {
		return downgrade(kindNotFound, "read", fmt.Sprintf("inode %d", op.Inode), nil)
	}

	if err := fs.reader.SetActiveObject(entry.Object); err != nil {
		return downgrade(kindIO, "read", "set_active_object", err)
	}

	if entry.File != 0 {
		if err := fs.reader.SetActiveFile(entry.File); err != nil {
			return downgrade(kindIO, "read", "set_active_file", err)
		}
		meta, err := fs.reader.CurrentFileMetadata()
		if err != nil {
			return downgrade(kindIO, "read", "current_filemetadata", err)
		}
		if meta.FileType == zffio.FileKindHardlink {
			if err := fs.reader.Rewind(); err != nil {
				return downgrade(kindIO, "read", "rewind", err)
			}
			payload, err := fs.reader.ReadToEnd()
			if err != nil {
				return downgrade(kindIO, "read", "read_to_end", err)
			}
			target, err := codec.DecodeUint64(payload)
			if err != nil {
				return downgrade(kindCorruptOrUnsupported, "read", "hardlink payload", err)
			}
			if err := fs.reader.SetActiveFile(target); err != nil {
				return downgrade(kindIO, "read", "set_active_file(target)", err)
			}
		}
	}

	if err := fs.reader.Seek(uint64(op.Offset)); err != nil {
		return downgrade(kindIO, "read", "seek", err)
	}

	buf := make([]byte, op.Size)
	n, err := fs.reader.Read(buf)
	if err != nil && !isEOF(err) {
		return downgrade(kindIO, "read", "read", err)
	}
	op.Data = buf[:n]

	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	metrics.OpsTotal.WithLabelValues("readlink").Inc()

	entry, ok := fs.maps.Resolve(op.Inode)
	if !ok || entry.File == 0 {
		return downgrade(kindNotFound, "readlink", fmt.Sprintf("inode %d", op.Inode), nil)
	}

	if err := fs.reader.SetActiveObject(entry.Object); err != nil {
		return downgrade(kindIO, "readlink", "set_active_object", err)
	}
	if err := fs.reader.SetActiveFile(entry.File); err != nil {
		return downgrade(kindIO, "readlink", "set_active_file", err)
	}
	meta, err := fs.reader.CurrentFileMetadata()
	if err != nil {
		return downgrade(kindIO, "readlink", "current_filemetadata", err)
	}
	if meta.FileType != zffio.FileKindSymlink {
		return downgrade(kindNotFound, "readlink", "not a symlink", nil)
	}

	if err := fs.reader.Rewind(); err != nil {
		return downgrade(kindIO, "readlink", "rewind", err)
	}
	target, err := fs.reader.ReadToEnd()
	if err != nil {
		return downgrade(kindIO, "readlink", "read_to_end", err)
	}

	op.Target = string(target)
	return nil
}

// buildDirEntriesLocked implements spec §4.4 "readdir": the root lists
// every mounted object, an object root lists either its single physical
// data file or its logical root directory's children, and any deeper
// directory decodes its own payload for its child file numbers.
func (fs *fileSystem) buildDirEntriesLocked(dirInode fuseops.InodeID) ([]fuseops.Dirent, error) {
	var entries []fuseops.Dirent
	add := func(ino fuseops.InodeID, typ fuseops.DirentType, name string) {
		entries = append(entries, fuseops.Dirent{Inode: ino, Name: name, Type: typ})
	}

	switch {
	case dirInode == inode.RootInode:
		add(inode.RootInode, fuseops.DT_Directory, ".")
		add(inode.RootInode, fuseops.DT_Directory, "..")
		for _, n := range sortedObjectNumbers(fs.maps) {
			add(inode.ObjectInode(n), fuseops.DT_Directory, fmt.Sprintf("object_%d", n))
		}

	case uint64(dirInode) <= fs.maps.Shift:
		objNum := uint64(dirInode) - 1
		objKind, ok := fs.maps.Kind(objNum)
		if !ok {
			return nil, downgrade(kindNotFound, "readdir", fmt.Sprintf("object %d", objNum), nil)
		}
		add(dirInode, fuseops.DT_Directory, ".")
		add(inode.RootInode, fuseops.DT_Directory, "..")

		if err := fs.reader.SetActiveObject(objNum); err != nil {
			return nil, downgrade(kindIO, "readdir", "set_active_object", err)
		}
		footer, err := fs.reader.ActiveObjectFooter()
		if err != nil {
			return nil, downgrade(kindIO, "readdir", "active_object_footer", err)
		}

		if objKind == zffio.ObjectKindPhysical {
			add(fs.maps.FileInode(footer.Physical.FirstChunkNumber), fuseops.DT_File, physicalDataFileName)
		} else {
			for _, f := range footer.Logical.RootDirFileNumbers {
				d, err := fs.direntForChild(f)
				if err != nil {
					return nil, err
				}
				entries = append(entries, d)
			}
		}

	default:
		resolved, ok := fs.maps.Resolve(dirInode)
		if !ok {
			return nil, downgrade(kindNotFound, "readdir", fmt.Sprintf("inode %d", dirInode), nil)
		}
		if err := fs.reader.SetActiveObject(resolved.Object); err != nil {
			return nil, downgrade(kindIO, "readdir", "set_active_object", err)
		}
		if err := fs.reader.SetActiveFile(resolved.File); err != nil {
			return nil, downgrade(kindIO, "readdir", "set_active_file", err)
		}
		meta, err := fs.reader.CurrentFileMetadata()
		if err != nil {
			return nil, downgrade(kindIO, "readdir", "current_filemetadata", err)
		}

		parentInode := inode.ObjectInode(resolved.Object)
		if meta.ParentFileNumber != 0 {
			parentInode = fs.maps.FileInode(meta.ParentFileNumber)
		}
		add(dirInode, fuseops.DT_Directory, ".")
		add(parentInode, fuseops.DT_Directory, "..")

		if err := fs.reader.Rewind(); err != nil {
			return nil, downgrade(kindIO, "readdir", "rewind", err)
		}
		payload, err := fs.reader.ReadToEnd()
		if err != nil {
			return nil, downgrade(kindIO, "readdir", "read_to_end", err)
		}
		children, err := codec.DecodeUint64Slice(payload)
		if err != nil {
			return nil, downgrade(kindCorruptOrUnsupported, "readdir", "directory payload", err)
		}
		for _, f := range children {
			d, err := fs.direntForChild(f)
			if err != nil {
				return nil, err
			}
			entries = append(entries, d)
		}
	}

	for i := range entries {
		entries[i].Offset = fuseops.DirOffset(i + 1)
	}
	return entries, nil
}

// direntForChild assumes the active object is already the one that owns
// fileNumber (true at both of buildDirEntriesLocked's call sites). It
// resolves a hardlink to its target before computing the entry's type, per
// spec §4.4.
func (fs *fileSystem) direntForChild(fileNumber uint64) (fuseops.Dirent, error) {
	if err := fs.reader.SetActiveFile(fileNumber); err != nil {
		return fuseops.Dirent{}, downgrade(kindIO, "readdir", "set_active_file", err)
	}
	meta, err := fs.reader.CurrentFileMetadata()
	if err != nil {
		return fuseops.Dirent{}, downgrade(kindIO, "readdir", "current_filemetadata", err)
	}

	name := meta.Filename
	fileKind := meta.FileType
	firstChunk := meta.FirstChunkNumber

	if fileKind == zffio.FileKindHardlink {
		if err := fs.reader.Rewind(); err != nil {
			return fuseops.Dirent{}, downgrade(kindIO, "readdir", "rewind", err)
		}
		payload, err := fs.reader.ReadToEnd()
		if err != nil {
			return fuseops.Dirent{}, downgrade(kindIO, "readdir", "read_to_end", err)
		}
		target, err := codec.DecodeUint64(payload)
		if err != nil {
			return fuseops.Dirent{}, downgrade(kindCorruptOrUnsupported, "readdir", "hardlink payload", err)
		}
		if err := fs.reader.SetActiveFile(target); err != nil {
			return fuseops.Dirent{}, downgrade(kindIO, "readdir", "set_active_file(target)", err)
		}
		targetMeta, err := fs.reader.CurrentFileMetadata()
		if err != nil {
			return fuseops.Dirent{}, downgrade(kindIO, "readdir", "current_filemetadata(target)", err)
		}
		fileKind = targetMeta.FileType
		firstChunk = targetMeta.FirstChunkNumber
	}

	var specialPayload []byte
	if fileKind == zffio.FileKindSpecial {
		if err := fs.reader.Rewind(); err != nil {
			return fuseops.Dirent{}, downgrade(kindIO, "readdir", "rewind", err)
		}
		specialPayload, err = fs.reader.ReadToEnd()
		if err != nil {
			return fuseops.Dirent{}, downgrade(kindIO, "readdir", "read_to_end", err)
		}
	}

	typeMode, err := typeModeFor(fileKind, specialPayload)
	if err != nil {
		return fuseops.Dirent{}, downgrade(kindCorruptOrUnsupported, "readdir", "special file sub-kind", err)
	}

	return fuseops.Dirent{
		Inode: fs.maps.FileInode(firstChunk),
		Name:  name,
		Type:  direntTypeFor(typeMode),
	}, nil
}

func sortedObjectNumbers(m *inode.Maps) []uint64 {
	out := make([]uint64, 0, len(m.ObjectList))
	for n := range m.ObjectList {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
