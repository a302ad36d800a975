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
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/zff-team/zffmount/internal/zffio"
	"github.com/zff-team/zffmount/internal/zffio/fake"
)

func newTestFileSystem(t *testing.T, objects ...*fake.ObjectSpec) *fileSystem {
	t.Helper()

	reader := fake.NewReader(objects...)
	maps, _, err := BuildProjection(reader, nil, noPrompt, 1000, 1000)
	require.NoError(t, err)

	fsys := &fileSystem{
		reader:     reader,
		maps:       maps,
		clock:      timeutil.RealClock(),
		uid:        1000,
		gid:        1000,
		dirHandles: make(map[fuseops.HandleID]*dirHandle),
	}
	fsys.mu = syncutil.NewInvariantMutex(fsys.checkInvariants)
	return fsys
}

func readAllDirents(t *testing.T, fsys *fileSystem, dirInode fuseops.InodeID) []fuseops.Dirent {
	t.Helper()

	openOp := &fuseops.OpenDirOp{Inode: dirInode}
	require.NoError(t, fsys.OpenDir(openOp))

	readOp := &fuseops.ReadDirOp{Inode: dirInode, Handle: openOp.Handle, Offset: 0, Size: 4096}
	require.NoError(t, fsys.ReadDir(readOp))

	var entries []fuseops.Dirent
	offset := 0
	for offset < len(readOp.Data) {
		var d fuseops.Dirent
		consumed, ok := parseTestDirent(readOp.Data[offset:], &d)
		require.True(t, ok)
		entries = append(entries, d)
		offset += consumed
	}

	require.NoError(t, fsys.ReleaseDirHandle(&fuseops.ReleaseDirHandleOp{Handle: openOp.Handle}))
	return entries
}

func readFileAt(t *testing.T, fsys *fileSystem, in fuseops.InodeID, offset int64, size int) []byte {
	t.Helper()
	op := &fuseops.ReadFileOp{Inode: in, Offset: offset, Size: size}
	require.NoError(t, fsys.ReadFile(op))
	return op.Data
}

type DispatcherSuite struct {
	suite.Suite
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

// TestEmptyContainer covers §8 S1.
func (s *DispatcherSuite) TestEmptyContainer() {
	fsys := newTestFileSystem(s.T())

	entries := readAllDirents(s.T(), fsys, 1)
	s.Require().Len(entries, 2)
	s.Equal(".", entries[0].Name)
	s.Equal("..", entries[1].Name)
	s.Equal(fuseops.InodeID(1), entries[0].Inode)
	s.Equal(fuseops.InodeID(1), entries[1].Inode)
}

// TestPhysicalObject covers §8 S2.
func (s *DispatcherSuite) TestPhysicalObject() {
	fsys := newTestFileSystem(s.T(), &fake.ObjectSpec{
		Number:           7,
		Kind:             zffio.ObjectKindPhysical,
		FirstChunkNumber: 100,
		Data:             []byte{0x41, 0x42, 0x43},
	})

	rootEntries := readAllDirents(s.T(), fsys, 1)
	s.Require().Len(rootEntries, 3)
	s.Equal("object_7", rootEntries[2].Name)
	s.Equal(fuseops.InodeID(8), rootEntries[2].Inode)

	objectEntries := readAllDirents(s.T(), fsys, 8)
	s.Require().Len(objectEntries, 3)
	s.Equal("zff_image.dd", objectEntries[2].Name)
	s.Equal(fuseops.InodeID(108), objectEntries[2].Inode)

	data := readFileAt(s.T(), fsys, 108, 0, 10)
	s.Equal([]byte{0x41, 0x42, 0x43}, data)
}

// TestLogicalDirectoryAndLookup covers §8 S3.
func (s *DispatcherSuite) TestLogicalDirectoryAndLookup() {
	fsys := newTestFileSystem(s.T(), &fake.ObjectSpec{
		Number: 3,
		Kind:   zffio.ObjectKindLogical,
		Files: []fake.FileSpec{
			{FileNumber: 10, ParentFileNumber: 0, Name: "a", Kind: zffio.FileKindDirectory, FirstChunkNumber: 200, Children: []uint64{11}},
			{FileNumber: 11, ParentFileNumber: 10, Name: "b", Kind: zffio.FileKindRegular, FirstChunkNumber: 201, Content: []byte("hello")},
		},
		RootFileNumbers: []uint64{10},
	})

	lookup := func(parent fuseops.InodeID, name string) fuseops.ChildInodeEntry {
		op := &fuseops.LookUpInodeOp{Parent: parent, Name: name}
		require.NoError(s.T(), fsys.LookUpInode(op))
		return op.Entry
	}

	objEntry := lookup(1, "object_3")
	s.Equal(fuseops.InodeID(4), objEntry.Child)

	aEntry := lookup(4, "a")
	s.Equal(fuseops.InodeID(204), aEntry.Child)

	bEntry := lookup(204, "b")
	s.Equal(fuseops.InodeID(205), bEntry.Child)
	s.Equal(uint64(5), bEntry.Attributes.Size)

	s.Equal([]byte("hello"), readFileAt(s.T(), fsys, 205, 0, 5))
	s.Equal([]byte("ell"), readFileAt(s.T(), fsys, 205, 1, 3))
	s.Equal([]byte{}, readFileAt(s.T(), fsys, 205, 5, 10))
}

// TestHardlinkEquivalence covers §8 S4 / P4.
func (s *DispatcherSuite) TestHardlinkEquivalence() {
	fsys := newTestFileSystem(s.T(), &fake.ObjectSpec{
		Number: 1,
		Kind:   zffio.ObjectKindLogical,
		Files: []fake.FileSpec{
			{FileNumber: 20, Name: "orig", Kind: zffio.FileKindRegular, FirstChunkNumber: 300, Content: []byte("x")},
			{FileNumber: 21, Name: "link", Kind: zffio.FileKindHardlink, HardlinkTarget: 20},
		},
		RootFileNumbers: []uint64{20, 21},
	})

	lookup := func(parent fuseops.InodeID, name string) fuseops.ChildInodeEntry {
		op := &fuseops.LookUpInodeOp{Parent: parent, Name: name}
		require.NoError(s.T(), fsys.LookUpInode(op))
		return op.Entry
	}

	origEntry := lookup(2, "orig")
	linkEntry := lookup(2, "link")

	s.Equal(origEntry.Child, linkEntry.Child)
	s.Equal(fuseops.InodeID(302), origEntry.Child)
	s.Equal(origEntry.Attributes, linkEntry.Attributes)

	s.Equal([]byte("x"), readFileAt(s.T(), fsys, origEntry.Child, 0, 10))
	s.Equal([]byte("x"), readFileAt(s.T(), fsys, linkEntry.Child, 0, 10))
}

// TestSymlink covers §8 S5.
func (s *DispatcherSuite) TestSymlink() {
	fsys := newTestFileSystem(s.T(), &fake.ObjectSpec{
		Number: 2,
		Kind:   zffio.ObjectKindLogical,
		Files: []fake.FileSpec{
			{FileNumber: 30, Name: "s", Kind: zffio.FileKindSymlink, FirstChunkNumber: 400, Content: []byte("/tmp/target")},
		},
		RootFileNumbers: []uint64{30},
	})

	op := &fuseops.LookUpInodeOp{Parent: 3, Name: "s"}
	require.NoError(s.T(), fsys.LookUpInode(op))

	readlinkOp := &fuseops.ReadSymlinkOp{Inode: op.Entry.Child}
	require.NoError(s.T(), fsys.ReadSymlink(readlinkOp))
	s.Equal("/tmp/target", readlinkOp.Target)
}

// TestEncryptedObjectHiddenWithoutPassword covers §8 S6 / P7.
func (s *DispatcherSuite) TestEncryptedObjectHiddenWithoutPassword() {
	fsys := newTestFileSystem(s.T(), &fake.ObjectSpec{
		Number:     5,
		Kind:       zffio.ObjectKindEncrypted,
		Underlying: zffio.ObjectKindPhysical,
		Password:   "hunter2",
		Data:       []byte{0x01},
	})

	for _, e := range readAllDirents(s.T(), fsys, 1) {
		s.NotEqual("object_5", e.Name)
	}

	op := &fuseops.LookUpInodeOp{Parent: 1, Name: "object_5"}
	err := fsys.LookUpInode(op)
	s.Equal(fuse.ENOENT, err)
}

// TestGetInodeAttributesRoot spot-checks P1 against the synthetic root.
func (s *DispatcherSuite) TestGetInodeAttributesRoot() {
	fsys := newTestFileSystem(s.T())

	op := &fuseops.GetInodeAttributesOp{Inode: 1}
	require.NoError(s.T(), fsys.GetInodeAttributes(op))
	s.True(op.Attributes.Mode.IsDir())
}

// TestLookupUnknownObjectIsNotFound exercises the invalid/missing paths.
func (s *DispatcherSuite) TestLookupUnknownObjectIsNotFound() {
	fsys := newTestFileSystem(s.T())

	err := fsys.LookUpInode(&fuseops.LookUpInodeOp{Parent: 1, Name: "object_42"})
	s.Equal(fuse.ENOENT, err)

	err = fsys.LookUpInode(&fuseops.LookUpInodeOp{Parent: 1, Name: "not-an-object"})
	s.Equal(fuse.ENOENT, err)
}

// parseTestDirent mirrors fuseutil.WriteDirent's fuse_dirent layout (ino,
// off, namelen, type, each host-order, 8-byte aligned) so this test can walk
// a ReadDirOp's raw buffer without depending on an unexported decoder.
func parseTestDirent(buf []byte, d *fuseops.Dirent) (int, bool) {
	const headerSize = 8 + 8 + 4 + 4

	if len(buf) < headerSize {
		return 0, false
	}

	d.Inode = fuseops.InodeID(leUint64(buf[0:8]))
	d.Offset = fuseops.DirOffset(leUint64(buf[8:16]))
	nameLen := int(leUint32(buf[16:20]))
	d.Type = fuseops.DirentType(leUint32(buf[20:24]))

	total := headerSize + nameLen
	padded := (total + 7) &^ 7
	if len(buf) < padded {
		return 0, false
	}

	d.Name = string(buf[headerSize : headerSize+nameLen])
	return padded, true
}

func leUint32(b []byte) uint32 {
	var v uint32
	for i := 3; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
