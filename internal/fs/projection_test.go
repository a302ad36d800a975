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
	"errors"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zff-team/zffmount/internal/fs/inode"
	"github.com/zff-team/zffmount/internal/zffio"
	"github.com/zff-team/zffmount/internal/zffio/fake"
)

func noPrompt(uint64) (string, error) {
	return "", errors.New("no controlling terminal in test")
}

// TestBuildProjection_EmptyContainer covers §8 S1: nothing mounted still
// yields a usable, empty projection.
func TestBuildProjection_EmptyContainer(t *testing.T) {
	reader := fake.NewReader()

	maps, counts, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), maps.Shift)
	assert.Zero(t, counts.Physical)
	assert.Zero(t, counts.Logical)
	assert.Zero(t, counts.Encrypted)
}

// TestBuildProjection_PhysicalObject covers §8 S2.
func TestBuildProjection_PhysicalObject(t *testing.T) {
	reader := fake.NewReader(&fake.ObjectSpec{
		Number:           7,
		Kind:             zffio.ObjectKindPhysical,
		FirstChunkNumber: 100,
		Data:             []byte{0x41, 0x42, 0x43},
	})

	maps, counts, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Physical)
	assert.Equal(t, uint64(8), maps.Shift)

	fileInode := maps.FileInode(100)
	assert.Equal(t, fuseops.InodeID(108), fileInode)

	entry, ok := maps.Resolve(fileInode)
	require.True(t, ok)
	assert.Equal(t, inode.ReverseEntry{Object: 7, File: 0}, entry)

	attrs, ok := maps.Attr(fileInode)
	require.True(t, ok)
	assert.Equal(t, uint64(3), attrs.Size)
}

// TestBuildProjection_LogicalDirectory covers §8 S3.
func TestBuildProjection_LogicalDirectory(t *testing.T) {
	reader := fake.NewReader(&fake.ObjectSpec{
		Number: 3,
		Kind:   zffio.ObjectKindLogical,
		Files: []fake.FileSpec{
			{FileNumber: 10, ParentFileNumber: 0, Name: "a", Kind: zffio.FileKindDirectory, FirstChunkNumber: 200, Children: []uint64{11}},
			{FileNumber: 11, ParentFileNumber: 10, Name: "b", Kind: zffio.FileKindRegular, FirstChunkNumber: 201, Content: []byte("hello")},
		},
		RootFileNumbers: []uint64{10},
	})

	maps, _, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(4), maps.Shift)

	aInode, ok := maps.Lookup(inode.ObjectInode(3), "a")
	require.True(t, ok)
	assert.Equal(t, maps.FileInode(200), aInode)

	bInode, ok := maps.Lookup(aInode, "b")
	require.True(t, ok)
	assert.Equal(t, maps.FileInode(201), bInode)
}

// TestBuildProjection_Hardlink covers §8 S4: both names resolve to the same
// inode, derived from the hardlink target's own first_chunk_number.
func TestBuildProjection_Hardlink(t *testing.T) {
	reader := fake.NewReader(&fake.ObjectSpec{
		Number: 1,
		Kind:   zffio.ObjectKindLogical,
		Files: []fake.FileSpec{
			{FileNumber: 20, Name: "orig", Kind: zffio.FileKindRegular, FirstChunkNumber: 300, Content: []byte("x")},
			{FileNumber: 21, Name: "link", Kind: zffio.FileKindHardlink, HardlinkTarget: 20},
		},
		RootFileNumbers: []uint64{20, 21},
	})

	maps, _, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), maps.Shift)

	origInode, ok := maps.Lookup(inode.ObjectInode(1), "orig")
	require.True(t, ok)
	linkInode, ok := maps.Lookup(inode.ObjectInode(1), "link")
	require.True(t, ok)

	assert.Equal(t, origInode, linkInode)
	assert.Equal(t, maps.FileInode(300), origInode)
}

// TestBuildProjection_Symlink covers §8 S5.
func TestBuildProjection_Symlink(t *testing.T) {
	reader := fake.NewReader(&fake.ObjectSpec{
		Number: 2,
		Kind:   zffio.ObjectKindLogical,
		Files: []fake.FileSpec{
			{FileNumber: 30, Name: "s", Kind: zffio.FileKindSymlink, FirstChunkNumber: 400, Content: []byte("/tmp/target")},
		},
		RootFileNumbers: []uint64{30},
	})

	maps, _, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	require.NoError(t, err)

	sInode, ok := maps.Lookup(inode.ObjectInode(2), "s")
	require.True(t, ok)
	assert.Equal(t, maps.FileInode(400), sInode)
}

// TestBuildProjection_EncryptedObjectWithoutPassword covers §8 S6: an
// object that cannot be decrypted is dropped from every map, not merely
// hidden behind an error.
func TestBuildProjection_EncryptedObjectWithoutPassword(t *testing.T) {
	reader := fake.NewReader(&fake.ObjectSpec{
		Number:     5,
		Kind:       zffio.ObjectKindEncrypted,
		Underlying: zffio.ObjectKindPhysical,
		Password:   "hunter2",
		Data:       []byte{0x01},
	})

	maps, counts, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Physical)
	assert.Equal(t, 1, counts.Encrypted)

	_, ok := maps.Kind(5)
	assert.False(t, ok)
}

// TestBuildProjection_EncryptedObjectWithPassword shows the same object
// decrypting successfully when its password is supplied up front.
func TestBuildProjection_EncryptedObjectWithPassword(t *testing.T) {
	reader := fake.NewReader(&fake.ObjectSpec{
		Number:           5,
		Kind:             zffio.ObjectKindEncrypted,
		Underlying:       zffio.ObjectKindPhysical,
		Password:         "hunter2",
		FirstChunkNumber: 9,
		Data:             []byte{0x01, 0x02},
	})

	maps, counts, err := BuildProjection(reader, map[uint64]string{5: "hunter2"}, noPrompt, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Physical)
	assert.Equal(t, 0, counts.Encrypted)

	kind, ok := maps.Kind(5)
	require.True(t, ok)
	assert.Equal(t, zffio.ObjectKindPhysical, kind)
}

func TestBuildProjection_VirtualObjectIsFatal(t *testing.T) {
	reader := fake.NewReader(&fake.ObjectSpec{Number: 9, Kind: zffio.ObjectKindVirtual})

	_, _, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	assert.Error(t, err)
}

func TestBuildProjection_ShiftCollisionIsFatal(t *testing.T) {
	// Object number 99 forces S=100, but the lone file's first_chunk_number
	// is only 5: S > min_first_chunk_number, which must be fatal.
	reader := fake.NewReader(&fake.ObjectSpec{
		Number: 99,
		Kind:   zffio.ObjectKindLogical,
		Files: []fake.FileSpec{
			{FileNumber: 1, Name: "f", Kind: zffio.FileKindRegular, FirstChunkNumber: 5},
		},
		RootFileNumbers: []uint64{1},
	})

	_, _, err := BuildProjection(reader, nil, noPrompt, 0, 0)
	assert.Error(t, err)
}
