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

// Package inode implements the dense inode-number space the overlay
// filesystem projects at mount time (spec §4.1) and the lookup maps the
// dispatcher consults on every request. All of it is built once, by the
// projection builder, and treated as read-only afterward — the same
// build-once-then-serve shape gcsfuse's fs package uses for its own inode
// table, just keyed by object/file number instead of GCS object name.
package inode

import (
	"fmt"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/zff-team/zffmount/internal/zffio"
)

// RootInode is the mount root's fixed inode number (spec §4.1).
const RootInode fuseops.InodeID = 1

// ReverseEntry is what an inode resolves back to. File == 0 means the inode
// is a Physical object's data file; object-root inodes themselves never
// appear in the reverse map (see AddFile).
type ReverseEntry struct {
	Object uint64
	File   uint64
}

// NameEntry is one binding of a name to a child inode under a parent.
type NameEntry struct {
	ParentInode fuseops.InodeID
	SelfInode   fuseops.InodeID
}

// Maps holds the four lookup tables the dispatcher consults, built once by
// the projection builder and never mutated after mount (spec §4.1, §4.2):
//
//   - ObjectList: object number -> kind, as resolved at mount time.
//   - ReverseMap: inode -> (object, file) it was allocated for.
//   - FilenameTable: filename -> every (parent inode, self inode) pair that
//     uses that name anywhere in the tree; LookUpInode filters this list by
//     the requested parent.
//   - Attributes: inode -> its computed fuseops.InodeAttributes.
type Maps struct {
	Shift uint64

	ObjectList    map[uint64]zffio.ObjectKind
	ReverseMap    map[fuseops.InodeID]ReverseEntry
	FilenameTable map[string][]NameEntry
	Attributes    map[fuseops.InodeID]fuseops.InodeAttributes
}

// NewMaps allocates the empty tables for a container whose shift value is
// shift (see ComputeShift).
func NewMaps(shift uint64) *Maps {
	return &Maps{
		Shift:         shift,
		ObjectList:    make(map[uint64]zffio.ObjectKind),
		ReverseMap:    make(map[fuseops.InodeID]ReverseEntry),
		FilenameTable: make(map[string][]NameEntry),
		Attributes:    make(map[fuseops.InodeID]fuseops.InodeAttributes),
	}
}

// ComputeShift returns S: one more than the largest object number present,
// or 1 if the container has no objects (spec §4.1).
func ComputeShift(objectNumbers []uint64) uint64 {
	var max uint64
	for _, n := range objectNumbers {
		if n > max {
			max = n
		}
	}
	return max + 1
}

// ValidateShift enforces the Design Notes invariant that the object-root
// inode range [2, S] and the file-inode range (S, 2^64) never overlap: S
// must not exceed the smallest first_chunk_number found in any file. When
// the container has no files at all the check is vacuously satisfied.
func ValidateShift(shift uint64, minFirstChunkNumber uint64, hasFiles bool) error {
	if !hasFiles {
		return nil
	}
	if shift > minFirstChunkNumber {
		return fmt.Errorf(
			"inode: shift value %d exceeds minimum first_chunk_number %d; object-root and file inode ranges would overlap",
			shift, minFirstChunkNumber)
	}
	return nil
}

// ObjectInode returns the fixed inode of an object's root (spec §4.1).
func ObjectInode(objectNumber uint64) fuseops.InodeID {
	return fuseops.InodeID(objectNumber + 1)
}

// FileInode returns the inode allocated to a file by its first_chunk_number
// (spec §4.1).
func (m *Maps) FileInode(firstChunkNumber uint64) fuseops.InodeID {
	return fuseops.InodeID(firstChunkNumber + m.Shift)
}

// AddObject records an object's resolved kind.
func (m *Maps) AddObject(objectNumber uint64, kind zffio.ObjectKind) {
	m.ObjectList[objectNumber] = kind
}

// AddFile binds a file inode to its reverse-map entry. Object-root inodes
// never get a ReverseMap entry of their own (Design Notes I4): the
// dispatcher always derives an object number straight from an object-root
// inode (inode-1), so only genuine file inodes need the indirection.
func (m *Maps) AddFile(inode fuseops.InodeID, objectNumber, fileNumber uint64) {
	m.ReverseMap[inode] = ReverseEntry{Object: objectNumber, File: fileNumber}
}

// AddName records that selfInode is reachable as name under parentInode.
func (m *Maps) AddName(name string, parentInode, selfInode fuseops.InodeID) {
	m.FilenameTable[name] = append(m.FilenameTable[name], NameEntry{
		ParentInode: parentInode,
		SelfInode:   selfInode,
	})
}

// SetAttributes records an inode's computed attributes.
func (m *Maps) SetAttributes(inode fuseops.InodeID, attrs fuseops.InodeAttributes) {
	m.Attributes[inode] = attrs
}

// Lookup resolves (parentInode, name) to a child inode, scanning the
// filename table's entries for name and filtering by parent (spec §4.4).
func (m *Maps) Lookup(parentInode fuseops.InodeID, name string) (fuseops.InodeID, bool) {
	for _, e := range m.FilenameTable[name] {
		if e.ParentInode == parentInode {
			return e.SelfInode, true
		}
	}
	return 0, false
}

// ChildrenOf returns every (name, inode) pair whose parent is parentInode,
// for directory listing. Order is not guaranteed; callers sort as needed.
func (m *Maps) ChildrenOf(parentInode fuseops.InodeID) map[string]fuseops.InodeID {
	out := make(map[string]fuseops.InodeID)
	for name, entries := range m.FilenameTable {
		for _, e := range entries {
			if e.ParentInode == parentInode {
				out[name] = e.SelfInode
			}
		}
	}
	return out
}

// Resolve returns the (object, file) a live inode was allocated for.
func (m *Maps) Resolve(inode fuseops.InodeID) (ReverseEntry, bool) {
	e, ok := m.ReverseMap[inode]
	return e, ok
}

// Attr returns an inode's computed attributes.
func (m *Maps) Attr(inode fuseops.InodeID) (fuseops.InodeAttributes, bool) {
	a, ok := m.Attributes[inode]
	return a, ok
}

// Kind returns an object's resolved kind.
func (m *Maps) Kind(objectNumber uint64) (zffio.ObjectKind, bool) {
	k, ok := m.ObjectList[objectNumber]
	return k, ok
}
