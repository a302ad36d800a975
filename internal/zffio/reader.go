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

// Package zffio defines the reader facade this module consumes (spec §6.1):
// a random-access view over a Zff container's segment files. Chunk decoding,
// decompression, deduplication, and cryptographic decryption are external
// collaborators of this package's interface, not implemented here — only
// the in-memory fake under zffio/fake backs it, for tests.
package zffio

import "errors"

// ObjectKind is the state of an object as reported by ListObjects /
// ListDecryptedObjects.
type ObjectKind int

const (
	ObjectKindPhysical ObjectKind = iota
	ObjectKindLogical
	ObjectKindEncrypted
	ObjectKindVirtual
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectKindPhysical:
		return "physical"
	case ObjectKindLogical:
		return "logical"
	case ObjectKindEncrypted:
		return "encrypted"
	case ObjectKindVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// FileKind is the kind of a file inside a logical object (§3).
type FileKind int

const (
	FileKindRegular FileKind = iota
	FileKindDirectory
	FileKindSymlink
	FileKindHardlink
	FileKindSpecial
)

// SpecialKind is the sub-kind carried in the last byte of a special file's
// payload (§4.3).
type SpecialKind int

const (
	SpecialKindFifo SpecialKind = iota
	SpecialKindChar
	SpecialKindBlock
)

// ErrUnknownSpecialKind is returned when a special file's payload is empty
// or its last byte does not decode to a known SpecialKind.
var ErrUnknownSpecialKind = errors.New("zffio: unknown or missing special-file sub-kind")

// ErrWrongPassword distinguishes a failed decryption due to a bad password
// from other decryption failures (§7, AccessDenied vs. other kinds).
var ErrWrongPassword = errors.New("zffio: wrong password")

// ErrVirtualObject is returned for any operation attempted against a
// Virtual object; the format reserves the kind with no defined semantics
// (Design Notes, "Virtual objects").
var ErrVirtualObject = errors.New("zffio: virtual objects are unsupported")

// ExtendedMetadata holds the optional POSIX-style timestamps a file or
// object header may carry, as unix seconds. A nil pointer means "absent".
type ExtendedMetadata struct {
	Atime *int64
	Mtime *int64
	Ctime *int64
	Btime *int64
}

// PhysicalFooter is the footer of a decrypted Physical object.
type PhysicalFooter struct {
	ObjectNumber     uint64
	FirstChunkNumber uint64
	LengthOfData     uint64
	AcquisitionStart uint64
	AcquisitionEnd   uint64
}

// LogicalFooter is the footer of a decrypted Logical object.
type LogicalFooter struct {
	ObjectNumber     uint64
	AcquisitionStart uint64
	AcquisitionEnd   uint64

	// FileFooterSegmentNumbers maps every file number known to the object
	// to the segment its footer lives in. zffmount does not need the
	// segment number itself, only the key set (which files exist), but the
	// facade reports it in full per §6.1.
	FileFooterSegmentNumbers map[uint64]uint64

	// RootDirFileNumbers lists the file numbers directly under the object
	// root, in the container's own order.
	RootDirFileNumbers []uint64
}

// ObjectFooter is the result of ActiveObjectFooter: exactly one of Physical
// or Logical is meaningful, selected by Kind. Kind is never
// ObjectKindEncrypted here — only a successfully decrypted or inherently
// plaintext object's footer can be read.
type ObjectFooter struct {
	Kind     ObjectKind
	Physical PhysicalFooter
	Logical  LogicalFooter
}

// FileMetadata is a logical file's footer-derived record (§3).
type FileMetadata struct {
	FileNumber       uint64
	FirstChunkNumber uint64
	ParentFileNumber uint64
	FileType         FileKind
	Filename         string
	MetadataExt      ExtendedMetadata
	LengthOfData     uint64
}

// FileHeader is the fallback source of filename/type/metadata for fields
// the file's metadata record leaves unset (§6.1).
type FileHeader struct {
	Filename    string
	MetadataExt ExtendedMetadata
	FileType    FileKind
}

// Reader is the random-access facade the overlay filesystem core consumes.
// It owns a single mutable cursor over (active object, active file, byte
// offset); callers must re-establish the active object/file before every
// read (§4.5, §5).
type Reader interface {
	// ListObjects returns every object the container advertises, keyed by
	// object number, with its kind as of the last Initialize/Decrypt call.
	ListObjects() (map[uint64]ObjectKind, error)

	// ListDecryptedObjects returns the same map filtered to objects that are
	// not (or are no longer) Encrypted.
	ListDecryptedObjects() (map[uint64]ObjectKind, error)

	// InitializeObject prepares internal reader state for the given object.
	InitializeObject(objectNumber uint64) error

	// DecryptObject attempts to decrypt an Encrypted object with password.
	// Returns ErrWrongPassword on a bad password, any other error otherwise.
	DecryptObject(objectNumber uint64, password string) (ObjectKind, error)

	// SetActiveObject selects the object subsequent calls operate against.
	SetActiveObject(objectNumber uint64) error

	// SetActiveFile selects the file (within the active object) subsequent
	// calls operate against.
	SetActiveFile(fileNumber uint64) error

	// ActiveObjectFooter returns the footer of the active object.
	ActiveObjectFooter() (ObjectFooter, error)

	// CurrentFileMetadata returns the active file's metadata record.
	CurrentFileMetadata() (FileMetadata, error)

	// CurrentFileHeader returns the active file's header, as a fallback for
	// fields CurrentFileMetadata leaves unset.
	CurrentFileHeader() (FileHeader, error)

	// Seek repositions the cursor to an absolute offset from the start of
	// the active object's or file's content.
	Seek(offsetFromStart uint64) error

	// Read reads into buf starting at the cursor, advancing it, exactly
	// like io.Reader.
	Read(buf []byte) (n int, err error)

	// ReadToEnd reads and returns all remaining bytes from the cursor.
	ReadToEnd() ([]byte, error)

	// Rewind resets the cursor to offset zero of the active object or file.
	Rewind() error

	// SetPreloadChunkMapsModeInMemory and SetPreloadChunkMapsModeRedb select
	// how the reader preloads its chunk index; zffmount forwards whichever
	// the configuration requests without interpreting it further (§1).
	SetPreloadChunkMapsModeInMemory() error
	SetPreloadChunkMapsModeRedb(path string) error

	// PreloadChunkHeaderMapFull, PreloadChunkSameBytesMapFull, and
	// PreloadChunkDeduplicationMapFull eagerly populate the corresponding
	// chunk index in full, per the selected preload mode.
	PreloadChunkHeaderMapFull() error
	PreloadChunkSameBytesMapFull() error
	PreloadChunkDeduplicationMapFull() error
}

// ErrNoBackend is returned by Open: this package defines the Reader
// contract the dispatcher and projection builder are written against, but
// the chunk decode/decompression/dedup/crypto machinery that backs a real
// container is out of scope here (§1) and lives in a production backend
// linked in separately.
var ErrNoBackend = errors.New("zffio: no container backend linked into this build")

// Open is the composition point a production build wires to a real
// container backend. This repository ships none; callers that need one
// (the mount driver) get ErrNoBackend, while tests construct a Reader
// directly from internal/zffio/fake.
func Open(segments []string) (Reader, error) {
	return nil, ErrNoBackend
}
