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

// Package fake is an in-memory stand-in for a real Zff reader facade,
// built only so internal/fs can be exercised end-to-end against the
// scenarios of spec §8 without a real container. It implements exactly the
// zffio.Reader contract and nothing more; chunk decoding, decompression,
// deduplication, and decryption are not modeled — DecryptObject just
// compares a plaintext password.
package fake

import (
	"bytes"
	"fmt"
	"io"

	"github.com/zff-team/zffmount/internal/zffio"
	"github.com/zff-team/zffmount/internal/zffio/codec"
)

// FileSpec describes one file of a logical object.
type FileSpec struct {
	FileNumber       uint64
	ParentFileNumber uint64
	Name             string
	Kind             zffio.FileKind
	FirstChunkNumber uint64

	// Content is the file's raw payload for Regular/Symlink/Special kinds.
	Content []byte

	// Children lists child file numbers for Directory kind; the fake
	// encodes them with codec.EncodeUint64Slice on demand.
	Children []uint64

	// HardlinkTarget is the target file number for Hardlink kind; the fake
	// encodes it with codec.EncodeUint64 on demand.
	HardlinkTarget uint64

	// MetadataExt is returned from CurrentFileMetadata.
	MetadataExt zffio.ExtendedMetadata

	// HeaderMetadataExt, if non-nil, is returned from CurrentFileHeader
	// instead of MetadataExt, letting tests exercise the
	// metadata-absent-fall-back-to-header path (§4.3).
	HeaderMetadataExt *zffio.ExtendedMetadata
}

func (f FileSpec) payload() []byte {
	switch f.Kind {
	case zffio.FileKindDirectory:
		return codec.EncodeUint64Slice(f.Children)
	case zffio.FileKindHardlink:
		return codec.EncodeUint64(f.HardlinkTarget)
	default:
		return f.Content
	}
}

// ObjectSpec describes one object of the container.
type ObjectSpec struct {
	Number           uint64
	Kind             zffio.ObjectKind // Physical, Logical, Encrypted, or Virtual
	AcquisitionStart uint64
	AcquisitionEnd   uint64

	// Physical object fields.
	FirstChunkNumber uint64
	Data             []byte

	// Logical object fields.
	Files           []FileSpec
	RootFileNumbers []uint64

	// Encrypted object fields: Password is the correct password; Underlying
	// is what DecryptObject resolves to (Physical or Logical), reusing the
	// Physical/Logical fields above as that resolved object's content.
	Password   string
	Underlying zffio.ObjectKind
}

// Reader is a fake zffio.Reader over a fixed set of ObjectSpecs.
type Reader struct {
	objects   map[uint64]*ObjectSpec
	order     []uint64
	decrypted map[uint64]bool

	activeObject uint64
	hasActiveObj bool
	activeFile   uint64
	hasActiveFile bool

	content *bytes.Reader
}

// NewReader builds a fake reader over the given objects.
func NewReader(objects ...*ObjectSpec) *Reader {
	r := &Reader{
		objects:   make(map[uint64]*ObjectSpec, len(objects)),
		decrypted: make(map[uint64]bool),
	}
	for _, o := range objects {
		r.objects[o.Number] = o
		r.order = append(r.order, o.Number)
	}
	return r
}

func (r *Reader) resolvedKind(o *ObjectSpec) zffio.ObjectKind {
	if o.Kind == zffio.ObjectKindEncrypted && r.decrypted[o.Number] {
		return o.Underlying
	}
	return o.Kind
}

func (r *Reader) ListObjects() (map[uint64]zffio.ObjectKind, error) {
	out := make(map[uint64]zffio.ObjectKind, len(r.objects))
	for _, n := range r.order {
		out[n] = r.resolvedKind(r.objects[n])
	}
	return out, nil
}

func (r *Reader) ListDecryptedObjects() (map[uint64]zffio.ObjectKind, error) {
	all, _ := r.ListObjects()
	out := make(map[uint64]zffio.ObjectKind, len(all))
	for n, k := range all {
		if k != zffio.ObjectKindEncrypted {
			out[n] = k
		}
	}
	return out, nil
}

func (r *Reader) InitializeObject(objectNumber uint64) error {
	if _, ok := r.objects[objectNumber]; !ok {
		return fmt.Errorf("fake: unknown object %d", objectNumber)
	}
	return nil
}

func (r *Reader) DecryptObject(objectNumber uint64, password string) (zffio.ObjectKind, error) {
	o, ok := r.objects[objectNumber]
	if !ok {
		return 0, fmt.Errorf("fake: unknown object %d", objectNumber)
	}
	if o.Kind != zffio.ObjectKindEncrypted {
		return 0, fmt.Errorf("fake: object %d is not encrypted", objectNumber)
	}
	if password != o.Password {
		return 0, zffio.ErrWrongPassword
	}
	r.decrypted[objectNumber] = true
	return o.Underlying, nil
}

func (r *Reader) SetActiveObject(objectNumber uint64) error {
	o, ok := r.objects[objectNumber]
	if !ok {
		return fmt.Errorf("fake: unknown object %d", objectNumber)
	}
	if r.resolvedKind(o) == zffio.ObjectKindEncrypted {
		return fmt.Errorf("fake: object %d is still encrypted", objectNumber)
	}
	r.activeObject = objectNumber
	r.hasActiveObj = true
	r.hasActiveFile = false

	if r.resolvedKind(o) == zffio.ObjectKindPhysical {
		r.content = bytes.NewReader(o.Data)
	} else {
		r.content = bytes.NewReader(nil)
	}
	return nil
}

func (r *Reader) mustActiveObject() (*ObjectSpec, error) {
	if !r.hasActiveObj {
		return nil, fmt.Errorf("fake: no active object")
	}
	return r.objects[r.activeObject], nil
}

func (r *Reader) findFile(o *ObjectSpec, fileNumber uint64) (*FileSpec, error) {
	for i := range o.Files {
		if o.Files[i].FileNumber == fileNumber {
			return &o.Files[i], nil
		}
	}
	return nil, fmt.Errorf("fake: object %d has no file %d", o.Number, fileNumber)
}

func (r *Reader) SetActiveFile(fileNumber uint64) error {
	o, err := r.mustActiveObject()
	if err != nil {
		return err
	}
	f, err := r.findFile(o, fileNumber)
	if err != nil {
		return err
	}

	r.activeFile = fileNumber
	r.hasActiveFile = true
	r.content = bytes.NewReader(f.payload())
	return nil
}

func (r *Reader) ActiveObjectFooter() (zffio.ObjectFooter, error) {
	o, err := r.mustActiveObject()
	if err != nil {
		return zffio.ObjectFooter{}, err
	}

	kind := r.resolvedKind(o)
	switch kind {
	case zffio.ObjectKindPhysical:
		return zffio.ObjectFooter{
			Kind: kind,
			Physical: zffio.PhysicalFooter{
				ObjectNumber:     o.Number,
				FirstChunkNumber: o.FirstChunkNumber,
				LengthOfData:     uint64(len(o.Data)),
				AcquisitionStart: o.AcquisitionStart,
				AcquisitionEnd:   o.AcquisitionEnd,
			},
		}, nil
	case zffio.ObjectKindLogical:
		segs := make(map[uint64]uint64, len(o.Files))
		for _, f := range o.Files {
			segs[f.FileNumber] = 1
		}
		return zffio.ObjectFooter{
			Kind: kind,
			Logical: zffio.LogicalFooter{
				ObjectNumber:             o.Number,
				AcquisitionStart:         o.AcquisitionStart,
				AcquisitionEnd:           o.AcquisitionEnd,
				FileFooterSegmentNumbers: segs,
				RootDirFileNumbers:       o.RootFileNumbers,
			},
		}, nil
	case zffio.ObjectKindVirtual:
		return zffio.ObjectFooter{Kind: kind}, zffio.ErrVirtualObject
	default:
		return zffio.ObjectFooter{}, fmt.Errorf("fake: object %d has unexpected kind %v", o.Number, kind)
	}
}

func (r *Reader) CurrentFileMetadata() (zffio.FileMetadata, error) {
	o, err := r.mustActiveObject()
	if err != nil {
		return zffio.FileMetadata{}, err
	}
	if !r.hasActiveFile {
		return zffio.FileMetadata{}, fmt.Errorf("fake: no active file")
	}
	f, err := r.findFile(o, r.activeFile)
	if err != nil {
		return zffio.FileMetadata{}, err
	}

	return zffio.FileMetadata{
		FileNumber:       f.FileNumber,
		FirstChunkNumber: f.FirstChunkNumber,
		ParentFileNumber: f.ParentFileNumber,
		FileType:         f.Kind,
		Filename:         f.Name,
		MetadataExt:      f.MetadataExt,
		LengthOfData:     uint64(len(f.payload())),
	}, nil
}

func (r *Reader) CurrentFileHeader() (zffio.FileHeader, error) {
	o, err := r.mustActiveObject()
	if err != nil {
		return zffio.FileHeader{}, err
	}
	if !r.hasActiveFile {
		return zffio.FileHeader{}, fmt.Errorf("fake: no active file")
	}
	f, err := r.findFile(o, r.activeFile)
	if err != nil {
		return zffio.FileHeader{}, err
	}

	ext := f.MetadataExt
	if f.HeaderMetadataExt != nil {
		ext = *f.HeaderMetadataExt
	}

	return zffio.FileHeader{
		Filename:    f.Name,
		MetadataExt: ext,
		FileType:    f.Kind,
	}, nil
}

func (r *Reader) Seek(offsetFromStart uint64) error {
	if r.content == nil {
		return fmt.Errorf("fake: nothing active to seek")
	}
	if offsetFromStart > uint64(r.content.Size()) {
		offsetFromStart = uint64(r.content.Size())
	}
	_, err := r.content.Seek(int64(offsetFromStart), io.SeekStart)
	return err
}

func (r *Reader) Read(buf []byte) (int, error) {
	if r.content == nil {
		return 0, io.EOF
	}
	return r.content.Read(buf)
}

func (r *Reader) ReadToEnd() ([]byte, error) {
	if r.content == nil {
		return nil, nil
	}
	return io.ReadAll(r.content)
}

func (r *Reader) Rewind() error {
	if r.content == nil {
		return nil
	}
	_, err := r.content.Seek(0, io.SeekStart)
	return err
}

func (r *Reader) SetPreloadChunkMapsModeInMemory() error    { return nil }
func (r *Reader) SetPreloadChunkMapsModeRedb(string) error   { return nil }
func (r *Reader) PreloadChunkHeaderMapFull() error           { return nil }
func (r *Reader) PreloadChunkSameBytesMapFull() error        { return nil }
func (r *Reader) PreloadChunkDeduplicationMapFull() error    { return nil }

var _ zffio.Reader = (*Reader)(nil)
