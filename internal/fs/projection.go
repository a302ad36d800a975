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
	"fmt"
	"sort"

	"github.com/zff-team/zffmount/internal/fs/inode"
	"github.com/zff-team/zffmount/internal/logger"
	"github.com/zff-team/zffmount/internal/zffio"
	"github.com/zff-team/zffmount/internal/zffio/codec"
)

// PromptPassword is called once per encrypted object absent from the
// caller-supplied password map (spec §4.2 step 2). It is the mount driver's
// responsibility (an interactive terminal prompt, or anything else); the
// projection builder only calls it and forwards whatever string comes back,
// including empty.
type PromptPassword func(objectNumber uint64) (string, error)

// ObjectCounts tallies object kinds for the mount-time diagnostics summary.
type ObjectCounts struct {
	Physical  int
	Logical   int
	Encrypted int
}

// BuildProjection performs the one-shot mount-time traversal of spec §4.2:
// it lists objects, attempts decryption of every encrypted one, computes the
// inode shift S, then walks every decrypted object populating the inode
// maps. Any failure outside of a single object's decryption attempt is
// fatal, matching "Mount-time failures" in spec §7.
func BuildProjection(reader zffio.Reader, passwords map[uint64]string, prompt PromptPassword, uid, gid uint32) (*inode.Maps, ObjectCounts, error) {
	var counts ObjectCounts

	listed, err := reader.ListObjects()
	if err != nil {
		return nil, counts, fmt.Errorf("projection: list_objects: %w", err)
	}

	objectNumbers := sortedKeys(listed)
	for _, n := range objectNumbers {
		if err := reader.InitializeObject(n); err != nil {
			return nil, counts, fmt.Errorf("projection: initialize_object(%d): %w", n, err)
		}

		kind := listed[n]
		switch kind {
		case zffio.ObjectKindPhysical:
			counts.Physical++
		case zffio.ObjectKindLogical:
			counts.Logical++
		case zffio.ObjectKindEncrypted:
			counts.Encrypted++
			password, ok := passwords[n]
			if !ok {
				password, err = prompt(n)
				if err != nil {
					logger.Warnf("projection: object %d: password prompt failed: %v", n, err)
					continue
				}
			}
			resolved, err := reader.DecryptObject(n, password)
			if err != nil {
				logger.Warnf("projection: object %d: decryption failed, dropping from mount: %v", n, err)
				continue
			}
			if resolved == zffio.ObjectKindLogical {
				counts.Logical++
			} else {
				counts.Physical++
			}
			counts.Encrypted--
		}
	}

	decrypted, err := reader.ListDecryptedObjects()
	if err != nil {
		return nil, counts, fmt.Errorf("projection: list_decrypted_objects: %w", err)
	}

	decryptedNumbers := sortedKeys(decrypted)
	shift := inode.ComputeShift(decryptedNumbers)
	maps := inode.NewMaps(shift)

	var minFirstChunk uint64
	hasFiles := false
	trackMin := func(firstChunk uint64) {
		if !hasFiles || firstChunk < minFirstChunk {
			minFirstChunk = firstChunk
		}
		hasFiles = true
	}

	for _, n := range decryptedNumbers {
		objKind := decrypted[n]
		if objKind == zffio.ObjectKindVirtual {
			return nil, counts, fmt.Errorf("projection: object %d: virtual objects are unsupported", n)
		}

		maps.AddObject(n, objKind)

		if err := reader.SetActiveObject(n); err != nil {
			return nil, counts, fmt.Errorf("projection: set_active_object(%d): %w", n, err)
		}
		footer, err := reader.ActiveObjectFooter()
		if err != nil {
			return nil, counts, fmt.Errorf("projection: active_object_footer(%d): %w", n, err)
		}

		objectRootInode := inode.ObjectInode(n)

		switch objKind {
		case zffio.ObjectKindPhysical:
			p := footer.Physical
			maps.SetAttributes(objectRootInode, attrsForObjectRoot(p.AcquisitionStart, p.AcquisitionEnd, uid, gid))

			trackMin(p.FirstChunkNumber)
			fileInode := maps.FileInode(p.FirstChunkNumber)
			maps.AddFile(fileInode, n, 0)
			maps.SetAttributes(fileInode, attrsForPhysicalFile(p.LengthOfData, p.AcquisitionStart, p.AcquisitionEnd, uid, gid))

		case zffio.ObjectKindLogical:
			l := footer.Logical
			maps.SetAttributes(objectRootInode, attrsForObjectRoot(l.AcquisitionStart, l.AcquisitionEnd, uid, gid))

			fileNumbers := make([]uint64, 0, len(l.FileFooterSegmentNumbers))
			for f := range l.FileFooterSegmentNumbers {
				fileNumbers = append(fileNumbers, f)
			}
			sort.Slice(fileNumbers, func(i, j int) bool { return fileNumbers[i] < fileNumbers[j] })

			for _, f := range fileNumbers {
				if err := projectLogicalFile(reader, maps, n, f, shift, uid, gid, trackMin); err != nil {
					return nil, counts, fmt.Errorf("projection: object %d file %d: %w", n, f, err)
				}
			}
		}
	}

	if err := inode.ValidateShift(shift, minFirstChunk, hasFiles); err != nil {
		return nil, counts, fmt.Errorf("projection: %w", err)
	}

	logger.Infof("projection: found %d physical, %d logical and %d encrypted objects",
		counts.Physical, counts.Logical, counts.Encrypted)

	return maps, counts, nil
}

// projectLogicalFile implements spec §4.2 step 4c for a single file number:
// read its metadata, resolve hardlinks to their target for attribute/inode
// purposes while keeping the source's own name and parent, then record the
// maps entries.
func projectLogicalFile(reader zffio.Reader, maps *inode.Maps, objectNumber, fileNumber, shift uint64, uid, gid uint32, trackMin func(uint64)) error {
	if err := reader.SetActiveFile(fileNumber); err != nil {
		return fmt.Errorf("set_active_file: %w", err)
	}
	meta, err := reader.CurrentFileMetadata()
	if err != nil {
		return fmt.Errorf("current_filemetadata: %w", err)
	}
	header, err := reader.CurrentFileHeader()
	if err != nil {
		return fmt.Errorf("current_fileheader: %w", err)
	}

	name := meta.Filename
	if name == "" {
		name = header.Filename
	}
	parentFileNumber := meta.ParentFileNumber

	effectiveMeta := meta
	effectiveHeader := header

	if meta.FileType == zffio.FileKindHardlink {
		if err := reader.Rewind(); err != nil {
			return fmt.Errorf("rewind: %w", err)
		}
		payload, err := reader.ReadToEnd()
		if err != nil {
			return fmt.Errorf("read_to_end: %w", err)
		}
		target, err := codec.DecodeUint64(payload)
		if err != nil {
			return fmt.Errorf("decode hardlink payload: %w", err)
		}
		if err := reader.SetActiveFile(target); err != nil {
			return fmt.Errorf("set_active_file(target %d): %w", target, err)
		}
		effectiveMeta, err = reader.CurrentFileMetadata()
		if err != nil {
			return fmt.Errorf("current_filemetadata(target %d): %w", target, err)
		}
		effectiveHeader, err = reader.CurrentFileHeader()
		if err != nil {
			return fmt.Errorf("current_fileheader(target %d): %w", target, err)
		}
	}

	var specialPayload []byte
	if effectiveMeta.FileType == zffio.FileKindSpecial {
		if err := reader.Rewind(); err != nil {
			return fmt.Errorf("rewind: %w", err)
		}
		specialPayload, err = reader.ReadToEnd()
		if err != nil {
			return fmt.Errorf("read_to_end: %w", err)
		}
	}

	typeMode, err := typeModeFor(effectiveMeta.FileType, specialPayload)
	if err != nil {
		return err
	}

	trackMin(effectiveMeta.FirstChunkNumber)
	fileInode := maps.FileInode(effectiveMeta.FirstChunkNumber)

	maps.AddFile(fileInode, objectNumber, fileNumber)
	maps.SetAttributes(fileInode, attrsForLogicalFile(
		effectiveMeta.LengthOfData, typeMode, effectiveMeta.MetadataExt, effectiveHeader.MetadataExt, uid, gid))

	parentInode := inode.ObjectInode(objectNumber)
	if parentFileNumber != 0 {
		if err := reader.SetActiveFile(parentFileNumber); err != nil {
			return fmt.Errorf("set_active_file(parent %d): %w", parentFileNumber, err)
		}
		parentMeta, err := reader.CurrentFileMetadata()
		if err != nil {
			return fmt.Errorf("current_filemetadata(parent %d): %w", parentFileNumber, err)
		}
		parentInode = maps.FileInode(parentMeta.FirstChunkNumber)
	}
	maps.AddName(name, parentInode, fileInode)

	return nil
}

func sortedKeys(m map[uint64]zffio.ObjectKind) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
