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

// Package codec implements the value-decoder helper the overlay filesystem
// uses to interpret the two payload shapes the container defines in terms
// the dispatcher consumes directly (spec §6.1): a directory's child-file
// list, and a hardlink's target file number. The wire format itself is a
// container-format detail external to this spec; this package picks one
// concrete, self-describing encoding (a little-endian length prefix
// followed by little-endian uint64 elements) so the adapter has something
// to decode against.
package codec

import (
	"encoding/binary"
	"fmt"
)

// EncodeUint64Slice encodes a list of file numbers as a directory payload:
// an 8-byte little-endian count followed by that many 8-byte little-endian
// values.
func EncodeUint64Slice(values []uint64) []byte {
	buf := make([]byte, 8+8*len(values))
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(values)))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8+8*i:8+8*i+8], v)
	}
	return buf
}

// DecodeUint64Slice decodes a directory payload produced by
// EncodeUint64Slice.
func DecodeUint64Slice(buf []byte) ([]uint64, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("codec: buffer too short for a count prefix (%d bytes)", len(buf))
	}

	count := binary.LittleEndian.Uint64(buf[:8])
	want := 8 + 8*count
	if uint64(len(buf)) != want {
		return nil, fmt.Errorf("codec: buffer length %d does not match encoded count %d", len(buf), count)
	}

	out := make([]uint64, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(buf[8+8*i : 8+8*i+8])
	}
	return out, nil
}

// EncodeUint64 encodes a single file number as a hardlink payload.
func EncodeUint64(value uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return buf
}

// DecodeUint64 decodes a hardlink payload produced by EncodeUint64.
func DecodeUint64(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("codec: hardlink payload must be exactly 8 bytes, got %d", len(buf))
	}
	return binary.LittleEndian.Uint64(buf), nil
}
