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

package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zff-team/zffmount/internal/zffio/codec"
)

func TestUint64SliceRoundTrip(t *testing.T) {
	in := []uint64{10, 11, 4294967296, 0}
	buf := codec.EncodeUint64Slice(in)

	out, err := codec.DecodeUint64Slice(buf)

	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUint64SliceRoundTrip_Empty(t *testing.T) {
	buf := codec.EncodeUint64Slice(nil)

	out, err := codec.DecodeUint64Slice(buf)

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecodeUint64Slice_TooShort(t *testing.T) {
	_, err := codec.DecodeUint64Slice([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeUint64Slice_LengthMismatch(t *testing.T) {
	buf := codec.EncodeUint64Slice([]uint64{1, 2, 3})
	_, err := codec.DecodeUint64Slice(buf[:len(buf)-1])
	assert.Error(t, err)
}

func TestUint64RoundTrip(t *testing.T) {
	buf := codec.EncodeUint64(20)

	out, err := codec.DecodeUint64(buf)

	require.NoError(t, err)
	assert.Equal(t, uint64(20), out)
}

func TestDecodeUint64_WrongSize(t *testing.T) {
	_, err := codec.DecodeUint64([]byte{1, 2, 3})
	assert.Error(t, err)
}
