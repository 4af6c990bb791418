// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/gofleet/errors"
)

type snapshotState struct {
	Revision int64             `json:"revision"`
	Entries  map[string]string `json:"entries"`
}

func TestSnapshotRoundTrip(t *testing.T) {
	state := snapshotState{
		Revision: 42,
		Entries: map[string]string{
			"inbound-1": "vmess",
			"inbound-2": "trojan",
		},
	}

	encoded, err := EncodeSnapshot(state)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	var decoded snapshotState
	require.NoError(t, DecodeSnapshot(encoded, &decoded))
	assert.Equal(t, state, decoded)
}

func TestSnapshotCorruption(t *testing.T) {
	t.Run("With truncated frame", func(t *testing.T) {
		err := DecodeSnapshot([]byte{0xF5}, &snapshotState{})
		require.ErrorIs(t, err, gerrors.ErrCorruptSnapshot)
	})
	t.Run("With unknown magic", func(t *testing.T) {
		encoded, err := EncodeSnapshot(snapshotState{Revision: 1})
		require.NoError(t, err)
		encoded[0] = 0x00
		err = DecodeSnapshot(encoded, &snapshotState{})
		require.ErrorIs(t, err, gerrors.ErrCorruptSnapshot)
	})
	t.Run("With flipped payload byte", func(t *testing.T) {
		encoded, err := EncodeSnapshot(snapshotState{Revision: 1})
		require.NoError(t, err)
		encoded[len(encoded)-1] ^= 0xFF
		err = DecodeSnapshot(encoded, &snapshotState{})
		require.ErrorIs(t, err, gerrors.ErrCorruptSnapshot)
	})
	t.Run("With flipped checksum byte", func(t *testing.T) {
		encoded, err := EncodeSnapshot(snapshotState{Revision: 1})
		require.NoError(t, err)
		encoded[5] ^= 0xFF
		err = DecodeSnapshot(encoded, &snapshotState{})
		require.ErrorIs(t, err, gerrors.ErrCorruptSnapshot)
	})
}
