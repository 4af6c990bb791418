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

// Package codec frames durable cache snapshots. A snapshot is the JSON form
// of the in-memory state, zstd-compressed and prefixed with a small header
// carrying a magic byte, a format version and an xxh3 checksum of the
// compressed payload. Any integrity failure decodes to ErrCorruptSnapshot so
// callers fall back to a full reload instead of serving damaged state.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/zeebo/xxh3"

	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/internal/compression"
)

const (
	snapshotMagic   byte = 0xF5
	snapshotVersion byte = 0x01
	// magic + version + 8-byte checksum
	headerSize = 10
)

// EncodeSnapshot serializes v into the framed snapshot format.
func EncodeSnapshot(v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode snapshot: %w", err)
	}

	compressed := compression.Compress(plain)
	out := make([]byte, headerSize, headerSize+len(compressed))
	out[0] = snapshotMagic
	out[1] = snapshotVersion
	binary.LittleEndian.PutUint64(out[2:headerSize], xxh3.Hash(compressed))
	return append(out, compressed...), nil
}

// DecodeSnapshot deserializes a framed snapshot into v. It returns an error
// wrapping ErrCorruptSnapshot when the frame is truncated, carries an unknown
// magic or version, fails its checksum, or does not decompress or unmarshal.
func DecodeSnapshot(data []byte, v any) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: truncated header", gerrors.ErrCorruptSnapshot)
	}

	if data[0] != snapshotMagic || data[1] != snapshotVersion {
		return fmt.Errorf("%w: unknown magic or version", gerrors.ErrCorruptSnapshot)
	}

	payload := data[headerSize:]
	if xxh3.Hash(payload) != binary.LittleEndian.Uint64(data[2:headerSize]) {
		return fmt.Errorf("%w: checksum mismatch", gerrors.ErrCorruptSnapshot)
	}

	plain, err := compression.Decompress(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", gerrors.ErrCorruptSnapshot, err)
	}

	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: %v", gerrors.ErrCorruptSnapshot, err)
	}
	return nil
}
