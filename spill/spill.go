// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package spill serializes batches of packed rows, along with the overflow
// buffers their variable-width values spill into, so that an operator can
// move them out of memory and read them back.
//
// A spill stream begins with a header identifying the layout of the rows,
// followed by one frame per batch:
//
//	header: magic (8) | version (4) | row size (4) | layout fingerprint (8)
//	frame:  compression (1) | checksum type (1) | row count (uvarint) |
//	        rows length (uvarint) | overflow length (uvarint) |
//	        block length (uvarint) | block | checksum (4)
//
// The block holds the rows followed by the overflow buffer, compressed with
// the frame's algorithm. The checksum covers every preceding byte of the
// frame. Fixed-width integers are little endian.
package spill

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/packedtuple/internal/compression"
	"github.com/cockroachdb/packedtuple/internal/crc"
)

const (
	magic = "ptspill\x00"
	// Version is the format version written by Writer.
	Version    = 1
	headerSize = len(magic) + 4 + 4 + 8
	// maxBlockSize bounds the size of a frame's block.
	maxBlockSize = 1 << 30
)

var (
	// ErrLayoutMismatch is returned when a spill stream was written for a
	// different layout than the one it is read with.
	ErrLayoutMismatch = errors.New("spill: layout mismatch")
	// ErrUnsupportedVersion is returned for spill streams written in an
	// unknown format version.
	ErrUnsupportedVersion = errors.New("spill: unsupported version")
)

// Batch is a set of packed rows of one layout together with the overflow
// buffer their variable-width values refer to.
type Batch struct {
	Rows     []byte
	RowCount int
	Overflow []byte
}

// Compression selects the algorithm frames are compressed with.
type Compression = compression.Algorithm

// Compression algorithms.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.Snappy
	MinLZCompression  = compression.MinLZ
	ZstdCompression   = compression.Zstd
)

// ParseCompression parses the string representation of a Compression.
func ParseCompression(s string) (Compression, error) {
	return compression.ParseAlgorithm(s)
}

// ChecksumType specifies the checksum protecting each frame.
type ChecksumType uint8

// The available checksum types. Values are stored in frames and must not
// change; zero is invalid so that every frame is checksummed.
const (
	ChecksumTypeCRC32c ChecksumType = 1 + iota
	ChecksumTypeXXHash64
)

// String implements fmt.Stringer.
func (t ChecksumType) String() string {
	switch t {
	case ChecksumTypeCRC32c:
		return "crc32c"
	case ChecksumTypeXXHash64:
		return "xxhash64"
	default:
		return "unknown"
	}
}

func (t ChecksumType) valid() bool {
	return t == ChecksumTypeCRC32c || t == ChecksumTypeXXHash64
}

// SafeValue implements redact.SafeValue.
func (ChecksumType) SafeValue() {}

// ParseChecksumType parses the string representation of a ChecksumType.
func ParseChecksumType(s string) (ChecksumType, error) {
	switch strings.ToLower(s) {
	case "crc32c":
		return ChecksumTypeCRC32c, nil
	case "xxhash64":
		return ChecksumTypeXXHash64, nil
	default:
		return 0, errors.Newf("spill: unknown checksum type %q", s)
	}
}

// checksum computes the checksum of a frame prefix. xxhash64 checksums are
// truncated to their low 32 bits.
func checksum(t ChecksumType, frame []byte) uint32 {
	switch t {
	case ChecksumTypeCRC32c:
		return crc.Checksum(frame)
	case ChecksumTypeXXHash64:
		return uint32(xxhash.Sum64(frame))
	default:
		panic(errors.AssertionFailedf("unknown checksum type %d", t))
	}
}

// Fingerprint identifies the binary format of a layout's rows. Layouts
// planned from the same columns have the same fingerprint.
func Fingerprint(l *packedtuple.Layout) uint64 {
	return xxhash.Sum64String(l.String())
}

func encodeHeader(l *packedtuple.Layout) []byte {
	buf := make([]byte, 0, headerSize)
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint32(buf, Version)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(l.TotalRowSize()))
	buf = binary.LittleEndian.AppendUint64(buf, Fingerprint(l))
	return buf
}
