// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package compression implements the block compressors available for spilled
// batches of packed rows.
package compression

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Algorithm identifies a compression algorithm. Its numeric value is stored
// in spill frames and must not change.
type Algorithm uint8

const (
	NoCompression Algorithm = iota
	Snappy
	MinLZ
	Zstd

	NumAlgorithms
)

var algorithmNames = [NumAlgorithms]string{
	NoCompression: "none",
	Snappy:        "snappy",
	MinLZ:         "minlz",
	Zstd:          "zstd",
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	if a < NumAlgorithms {
		return algorithmNames[a]
	}
	return "unknown"
}

// SafeValue implements redact.SafeValue.
func (Algorithm) SafeValue() {}

// ParseAlgorithm parses the string representation of an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	for i, name := range algorithmNames {
		if strings.EqualFold(s, name) {
			return Algorithm(i), nil
		}
	}
	return 0, errors.Newf("unknown compression algorithm %q", s)
}

// DefaultZstdLevel is the zstd level used by GetCompressor.
const DefaultZstdLevel = 3

// Compressor compresses blocks.
type Compressor interface {
	// Algorithm returns the algorithm the compressed output must be
	// decompressed with.
	Algorithm() Algorithm

	// Compress a block, appending the compressed data to dst[:0].
	Compress(dst, src []byte) []byte

	// Close must be called when the Compressor is no longer needed.
	// After Close is called, the Compressor must not be used again.
	Close()
}

// Decompressor decompresses blocks produced by the Compressor of the same
// algorithm.
type Decompressor interface {
	// DecompressInto decompresses compressed into buf. The buf slice must
	// have the exact size as the decompressed value. Callers may use
	// DecompressedLen to determine the correct size.
	DecompressInto(buf, compressed []byte) error

	// DecompressedLen returns the length of the provided block once
	// decompressed, allowing the caller to allocate a buffer exactly sized to
	// the decompressed payload.
	DecompressedLen(b []byte) (decompressedLen int, err error)

	// Close must be called when the Decompressor is no longer needed.
	// After Close is called, the Decompressor must not be used again.
	Close()
}

// GetCompressor returns a Compressor for the given algorithm.
func GetCompressor(a Algorithm) Compressor {
	switch a {
	case NoCompression:
		return noopCompressor{}
	case Snappy:
		return snappyCompressor{}
	case MinLZ:
		return minlzCompressorFastest
	case Zstd:
		return getZstdCompressor(DefaultZstdLevel)
	default:
		panic(errors.AssertionFailedf("unknown compression algorithm %d", errors.Safe(a)))
	}
}

// GetDecompressor returns a Decompressor for the given algorithm.
func GetDecompressor(a Algorithm) Decompressor {
	switch a {
	case NoCompression:
		return noopDecompressor{}
	case Snappy:
		return snappyDecompressor{}
	case MinLZ:
		return minlzDecompressor{}
	case Zstd:
		return getZstdDecompressor()
	default:
		panic(errors.AssertionFailedf("unknown compression algorithm %d", errors.Safe(a)))
	}
}
