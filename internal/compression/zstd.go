// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"encoding/binary"

	"github.com/cockroachdb/packedtuple/internal/base"
)

// maxDecompressedLen bounds the length claimed by a zstd block header.
const maxDecompressedLen = 1 << 31

func zstdDecompressedLen(b []byte) (int, error) {
	decodedLenU64, varIntLen := binary.Uvarint(b)
	if varIntLen <= 0 || decodedLenU64 > maxDecompressedLen {
		return 0, base.CorruptionErrorf("zstd: block has invalid length")
	}
	return int(decodedLenU64), nil
}
