// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build cgo

package compression

import (
	"encoding/binary"
	"sync"

	"github.com/DataDog/zstd"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple/internal/base"
)

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository. The pure Go implementation
// produces different (but compatible) compressed output.
const UseStandardZstdLib = true

type zstdCompressor struct {
	level int
	ctx   zstd.Ctx
}

var _ Compressor = (*zstdCompressor)(nil)

var zstdCompressorPool = sync.Pool{
	New: func() any {
		return &zstdCompressor{ctx: zstd.NewCtx()}
	},
}

func getZstdCompressor(level int) *zstdCompressor {
	z := zstdCompressorPool.Get().(*zstdCompressor)
	z.level = level
	return z
}

func (z *zstdCompressor) Algorithm() Algorithm { return Zstd }

// Compress prefixes the compressed block with a uvarint holding the length of
// the uncompressed block.
func (z *zstdCompressor) Compress(dst, src []byte) []byte {
	// Size the buffer from the bound instead of relying on DataDog/zstd to
	// allocate, so the block lands right after the varint prefix.
	bound := zstd.CompressBound(len(src))
	if cap(dst) < binary.MaxVarintLen64+bound {
		dst = make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+bound)
	}
	dst = dst[:binary.MaxVarintLen64+bound]

	varIntLen := binary.PutUvarint(dst, uint64(len(src)))
	result, err := z.ctx.CompressLevel(dst[varIntLen:varIntLen+bound], src, z.level)
	if err != nil {
		panic(errors.Wrap(err, "zstd compression"))
	}
	if len(result) > 0 && &result[0] != &dst[varIntLen] {
		panic(errors.AssertionFailedf("zstd allocated a new buffer despite CompressBound"))
	}
	return dst[:varIntLen+len(result)]
}

func (z *zstdCompressor) Close() {
	zstdCompressorPool.Put(z)
}

type zstdDecompressor struct {
	ctx zstd.Ctx
}

var _ Decompressor = (*zstdDecompressor)(nil)

var zstdDecompressorPool = sync.Pool{
	New: func() any {
		return &zstdDecompressor{ctx: zstd.NewCtx()}
	},
}

func getZstdDecompressor() *zstdDecompressor {
	return zstdDecompressorPool.Get().(*zstdDecompressor)
}

// DecompressInto decompresses src with the Zstandard algorithm. The destination
// buffer must already be sufficiently sized, otherwise DecompressInto may error.
func (z *zstdDecompressor) DecompressInto(dst, src []byte) error {
	_, prefixLen := binary.Uvarint(src)
	if prefixLen <= 0 {
		return base.CorruptionErrorf("zstd: block has invalid length")
	}
	src = src[prefixLen:]
	if len(src) == 0 {
		return base.CorruptionErrorf("zstd: empty src buffer")
	}
	if len(dst) == 0 {
		return base.CorruptionErrorf("zstd: empty dst buffer")
	}
	n, err := z.ctx.DecompressInto(dst, src)
	if err != nil {
		return base.MarkCorruptionError(err)
	}
	if n != len(dst) {
		return base.CorruptionErrorf("zstd: decompressed %d bytes, expected %d", n, len(dst))
	}
	return nil
}

func (*zstdDecompressor) DecompressedLen(b []byte) (decompressedLen int, err error) {
	return zstdDecompressedLen(b)
}

func (z *zstdDecompressor) Close() {
	zstdDecompressorPool.Put(z)
}
