// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !cgo

package compression

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple/internal/base"
	"github.com/klauspost/compress/zstd"
)

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository. The pure Go implementation
// produces different (but compatible) compressed output.
const UseStandardZstdLib = false

type zstdCompressor struct {
	enc *zstd.Encoder
}

var _ Compressor = (*zstdCompressor)(nil)

func getZstdCompressor(level int) *zstdCompressor {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(errors.Wrap(err, "zstd encoder"))
	}
	return &zstdCompressor{enc: enc}
}

func (z *zstdCompressor) Algorithm() Algorithm { return Zstd }

// Compress prefixes the compressed block with a uvarint holding the length of
// the uncompressed block.
func (z *zstdCompressor) Compress(dst, src []byte) []byte {
	dst = binary.AppendUvarint(dst[:0], uint64(len(src)))
	return z.enc.EncodeAll(src, dst)
}

func (z *zstdCompressor) Close() {
	if err := z.enc.Close(); err != nil {
		panic(err)
	}
}

type zstdDecompressor struct {
	dec *zstd.Decoder
}

var _ Decompressor = zstdDecompressor{}

var zstdDecoder = sync.OnceValue(func() *zstd.Decoder {
	// A Decoder without a reader may be used concurrently by DecodeAll.
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(errors.Wrap(err, "zstd decoder"))
	}
	return dec
})

func getZstdDecompressor() zstdDecompressor {
	return zstdDecompressor{dec: zstdDecoder()}
}

func (z zstdDecompressor) DecompressInto(dst, src []byte) error {
	_, prefixLen := binary.Uvarint(src)
	if prefixLen <= 0 {
		return base.CorruptionErrorf("zstd: block has invalid length")
	}
	result, err := z.dec.DecodeAll(src[prefixLen:], dst[:0])
	if err != nil {
		return base.MarkCorruptionError(err)
	}
	if len(result) != len(dst) || (len(result) > 0 && &result[0] != &dst[0]) {
		return base.CorruptionErrorf("zstd: decompressed into unexpected buffer: %p != %p",
			errors.Safe(result), errors.Safe(dst))
	}
	return nil
}

func (zstdDecompressor) DecompressedLen(b []byte) (decompressedLen int, err error) {
	return zstdDecompressedLen(b)
}

func (zstdDecompressor) Close() {}
