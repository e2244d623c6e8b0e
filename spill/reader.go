// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package spill

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/packedtuple/internal/base"
	"github.com/cockroachdb/packedtuple/internal/compression"
)

// Reader reads the batches of a spill stream. A Reader is not safe for
// concurrent use.
type Reader struct {
	fr     frameReader
	layout *packedtuple.Layout
	err    error
}

// frameReader records the bytes of the frame being read, for the checksum.
type frameReader struct {
	r     *bufio.Reader
	frame []byte
	// ioErr is the last error returned by r.
	ioErr error
}

var _ io.ByteReader = (*frameReader)(nil)

func (f *frameReader) ReadByte() (byte, error) {
	c, err := f.r.ReadByte()
	if err != nil {
		f.ioErr = err
		return 0, err
	}
	f.frame = append(f.frame, c)
	return c, nil
}

// NewReader reads and validates the stream header of r. The stream must have
// been written for a layout with the same format as layout.
func NewReader(r io.Reader, layout *packedtuple.Layout) (*Reader, error) {
	br := bufio.NewReader(r)
	var header [headerSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, base.CorruptionErrorf("spill: truncated header")
		}
		return nil, errors.Wrap(err, "spill: reading header")
	}
	if string(header[:len(magic)]) != magic {
		return nil, base.CorruptionErrorf("spill: invalid magic %q", header[:len(magic)])
	}
	b := header[len(magic):]
	if v := binary.LittleEndian.Uint32(b); v != Version {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}
	if rowSize := binary.LittleEndian.Uint32(b[4:]); int(rowSize) != layout.TotalRowSize() {
		return nil, errors.Wrapf(ErrLayoutMismatch, "row size %d, expected %d", rowSize, layout.TotalRowSize())
	}
	if fp := binary.LittleEndian.Uint64(b[8:]); fp != Fingerprint(layout) {
		return nil, errors.Wrapf(ErrLayoutMismatch, "fingerprint %016x, expected %016x", fp, Fingerprint(layout))
	}
	return &Reader{fr: frameReader{r: br}, layout: layout}, nil
}

func (r *Reader) readUvarint(what string) (uint64, error) {
	r.fr.ioErr = nil
	v, err := binary.ReadUvarint(&r.fr)
	if err != nil {
		if r.fr.ioErr == nil {
			// The varint itself is malformed.
			return 0, base.MarkCorruptionError(errors.Wrapf(err, "spill: reading %s", errors.Safe(what)))
		}
		return 0, r.truncated(err, what)
	}
	return v, nil
}

// truncated converts an error reading a frame into a corruption error if the
// stream ended inside the frame.
func (r *Reader) truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return base.CorruptionErrorf("spill: truncated frame reading %s", errors.Safe(what))
	}
	return errors.Wrapf(err, "spill: reading %s", errors.Safe(what))
}

// Next returns the next batch of the stream, or io.EOF once every batch has
// been read. The returned batch owns its memory.
func (r *Reader) Next() (Batch, error) {
	if r.err != nil {
		return Batch{}, r.err
	}
	b, err := r.next()
	if err != nil {
		r.err = err
	}
	return b, err
}

func (r *Reader) next() (Batch, error) {
	r.fr.frame = r.fr.frame[:0]
	algoByte, err := r.fr.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Batch{}, io.EOF
		}
		return Batch{}, errors.Wrap(err, "spill: reading frame")
	}
	algo := compression.Algorithm(algoByte)
	if algo >= compression.NumAlgorithms {
		return Batch{}, base.CorruptionErrorf("spill: unknown compression %d", errors.Safe(algoByte))
	}
	checksumByte, err := r.fr.ReadByte()
	if err != nil {
		return Batch{}, r.truncated(err, "checksum type")
	}
	checksumType := ChecksumType(checksumByte)
	if !checksumType.valid() {
		return Batch{}, base.CorruptionErrorf("spill: unknown checksum type %d", errors.Safe(checksumByte))
	}

	var lens [4]uint64
	for i, what := range [...]string{"row count", "rows length", "overflow length", "block length"} {
		if lens[i], err = r.readUvarint(what); err != nil {
			return Batch{}, err
		}
	}
	rowCount, rowsLen, overflowLen, blockLen := lens[0], lens[1], lens[2], lens[3]
	rowSize := uint64(r.layout.TotalRowSize())
	if rowCount > maxBlockSize || rowCount*rowSize != rowsLen {
		return Batch{}, base.CorruptionErrorf("spill: %d bytes of rows, expected %d rows of %d bytes",
			rowsLen, rowCount, rowSize)
	}
	if blockLen > maxBlockSize || rowsLen+overflowLen > maxBlockSize {
		return Batch{}, base.CorruptionErrorf("spill: frame of %d bytes exceeds %d bytes",
			max(blockLen, rowsLen+overflowLen), maxBlockSize)
	}

	frame := r.fr.frame
	start := len(frame)
	frame = append(frame, make([]byte, blockLen+4)...)
	r.fr.frame = frame
	if _, err := io.ReadFull(r.fr.r, frame[start:]); err != nil {
		return Batch{}, r.truncated(err, "block")
	}
	block := frame[start : start+int(blockLen)]
	stored := binary.LittleEndian.Uint32(frame[start+int(blockLen):])
	if computed := checksum(checksumType, frame[:start+int(blockLen)]); computed != stored {
		return Batch{}, base.CorruptionErrorf("spill: checksum mismatch %08x != %08x",
			errors.Safe(computed), errors.Safe(stored))
	}

	decompressor := compression.GetDecompressor(algo)
	defer decompressor.Close()
	n, err := decompressor.DecompressedLen(block)
	if err != nil {
		return Batch{}, base.MarkCorruptionError(err)
	}
	if uint64(n) != rowsLen+overflowLen {
		return Batch{}, base.CorruptionErrorf("spill: block decompresses to %d bytes, expected %d",
			n, rowsLen+overflowLen)
	}
	raw := make([]byte, n)
	if n > 0 {
		if err := decompressor.DecompressInto(raw, block); err != nil {
			return Batch{}, base.MarkCorruptionError(err)
		}
	}

	b := Batch{
		Rows:     raw[:rowsLen:rowsLen],
		RowCount: int(rowCount),
		Overflow: raw[rowsLen:],
	}
	if err := r.layout.CheckRows(b.Rows, b.Overflow, b.RowCount); err != nil {
		return Batch{}, err
	}
	return b, nil
}
