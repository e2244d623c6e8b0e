// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package spill

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/packedtuple/internal/compression"
)

// Writer writes batches of packed rows to an io.Writer. A Writer is not safe
// for concurrent use.
type Writer struct {
	w      io.Writer
	layout *packedtuple.Layout
	opts   WriterOptions

	compressor compression.Compressor
	// raw holds the rows and overflow of the batch being written.
	raw        []byte
	compressed []byte
	frame      []byte

	// err is sticky: once a write fails, every later call returns it.
	err error
}

// NewWriter returns a Writer for batches of the given layout and writes the
// stream header to w.
func NewWriter(w io.Writer, layout *packedtuple.Layout, opts WriterOptions) (*Writer, error) {
	opts = opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	sw := &Writer{
		w:          w,
		layout:     layout,
		opts:       opts,
		compressor: compression.GetCompressor(opts.Compression),
	}
	if err := sw.write(encodeHeader(layout)); err != nil {
		sw.compressor.Close()
		return nil, err
	}
	return sw, nil
}

func (w *Writer) write(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		w.err = errors.Wrap(err, "spill: write")
		return w.err
	}
	if w.opts.Metrics != nil {
		w.opts.Metrics.WrittenBytes.Add(float64(len(p)))
	}
	return nil
}

// WriteBatch appends a frame holding b to the stream. b.Rows must hold
// exactly b.RowCount rows of the writer's layout.
func (w *Writer) WriteBatch(b Batch) error {
	if w.err != nil {
		return w.err
	}
	if len(b.Rows) != b.RowCount*w.layout.TotalRowSize() {
		return errors.AssertionFailedf("spill: %d bytes of rows, expected %d rows of %d bytes",
			len(b.Rows), b.RowCount, w.layout.TotalRowSize())
	}

	w.raw = append(append(w.raw[:0], b.Rows...), b.Overflow...)
	algo, block := compression.NoCompression, w.raw
	if len(w.raw) > 0 && w.opts.Compression != compression.NoCompression {
		w.compressed = w.compressor.Compress(w.compressed, w.raw)
		// Only use the compressed block if it saves at least 12.5%.
		if len(w.compressed) < len(w.raw)-len(w.raw)/8 {
			algo, block = w.compressor.Algorithm(), w.compressed
		}
	}
	if len(block) > maxBlockSize {
		return errors.Newf("spill: block of %d bytes exceeds %d bytes", len(block), maxBlockSize)
	}

	f := append(w.frame[:0], byte(algo), byte(w.opts.Checksum))
	f = binary.AppendUvarint(f, uint64(b.RowCount))
	f = binary.AppendUvarint(f, uint64(len(b.Rows)))
	f = binary.AppendUvarint(f, uint64(len(b.Overflow)))
	f = binary.AppendUvarint(f, uint64(len(block)))
	f = append(f, block...)
	f = binary.LittleEndian.AppendUint32(f, checksum(w.opts.Checksum, f))
	w.frame = f
	if err := w.write(f); err != nil {
		return err
	}

	if m := w.opts.Metrics; m != nil {
		m.Batches.Inc()
		m.Rows.Add(float64(b.RowCount))
		m.RawBytes.Add(float64(len(w.raw)))
		if len(block) > 0 {
			m.CompressionRatio.Observe(float64(len(w.raw)) / float64(len(block)))
		}
	}
	return nil
}

// Close releases the writer's resources. It does not close the underlying
// io.Writer.
func (w *Writer) Close() error {
	if w.compressor != nil {
		w.compressor.Close()
		w.compressor = nil
	}
	if w.err == nil {
		w.err = errors.New("spill: writer is closed")
		return nil
	}
	return w.err
}
