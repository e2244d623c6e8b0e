// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package spill

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/packedtuple/internal/base"
	"github.com/cockroachdb/packedtuple/internal/compression"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) *packedtuple.Layout {
	cols, err := packedtuple.ParseSchema("key:u64, key:var:16, payload:u32, payload:var:24")
	require.NoError(t, err)
	l, err := packedtuple.NewLayout(cols, nil)
	require.NoError(t, err)
	return l
}

// makeBatch packs n rows of compressible values; long strings overflow.
func makeBatch(t *testing.T, rng *rand.Rand, l *packedtuple.Layout, n int) Batch {
	var b packedtuple.ColumnsBuilder
	b.Init(l)
	for i := 0; i < n; i++ {
		k := rng.IntN(100)
		b.AppendFixed(0, []byte{byte(k), 0, 0, 0, 0, 0, 0, 0})
		b.AppendVariable(1, []byte(fmt.Sprintf("key-%d-%s", k, bytes.Repeat([]byte("x"), rng.IntN(20)))))
		if rng.IntN(4) == 0 {
			b.AppendNull(2)
		} else {
			b.AppendFixed(2, []byte{byte(i), byte(i >> 8), 0, 0})
		}
		b.AppendVariable(3, bytes.Repeat([]byte("payload "), rng.IntN(8)))
	}
	columns, validity := b.Columns()
	rows := make([]byte, n*l.TotalRowSize())
	overflow := l.Pack(columns, validity, rows, nil, 0, n)
	return Batch{Rows: rows, RowCount: n, Overflow: overflow}
}

func writeStream(t *testing.T, l *packedtuple.Layout, opts WriterOptions, batches []Batch) []byte {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, l, opts)
	require.NoError(t, err)
	for _, b := range batches {
		require.NoError(t, w.WriteBatch(b))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readStream(l *packedtuple.Layout, data []byte) ([]Batch, error) {
	r, err := NewReader(bytes.NewReader(data), l)
	if err != nil {
		return nil, err
	}
	var batches []Batch
	for {
		b, err := r.Next()
		if err == io.EOF {
			return batches, nil
		}
		if err != nil {
			return batches, err
		}
		batches = append(batches, b)
	}
}

func TestRoundTrip(t *testing.T) {
	defer leaktest.AfterTest(t)()
	l := testLayout(t)
	rng := rand.New(rand.NewPCG(0, 1))
	batches := []Batch{
		makeBatch(t, rng, l, 1),
		makeBatch(t, rng, l, 0),
		makeBatch(t, rng, l, 100),
		makeBatch(t, rng, l, 1000),
	}
	for c := compression.NoCompression; c < compression.NumAlgorithms; c++ {
		for _, ct := range []ChecksumType{ChecksumTypeCRC32c, ChecksumTypeXXHash64} {
			t.Run(fmt.Sprintf("%s/%s", c, ct), func(t *testing.T) {
				data := writeStream(t, l, WriterOptions{Compression: c, Checksum: ct}, batches)
				got, err := readStream(l, data)
				require.NoError(t, err)
				require.Len(t, got, len(batches))
				for i := range batches {
					require.Equal(t, batches[i].RowCount, got[i].RowCount)
					require.Equal(t, len(batches[i].Rows), len(got[i].Rows))
					require.True(t, bytes.Equal(batches[i].Rows, got[i].Rows))
					require.True(t, bytes.Equal(batches[i].Overflow, got[i].Overflow))
				}
			})
		}
	}
}

func TestCompressionShrinksStream(t *testing.T) {
	l := testLayout(t)
	batch := makeBatch(t, rand.New(rand.NewPCG(0, 2)), l, 1000)
	plain := writeStream(t, l, WriterOptions{}, []Batch{batch})
	for _, c := range []Compression{SnappyCompression, MinLZCompression, ZstdCompression} {
		compressed := writeStream(t, l, WriterOptions{Compression: c}, []Batch{batch})
		require.Less(t, len(compressed), len(plain), "%s", c)
		require.Equal(t, byte(c), compressed[headerSize])
	}
}

func TestIncompressibleStoredRaw(t *testing.T) {
	// Rows hold a random key and its hash; only the bitmask is predictable.
	cols, err := packedtuple.ParseSchema("key:u64")
	require.NoError(t, err)
	l, err := packedtuple.NewLayout(cols, nil)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(0, 3))
	data := make([]byte, 512*8)
	for i := range data {
		data[i] = byte(rng.Uint32())
	}
	rows := make([]byte, 512*l.TotalRowSize())
	l.Pack([][]byte{data}, nil, rows, nil, 0, 512)

	stream := writeStream(t, l, WriterOptions{Compression: ZstdCompression}, []Batch{{Rows: rows, RowCount: 512}})
	require.Equal(t, byte(NoCompression), stream[headerSize])
	got, err := readStream(l, stream)
	require.NoError(t, err)
	require.Equal(t, rows, got[0].Rows)
}

func TestCorruption(t *testing.T) {
	defer leaktest.AfterTest(t)()
	l := testLayout(t)
	batch := makeBatch(t, rand.New(rand.NewPCG(0, 4)), l, 50)
	data := writeStream(t, l, WriterOptions{Compression: SnappyCompression}, []Batch{batch})

	for _, tc := range []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"magic", func(d []byte) []byte { d[0] ^= 1; return d }},
		{"empty", func(d []byte) []byte { return d[:0] }},
		{"truncated header", func(d []byte) []byte { return d[:headerSize-1] }},
		{"compression", func(d []byte) []byte { d[headerSize] = 9; return d }},
		{"checksum type", func(d []byte) []byte { d[headerSize+1] = 0; return d }},
		{"varint", func(d []byte) []byte {
			copy(d[headerSize+2:], bytes.Repeat([]byte{0xff}, 11))
			return d
		}},
		{"block", func(d []byte) []byte { d[len(d)-10] ^= 0x40; return d }},
		{"checksum", func(d []byte) []byte { d[len(d)-1] ^= 1; return d }},
		{"truncated frame", func(d []byte) []byte { return d[:len(d)-1] }},
		{"truncated varint", func(d []byte) []byte { return d[:headerSize+3] }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readStream(l, tc.mutate(bytes.Clone(data)))
			require.Error(t, err)
			require.True(t, base.IsCorruptionError(err), "%+v", err)
		})
	}
}

func TestHeaderMismatch(t *testing.T) {
	l := testLayout(t)
	data := writeStream(t, l, WriterOptions{}, nil)

	other, err := packedtuple.NewLayout([]packedtuple.ColumnDesc{packedtuple.Key(8)}, nil)
	require.NoError(t, err)
	_, err = NewReader(bytes.NewReader(data), other)
	require.True(t, errors.Is(err, ErrLayoutMismatch))

	// Same row size, different columns.
	swapped, err := packedtuple.NewLayout([]packedtuple.ColumnDesc{
		packedtuple.Key(8), packedtuple.VarKey(16), packedtuple.Payload(4), packedtuple.VarKey(24),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, l.TotalRowSize(), swapped.TotalRowSize())
	_, err = NewReader(bytes.NewReader(data), swapped)
	require.True(t, errors.Is(err, ErrLayoutMismatch))

	versioned := bytes.Clone(data)
	versioned[len(magic)] = Version + 1
	_, err = NewReader(bytes.NewReader(versioned), l)
	require.True(t, errors.Is(err, ErrUnsupportedVersion))

	batches, err := readStream(l, data)
	require.NoError(t, err)
	require.Empty(t, batches)
}

func TestWriterErrors(t *testing.T) {
	l := testLayout(t)
	_, err := NewWriter(io.Discard, l, WriterOptions{Compression: compression.NumAlgorithms})
	require.Error(t, err)
	_, err = NewWriter(io.Discard, l, WriterOptions{Checksum: 7})
	require.Error(t, err)

	w, err := NewWriter(io.Discard, l, WriterOptions{})
	require.NoError(t, err)
	err = w.WriteBatch(Batch{Rows: make([]byte, 3), RowCount: 1})
	require.True(t, errors.IsAssertionFailure(err))
	require.NoError(t, w.Close())
	require.Error(t, w.WriteBatch(Batch{}))
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("disk full")
	}
	f.n--
	return len(p), nil
}

func TestWriterStickyError(t *testing.T) {
	l := testLayout(t)
	_, err := NewWriter(&failingWriter{}, l, WriterOptions{})
	require.ErrorContains(t, err, "disk full")

	w, err := NewWriter(&failingWriter{n: 1}, l, WriterOptions{})
	require.NoError(t, err)
	batch := makeBatch(t, rand.New(rand.NewPCG(0, 5)), l, 3)
	require.ErrorContains(t, w.WriteBatch(batch), "disk full")
	require.ErrorContains(t, w.WriteBatch(batch), "disk full")
	require.ErrorContains(t, w.Close(), "disk full")
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetrics(t *testing.T) {
	l := testLayout(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	rng := rand.New(rand.NewPCG(0, 6))
	batches := []Batch{makeBatch(t, rng, l, 10), makeBatch(t, rng, l, 20), makeBatch(t, rng, l, 0)}
	data := writeStream(t, l, WriterOptions{Compression: ZstdCompression, Metrics: m}, batches)

	raw := 0
	for _, b := range batches {
		raw += len(b.Rows) + len(b.Overflow)
	}
	require.Equal(t, float64(3), counterValue(t, m.Batches))
	require.Equal(t, float64(30), counterValue(t, m.Rows))
	require.Equal(t, float64(raw), counterValue(t, m.RawBytes))
	require.Equal(t, float64(len(data)), counterValue(t, m.WrittenBytes))

	var h dto.Metric
	require.NoError(t, m.CompressionRatio.Write(&h))
	// The empty batch has no block to observe.
	require.Equal(t, uint64(2), h.GetHistogram().GetSampleCount())
	require.Greater(t, h.GetHistogram().GetSampleSum(), 2.0)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "packedtuple_spill_batches_total")
	require.Contains(t, names, "packedtuple_spill_compression_ratio")
}

func TestParse(t *testing.T) {
	for _, ct := range []ChecksumType{ChecksumTypeCRC32c, ChecksumTypeXXHash64} {
		got, err := ParseChecksumType(ct.String())
		require.NoError(t, err)
		require.Equal(t, ct, got)
	}
	_, err := ParseChecksumType("md5")
	require.Error(t, err)
	c, err := ParseCompression("MinLZ")
	require.NoError(t, err)
	require.Equal(t, MinLZCompression, c)
}

func BenchmarkWriteBatch(b *testing.B) {
	cols, err := packedtuple.ParseSchema("key:u64, key:var:16, payload:u32, payload:var:24")
	require.NoError(b, err)
	l, err := packedtuple.NewLayout(cols, nil)
	require.NoError(b, err)
	rng := rand.New(rand.NewPCG(0, 1))
	var cb packedtuple.ColumnsBuilder
	cb.Init(l)
	for i := 0; i < 1024; i++ {
		cb.AppendFixed(0, []byte{byte(rng.IntN(256)), 0, 0, 0, 0, 0, 0, 0})
		cb.AppendVariable(1, []byte(fmt.Sprint(rng.IntN(1e6))))
		cb.AppendFixed(2, []byte{1, 2, 3, 4})
		cb.AppendVariable(3, []byte("a payload value that overflows"))
	}
	columns, validity := cb.Columns()
	rows := make([]byte, 1024*l.TotalRowSize())
	overflow := l.Pack(columns, validity, rows, nil, 0, 1024)
	batch := Batch{Rows: rows, RowCount: 1024, Overflow: overflow}

	for c := compression.NoCompression; c < compression.NumAlgorithms; c++ {
		b.Run(c.String(), func(b *testing.B) {
			w, err := NewWriter(io.Discard, l, WriterOptions{Compression: c})
			require.NoError(b, err)
			defer w.Close()
			b.SetBytes(int64(len(rows) + len(overflow)))
			for i := 0; i < b.N; i++ {
				if err := w.WriteBatch(batch); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
