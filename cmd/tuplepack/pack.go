// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"encoding/binary"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/packedtuple/internal/binfmt"
	"github.com/cockroachdb/packedtuple/spill"
	"github.com/spf13/cobra"
)

var packConfig struct {
	csv         string
	spill       string
	compression string
	checksum    string
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "pack CSV rows and dump the packed rows",
	Long: `
Read rows from a CSV file with one field per column of --schema, pack them and
print an annotated dump of the packed rows and the overflow buffer.

Fixed-width fields are unsigned decimal integers stored little endian, or hex
strings prefixed with 0x holding exactly the column's width. Variable-width
fields are taken verbatim. A field of \N is a NULL.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLayout()
		if err != nil {
			return err
		}
		in := cmd.InOrStdin()
		if packConfig.csv != "-" {
			f, err := os.Open(packConfig.csv)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		b, err := readCSV(in, l)
		if err != nil {
			return err
		}
		columns, validity := b.Columns()
		n := b.Rows()
		rows := l.NewRowBuffer(n)
		overflow := l.Pack(columns, validity, rows, nil, 0, n)

		out := cmd.OutOrStdout()
		if err := writePacked(out, l, rows, overflow, n); err != nil {
			return err
		}
		if packConfig.spill != "" {
			return spillRows(out, l, spill.Batch{Rows: rows, RowCount: n, Overflow: overflow})
		}
		return nil
	},
}

// readCSV parses CSV records into columnar input for l.
func readCSV(r io.Reader, l *packedtuple.Layout) (*packedtuple.ColumnsBuilder, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(l.InputColumns())
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	b := &packedtuple.ColumnsBuilder{}
	b.Init(l)
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			return b, nil
		}
		if err != nil {
			return nil, err
		}
		for i, c := range l.InputColumns() {
			field := record[i]
			switch {
			case field == `\N`:
				b.AppendNull(i)
			case c.SizeType == packedtuple.SizeVariable:
				b.AppendVariable(i, []byte(field))
			default:
				v, err := parseFixed(field, int(c.DataSize))
				if err != nil {
					return nil, errors.Wrapf(err, "record %d, column %d", line, i)
				}
				b.AppendFixed(i, v)
			}
		}
	}
}

func parseFixed(field string, width int) ([]byte, error) {
	if s, ok := strings.CutPrefix(field, "0x"); ok {
		v, err := hex.DecodeString(s)
		if err != nil {
			return nil, err
		}
		if len(v) != width {
			return nil, errors.Newf("%q holds %d bytes, expected %d", field, len(v), width)
		}
		return v, nil
	}
	u, err := strconv.ParseUint(field, 10, 64)
	if err != nil {
		return nil, err
	}
	v := make([]byte, max(width, 8))
	binary.LittleEndian.PutUint64(v, u)
	if width < 8 && u>>(8*width) != 0 {
		return nil, errors.Newf("%d does not fit in %d bytes", u, width)
	}
	return v[:width], nil
}

func writePacked(w io.Writer, l *packedtuple.Layout, rows, overflow []byte, n int) error {
	fmt.Fprintf(w, "%d rows of %d bytes, %d overflow bytes\n", n, l.TotalRowSize(), len(overflow))
	if err := l.FormatRows(w, rows, n); err != nil {
		return err
	}
	if len(overflow) > 0 {
		fmt.Fprintf(w, "overflow:\n")
		binfmt.FHexDump(w, overflow, 16)
	}
	return nil
}

func spillRows(w io.Writer, l *packedtuple.Layout, b spill.Batch) error {
	var opts spill.WriterOptions
	var err error
	if opts.Compression, err = spill.ParseCompression(packConfig.compression); err != nil {
		return err
	}
	if opts.Checksum, err = spill.ParseChecksumType(packConfig.checksum); err != nil {
		return err
	}
	f, err := os.Create(packConfig.spill)
	if err != nil {
		return err
	}
	sw, err := spill.NewWriter(f, l, opts)
	if err != nil {
		return errors.CombineErrors(err, f.Close())
	}
	err = sw.WriteBatch(b)
	err = errors.CombineErrors(err, sw.Close())
	if err == nil {
		err = f.Sync()
	}
	var size int64
	if err == nil {
		var info os.FileInfo
		if info, err = f.Stat(); err == nil {
			size = info.Size()
		}
	}
	if err := errors.CombineErrors(err, f.Close()); err != nil {
		return err
	}
	fmt.Fprintf(w, "spilled %d rows to %s (%s, %s)\n", b.RowCount, packConfig.spill,
		crhumanize.Bytes(size, crhumanize.Compact), opts.Compression)
	return nil
}
