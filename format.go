// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/packedtuple/internal/binfmt"
)

// FormatRows writes an annotated hex dump of count packed rows to w, naming
// every region and column of each row.
func (l *Layout) FormatRows(w io.Writer, rows []byte, count int) error {
	f := binfmt.New(rows[:count*l.TotalRowSize()])
	for i := 0; i < count; i++ {
		f.Comment("row %d", i)
		l.formatRow(f, l.Row(rows, i))
	}
	_, err := io.WriteString(w, f.String())
	return err
}

func (l *Layout) formatRow(f *binfmt.Formatter, row []byte) {
	f.Uint32("hash")
	for _, col := range l.columns {
		if col.ColumnIndex == uint32(l.keyColumnsNum) {
			f.Line(l.BitmaskSize()).Binary(l.BitmaskSize()).Done("validity")
		}
		l.formatColumn(f, row, col)
	}
	if l.keyColumnsNum == len(l.columns) {
		f.Line(l.BitmaskSize()).Binary(l.BitmaskSize()).Done("validity")
	}
}

func (l *Layout) formatColumn(f *binfmt.Formatter, row []byte, col PlannedColumn) {
	valid := ""
	if !l.IsValid(row, int(col.ColumnIndex)) {
		valid = " (null)"
	}
	if col.SizeType == SizeFixed {
		if col.DataSize > 0 {
			f.HexBytesln(int(col.DataSize), "%s %d%s", col.ColumnDesc, col.ColumnIndex, valid)
		}
		return
	}
	slot := row[col.Offset : col.Offset+col.DataSize]
	if slot[0] != overflowMarker {
		f.HexBytesln(1+int(slot[0]), "%s %d: inline len=%d%s", col.ColumnDesc, col.ColumnIndex, slot[0], valid)
		if pad := int(col.DataSize) - 1 - int(slot[0]); pad > 0 {
			f.HexBytesln(pad, "padding")
		}
		return
	}
	f.HexBytesln(1, "%s %d: overflow%s", col.ColumnDesc, col.ColumnIndex, valid)
	f.Uint32("overflow offset")
	f.Uint32("value length")
	if prefixSize := len(slot) - variableHeaderSize; prefixSize > 0 {
		f.HexBytesln(prefixSize, "prefix")
	}
	f.Comment("  tail of %d bytes in overflow",
		binary.LittleEndian.Uint32(slot[5:])-(col.DataSize-variableHeaderSize))
}
