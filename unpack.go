// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple/internal/base"
)

// RowHash returns the hash stored at the start of a packed row.
func RowHash(row []byte) uint32 {
	return binary.LittleEndian.Uint32(row[:hashSize])
}

// Row returns the i-th packed row of rows.
func (l *Layout) Row(rows []byte, i int) []byte {
	rowSize := int(l.totalRowSize)
	return rows[i*rowSize : (i+1)*rowSize : (i+1)*rowSize]
}

// IsValid returns whether the validity bit of the planned column with the
// given column index is set in row.
func (l *Layout) IsValid(row []byte, columnIndex int) bool {
	return row[int(l.bitmaskOffset)+columnIndex>>3]&(1<<uint(columnIndex&7)) != 0
}

// variableParts returns the value of a variable-width column as the bytes
// stored in the row and the bytes stored in overflow, along with the full
// value length.
func variableParts(row, overflow []byte, col PlannedColumn) (head, tail []byte, size uint32) {
	slot := row[col.Offset : col.Offset+col.DataSize]
	if slot[0] != overflowMarker {
		size = uint32(slot[0])
		return slot[1 : 1+size], nil, size
	}
	off := binary.LittleEndian.Uint32(slot[1:])
	size = binary.LittleEndian.Uint32(slot[5:])
	prefixSize := col.DataSize - variableHeaderSize
	return slot[variableHeaderSize:], overflow[off : off+size-prefixSize], size
}

// VariableValue appends the value of the variable-width column col stored in
// row to buf and returns the result. Values that overflowed are reassembled
// from the inline prefix and the tail in overflow.
func (l *Layout) VariableValue(buf, row, overflow []byte, col PlannedColumn) []byte {
	if col.SizeType != SizeVariable {
		panic(errors.AssertionFailedf("column %d is not variable-width", col.ColumnIndex))
	}
	head, tail, _ := variableParts(row, overflow, col)
	buf = append(buf, head...)
	return append(buf, tail...)
}

// FixedValue returns the bytes of the fixed-width column col stored in row.
func (l *Layout) FixedValue(row []byte, col PlannedColumn) []byte {
	if col.SizeType != SizeFixed {
		panic(errors.AssertionFailedf("column %d is not fixed-width", col.ColumnIndex))
	}
	return row[col.Offset : col.Offset+col.DataSize]
}

// KeysEqual returns whether two packed rows have equal keys. Rows a and b are
// accompanied by the overflow buffers their variable-width keys may refer to.
//
// Unlike the row hash, KeysEqual considers the validity bits of the key
// columns, so a null key never equals a zero or empty one.
func (l *Layout) KeysEqual(a, overflowA, b, overflowB []byte) bool {
	if !bytes.Equal(a[l.keyColumnsOffset:l.keyColumnsFixedEnd], b[l.keyColumnsOffset:l.keyColumnsFixedEnd]) {
		return false
	}
	for i := 0; i < l.keyColumnsNum; i++ {
		if l.IsValid(a, i) != l.IsValid(b, i) {
			return false
		}
	}
	for _, col := range l.columns[l.keyColumnsFixedNum:l.keyColumnsNum] {
		headA, tailA, sizeA := variableParts(a, overflowA, col)
		headB, tailB, sizeB := variableParts(b, overflowB, col)
		// Equal lengths imply the same encoding, so the parts line up.
		if sizeA != sizeB || !bytes.Equal(headA, headB) || !bytes.Equal(tailA, tailB) {
			return false
		}
	}
	return true
}

// Unpack decodes count packed rows and appends them to b, which must have
// been initialized with this layout. It is the inverse of Pack for the values
// and validity bits of every column. Null values are appended as nulls.
func (l *Layout) Unpack(rows, overflow []byte, count int, b *ColumnsBuilder) {
	if b.layout != l {
		panic(errors.AssertionFailedf("columns builder initialized with a different layout"))
	}
	var scratch []byte
	for i := 0; i < count; i++ {
		row := l.Row(rows, i)
		for _, col := range l.columns {
			if !l.IsValid(row, int(col.ColumnIndex)) {
				b.AppendNull(col.Input)
				continue
			}
			if col.SizeType == SizeFixed {
				b.AppendFixed(col.Input, l.FixedValue(row, col))
				continue
			}
			scratch = l.VariableValue(scratch[:0], row, overflow, col)
			b.AppendVariable(col.Input, scratch)
		}
	}
}

// hashRow recomputes the hash of a packed row from its key region and the
// variable-width keys it references in overflow.
func (l *Layout) hashRow(row, overflow []byte) uint32 {
	varKeys := l.columns[l.keyColumnsFixedNum:l.keyColumnsNum]
	anyOverflow := false
	for _, col := range varKeys {
		if row[col.Offset] == overflowMarker {
			anyOverflow = true
			break
		}
	}
	if !anyOverflow {
		return l.hasher.Update(0, row[l.keyColumnsOffset:l.keyColumnsEnd])
	}
	var hash uint32
	for _, col := range varKeys {
		head, tail, size := variableParts(row, overflow, col)
		hash = l.hasher.Update32(hash, size)
		hash = l.hasher.Update(hash, head[:min(size, uint32(len(head)))])
		hash = l.hasher.Update(hash, tail)
	}
	return l.hasher.Update(hash, row[l.keyColumnsOffset:l.keyColumnsFixedEnd])
}

// CheckRows verifies that count packed rows are well formed: every
// variable-width slot is a valid inline or overflow encoding whose tail lies
// within overflow, and every stored hash matches the row's keys. It returns
// an error marked as corruption otherwise.
func (l *Layout) CheckRows(rows, overflow []byte, count int) error {
	if len(rows) < count*l.TotalRowSize() {
		return base.CorruptionErrorf("packedtuple: %d bytes cannot hold %d rows of %d bytes",
			len(rows), count, l.TotalRowSize())
	}
	for i := 0; i < count; i++ {
		row := l.Row(rows, i)
		for _, col := range l.variable {
			slot := row[col.Offset : col.Offset+col.DataSize]
			if slot[0] != overflowMarker {
				if uint32(slot[0]) >= col.DataSize {
					return base.CorruptionErrorf("packedtuple: row %d column %d: inline length %d exceeds slot of %d bytes",
						i, col.ColumnIndex, slot[0], col.DataSize)
				}
				continue
			}
			off := uint64(binary.LittleEndian.Uint32(slot[1:]))
			size := uint64(binary.LittleEndian.Uint32(slot[5:]))
			if size < uint64(col.DataSize) || off+size-uint64(col.DataSize-variableHeaderSize) > uint64(len(overflow)) {
				return base.CorruptionErrorf("packedtuple: row %d column %d: overflow [%d, +%d) outside buffer of %d bytes",
					i, col.ColumnIndex, off, size, len(overflow))
			}
		}
		if h := l.hashRow(row, overflow); h != RowHash(row) {
			return base.CorruptionErrorf("packedtuple: row %d: hash %08x, expected %08x", i, RowHash(row), h)
		}
	}
	return nil
}
