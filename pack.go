// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"encoding/binary"

	"github.com/cockroachdb/packedtuple/internal/invariants"
)

// Pack encodes count rows of columnar input, beginning at input row start,
// into dst. The first packed row is written to dst[:TotalRowSize()].
//
// columns holds one slice per input slot (see ColumnSource). validity holds
// one LSB-first bitmask per slot, 8 rows per byte, where a set bit marks a
// valid (non-null) value; a nil validity, or a nil entry for a slot, marks
// every value of the slot as valid. Data of null values is packed as is, so
// callers are expected to zero fixed-width nulls and leave variable-width
// nulls empty.
//
// The tails of variable-width values that do not fit inline are appended to
// overflow; the (possibly reallocated) overflow buffer is returned. Bytes
// already in overflow are never modified, so the same buffer may be threaded
// through successive calls. Pack does not modify columns or validity.
//
// Pack is not safe for concurrent use with the same overflow buffer. Distinct
// goroutines may pack disjoint row ranges into disjoint dst and overflow
// buffers using the same Layout.
func (l *Layout) Pack(columns, validity [][]byte, dst, overflow []byte, start, count int) []byte {
	if count <= 0 {
		return overflow
	}
	rowSize := int(l.totalRowSize)
	dst = dst[:count*rowSize]
	for i := 0; i < count; i++ {
		row := dst[i*rowSize : (i+1)*rowSize : (i+1)*rowSize]
		overflow = l.packRow(columns, validity, row, overflow, start+i)
	}
	return overflow
}

// variableBounds returns the start and end offsets of the value of a
// variable-width column at the given input row.
//
//gcassert:inline
func variableBounds(offsets []byte, row int) (begin, end uint32) {
	begin = binary.LittleEndian.Uint32(offsets[4*row:])
	end = binary.LittleEndian.Uint32(offsets[4*row+4:])
	invariants.CheckOffsets(begin, end, row)
	return begin, end
}

func (l *Layout) packRow(columns, validity [][]byte, res, overflow []byte, row int) []byte {
	// If a variable-width key does not fit inline, the hash must cover the
	// full value and not only the inline prefix.
	anyOverflow := false
	for _, col := range l.columns[l.keyColumnsFixedNum:l.keyColumnsNum] {
		begin, end := variableBounds(columns[col.Source.OffsetsSlot], row)
		if end-begin >= col.DataSize {
			anyOverflow = true
			break
		}
	}

	bitmask := res[l.bitmaskOffset:l.bitmaskEnd]
	clear(bitmask)
	bitmaskIdx, bitmaskShift := row>>3, uint(row&7)
	for i := range l.columns {
		v := byte(1)
		if validity != nil {
			if b := validity[l.columns[i].Source.ValiditySlot]; b != nil {
				v = (b[bitmaskIdx] >> bitmaskShift) & 1
			}
		}
		bitmask[i>>3] |= v << uint(i&7)
	}

	for _, col := range l.fixedNPOT {
		w := int(col.DataSize)
		copy(res[col.Offset:int(col.Offset)+w], columns[col.Source.DataSlot][row*w:(row+1)*w])
	}
	for _, col := range l.fixedPOT[0] {
		res[col.Offset] = columns[col.Source.DataSlot][row]
	}
	for _, col := range l.fixedPOT[1] {
		binary.LittleEndian.PutUint16(res[col.Offset:],
			binary.LittleEndian.Uint16(columns[col.Source.DataSlot][row<<1:]))
	}
	for _, col := range l.fixedPOT[2] {
		binary.LittleEndian.PutUint32(res[col.Offset:],
			binary.LittleEndian.Uint32(columns[col.Source.DataSlot][row<<2:]))
	}
	for _, col := range l.fixedPOT[3] {
		binary.LittleEndian.PutUint64(res[col.Offset:],
			binary.LittleEndian.Uint64(columns[col.Source.DataSlot][row<<3:]))
	}
	for _, col := range l.fixedPOT[4] {
		src := columns[col.Source.DataSlot][row<<4:]
		binary.LittleEndian.PutUint64(res[col.Offset:], binary.LittleEndian.Uint64(src))
		binary.LittleEndian.PutUint64(res[col.Offset+8:], binary.LittleEndian.Uint64(src[8:]))
	}

	var hash uint32
	for _, col := range l.variable {
		begin, end := variableBounds(columns[col.Source.OffsetsSlot], row)
		size := end - begin
		data := columns[col.Source.DataSlot][begin:end]
		slot := res[col.Offset : col.Offset+col.DataSize]

		if size >= col.DataSize {
			prefixSize := col.DataSize - variableHeaderSize
			slot[0] = overflowMarker
			binary.LittleEndian.PutUint32(slot[1:], uint32(len(overflow)))
			binary.LittleEndian.PutUint32(slot[5:], size)
			copy(slot[variableHeaderSize:], data[:prefixSize])
			overflow = append(overflow, data[prefixSize:]...)
		} else {
			slot[0] = byte(size)
			copy(slot[1:], data)
			clear(slot[1+size:])
		}

		if anyOverflow && col.Role == RoleKey {
			hash = l.hasher.Update32(hash, size)
			hash = l.hasher.Update(hash, data)
		}
	}

	// The bitmask is not hashed.
	if anyOverflow {
		hash = l.hasher.Update(hash, res[l.keyColumnsOffset:l.keyColumnsFixedEnd])
	} else {
		hash = l.hasher.Update(0, res[l.keyColumnsOffset:l.keyColumnsEnd])
	}
	binary.LittleEndian.PutUint32(res[:hashSize], hash)
	return overflow
}
