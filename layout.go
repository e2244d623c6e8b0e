// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"cmp"
	"math/bits"
	"slices"

	"github.com/cockroachdb/crlib/crbytes"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple/internal/crc"
	"github.com/cockroachdb/redact"
)

// numPOTGroups is the number of power-of-two widths with a dedicated packing
// path: 1, 2, 4, 8 and 16 bytes.
const numPOTGroups = 5

// PlannedColumn is a column placed within the packed row.
type PlannedColumn struct {
	ColumnDesc
	// ColumnIndex is the position of the column in planned order: key
	// columns first, then payload columns. It is also the index of the
	// column's validity bit within the row bitmask.
	ColumnIndex uint32
	// Offset is the byte offset of the column within a packed row.
	Offset uint32
	// Input is the position of the column in the list passed to NewLayout.
	Input int
	// Source names the input slots backing the column.
	Source ColumnSource
}

// SafeFormat implements redact.SafeFormatter.
func (c PlannedColumn) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d: %s input=%d slot=%d offset=%d",
		c.ColumnIndex, c.ColumnDesc, c.Input, c.OriginalIndex, c.Offset)
}

// String implements fmt.Stringer.
func (c PlannedColumn) String() string {
	return redact.StringWithoutMarkers(c)
}

// Layout describes the binary format of packed rows for one set of columns.
// A Layout is immutable and may be shared by concurrent Pack calls.
type Layout struct {
	// input holds the column descriptors in input order, with data sizes
	// clamped and source slots assigned.
	input []ColumnDesc
	// columns holds the planned columns: key columns followed by payload
	// columns, each in planned order.
	columns   []PlannedColumn
	slotCount int

	keyColumnsNum      int
	keyColumnsFixedNum int

	keyColumnsOffset   uint32
	keyColumnsFixedEnd uint32
	keyColumnsEnd      uint32
	bitmaskOffset      uint32
	bitmaskEnd         uint32
	payloadOffset      uint32
	payloadEnd         uint32
	totalRowSize       uint32

	// The columns partitioned by the packing path used for them. fixedPOT[k]
	// holds the fixed-width columns of width 1<<k.
	fixedPOT  [numPOTGroups][]PlannedColumn
	fixedNPOT []PlannedColumn
	variable  []PlannedColumn

	hasher crc.Hasher
}

// columnLess orders fixed-width columns before variable-width ones, then by
// ascending data size. Columns that are otherwise equal keep their input
// order.
func columnLess(a, b PlannedColumn) int {
	if a.SizeType != b.SizeType {
		if a.SizeType == SizeFixed {
			return -1
		}
		return +1
	}
	if c := cmp.Compare(a.DataSize, b.DataSize); c != 0 {
		return c
	}
	return cmp.Compare(a.OriginalIndex, b.OriginalIndex)
}

// NewLayout plans the row layout for the given columns.
func NewLayout(columns []ColumnDesc, opts *Options) (*Layout, error) {
	opts = opts.Clone().EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	l := &Layout{
		input:  make([]ColumnDesc, len(columns)),
		hasher: crc.New(opts.HashStrategy),
	}
	var keys, payload []PlannedColumn
	var slot uint32
	for i, col := range columns {
		switch col.Role {
		case RoleKey, RolePayload:
		default:
			return nil, errors.AssertionFailedf("column %d: unknown role %d", i, errors.Safe(col.Role))
		}
		switch col.SizeType {
		case SizeFixed:
		case SizeVariable:
			if clamped := ClampDataSize(col.SizeType, col.DataSize); clamped != col.DataSize {
				if opts.StrictDataSize {
					return nil, errors.Wrapf(ErrInvalidDataSize,
						"column %d: variable data size %d outside [%d, %d]",
						i, col.DataSize, MinVariableDataSize, MaxVariableDataSize)
				}
				opts.Logger.Infof("packedtuple: column %d: clamped variable data size %d to %d",
					i, col.DataSize, clamped)
				col.DataSize = clamped
			}
		default:
			return nil, errors.AssertionFailedf("column %d: unknown size type %d", i, errors.Safe(col.SizeType))
		}
		col.OriginalIndex = slot
		slot += col.slots()
		l.input[i] = col

		pc := PlannedColumn{ColumnDesc: col, Input: i, Source: col.Source()}
		if col.Role == RoleKey {
			keys = append(keys, pc)
		} else {
			payload = append(payload, pc)
		}
	}
	l.slotCount = int(slot)

	slices.SortFunc(keys, columnLess)
	slices.SortFunc(payload, columnLess)

	// The row begins with the hash. The size is tracked in 64 bits so that
	// absurdly wide columns cannot wrap around.
	offset := uint64(hashSize)
	l.keyColumnsOffset = hashSize
	l.keyColumnsNum = len(keys)
	l.keyColumnsFixedNum = len(keys)
	l.columns = make([]PlannedColumn, 0, len(columns))
	fixedEndSet := false
	for i := range keys {
		col := &keys[i]
		if col.SizeType == SizeVariable && !fixedEndSet {
			l.keyColumnsFixedEnd = uint32(offset)
			l.keyColumnsFixedNum = i
			fixedEndSet = true
		}
		col.ColumnIndex = uint32(i)
		col.Offset = uint32(offset)
		l.columns = append(l.columns, *col)
		offset += uint64(col.DataSize)
		if offset > MaxRowSize {
			return nil, errors.Wrapf(ErrRowTooWide, "key region exceeds %d bytes", MaxRowSize)
		}
	}
	l.keyColumnsEnd = uint32(offset)
	if !fixedEndSet {
		l.keyColumnsFixedEnd = l.keyColumnsEnd
	}

	// The bitmask holds a bit for every input column.
	l.bitmaskOffset = uint32(offset)
	offset += uint64(bitmaskSize(len(columns)))
	l.bitmaskEnd = uint32(offset)

	l.payloadOffset = uint32(offset)
	for i := range payload {
		col := &payload[i]
		col.ColumnIndex = uint32(l.keyColumnsNum + i)
		col.Offset = uint32(offset)
		l.columns = append(l.columns, *col)
		offset += uint64(col.DataSize)
		if offset > MaxRowSize {
			return nil, errors.Wrapf(ErrRowTooWide, "row exceeds %d bytes", MaxRowSize)
		}
	}
	l.payloadEnd = uint32(offset)
	l.totalRowSize = uint32(offset)

	for _, col := range l.columns {
		switch {
		case col.SizeType == SizeVariable:
			l.variable = append(l.variable, col)
		case col.DataSize != 0 && bits.OnesCount32(col.DataSize) == 1 && col.DataSize < 1<<numPOTGroups:
			pot := bits.TrailingZeros32(col.DataSize)
			l.fixedPOT[pot] = append(l.fixedPOT[pot], col)
		default:
			l.fixedNPOT = append(l.fixedNPOT, col)
		}
	}
	return l, nil
}

func bitmaskSize(columns int) int {
	return (columns + 7) / 8
}

// TotalRowSize returns the size of every packed row in bytes.
func (l *Layout) TotalRowSize() int { return int(l.totalRowSize) }

// SlotCount returns the number of input slots expected by Pack.
func (l *Layout) SlotCount() int { return l.slotCount }

// NumColumns returns the number of columns.
func (l *Layout) NumColumns() int { return len(l.columns) }

// NumKeyColumns returns the number of key columns.
func (l *Layout) NumKeyColumns() int { return l.keyColumnsNum }

// Columns returns the planned columns: key columns followed by payload
// columns. The returned slice must not be modified.
func (l *Layout) Columns() []PlannedColumn { return l.columns }

// KeyColumns returns the planned key columns. The returned slice must not be
// modified.
func (l *Layout) KeyColumns() []PlannedColumn { return l.columns[:l.keyColumnsNum] }

// PayloadColumns returns the planned payload columns. The returned slice must
// not be modified.
func (l *Layout) PayloadColumns() []PlannedColumn { return l.columns[l.keyColumnsNum:] }

// InputColumns returns the column descriptors in input order with data sizes
// clamped and OriginalIndex assigned. The returned slice must not be modified.
func (l *Layout) InputColumns() []ColumnDesc { return l.input }

// Column returns the planned column for the column at the given position of
// the list passed to NewLayout.
func (l *Layout) Column(input int) PlannedColumn {
	for _, c := range l.columns {
		if c.Input == input {
			return c
		}
	}
	panic(errors.AssertionFailedf("no column at input position %d", input))
}

// KeyColumnsOffset returns the offset of the key region.
func (l *Layout) KeyColumnsOffset() int { return int(l.keyColumnsOffset) }

// KeyColumnsFixedEnd returns the end of the fixed-width keys, which is the
// offset of the first variable-width key or the end of the key region.
func (l *Layout) KeyColumnsFixedEnd() int { return int(l.keyColumnsFixedEnd) }

// KeyColumnsEnd returns the end of the key region.
func (l *Layout) KeyColumnsEnd() int { return int(l.keyColumnsEnd) }

// BitmaskOffset returns the offset of the validity bitmask.
func (l *Layout) BitmaskOffset() int { return int(l.bitmaskOffset) }

// BitmaskSize returns the size of the validity bitmask.
func (l *Layout) BitmaskSize() int { return int(l.bitmaskEnd - l.bitmaskOffset) }

// PayloadOffset returns the offset of the payload region.
func (l *Layout) PayloadOffset() int { return int(l.payloadOffset) }

// PayloadEnd returns the end of the payload region.
func (l *Layout) PayloadEnd() int { return int(l.payloadEnd) }

// HashStrategy returns the CRC-32C strategy used to hash rows.
func (l *Layout) HashStrategy() HashStrategy { return l.hasher.Strategy() }

// NewRowBuffer allocates a word-aligned destination buffer for the given
// number of rows.
func (l *Layout) NewRowBuffer(rows int) []byte {
	n := rows * l.TotalRowSize()
	if n == 0 {
		return nil
	}
	return crbytes.AllocAligned(n)
}

// SafeFormat implements redact.SafeFormatter.
func (l *Layout) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("row size: %d\n", l.totalRowSize)
	w.Printf("hash: [0, %d)\n", hashSize)
	w.Printf("keys: [%d, %d) fixed [%d, %d)\n",
		l.keyColumnsOffset, l.keyColumnsEnd, l.keyColumnsOffset, l.keyColumnsFixedEnd)
	w.Printf("bitmask: [%d, %d)\n", l.bitmaskOffset, l.bitmaskEnd)
	w.Printf("payload: [%d, %d)\n", l.payloadOffset, l.payloadEnd)
	w.Printf("columns:\n")
	for _, c := range l.columns {
		w.Printf("  %s\n", c)
	}
}

// String implements fmt.Stringer.
func (l *Layout) String() string {
	return redact.StringWithoutMarkers(l)
}
