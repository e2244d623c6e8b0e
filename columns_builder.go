// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// ColumnsBuilder accumulates values column by column into the columnar input
// expected by Pack: fixed-width data, uint32 offsets tables plus
// concatenated data for variable-width columns, and validity bitmasks.
//
// Columns are addressed by their position in the list passed to NewLayout.
// Every column must receive the same number of values before Columns is
// called.
type ColumnsBuilder struct {
	layout  *Layout
	columns []columnBuilder
}

type columnBuilder struct {
	desc     ColumnDesc
	rows     int
	data     []byte
	offsets  []byte // variable-width only
	validity []byte
}

// Init initializes the builder for first-time use.
func (b *ColumnsBuilder) Init(l *Layout) {
	b.layout = l
	b.columns = make([]columnBuilder, len(l.input))
	for i := range b.columns {
		b.columns[i].desc = l.input[i]
	}
	b.Reset()
}

// Reset clears the builder, retaining its buffers.
func (b *ColumnsBuilder) Reset() {
	for i := range b.columns {
		c := &b.columns[i]
		c.rows = 0
		c.data = c.data[:0]
		c.validity = c.validity[:0]
		c.offsets = c.offsets[:0]
		if c.desc.SizeType == SizeVariable {
			c.offsets = binary.LittleEndian.AppendUint32(c.offsets, 0)
		}
	}
}

// Layout returns the layout the builder was initialized with.
func (b *ColumnsBuilder) Layout() *Layout {
	return b.layout
}

func (c *columnBuilder) appendValidity(valid bool) {
	if c.rows&7 == 0 {
		c.validity = append(c.validity, 0)
	}
	if valid {
		c.validity[c.rows>>3] |= 1 << uint(c.rows&7)
	}
	c.rows++
}

// AppendFixed appends a value to the fixed-width column at input position
// col. The value must be exactly DataSize bytes long.
func (b *ColumnsBuilder) AppendFixed(col int, v []byte) {
	c := &b.columns[col]
	if c.desc.SizeType != SizeFixed || uint32(len(v)) != c.desc.DataSize {
		panic(errors.AssertionFailedf("column %d (%s): cannot append %d fixed bytes",
			col, c.desc, len(v)))
	}
	c.data = append(c.data, v...)
	c.appendValidity(true)
}

// AppendVariable appends a value to the variable-width column at input
// position col.
func (b *ColumnsBuilder) AppendVariable(col int, v []byte) {
	c := &b.columns[col]
	if c.desc.SizeType != SizeVariable {
		panic(errors.AssertionFailedf("column %d (%s): not variable-width", col, c.desc))
	}
	c.data = append(c.data, v...)
	c.offsets = binary.LittleEndian.AppendUint32(c.offsets, uint32(len(c.data)))
	c.appendValidity(true)
}

// AppendNull appends a null to the column at input position col. Fixed-width
// nulls are zero filled and variable-width nulls are empty.
func (b *ColumnsBuilder) AppendNull(col int) {
	c := &b.columns[col]
	if c.desc.SizeType == SizeVariable {
		c.offsets = binary.LittleEndian.AppendUint32(c.offsets, uint32(len(c.data)))
	} else {
		c.data = append(c.data, make([]byte, c.desc.DataSize)...)
	}
	c.appendValidity(false)
}

// Rows returns the number of complete rows: the smallest number of values
// appended to any column.
func (b *ColumnsBuilder) Rows() int {
	if len(b.columns) == 0 {
		return 0
	}
	n := b.columns[0].rows
	for i := range b.columns[1:] {
		n = min(n, b.columns[i+1].rows)
	}
	return n
}

// Columns returns the columnar input for Pack, one slice per input slot. The
// returned slices alias the builder's buffers and are invalidated by the next
// call to Reset or Append*.
func (b *ColumnsBuilder) Columns() (columns, validity [][]byte) {
	rows := b.Rows()
	columns = make([][]byte, b.layout.slotCount)
	validity = make([][]byte, b.layout.slotCount)
	for i := range b.columns {
		c := &b.columns[i]
		if c.rows != rows {
			panic(errors.AssertionFailedf("column %d has %d rows, expected %d", i, c.rows, rows))
		}
		src := c.desc.Source()
		columns[src.DataSlot] = c.data
		if src.OffsetsSlot >= 0 {
			columns[src.OffsetsSlot] = c.offsets
		}
		validity[src.ValiditySlot] = c.validity
	}
	return columns, validity
}
