// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import "github.com/cockroachdb/redact"

const (
	// hashSize is the size of the row hash stored at the start of every row.
	hashSize = 4
	// variableHeaderSize is the size of the overflow header of a variable-width
	// slot: the marker byte, the overflow offset and the value length.
	variableHeaderSize = 1 + 2*4
	// overflowMarker is the first byte of a variable-width slot whose value
	// spilled into the overflow buffer.
	overflowMarker = 255

	// MinVariableDataSize is the smallest slot of a variable-width column. It
	// leaves room for the overflow header.
	MinVariableDataSize = variableHeaderSize
	// MaxVariableDataSize is the largest slot of a variable-width column. The
	// inline length byte must stay below overflowMarker.
	MaxVariableDataSize = 255
	// MaxRowSize is the largest row a Layout may plan.
	MaxRowSize = 1 << 20
)

// ColumnRole describes whether a column is part of the key.
type ColumnRole uint8

const (
	// RoleKey marks a column compared by the downstream join or aggregation.
	RoleKey ColumnRole = iota
	// RolePayload marks a column carried along for output.
	RolePayload
)

// SafeValue implements redact.SafeValue.
func (ColumnRole) SafeValue() {}

// String implements fmt.Stringer.
func (r ColumnRole) String() string {
	switch r {
	case RoleKey:
		return "key"
	case RolePayload:
		return "payload"
	default:
		return "unknown-role"
	}
}

// SizeType describes whether all values of a column have the same width.
type SizeType uint8

const (
	// SizeFixed columns store DataSize bytes per row.
	SizeFixed SizeType = iota
	// SizeVariable columns store an offsets array and a data array.
	SizeVariable
)

// SafeValue implements redact.SafeValue.
func (SizeType) SafeValue() {}

// String implements fmt.Stringer.
func (s SizeType) String() string {
	switch s {
	case SizeFixed:
		return "fixed"
	case SizeVariable:
		return "var"
	default:
		return "unknown-size"
	}
}

// ColumnDesc describes one input column.
type ColumnDesc struct {
	Role     ColumnRole
	SizeType SizeType
	// DataSize is the width of a fixed-width column, or the size of the
	// inline slot of a variable-width column. The latter is clamped to
	// [MinVariableDataSize, MaxVariableDataSize] by NewLayout.
	DataSize uint32
	// OriginalIndex is the first source slot of the column. It is assigned
	// by NewLayout; a fixed-width column uses one slot and a variable-width
	// column uses two.
	OriginalIndex uint32
}

// Key returns a fixed-width key column descriptor.
func Key(width uint32) ColumnDesc {
	return ColumnDesc{Role: RoleKey, SizeType: SizeFixed, DataSize: width}
}

// VarKey returns a variable-width key column descriptor.
func VarKey(dataSize uint32) ColumnDesc {
	return ColumnDesc{Role: RoleKey, SizeType: SizeVariable, DataSize: dataSize}
}

// Payload returns a fixed-width payload column descriptor.
func Payload(width uint32) ColumnDesc {
	return ColumnDesc{Role: RolePayload, SizeType: SizeFixed, DataSize: width}
}

// VarPayload returns a variable-width payload column descriptor.
func VarPayload(dataSize uint32) ColumnDesc {
	return ColumnDesc{Role: RolePayload, SizeType: SizeVariable, DataSize: dataSize}
}

// slots returns the number of source slots the column reads from.
func (c ColumnDesc) slots() uint32 {
	if c.SizeType == SizeVariable {
		return 2
	}
	return 1
}

// Source returns the source slots backing the column.
func (c ColumnDesc) Source() ColumnSource {
	idx := int(c.OriginalIndex)
	if c.SizeType == SizeVariable {
		return ColumnSource{
			Kind:         SizeVariable,
			DataSlot:     idx + 1,
			OffsetsSlot:  idx,
			ValiditySlot: idx,
		}
	}
	return ColumnSource{
		Kind:         SizeFixed,
		DataSlot:     idx,
		OffsetsSlot:  -1,
		ValiditySlot: idx,
	}
}

// SafeFormat implements redact.SafeFormatter.
func (c ColumnDesc) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s:%s:%d", c.Role, c.SizeType, c.DataSize)
}

// String implements fmt.Stringer.
func (c ColumnDesc) String() string {
	return redact.StringWithoutMarkers(c)
}

// ColumnSource names the input slots a column reads from. Columnar input is
// passed as one byte slice per slot:
//
//   - a fixed-width column reads rowCount*DataSize bytes from DataSlot;
//   - a variable-width column reads rowCount+1 little-endian uint32 offsets
//     from OffsetsSlot and the concatenated values from DataSlot.
//
// The validity bitmask of the column is read from ValiditySlot.
type ColumnSource struct {
	Kind         SizeType
	DataSlot     int
	OffsetsSlot  int // -1 for fixed-width columns
	ValiditySlot int
}

// ClampDataSize returns the effective data size of a column. Variable-width
// data sizes are clamped to [MinVariableDataSize, MaxVariableDataSize]; fixed
// widths are returned unchanged. ClampDataSize is idempotent.
func ClampDataSize(sizeType SizeType, dataSize uint32) uint32 {
	if sizeType != SizeVariable {
		return dataSize
	}
	return max(MinVariableDataSize, min(MaxVariableDataSize, dataSize))
}
