// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultVariableDataSize is the data size of a variable-width column whose
// schema item omits it.
const DefaultVariableDataSize = 32

var fixedAliases = map[string]uint32{
	"u8":   1,
	"u16":  2,
	"u32":  4,
	"u64":  8,
	"u128": 16,
}

// ParseSchema parses a textual list of column descriptors. Items are
// separated by commas or newlines and have the form role:size[:width], where
// role is "key" or "payload" and size is one of:
//
//	fixed:N      a fixed-width column of N bytes
//	u8 ... u128  fixed-width columns of 1, 2, 4, 8 or 16 bytes
//	var[:N]      a variable-width column with an N byte slot
//
// For example: "key:u64, key:var:16, payload:fixed:3".
func ParseSchema(s string) ([]ColumnDesc, error) {
	var cols []ColumnDesc
	for _, item := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		col, err := parseColumn(item)
		if err != nil {
			return nil, errors.Wrapf(err, "column %d", len(cols))
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}
	return cols, nil
}

func parseColumn(item string) (ColumnDesc, error) {
	fields := strings.Split(item, ":")
	var col ColumnDesc
	switch fields[0] {
	case "key", "k":
		col.Role = RoleKey
	case "payload", "p":
		col.Role = RolePayload
	default:
		return ColumnDesc{}, errors.Newf("unknown column role %q", fields[0])
	}
	if len(fields) < 2 {
		return ColumnDesc{}, errors.Newf("missing column size in %q", item)
	}

	parseWidth := func(s string) (uint32, error) {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid width %q", s)
		}
		return uint32(v), nil
	}

	var err error
	switch size := fields[1]; size {
	case "fixed":
		if len(fields) != 3 {
			return ColumnDesc{}, errors.Newf("fixed column %q requires a width", item)
		}
		col.SizeType = SizeFixed
		col.DataSize, err = parseWidth(fields[2])
	case "var":
		col.SizeType = SizeVariable
		col.DataSize = DefaultVariableDataSize
		switch len(fields) {
		case 2:
		case 3:
			col.DataSize, err = parseWidth(fields[2])
		default:
			return ColumnDesc{}, errors.Newf("malformed column %q", item)
		}
	default:
		w, ok := fixedAliases[size]
		if !ok || len(fields) != 2 {
			return ColumnDesc{}, errors.Newf("unknown column size %q", size)
		}
		col.SizeType = SizeFixed
		col.DataSize = w
	}
	if err != nil {
		return ColumnDesc{}, err
	}
	return col, nil
}

// FormatSchema returns the textual form of the column descriptors, suitable
// for ParseSchema.
func FormatSchema(cols []ColumnDesc) string {
	items := make([]string, len(cols))
	for i, c := range cols {
		items[i] = c.String()
	}
	return strings.Join(items, ", ")
}
