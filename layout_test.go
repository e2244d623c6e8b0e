// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple/internal/base"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestLayoutDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/layout", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "plan":
			cols, err := ParseSchema(d.Input)
			if err != nil {
				return fmt.Sprintf("error: %s\n", err)
			}
			logger := &base.InMemLogger{}
			l, err := NewLayout(cols, &Options{
				Logger:         logger,
				StrictDataSize: d.HasArg("strict"),
			})
			if err != nil {
				return fmt.Sprintf("error: %s\n", err)
			}
			var buf strings.Builder
			for _, line := range logger.Lines() {
				fmt.Fprintf(&buf, "log: %s\n", line)
			}
			buf.WriteString(l.String())
			return buf.String()
		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}
	})
}

func randomColumns(rng *rand.Rand, n int) []ColumnDesc {
	widths := []uint32{0, 1, 2, 3, 4, 5, 8, 12, 16, 24}
	cols := make([]ColumnDesc, n)
	for i := range cols {
		role := RoleKey
		if rng.Intn(2) == 0 {
			role = RolePayload
		}
		if rng.Intn(3) == 0 {
			cols[i] = ColumnDesc{Role: role, SizeType: SizeVariable, DataSize: uint32(rng.Intn(300))}
		} else {
			cols[i] = ColumnDesc{Role: role, SizeType: SizeFixed, DataSize: widths[rng.Intn(len(widths))]}
		}
	}
	return cols
}

func TestLayoutInvariants(t *testing.T) {
	seed := uint64(1)
	rng := rand.New(rand.NewSource(seed))
	opts := &Options{Logger: base.NoopLogger{}}
	for iter := 0; iter < 500; iter++ {
		cols := randomColumns(rng, 1+rng.Intn(20))
		l, err := NewLayout(cols, opts)
		require.NoError(t, err)

		// Planning is deterministic.
		l2, err := NewLayout(cols, opts)
		require.NoError(t, err)
		require.Equal(t, l.String(), l2.String())

		require.Equal(t, len(cols), l.NumColumns())
		require.Equal(t, (len(cols)+7)/8, l.BitmaskSize())
		require.Equal(t, 4, l.KeyColumnsOffset())
		require.LessOrEqual(t, l.KeyColumnsFixedEnd(), l.KeyColumnsEnd())
		require.Equal(t, l.KeyColumnsEnd(), l.BitmaskOffset())
		require.Equal(t, l.BitmaskOffset()+l.BitmaskSize(), l.PayloadOffset())
		require.Equal(t, l.PayloadEnd(), l.TotalRowSize())

		// Columns tile their regions in planned order, keys first.
		slots := 0
		offset := l.KeyColumnsOffset()
		for i, c := range l.Columns() {
			require.Equal(t, uint32(i), c.ColumnIndex)
			require.Equal(t, i < l.NumKeyColumns(), c.Role == RoleKey)
			if i == l.NumKeyColumns() {
				offset = l.PayloadOffset()
			}
			require.Equal(t, offset, int(c.Offset))
			offset += int(c.DataSize)
			require.Equal(t, ClampDataSize(c.SizeType, cols[c.Input].DataSize), c.DataSize)
			if c.SizeType == SizeVariable {
				require.GreaterOrEqual(t, c.DataSize, uint32(MinVariableDataSize))
				require.LessOrEqual(t, c.DataSize, uint32(MaxVariableDataSize))
			}
			slots += int(c.slots())
		}
		require.Equal(t, l.SlotCount(), slots)

		// Within a region, fixed-width columns precede variable-width ones
		// and sizes ascend; ties keep their input order.
		for _, region := range [][]PlannedColumn{l.KeyColumns(), l.PayloadColumns()} {
			for i := 1; i < len(region); i++ {
				require.Negative(t, columnLess(region[i-1], region[i]),
					"%s before %s", region[i-1], region[i])
			}
		}

		// Every planned column belongs to exactly one packing group.
		groups := len(l.fixedNPOT) + len(l.variable)
		for _, g := range l.fixedPOT {
			groups += len(g)
		}
		require.Equal(t, l.NumColumns(), groups)
		for k, g := range l.fixedPOT {
			for _, c := range g {
				require.Equal(t, uint32(1)<<k, c.DataSize)
			}
		}
		for _, c := range l.fixedNPOT {
			require.Equal(t, SizeFixed, c.SizeType)
		}

		// Input slots are assigned in input order.
		var slot uint32
		for i, c := range l.InputColumns() {
			require.Equal(t, slot, c.OriginalIndex)
			require.Equal(t, i, l.Column(i).Input)
			slot += c.slots()
		}
	}
}

func TestLayoutStableOrder(t *testing.T) {
	l, err := NewLayout([]ColumnDesc{Key(8), Key(4), Key(8)}, nil)
	require.NoError(t, err)
	var inputs []int
	for _, c := range l.Columns() {
		inputs = append(inputs, c.Input)
	}
	require.Equal(t, []int{1, 0, 2}, inputs)
}

func TestClampDataSize(t *testing.T) {
	for _, v := range []uint32{0, 1, 8, 9, 10, 100, 254, 255, 256, 1 << 20} {
		c := ClampDataSize(SizeVariable, v)
		require.GreaterOrEqual(t, c, uint32(MinVariableDataSize))
		require.LessOrEqual(t, c, uint32(MaxVariableDataSize))
		require.Equal(t, c, ClampDataSize(SizeVariable, c))
		require.Equal(t, v, ClampDataSize(SizeFixed, v))
	}
	require.Equal(t, uint32(9), ClampDataSize(SizeVariable, 4))
	require.Equal(t, uint32(255), ClampDataSize(SizeVariable, 1000))
	require.Equal(t, uint32(64), ClampDataSize(SizeVariable, 64))
}

func TestLayoutErrors(t *testing.T) {
	_, err := NewLayout(nil, nil)
	require.True(t, errors.Is(err, ErrNoColumns))

	_, err = NewLayout([]ColumnDesc{VarKey(8)}, &Options{StrictDataSize: true})
	require.True(t, errors.Is(err, ErrInvalidDataSize))

	_, err = NewLayout([]ColumnDesc{Key(MaxRowSize)}, nil)
	require.True(t, errors.Is(err, ErrRowTooWide))

	_, err = NewLayout([]ColumnDesc{Payload(MaxRowSize - 5), Key(1)}, nil)
	require.True(t, errors.Is(err, ErrRowTooWide))

	_, err = NewLayout([]ColumnDesc{{Role: 7, SizeType: SizeFixed, DataSize: 1}}, nil)
	require.True(t, errors.IsAssertionFailure(err))

	_, err = NewLayout([]ColumnDesc{{Role: RoleKey, SizeType: 9, DataSize: 1}}, nil)
	require.True(t, errors.IsAssertionFailure(err))

	_, err = NewLayout([]ColumnDesc{Key(1)}, &Options{HashStrategy: 42})
	require.Error(t, err)
}

func TestNewRowBuffer(t *testing.T) {
	l, err := NewLayout([]ColumnDesc{Key(8), VarPayload(20)}, nil)
	require.NoError(t, err)
	require.Nil(t, l.NewRowBuffer(0))
	buf := l.NewRowBuffer(3)
	require.Len(t, buf, 3*l.TotalRowSize())
}

func BenchmarkNewLayout(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	cols := randomColumns(rng, 32)
	opts := &Options{Logger: base.NoopLogger{}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewLayout(cols, opts); err != nil {
			b.Fatal(err)
		}
	}
}
