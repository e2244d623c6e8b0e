// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rowtable

import (
	"encoding/binary"
	"fmt"
	randv1 "math/rand"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/metamorphic"
	"github.com/cockroachdb/packedtuple"
	"github.com/stretchr/testify/require"
)

// packLines packs one row per line of whitespace separated values. \N is a
// null and '' an empty string.
func packLines(t *testing.T, l *packedtuple.Layout, lines []string) (rows, overflow []byte) {
	var b packedtuple.ColumnsBuilder
	b.Init(l)
	for _, line := range lines {
		fields := strings.Fields(line)
		require.Len(t, fields, len(l.InputColumns()), "%s", line)
		for i, c := range l.InputColumns() {
			f := fields[i]
			switch {
			case f == `\N`:
				b.AppendNull(i)
			case c.SizeType == packedtuple.SizeVariable:
				if f == "''" {
					f = ""
				}
				b.AppendVariable(i, []byte(f))
			default:
				v, err := strconv.ParseUint(f, 10, 64)
				require.NoError(t, err)
				buf := binary.LittleEndian.AppendUint64(nil, v)
				b.AppendFixed(i, buf[:c.DataSize])
			}
		}
	}
	columns, validity := b.Columns()
	rows = l.NewRowBuffer(len(lines))
	overflow = l.Pack(columns, validity, rows, nil, 0, len(lines))
	return rows, overflow
}

func formatRefs(refs []RowRef) string {
	if len(refs) == 0 {
		return "none"
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = fmt.Sprintf("(%d,%d)", r.Batch, r.Row)
	}
	return strings.Join(parts, " ")
}

func TestTable(t *testing.T) {
	var l *packedtuple.Layout
	var tbl *Table
	datadriven.RunTest(t, "testdata/rowtable", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "init":
			cols, err := packedtuple.ParseSchema(d.Input)
			require.NoError(t, err)
			l, err = packedtuple.NewLayout(cols, nil)
			require.NoError(t, err)
			if tbl != nil {
				tbl.Close()
			}
			tbl = New(l, 0)
			return ""

		case "insert":
			lines := crstrings.Lines(d.Input)
			rows, overflow := packLines(t, l, lines)
			b := tbl.Insert(rows, overflow, len(lines))
			return fmt.Sprintf("batch %d: rows=%d groups=%d\n", b, tbl.Len(), tbl.Groups())

		case "probe":
			lines := crstrings.Lines(d.Input)
			rows, overflow := packLines(t, l, lines)
			var buf strings.Builder
			for i, line := range lines {
				fmt.Fprintf(&buf, "%s: %s\n", line, formatRefs(tbl.Probe(l.Row(rows, i), overflow)))
			}
			return buf.String()

		case "groups":
			var groups []string
			tbl.All(func(rows []RowRef) bool {
				groups = append(groups, formatRefs(rows))
				return true
			})
			slices.Sort(groups)
			return strings.Join(groups, "\n") + "\n"

		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}
	})
	if tbl != nil {
		tbl.Close()
	}
}

func TestTableRandomized(t *testing.T) {
	cols, err := packedtuple.ParseSchema("key:u16, key:var:10, payload:u64")
	require.NoError(t, err)
	l, err := packedtuple.NewLayout(cols, nil)
	require.NoError(t, err)
	tbl := New(l, 16)
	defer tbl.Close()

	rng := rand.New(rand.NewPCG(0, 7))
	type key struct {
		a uint16
		s string
	}
	expected := map[key][]RowRef{}
	for batch := 0; batch < 5; batch++ {
		var b packedtuple.ColumnsBuilder
		b.Init(l)
		var keys []key
		for i := 0; i < 200; i++ {
			k := key{a: uint16(rng.IntN(5)), s: strings.Repeat("k", rng.IntN(4)*6) + strconv.Itoa(rng.IntN(4))}
			keys = append(keys, k)
			b.AppendFixed(0, binary.LittleEndian.AppendUint16(nil, k.a))
			b.AppendVariable(1, []byte(k.s))
			b.AppendFixed(2, binary.LittleEndian.AppendUint64(nil, rng.Uint64()))
		}
		columns, validity := b.Columns()
		rows := l.NewRowBuffer(len(keys))
		overflow := l.Pack(columns, validity, rows, nil, 0, len(keys))
		idx := tbl.Insert(rows, overflow, len(keys))
		require.Equal(t, batch, idx)
		for i, k := range keys {
			expected[k] = append(expected[k], RowRef{Batch: idx, Row: i})
		}
	}
	require.Equal(t, 1000, tbl.Len())
	require.Equal(t, len(expected), tbl.Groups())

	total := 0
	tbl.All(func(refs []RowRef) bool {
		row, overflow := tbl.Row(refs[0])
		require.Equal(t, refs, tbl.Probe(row, overflow))
		total += len(refs)
		return true
	})
	require.Equal(t, 1000, total)

	for _, refs := range expected {
		row, overflow := tbl.Row(refs[0])
		require.Equal(t, refs, tbl.Probe(row, overflow))
	}

	stopped := 0
	tbl.All(func([]RowRef) bool {
		stopped++
		return false
	})
	require.Equal(t, 1, stopped)
}

// TestTableRandomOps interleaves inserts and probes of present and absent keys,
// checking the table against a map after every operation.
func TestTableRandomOps(t *testing.T) {
	cols, err := packedtuple.ParseSchema("key:var:9, key:u8, payload:var:12")
	require.NoError(t, err)
	l, err := packedtuple.NewLayout(cols, nil)
	require.NoError(t, err)
	tbl := New(l, 0)
	defer tbl.Close()

	seed := uint64(1)
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewPCG(0, seed))

	type key struct {
		s string
		b uint8
	}
	randomKey := func() key {
		// Some keys exceed the inline slot and overflow.
		return key{s: strings.Repeat("x", rng.IntN(12)), b: uint8(rng.IntN(3))}
	}
	pack := func(keys []key) (rows, overflow []byte) {
		var b packedtuple.ColumnsBuilder
		b.Init(l)
		for _, k := range keys {
			b.AppendVariable(0, []byte(k.s))
			b.AppendFixed(1, []byte{k.b})
			b.AppendVariable(2, []byte(strconv.Itoa(rng.IntN(1e9))))
		}
		columns, validity := b.Columns()
		rows = l.NewRowBuffer(len(keys))
		overflow = l.Pack(columns, validity, rows, nil, 0, len(keys))
		return rows, overflow
	}

	expected := map[key][]RowRef{}
	var inserted []key
	probe := func(k key) {
		rows, overflow := pack([]key{k})
		got := tbl.Probe(l.Row(rows, 0), overflow)
		if want := expected[k]; len(want) == 0 {
			require.Empty(t, got, "%+v", k)
		} else {
			require.Equal(t, want, got, "%+v", k)
		}
	}

	nextOp := metamorphic.Weighted[func()]{
		{Weight: 2, Item: func() {
			keys := make([]key, 1+rng.IntN(20))
			for i := range keys {
				keys[i] = randomKey()
			}
			rows, overflow := pack(keys)
			idx := tbl.Insert(rows, overflow, len(keys))
			for i, k := range keys {
				expected[k] = append(expected[k], RowRef{Batch: idx, Row: i})
			}
			inserted = append(inserted, keys...)
		}},
		{Weight: 5, Item: func() {
			if len(inserted) > 0 {
				probe(inserted[rng.IntN(len(inserted))])
			}
		}},
		{Weight: 3, Item: func() {
			probe(key{s: "absent" + strconv.Itoa(rng.IntN(100)), b: uint8(rng.IntN(3))})
		}},
		{Weight: 1, Item: func() {
			require.Equal(t, len(inserted), tbl.Len())
			require.Equal(t, len(expected), tbl.Groups())
		}},
	}.RandomDeck(randv1.New(randv1.NewSource(int64(rng.Uint64()))))

	for i := 0; i < 500; i++ {
		nextOp()()
	}
	require.Equal(t, len(inserted), tbl.Len())
	require.Equal(t, len(expected), tbl.Groups())
}
