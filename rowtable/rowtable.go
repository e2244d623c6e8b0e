// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rowtable implements a hash table of packed rows grouped by key, as
// used by the build side of a hash join or by a hash aggregation. Rows are
// located by the hash stored in every packed row and grouped by comparing
// their keys, so rows whose keys differ only in overflowed bytes land in
// different groups.
package rowtable

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/swiss"
)

// RowRef identifies a row inserted into a Table: the index of the batch it
// was inserted with and its position within that batch.
type RowRef struct {
	Batch int
	Row   int
}

// group holds the rows with equal keys. Groups whose rows share a hash but
// not their keys are chained.
type group struct {
	rows []RowRef
	next *group
}

type batch struct {
	rows     []byte
	overflow []byte
}

func fibonacciHash(k *uint32, seed uintptr) uintptr {
	const m = 11400714819323198485
	h := uint64(seed)
	h ^= uint64(*k) * m
	return uintptr(h)
}

var tableOptions = []swiss.Option[uint32, *group]{
	swiss.WithHash[uint32, *group](fibonacciHash),
}

// Table groups packed rows of one layout by key. A Table is not safe for
// concurrent use.
type Table struct {
	layout  *packedtuple.Layout
	batches []batch
	m       swiss.Map[uint32, *group]
	rows    int
	groups  int
}

// New returns an empty table for rows of the given layout, sized for
// initialCapacity distinct hashes.
func New(layout *packedtuple.Layout, initialCapacity int) *Table {
	t := &Table{layout: layout}
	t.m.Init(initialCapacity, tableOptions...)
	return t
}

// Insert adds count packed rows to the table. The table retains rows and
// overflow, which must not be modified afterwards. It returns the index of
// the batch, used by the RowRefs of the inserted rows.
func (t *Table) Insert(rows, overflow []byte, count int) int {
	if len(rows) < count*t.layout.TotalRowSize() {
		panic(errors.AssertionFailedf("rowtable: %d bytes cannot hold %d rows", len(rows), count))
	}
	b := len(t.batches)
	t.batches = append(t.batches, batch{rows: rows, overflow: overflow})
	for i := 0; i < count; i++ {
		row := t.layout.Row(rows, i)
		ref := RowRef{Batch: b, Row: i}
		h := packedtuple.RowHash(row)
		head, ok := t.m.Get(h)
		if !ok {
			t.m.Put(h, &group{rows: []RowRef{ref}})
			t.groups++
			t.rows++
			continue
		}
		g := t.find(head, row, overflow)
		if g == nil {
			// A hash collision between distinct keys.
			g = &group{next: head.next}
			head.next = g
			t.groups++
		}
		g.rows = append(g.rows, ref)
		t.rows++
	}
	return b
}

func (t *Table) find(g *group, row, overflow []byte) *group {
	for ; g != nil; g = g.next {
		r := g.rows[0]
		if t.layout.KeysEqual(t.layout.Row(t.batches[r.Batch].rows, r.Row), t.batches[r.Batch].overflow, row, overflow) {
			return g
		}
	}
	return nil
}

// Probe returns the rows whose keys equal the keys of row, whose
// variable-width keys may refer to overflow. The returned slice must not be
// modified.
func (t *Table) Probe(row, overflow []byte) []RowRef {
	head, ok := t.m.Get(packedtuple.RowHash(row))
	if !ok {
		return nil
	}
	if g := t.find(head, row, overflow); g != nil {
		return g.rows
	}
	return nil
}

// Row returns the packed row identified by ref and the overflow buffer of its
// batch.
func (t *Table) Row(ref RowRef) (row, overflow []byte) {
	b := &t.batches[ref.Batch]
	return t.layout.Row(b.rows, ref.Row), b.overflow
}

// Len returns the number of rows in the table.
func (t *Table) Len() int { return t.rows }

// Groups returns the number of distinct keys in the table.
func (t *Table) Groups() int { return t.groups }

// All calls fn with the rows of every group until fn returns false. Groups
// are visited in an unspecified order.
func (t *Table) All(fn func(rows []RowRef) bool) {
	t.m.All(func(_ uint32, g *group) bool {
		for ; g != nil; g = g.next {
			if !fn(g.rows) {
				return false
			}
		}
		return true
	})
}

// Close releases the table's memory.
func (t *Table) Close() {
	t.m.Close()
	t.batches = nil
}
