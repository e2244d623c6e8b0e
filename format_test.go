// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatRows(t *testing.T) {
	l := mustLayout(t, nil, Key(4), VarPayload(12))
	var b ColumnsBuilder
	b.Init(l)
	b.AppendFixed(0, []byte{1, 0, 0, 0})
	b.AppendVariable(1, []byte("hello"))
	b.AppendFixed(0, []byte{2, 0, 0, 0})
	b.AppendVariable(1, []byte("hello, world"))
	b.AppendNull(0)
	b.AppendNull(1)
	rows, _ := pack(l, &b, nil)

	var buf strings.Builder
	require.NoError(t, l.FormatRows(&buf, rows, 3))
	out := buf.String()
	t.Log(out)
	for _, s := range []string{
		"# row 0",
		"# row 1",
		"# row 2",
		"hash",
		"key:fixed:4 0",
		"validity",
		"payload:var:12 1: inline len=5",
		"padding",
		"payload:var:12 1: overflow",
		"overflow offset",
		"value length",
		"prefix",
		"tail of 9 bytes in overflow",
		"key:fixed:4 0 (null)",
		"payload:var:12 1: inline len=0 (null)",
	} {
		require.Contains(t, out, s)
	}
	require.Equal(t, 3, strings.Count(out, "validity"))

	buf.Reset()
	require.NoError(t, l.FormatRows(&buf, rows, 0))
	require.Empty(t, buf.String())
}

func TestFormatRowsKeysOnly(t *testing.T) {
	l := mustLayout(t, nil, Key(2), Key(1))
	var b ColumnsBuilder
	b.Init(l)
	b.AppendFixed(0, []byte{1, 2})
	b.AppendFixed(1, []byte{3})
	rows, _ := pack(l, &b, nil)

	var buf strings.Builder
	require.NoError(t, l.FormatRows(&buf, rows, 1))
	out := buf.String()
	require.Less(t, strings.Index(out, "key:fixed:2 1"), strings.Index(out, "validity"))
	require.Equal(t, 1, strings.Count(out, "validity"))
}
