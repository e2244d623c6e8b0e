// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/packedtuple"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "print the planned layout of a schema",
	Long: `
Print the regions of the packed row planned for --schema and a table of its
columns in planned order.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLayout()
		if err != nil {
			return err
		}
		writeLayout(cmd.OutOrStdout(), l)
		return nil
	},
}

func writeLayout(w io.Writer, l *packedtuple.Layout) {
	fmt.Fprintf(w, "row size: %d bytes (%d slots, hash %s)\n", l.TotalRowSize(), l.SlotCount(), l.HashStrategy())
	fmt.Fprintf(w, "hash:     [0, 4)\n")
	fmt.Fprintf(w, "keys:     [%d, %d) fixed [%d, %d)\n",
		l.KeyColumnsOffset(), l.KeyColumnsEnd(), l.KeyColumnsOffset(), l.KeyColumnsFixedEnd())
	fmt.Fprintf(w, "bitmask:  [%d, %d)\n", l.BitmaskOffset(), l.BitmaskOffset()+l.BitmaskSize())
	fmt.Fprintf(w, "payload:  [%d, %d)\n", l.PayloadOffset(), l.PayloadEnd())

	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"#", "Role", "Size", "Width", "Input", "Slots", "Offset"})
	for _, c := range l.Columns() {
		slots := strconv.Itoa(c.Source.DataSlot)
		if c.Source.OffsetsSlot >= 0 {
			slots = fmt.Sprintf("%d,%d", c.Source.OffsetsSlot, c.Source.DataSlot)
		}
		tbl.Append([]string{
			strconv.Itoa(int(c.ColumnIndex)),
			c.Role.String(),
			c.SizeType.String(),
			strconv.Itoa(int(c.DataSize)),
			strconv.Itoa(c.Input),
			slots,
			strconv.Itoa(int(c.Offset)),
		})
	}
	tbl.Render()
}
