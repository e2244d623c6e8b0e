// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/packedtuple/internal/base"
	"github.com/spf13/cobra"
)

var (
	schema       string
	hashStrategy string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "tuplepack [command] (flags)",
	Short: "packed tuple layout inspection and benchmarking tool",
	Long: `
Plan, pack and benchmark packed row layouts. Every command takes a --schema
flag listing the columns as role:size[:width] items, for example:

  --schema "key:u64, key:var:16, payload:fixed:3, payload:var"
`,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		layoutCmd,
		packCmd,
		benchCmd,
	)

	for _, cmd := range []*cobra.Command{layoutCmd, packCmd, benchCmd} {
		cmd.Flags().StringVarP(
			&schema, "schema", "s", "", "the columns of the layout")
		cmd.Flags().StringVar(
			&hashStrategy, "hash-strategy", "auto", "the row hash strategy (auto, portable, narrow, wide)")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "log layout planning events")
		_ = cmd.MarkFlagRequired("schema")
	}

	packCmd.Flags().StringVar(
		&packConfig.csv, "csv", "-", "CSV file of input rows (- for stdin); \\N marks a NULL")
	packCmd.Flags().StringVar(
		&packConfig.spill, "spill", "", "write the packed rows to a spill file")
	packCmd.Flags().StringVar(
		&packConfig.compression, "compression", "none", "spill compression (none, snappy, minlz, zstd)")
	packCmd.Flags().StringVar(
		&packConfig.checksum, "checksum", "crc32c", "spill checksum (crc32c, xxhash64)")

	benchCmd.Flags().IntVarP(
		&benchConfig.rows, "rows", "n", 1<<20, "number of rows to pack")
	benchCmd.Flags().IntVarP(
		&benchConfig.batch, "batch", "b", 1024, "number of rows per Pack call")
	benchCmd.Flags().IntVarP(
		&benchConfig.concurrency, "concurrency", "c", 1, "number of concurrent workers")
	benchCmd.Flags().Uint64Var(
		&benchConfig.seed, "seed", 1, "random data seed")
	benchCmd.Flags().IntVar(
		&benchConfig.plotHeight, "plot-height", 10, "height of the throughput plot (0 disables it)")
	benchCmd.Flags().Float64Var(
		&benchConfig.rate, "rate", 0, "maximum rows per second across workers (0 is unlimited)")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

// newLayout plans the layout described by the --schema and --hash-strategy
// flags.
func newLayout() (*packedtuple.Layout, error) {
	cols, err := packedtuple.ParseSchema(schema)
	if err != nil {
		return nil, err
	}
	opts := &packedtuple.Options{}
	if err := opts.Parse("[Options]\nhash_strategy=" + hashStrategy + "\n"); err != nil {
		return nil, err
	}
	opts.Logger = base.NoopLogger{}
	if verbose {
		opts.Logger = packedtuple.DefaultLogger
	}
	return packedtuple.NewLayout(cols, opts)
}
