// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple"
	"github.com/cockroachdb/tokenbucket"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

var benchConfig struct {
	rows        int
	batch       int
	concurrency int
	seed        uint64
	plotHeight  int
	rate        float64
}

const (
	minLatency = 100 * time.Nanosecond
	maxLatency = 10 * time.Second
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "benchmark packing random rows",
	Long: `
Generate --rows random rows for --schema and pack them in batches of --batch
rows. The batches are partitioned among --concurrency workers, each packing
into its own destination and overflow buffers. Roughly one value in sixteen is
NULL and variable-width values range up to twice their inline slot.

A positive --rate limits the combined throughput of the workers to that many
rows per second.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLayout()
		if err != nil {
			return err
		}
		if benchConfig.rows <= 0 || benchConfig.batch <= 0 || benchConfig.concurrency <= 0 {
			return errors.New("--rows, --batch and --concurrency must be positive")
		}
		if benchConfig.rate < 0 {
			return errors.New("--rate must not be negative")
		}
		return runBench(context.Background(), cmd.OutOrStdout(), l)
	},
}

// randomInput generates n rows of random columnar input for l.
func randomInput(rng *rand.Rand, l *packedtuple.Layout, n int) *packedtuple.ColumnsBuilder {
	b := &packedtuple.ColumnsBuilder{}
	b.Init(l)
	var buf []byte
	for r := 0; r < n; r++ {
		for i, c := range l.InputColumns() {
			if rng.Intn(16) == 0 {
				b.AppendNull(i)
				continue
			}
			size := int(c.DataSize)
			if c.SizeType == packedtuple.SizeVariable {
				size = rng.Intn(2 * size)
			}
			if cap(buf) < size {
				buf = make([]byte, size)
			}
			buf = buf[:size]
			_, _ = rng.Read(buf)
			if c.SizeType == packedtuple.SizeVariable {
				b.AppendVariable(i, buf)
			} else {
				b.AppendFixed(i, buf)
			}
		}
	}
	return b
}

// rowLimiter paces the workers to a shared rows per second budget. A nil
// rowLimiter does not limit.
type rowLimiter struct {
	mu sync.Mutex
	tb tokenbucket.TokenBucket
}

func newRowLimiter(rowsPerSec float64, batch int) *rowLimiter {
	if rowsPerSec <= 0 {
		return nil
	}
	rl := &rowLimiter{}
	// The burst must admit a full batch.
	rl.tb.Init(tokenbucket.TokensPerSecond(rowsPerSec), tokenbucket.Tokens(max(rowsPerSec*0.1, float64(batch))))
	return rl
}

func (rl *rowLimiter) wait(ctx context.Context, rows int) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tb.WaitCtx(ctx, tokenbucket.Tokens(rows))
}

type benchResult struct {
	elapsed  time.Duration
	overflow int
	hist     *hdrhistogram.Histogram
	// rowsPerSec holds the throughput of every batch, in batch order.
	rowsPerSec []float64
}

func runBench(ctx context.Context, w io.Writer, l *packedtuple.Layout) error {
	cfg := benchConfig
	rng := rand.New(rand.NewSource(cfg.seed))
	input := randomInput(rng, l, cfg.rows)
	columns, validity := input.Columns()
	numBatches := (cfg.rows + cfg.batch - 1) / cfg.batch

	res := benchResult{
		hist:       hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1),
		rowsPerSec: make([]float64, numBatches),
	}
	hists := make([]*hdrhistogram.Histogram, cfg.concurrency)
	overflowBytes := make([]int, cfg.concurrency)
	limiter := newRowLimiter(cfg.rate, cfg.batch)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for worker := 0; worker < cfg.concurrency; worker++ {
		hists[worker] = hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
		g.Go(func() error {
			hist := hists[worker]
			dst := l.NewRowBuffer(cfg.batch)
			var overflow []byte
			// Worker i packs batches i, i+concurrency, i+2*concurrency, ...
			for b := worker; b < numBatches; b += cfg.concurrency {
				if err := ctx.Err(); err != nil {
					return err
				}
				first := b * cfg.batch
				count := min(cfg.batch, cfg.rows-first)
				if err := limiter.wait(ctx, count); err != nil {
					return err
				}
				batchStart := time.Now()
				overflow = l.Pack(columns, validity, dst, overflow[:0], first, count)
				d := time.Since(batchStart)
				if err := hist.RecordValue(max(d.Nanoseconds(), minLatency.Nanoseconds())); err != nil {
					return err
				}
				res.rowsPerSec[b] = float64(count) / max(d.Seconds(), minLatency.Seconds())
				overflowBytes[worker] += len(overflow)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	res.elapsed = time.Since(start)
	for i := range hists {
		res.hist.Merge(hists[i])
		res.overflow += overflowBytes[i]
	}
	writeBenchResult(w, l, cfg.rows, res)
	return nil
}

func writeBenchResult(w io.Writer, l *packedtuple.Layout, rows int, res benchResult) {
	bytes := int64(rows) * int64(l.TotalRowSize())
	fmt.Fprintf(w, "schema:     %s\n", packedtuple.FormatSchema(l.InputColumns()))
	fmt.Fprintf(w, "row size:   %d bytes\n", l.TotalRowSize())
	fmt.Fprintf(w, "rows:       %s in %d batches\n",
		crhumanize.Count(int64(rows), crhumanize.Compact), res.hist.TotalCount())
	fmt.Fprintf(w, "packed:     %s rows, %s overflow\n",
		crhumanize.Bytes(bytes, crhumanize.Compact), crhumanize.Bytes(int64(res.overflow), crhumanize.Compact))
	secs := res.elapsed.Seconds()
	fmt.Fprintf(w, "elapsed:    %s (%s rows/s, %s/s)\n", res.elapsed.Round(time.Microsecond),
		crhumanize.Count(int64(float64(rows)/secs), crhumanize.Compact),
		crhumanize.Bytes(int64(float64(bytes)/secs), crhumanize.Compact))
	fmt.Fprintf(w, "batch latency: p50 %s  p95 %s  p99 %s  max %s\n",
		time.Duration(res.hist.ValueAtQuantile(50)),
		time.Duration(res.hist.ValueAtQuantile(95)),
		time.Duration(res.hist.ValueAtQuantile(99)),
		time.Duration(res.hist.Max()))
	if benchConfig.plotHeight > 0 && len(res.rowsPerSec) > 1 {
		fmt.Fprintf(w, "\n%s\n", asciigraph.Plot(res.rowsPerSec,
			asciigraph.Height(benchConfig.plotHeight),
			asciigraph.Width(min(len(res.rowsPerSec), 100)),
			asciigraph.Caption("rows/s per batch")))
	}
}
