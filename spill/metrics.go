// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package spill

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus metrics updated by a Writer. A Metrics may be
// shared by concurrent writers.
type Metrics struct {
	// Batches counts the frames written.
	Batches prometheus.Counter
	// Rows counts the packed rows written.
	Rows prometheus.Counter
	// RawBytes counts the bytes of rows and overflow before compression.
	RawBytes prometheus.Counter
	// WrittenBytes counts the bytes written, including headers and frame
	// overhead.
	WrittenBytes prometheus.Counter
	// CompressionRatio observes the ratio of raw to stored block size of
	// every frame.
	CompressionRatio prometheus.Histogram
}

// NewMetrics constructs the spill metrics and registers them with reg, if
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "packedtuple",
			Subsystem: "spill",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		Batches:      counter("batches_total", "Number of batches spilled."),
		Rows:         counter("rows_total", "Number of packed rows spilled."),
		RawBytes:     counter("raw_bytes_total", "Bytes of rows and overflow before compression."),
		WrittenBytes: counter("written_bytes_total", "Bytes written to spill streams."),
		CompressionRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "packedtuple",
			Subsystem: "spill",
			Name:      "compression_ratio",
			Help:      "Ratio of raw to stored size of spilled blocks.",
			Buckets:   prometheus.LinearBuckets(1, 0.5, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Batches, m.Rows, m.RawBytes, m.WrittenBytes, m.CompressionRatio)
	}
	return m
}
