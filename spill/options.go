// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package spill

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple/internal/compression"
)

// WriterOptions holds the parameters used to control writing a spill stream.
type WriterOptions struct {
	// Compression is the algorithm frames are compressed with. Frames that
	// do not compress well are stored uncompressed regardless.
	//
	// The default value (NoCompression) stores frames uncompressed.
	Compression Compression

	// Checksum specifies which checksum to use.
	//
	// The default value is ChecksumTypeCRC32c.
	Checksum ChecksumType

	// Metrics, if set, is updated with every batch written.
	Metrics *Metrics
}

// EnsureDefaults returns the options with defaults filled in for unset
// fields.
func (o WriterOptions) EnsureDefaults() WriterOptions {
	if o.Checksum == 0 {
		o.Checksum = ChecksumTypeCRC32c
	}
	return o
}

// Validate verifies that the options are usable.
func (o WriterOptions) Validate() error {
	if o.Compression >= compression.NumAlgorithms {
		return errors.Newf("spill: unknown compression %d", errors.Safe(o.Compression))
	}
	if !o.Checksum.valid() {
		return errors.Newf("spill: unknown checksum type %d", errors.Safe(o.Checksum))
	}
	return nil
}
