// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import "github.com/cockroachdb/errors"

var (
	// ErrNoColumns is returned when planning a layout for an empty column
	// list.
	ErrNoColumns = errors.New("packedtuple: no columns")
	// ErrInvalidDataSize is returned in strict mode when a variable-width
	// column declares a data size outside [MinVariableDataSize,
	// MaxVariableDataSize].
	ErrInvalidDataSize = errors.New("packedtuple: invalid data size")
	// ErrRowTooWide is returned when the planned row exceeds MaxRowSize.
	ErrRowTooWide = errors.New("packedtuple: row too wide")
)
