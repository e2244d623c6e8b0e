// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build invariants || race

package invariants

import "fmt"

// Enabled is true if we were built with the "invariants" or "race" build tags.
const Enabled = true

// CheckOffsets panics if the offsets bounding a value of a variable width
// column decrease.
func CheckOffsets(prev, next uint32, row int) {
	if next < prev {
		panic(fmt.Sprintf("offsets not monotonic at row %d: %d > %d", row, prev, next))
	}
}
