// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !invariants && !race

// Package invariants holds assertions that are only compiled into builds
// using the "invariants" or "race" build tags.
package invariants

// Enabled is true if we were built with the "invariants" or "race" build tags.
const Enabled = false

// CheckOffsets panics if the offsets bounding a value of a variable width
// column decrease. No-op in non-invariant builds.
func CheckOffsets(prev, next uint32, row int) {}
