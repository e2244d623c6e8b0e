// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package packedtuple converts columnar (struct-of-arrays) batches into dense,
// hash-prefixed, fixed-stride rows for the build and probe phases of hash
// joins and hash aggregations.
//
// # Layout
//
// A Layout is planned once per set of column descriptors and is immutable
// afterwards. Every packed row has the same size:
//
//	+------+------------+---------------+---------+---------------+------------------+
//	| hash | fixed keys | variable keys | bitmask | fixed payload | variable payload |
//	+------+------------+---------------+---------+---------------+------------------+
//	   4
//
// Within the key and the payload regions, fixed-width columns come first,
// ordered by ascending width; variable-width columns follow, also by
// ascending width. Columns of equal kind and width keep their input order.
// The bitmask holds one validity bit per column, in planned column order.
//
// # Variable-width slots
//
// A variable-width column occupies DataSize bytes of every row. Values
// shorter than DataSize are stored inline:
//
//	[len u8][len bytes of data][zero padding]
//
// Longer values are marked with 255 and spill their tail into an overflow
// buffer shared by the batch:
//
//	[255][overflow offset u32][value length u32][DataSize-9 bytes of prefix]
//
// # Hashing
//
// The first four bytes of a row hold the CRC-32C of the key region. When a
// variable-width key overflowed, the lengths and full contents of the
// variable-width keys are hashed together with the fixed-width keys so that
// overflowed content participates in the hash. The bitmask is never hashed.
package packedtuple
