// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package crc implements the row hash used by packed tuples: CRC-32 with
// Castagnoli's polynomial (CRC-32C), computed by one of several strategies
// selected once from the host CPU's capabilities.
//
// Every strategy produces bit-identical output for the same input; they only
// differ in throughput. The Wide and Narrow strategies are backed by the
// hardware CRC32 instruction (SSE4.2 on amd64, the CRC32 extension on arm64),
// with Wide additionally relying on carry-less multiplication to fold long
// inputs in parallel lanes. The Portable strategy is a slicing-by-8 table
// implementation that is always available.
package crc

import (
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/cockroachdb/errors"
)

// Strategy identifies a CRC-32C accumulation strategy.
type Strategy uint8

const (
	// Auto is not a strategy; it requests the strategy picked by Select.
	Auto Strategy = iota
	// Portable is the table driven fallback.
	Portable
	// Narrow uses the CRC32 instruction on one lane.
	Narrow
	// Wide uses the CRC32 instruction on three interleaved lanes, combining
	// them with carry-less multiplication.
	Wide
)

var strategyNames = [...]string{
	Auto:     "auto",
	Portable: "portable",
	Narrow:   "narrow",
	Wide:     "wide",
}

// String implements fmt.Stringer.
func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "unknown"
}

// ParseStrategy parses the string representation of a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	for i, name := range strategyNames {
		if strings.EqualFold(s, name) {
			return Strategy(i), nil
		}
	}
	return 0, errors.Newf("unknown crc strategy %q", s)
}

// Hasher accumulates bytes into a running CRC-32C checksum. The zero checksum
// is the starting value.
type Hasher interface {
	// Strategy returns the strategy implemented by the Hasher.
	Strategy() Strategy
	// Update returns the result of adding the bytes in p to crc.
	Update(crc uint32, p []byte) uint32
	// Update32 returns the result of adding the four little-endian bytes of v
	// to crc.
	Update32(crc uint32, v uint32) uint32
}

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// hardwareHasher defers to hash/crc32, which dispatches to the CRC32
// instruction when the CPU provides it.
type hardwareHasher struct {
	strategy Strategy
}

var _ Hasher = hardwareHasher{}

func (h hardwareHasher) Strategy() Strategy { return h.strategy }

func (h hardwareHasher) Update(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, castagnoliTable, p)
}

func (h hardwareHasher) Update32(crc uint32, v uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return crc32.Update(crc, castagnoliTable, buf[:])
}

var (
	wideHasher     Hasher = hardwareHasher{strategy: Wide}
	narrowHasher   Hasher = hardwareHasher{strategy: Narrow}
	portableHasher Hasher = portable{}
)

// New returns the Hasher implementing the given strategy. Auto resolves to
// the strategy returned by Select.
func New(s Strategy) Hasher {
	switch s {
	case Auto:
		return New(Select())
	case Wide:
		return wideHasher
	case Narrow:
		return narrowHasher
	case Portable:
		return portableHasher
	default:
		panic(errors.AssertionFailedf("unknown crc strategy %d", errors.Safe(s)))
	}
}

// Default returns the Hasher for the strategy selected for this host.
func Default() Hasher {
	return New(Select())
}

// Checksum returns the CRC-32C checksum of p computed with the default
// strategy.
func Checksum(p []byte) uint32 {
	return Default().Update(0, p)
}
