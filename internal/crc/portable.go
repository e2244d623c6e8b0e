// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package crc

import "hash/crc32"

// slicing8Table is 8 tables of 256 entries: slicing8Table[0] is the classic
// byte-at-a-time table and slicing8Table[k] advances a byte through k
// additional zero bytes.
type slicing8Table [8][256]uint32

var castagnoliSlicing8 = makeSlicing8Table(crc32.Castagnoli)

func makeSlicing8Table(poly uint32) *slicing8Table {
	t := new(slicing8Table)
	for i := 0; i < 256; i++ {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		t[0][i] = crc
	}
	for i := 0; i < 256; i++ {
		crc := t[0][i]
		for j := 1; j < 8; j++ {
			crc = t[0][crc&0xff] ^ (crc >> 8)
			t[j][i] = crc
		}
	}
	return t
}

// portable computes CRC-32C eight bytes at a time without any CPU support.
type portable struct{}

var _ Hasher = portable{}

func (portable) Strategy() Strategy { return Portable }

func (portable) Update(crc uint32, p []byte) uint32 {
	tab := castagnoliSlicing8
	crc = ^crc
	for len(p) >= 8 {
		crc ^= uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
		crc = tab[0][p[7]] ^ tab[1][p[6]] ^ tab[2][p[5]] ^ tab[3][p[4]] ^
			tab[4][crc>>24] ^ tab[5][(crc>>16)&0xff] ^
			tab[6][(crc>>8)&0xff] ^ tab[7][crc&0xff]
		p = p[8:]
	}
	for _, v := range p {
		crc = tab[0][byte(crc)^v] ^ (crc >> 8)
	}
	return ^crc
}

func (portable) Update32(crc uint32, v uint32) uint32 {
	tab := castagnoliSlicing8
	crc = ^crc ^ v
	crc = tab[0][crc>>24] ^ tab[1][(crc>>16)&0xff] ^
		tab[2][(crc>>8)&0xff] ^ tab[3][crc&0xff]
	return ^crc
}
