// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package crc

import (
	"sync"

	"golang.org/x/sys/cpu"
)

var selected struct {
	once     sync.Once
	strategy Strategy
}

// Select returns the fastest strategy supported by the host CPU. The CPU is
// inspected on the first call only.
func Select() Strategy {
	selected.once.Do(func() {
		selected.strategy = detect(hostFeatures())
	})
	return selected.strategy
}

type features struct {
	x86AVX2, x86SSE42, x86CLMUL bool
	arm64CRC32, arm64PMULL     bool
}

func hostFeatures() features {
	return features{
		x86AVX2:    cpu.X86.HasAVX2,
		x86SSE42:   cpu.X86.HasSSE42,
		x86CLMUL:   cpu.X86.HasPCLMULQDQ,
		arm64CRC32: cpu.ARM64.HasCRC32,
		arm64PMULL: cpu.ARM64.HasPMULL,
	}
}

func detect(f features) Strategy {
	switch {
	case f.x86AVX2 && f.x86SSE42 && f.x86CLMUL:
		return Wide
	case f.x86SSE42:
		return Narrow
	case f.arm64CRC32 && f.arm64PMULL:
		return Wide
	case f.arm64CRC32:
		return Narrow
	default:
		return Portable
	}
}
