// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

// SeedRNG returns the initial generator state of pixel i.
func SeedRNG(i uint32) uint32 { return i*i + 1 }

// next advances a PCG-style generator and returns a value in [0, 1).
// The same sequence is produced by rand01 in trace.wgsl.
func next(state *uint32) float32 {
	s := *state*747796405 + 2891336453
	*state = s
	w := ((s >> ((s >> 28) + 4)) ^ s) * 277803737
	w = (w >> 22) ^ w
	return float32(w>>8) / 16777216.0
}
