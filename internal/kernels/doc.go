// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kernels holds the three compute programs of the light-box
// pipeline: trace, accumulate and tonemap. Each program exists as WGSL
// for GPU devices and as a gpucore.HostProgram for the CPU device; both
// forms read and write the same buffer layouts.
//
// Scene geometry, in paper pixel units:
//
//	viewer (+z)
//	   |
//	---+--- layer 0          z = 0
//	---+--- layer 1          z = -PaperDistance
//	  ...
//	---+--- layer N-1        z = -(N-1)*PaperDistance
//	=======  back light      z = -(N-1)*PaperDistance - LightDistance
//
// Paper texels outside the paper rectangle are empty; back light lookups
// clamp to the edge, so a uniform light image behaves as an infinite
// emitter.
package kernels
