// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render contains the three stages of the light-box pipeline:
// Tracer produces one noisy radiance estimate per output pixel,
// Accumulator averages successive estimates, and ToneMapper converts the
// average into 8-bit display pixels.
//
// Every stage owns its device buffers and hands them to the next stage
// only for the duration of one call:
//
//	if err := tracer.Render(); err != nil {
//		return err
//	}
//	if err := acc.AddFrame(tracer.Output()); err != nil {
//		return err
//	}
//	if err := tm.Render(acc.Output()); err != nil {
//		return err
//	}
//	img, err := tm.ReadImage()
//
// Stages run on any gpucore.Device. Buffers are reallocated on resize and
// every kernel binding is re-established afterwards, so a dispatch never
// reads a destroyed buffer.
package render
