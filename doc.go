// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package papercut renders a light box: a stack of cut paper sheets lit
// from behind, refined progressively frame by frame.
//
// # Overview
//
// A Studio owns the layer stack, the back light, the material of every
// sheet and the three pipeline stages of package render. Each call to
// Frame applies pending file changes, traces one noisy estimate, blends it
// into the running average and tone maps the result. Any edit that changes
// the picture restarts the average.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/papercut"
//		_ "github.com/gogpu/papercut/gpu" // enable the Vulkan device
//	)
//
//	s, err := papercut.New(papercut.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.LoadLayers([]string{"front.png", "middle.png", "back.png"}); err != nil {
//		return err
//	}
//	if err := s.SetLightFile("light.png"); err != nil {
//		return err
//	}
//	for s.Accumulating() {
//		if err := s.Frame(); err != nil {
//			return err
//		}
//	}
//	img, err := s.Snapshot()
//
// # Assets
//
// Layer images are decoded as gray masks: any non-zero pixel is paper,
// zero is a hole. The light image is RGB in display gamma. All images must
// share one resolution. Loading an image of a different size makes it the
// new canonical size and re-checks every other asset; a file that changes
// size while being watched is marked StatusSizeMismatch instead.
//
// # Devices
//
// Without a GPU backend the Studio runs its kernels on the CPU. Importing
// package gpu registers a wgpu/hal backend that is preferred when an
// adapter is available.
//
// # Coordinate System
//
// Layer 0 faces the viewer. Distances are given in the same unit as the
// paper width and converted to texels before rendering.
package papercut
