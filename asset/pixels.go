// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import "image"

// Pixels is a decoded 8-bit image with one (gray) or three (RGB)
// interleaved channels, stored row by row without padding.
type Pixels struct {
	Width, Height int
	Channels      int
	Pix           []uint8
}

// Empty reports whether p holds no image, which is how decode failures
// are represented.
func (p Pixels) Empty() bool { return len(p.Pix) == 0 }

// Size returns the image dimensions; the zero point for empty pixels.
func (p Pixels) Size() image.Point {
	if p.Empty() {
		return image.Point{}
	}
	return image.Pt(p.Width, p.Height)
}

// At returns the channel values of the pixel at (x, y).
func (p Pixels) At(x, y int) []uint8 {
	i := (y*p.Width + x) * p.Channels
	return p.Pix[i : i+p.Channels : i+p.Channels]
}
