// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import (
	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/color"
)

// ToneMap is the host form of the tonemap kernel. Each HDR pixel is scaled
// by the exposure, clamped, gamma encoded and packed as RGBA8 (or BGRA8).
func ToneMap(row, width uint32, b *gpucore.HostBindings) {
	params := b.Words(toneBindPerFrame)
	exposure := b.Floats(toneBindPerFrame)[0]
	swap := params[1] != 0

	hdr := b.Floats(toneBindHDR)
	out := b.Words(toneBindOutput)
	for x := range width {
		i := row*width + x
		px := hdr[i*4 : i*4+3]
		r := color.EncodeByte(px[0] * exposure)
		g := color.EncodeByte(px[1] * exposure)
		bl := color.EncodeByte(px[2] * exposure)
		if swap {
			r, bl = bl, r
		}
		out[i] = uint32(r) | uint32(g)<<8 | uint32(bl)<<16 | 0xff<<24
	}
}
