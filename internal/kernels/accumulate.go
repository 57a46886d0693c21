// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import "github.com/gogpu/papercut/gpucore"

// Accumulate is the host form of the accumulate kernel:
// Output = History + NewFrameWeight*(NewFrame - History), which equals
// HistoryWeight*History + NewFrameWeight*NewFrame when the weights sum
// to one and leaves a constant input exactly unchanged. A zero history
// weight copies NewFrame exactly.
func Accumulate(row, width uint32, b *gpucore.HostBindings) {
	params := b.Floats(accumBindPerFrame)
	hw, nw := params[0], params[1]

	lo, hi := row*width*4, (row+1)*width*4
	hist := b.Floats(accumBindHistory)[lo:hi]
	frame := b.Floats(accumBindNewFrame)[lo:hi]
	out := b.Floats(accumBindOutput)[lo:hi]

	if hw == 0 {
		copy(out, frame)
		return
	}
	for i := range out {
		out[i] = hist[i] + nw*(frame[i]-hist[i])
	}
}
