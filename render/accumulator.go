// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/kernels"
)

// Accumulator keeps the running mean of the frames added since the last
// ClearHistory. It ping-pongs between two buffers: cur holds the mean,
// the other is written by the next AddFrame.
type Accumulator struct {
	dev      gpucore.Device
	kernel   gpucore.KernelID
	perFrame gpucore.BufferID
	bufs     [2]gpucore.BufferID
	cur      int
	count    int
	w, h     int
}

// NewAccumulator allocates an accumulator for a w x h image.
func NewAccumulator(dev gpucore.Device, w, h int) (*Accumulator, error) {
	a := &Accumulator{dev: dev}
	var err error
	if a.kernel, err = dev.CreateKernel(kernels.AccumulateDesc()); err != nil {
		return nil, fmt.Errorf("render: accumulator: %w", err)
	}
	if a.perFrame, err = dev.CreateBuffer("Accumulator.PerFrame", kernels.AccumulateParamsSize, gpucore.UsageConstants); err != nil {
		a.Destroy()
		return nil, err
	}
	if err := a.SetSize(w, h); err != nil {
		a.Destroy()
		return nil, err
	}
	return a, nil
}

// SetSize reallocates both buffers and resets the frame count.
func (a *Accumulator) SetSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("render: accumulator size %dx%d: %w", w, h, gpucore.ErrInvalidSize)
	}
	a.count = 0
	a.cur = 0
	for i := range a.bufs {
		if a.bufs[i] != gpucore.InvalidID {
			a.dev.DestroyBuffer(a.bufs[i])
			a.bufs[i] = gpucore.InvalidID
		}
	}
	size := uint64(w*h) * kernels.RadianceSize //nolint:gosec // positive
	for i, label := range []string{"Accumulator.History0", "Accumulator.History1"} {
		id, err := a.dev.CreateBuffer(label, size, gpucore.UsageStorage)
		if err != nil {
			return err
		}
		a.bufs[i] = id
	}
	a.w, a.h = w, h
	return nil
}

// Size returns the image size.
func (a *Accumulator) Size() (w, h int) { return a.w, a.h }

// AddFrame blends sample into the mean:
// mean' = k/(k+1)*mean + 1/(k+1)*sample, where k is FrameCount.
// sample must be a w x h radiance buffer.
func (a *Accumulator) AddFrame(sample gpucore.BufferID) error {
	k := float32(a.count)
	params := kernels.AccumulateParams{
		HistoryWeight:  k / (k + 1),
		NewFrameWeight: 1 / (k + 1),
		Width:          uint32(a.w), //nolint:gosec // positive
		Height:         uint32(a.h), //nolint:gosec // positive
	}
	next := 1 - a.cur
	for _, b := range []struct {
		name string
		buf  gpucore.BufferID
	}{
		{kernels.PerFrame, a.perFrame},
		{kernels.History, a.bufs[a.cur]},
		{kernels.NewFrame, sample},
		{kernels.Output, a.bufs[next]},
	} {
		if err := a.dev.Bind(a.kernel, b.name, b.buf); err != nil {
			return fmt.Errorf("render: accumulator bind %s: %w", b.name, err)
		}
	}
	if err := a.dev.WriteBuffer(a.perFrame, 0, params.Bytes()); err != nil {
		return fmt.Errorf("render: accumulator params: %w", err)
	}
	if err := a.dev.Dispatch(a.kernel, params.Width, params.Height); err != nil {
		return fmt.Errorf("render: accumulate: %w", err)
	}
	a.count++
	a.cur = next
	return nil
}

// ClearHistory resets the frame count. The next AddFrame overwrites the
// mean with its sample.
func (a *Accumulator) ClearHistory() { a.count = 0 }

// FrameCount returns the number of frames in the mean.
func (a *Accumulator) FrameCount() int { return a.count }

// Output returns the buffer holding the mean. It is undefined while
// FrameCount is 0 and changes identity on every AddFrame.
func (a *Accumulator) Output() gpucore.BufferID { return a.bufs[a.cur] }

// Destroy releases every accumulator resource.
func (a *Accumulator) Destroy() {
	for _, id := range []gpucore.BufferID{a.perFrame, a.bufs[0], a.bufs[1]} {
		if id != gpucore.InvalidID {
			a.dev.DestroyBuffer(id)
		}
	}
	a.perFrame, a.bufs = gpucore.InvalidID, [2]gpucore.BufferID{}
	if a.kernel != gpucore.InvalidID {
		a.dev.DestroyKernel(a.kernel)
		a.kernel = gpucore.InvalidID
	}
}
