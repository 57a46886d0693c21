// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"image"

	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/kernels"
)

// ToneMapper maps linear radiance to 8-bit display pixels:
// clamp(exposure*c, 0, 1)^(1/2.2), packed RGBA8 or BGRA8.
type ToneMapper struct {
	dev      gpucore.Device
	kernel   gpucore.KernelID
	perFrame gpucore.BufferID
	output   gpucore.BufferID
	params   kernels.ToneParams
}

// NewToneMapper allocates a tone mapper for a w x h image with exposure 1.
func NewToneMapper(dev gpucore.Device, w, h int) (*ToneMapper, error) {
	tm := &ToneMapper{dev: dev, params: kernels.ToneParams{Exposure: 1}}
	var err error
	if tm.kernel, err = dev.CreateKernel(kernels.ToneMapDesc()); err != nil {
		return nil, fmt.Errorf("render: tone mapper: %w", err)
	}
	if tm.perFrame, err = dev.CreateBuffer("ToneMapper.PerFrame", kernels.ToneParamsSize, gpucore.UsageConstants); err != nil {
		tm.Destroy()
		return nil, err
	}
	if err := tm.SetSize(w, h); err != nil {
		tm.Destroy()
		return nil, err
	}
	return tm, nil
}

// SetExposure sets the linear scale applied before encoding.
func (tm *ToneMapper) SetExposure(e float32) { tm.params.Exposure = e }

// Exposure returns the exposure.
func (tm *ToneMapper) Exposure() float32 { return tm.params.Exposure }

// SetSwapRB selects BGRA8 output, matching a BGRA display surface.
func (tm *ToneMapper) SetSwapRB(swap bool) { tm.params.SwapRB = swap }

// SwapRB reports whether output is BGRA8.
func (tm *ToneMapper) SwapRB() bool { return tm.params.SwapRB }

// SetSize reallocates the display buffer.
func (tm *ToneMapper) SetSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("render: tone mapper size %dx%d: %w", w, h, gpucore.ErrInvalidSize)
	}
	if tm.output != gpucore.InvalidID {
		tm.dev.DestroyBuffer(tm.output)
		tm.output = gpucore.InvalidID
	}
	var err error
	size := uint64(w*h) * kernels.DisplaySize //nolint:gosec // positive
	if tm.output, err = tm.dev.CreateBuffer("ToneMapper.Output", size, gpucore.UsageStorage); err != nil {
		return err
	}
	tm.params.Width = uint32(w)  //nolint:gosec // positive
	tm.params.Height = uint32(h) //nolint:gosec // positive
	return nil
}

// Render maps hdr, a radiance buffer of the tone mapper's size, into the
// display buffer.
func (tm *ToneMapper) Render(hdr gpucore.BufferID) error {
	for _, b := range []struct {
		name string
		buf  gpucore.BufferID
	}{
		{kernels.PerFrame, tm.perFrame},
		{kernels.HDRImage, hdr},
		{kernels.Output, tm.output},
	} {
		if err := tm.dev.Bind(tm.kernel, b.name, b.buf); err != nil {
			return fmt.Errorf("render: tone mapper bind %s: %w", b.name, err)
		}
	}
	if err := tm.dev.WriteBuffer(tm.perFrame, 0, tm.params.Bytes()); err != nil {
		return fmt.Errorf("render: tone mapper params: %w", err)
	}
	if err := tm.dev.Dispatch(tm.kernel, tm.params.Width, tm.params.Height); err != nil {
		return fmt.Errorf("render: tone map: %w", err)
	}
	return nil
}

// Output returns the display buffer written by the last Render.
func (tm *ToneMapper) Output() gpucore.BufferID { return tm.output }

// ReadImage reads the display buffer back as RGBA, undoing the BGRA
// swizzle if it is enabled.
func (tm *ToneMapper) ReadImage() (*image.RGBA, error) {
	w, h := int(tm.params.Width), int(tm.params.Height)
	data, err := tm.dev.ReadBuffer(tm.output, 0, uint64(w*h)*kernels.DisplaySize) //nolint:gosec // positive
	if err != nil {
		return nil, fmt.Errorf("render: read display: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, data)
	if tm.params.SwapRB {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}

// Destroy releases every tone mapper resource.
func (tm *ToneMapper) Destroy() {
	for _, id := range []gpucore.BufferID{tm.perFrame, tm.output} {
		if id != gpucore.InvalidID {
			tm.dev.DestroyBuffer(id)
		}
	}
	tm.perFrame, tm.output = gpucore.InvalidID, gpucore.InvalidID
	if tm.kernel != gpucore.InvalidID {
		tm.dev.DestroyKernel(tm.kernel)
		tm.kernel = gpucore.InvalidID
	}
}

// ReadRadiance reads a w x h radiance buffer back as RGB triples.
func ReadRadiance(dev gpucore.Device, buf gpucore.BufferID, w, h int) ([]float32, error) {
	n := w * h
	data, err := dev.ReadBuffer(buf, 0, uint64(n)*kernels.RadianceSize) //nolint:gosec // positive
	if err != nil {
		return nil, fmt.Errorf("render: read radiance: %w", err)
	}
	rgba := gpucore.Float32s(data)
	out := make([]float32, n*3)
	for i := range n {
		copy(out[i*3:i*3+3], rgba[i*4:i*4+3])
	}
	return out, nil
}
