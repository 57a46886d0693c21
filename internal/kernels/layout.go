// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import (
	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/material"
)

// Binding names shared by the kernels and the render stages.
const (
	PerFrame       = "PerFrame"
	RNGState       = "RNGState"
	PaperMaterials = "PaperMaterials"
	Papers         = "Papers"
	BackLight      = "BackLight"
	Output         = "Output"
	History        = "History"
	NewFrame       = "NewFrame"
	HDRImage       = "HDRImage"
)

// Binding numbers of the trace kernel.
const (
	traceBindPerFrame = iota
	traceBindRNG
	traceBindMaterials
	traceBindPapers
	traceBindLight
	traceBindOutput
)

// Binding numbers of the accumulate kernel.
const (
	accumBindPerFrame = iota
	accumBindHistory
	accumBindNewFrame
	accumBindOutput
)

// Binding numbers of the tonemap kernel.
const (
	toneBindPerFrame = iota
	toneBindHDR
	toneBindOutput
)

// Sizes of the per-texel and per-pixel elements, in bytes.
const (
	TexelSize    = 4  // packed RGBA8 paper texel
	RadianceSize = 16 // RGBA32F, alpha unused
	DisplaySize  = 4  // packed RGBA8 or BGRA8
	RNGSize      = 4
	MaterialSize = material.RecordSize
)

// TraceParams is the PerFrame block of the trace kernel.
type TraceParams struct {
	OutputWidth   uint32
	OutputHeight  uint32
	PaperCount    uint32
	SPP           uint32
	PaperWidth    uint32
	PaperHeight   uint32
	PaperDistance float32
	LightDistance float32
	EnvLight      [3]float32
	// EyeZ is positive for orthographic projection; negative values place
	// a perspective eye at -EyeZ paper lengths in front of layer 0.
	EyeZ float32
}

// TraceParamsSize is the encoded size of TraceParams.
const TraceParamsSize = 48

// Bytes encodes p in the kernel layout.
func (p *TraceParams) Bytes() []byte {
	b := make([]byte, 0, TraceParamsSize)
	b = gpucore.AppendUint32s(b, p.OutputWidth, p.OutputHeight, p.PaperCount, p.SPP, p.PaperWidth, p.PaperHeight)
	return gpucore.AppendFloat32s(b, p.PaperDistance, p.LightDistance,
		p.EnvLight[0], p.EnvLight[1], p.EnvLight[2], p.EyeZ)
}

// AccumulateParams is the PerFrame block of the accumulate kernel.
type AccumulateParams struct {
	HistoryWeight  float32
	NewFrameWeight float32
	Width, Height  uint32
}

// AccumulateParamsSize is the encoded size of AccumulateParams.
const AccumulateParamsSize = 16

// Bytes encodes p in the kernel layout.
func (p *AccumulateParams) Bytes() []byte {
	b := gpucore.AppendFloat32s(make([]byte, 0, AccumulateParamsSize), p.HistoryWeight, p.NewFrameWeight)
	return gpucore.AppendUint32s(b, p.Width, p.Height)
}

// ToneParams is the PerFrame block of the tonemap kernel.
type ToneParams struct {
	Exposure float32
	// SwapRB selects BGRA output byte order.
	SwapRB        bool
	Width, Height uint32
}

// ToneParamsSize is the encoded size of ToneParams.
const ToneParamsSize = 16

// Bytes encodes p in the kernel layout.
func (p *ToneParams) Bytes() []byte {
	var swap uint32
	if p.SwapRB {
		swap = 1
	}
	b := gpucore.AppendFloat32s(make([]byte, 0, ToneParamsSize), p.Exposure)
	return gpucore.AppendUint32s(b, swap, p.Width, p.Height)
}

// Texel is one paper texel: a tint colour and a coverage mask.
// A texel with Mask 0 is a hole.
type Texel struct {
	R, G, B, Mask uint8
}

// Pack returns the 32-bit encoding of t (R in the low byte).
func (t Texel) Pack() uint32 {
	return uint32(t.R) | uint32(t.G)<<8 | uint32(t.B)<<16 | uint32(t.Mask)<<24
}

// UnpackTexel is the inverse of Texel.Pack.
func UnpackTexel(v uint32) Texel {
	return Texel{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), Mask: uint8(v >> 24)}
}

// TraceDesc returns the trace kernel description.
func TraceDesc() *gpucore.KernelDesc {
	return &gpucore.KernelDesc{
		Label: "Tracer",
		Bindings: []gpucore.Binding{
			traceBindPerFrame:  {Name: PerFrame, Type: gpucore.BindingTypeUniformBuffer},
			traceBindRNG:       {Name: RNGState, Type: gpucore.BindingTypeStorageBuffer},
			traceBindMaterials: {Name: PaperMaterials, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			traceBindPapers:    {Name: Papers, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			traceBindLight:     {Name: BackLight, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			traceBindOutput:    {Name: Output, Type: gpucore.BindingTypeStorageBuffer},
		},
		WGSL: traceWGSL,
		Host: Trace,
	}
}

// AccumulateDesc returns the accumulate kernel description.
func AccumulateDesc() *gpucore.KernelDesc {
	return &gpucore.KernelDesc{
		Label: "Accumulator",
		Bindings: []gpucore.Binding{
			accumBindPerFrame: {Name: PerFrame, Type: gpucore.BindingTypeUniformBuffer},
			accumBindHistory:  {Name: History, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			accumBindNewFrame: {Name: NewFrame, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			accumBindOutput:   {Name: Output, Type: gpucore.BindingTypeStorageBuffer},
		},
		WGSL: accumulateWGSL,
		Host: Accumulate,
	}
}

// ToneMapDesc returns the tonemap kernel description.
func ToneMapDesc() *gpucore.KernelDesc {
	return &gpucore.KernelDesc{
		Label: "ToneMapper",
		Bindings: []gpucore.Binding{
			toneBindPerFrame: {Name: PerFrame, Type: gpucore.BindingTypeUniformBuffer},
			toneBindHDR:      {Name: HDRImage, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			toneBindOutput:   {Name: Output, Type: gpucore.BindingTypeStorageBuffer},
		},
		WGSL: toneMapWGSL,
		Host: ToneMap,
	}
}
