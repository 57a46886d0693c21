// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/kernels"
	"github.com/gogpu/papercut/material"
)

// Texel is one paper texel: a tint and a coverage mask, 0 meaning a hole.
type Texel = kernels.Texel

// Radiance is linear RGB radiance.
type Radiance [3]float32

// Orthographic is the eye position value selecting orthographic
// projection.
const Orthographic = 1

// PaperSize is the canonical texel resolution and the number of layers.
type PaperSize struct {
	Width, Height int
	Layers        int
}

func (p PaperSize) texels() int { return p.Width * p.Height }

// TracerConfig is the initial state of a Tracer.
type TracerConfig struct {
	OutputWidth, OutputHeight int
	Paper                     PaperSize
	PaperDistance             float32
	LightDistance             float32
	SPP                       int
}

// Tracer runs the path tracing kernel over a stack of paper layers lit
// from behind.
//
// Bindings: PerFrame, RNGState, PaperMaterials, Papers, BackLight and
// Output. Layer and light data are uploaded explicitly and survive frames;
// a resize clears them.
type Tracer struct {
	dev    gpucore.Device
	kernel gpucore.KernelID
	params kernels.TraceParams
	paper  PaperSize

	perFrame  gpucore.BufferID
	rng       gpucore.BufferID
	materials gpucore.BufferID
	papers    gpucore.BufferID
	light     gpucore.BufferID
	output    gpucore.BufferID
}

// NewTracer allocates every tracer resource. Allocation failures are
// returned as *gpucore.AllocationError.
func NewTracer(dev gpucore.Device, cfg TracerConfig) (*Tracer, error) {
	t := &Tracer{
		dev: dev,
		params: kernels.TraceParams{
			SPP:           uint32(max(cfg.SPP, 1)), //nolint:gosec // clamped positive
			PaperDistance: cfg.PaperDistance,
			LightDistance: cfg.LightDistance,
			EyeZ:          Orthographic,
		},
	}
	var err error
	if t.kernel, err = dev.CreateKernel(kernels.TraceDesc()); err != nil {
		return nil, fmt.Errorf("render: tracer: %w", err)
	}
	if t.perFrame, err = dev.CreateBuffer("Tracer.PerFrame", kernels.TraceParamsSize, gpucore.UsageConstants); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := t.SetPaperSize(cfg.Paper); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := t.SetOutputSize(cfg.OutputWidth, cfg.OutputHeight); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// PaperSize returns the current paper size.
func (t *Tracer) PaperSize() PaperSize { return t.paper }

// OutputSize returns the output resolution.
func (t *Tracer) OutputSize() (w, h int) {
	return int(t.params.OutputWidth), int(t.params.OutputHeight)
}

// SetPaperSize reallocates the per-layer texel and material arrays and
// the back light, then re-binds every slot. Layer data, materials and
// light are zero afterwards.
func (t *Tracer) SetPaperSize(p PaperSize) error {
	if p.Width <= 0 || p.Height <= 0 || p.Layers <= 0 {
		return fmt.Errorf("render: paper size %dx%d x%d: %w", p.Width, p.Height, p.Layers, gpucore.ErrInvalidSize)
	}
	t.destroyBuffer(&t.papers)
	t.destroyBuffer(&t.materials)
	t.destroyBuffer(&t.light)

	var err error
	texels := uint64(p.texels()) //nolint:gosec // positive
	if t.papers, err = t.dev.CreateBuffer("Tracer.Papers", texels*uint64(p.Layers)*kernels.TexelSize, gpucore.UsageStorage); err != nil {
		return err
	}
	if t.materials, err = t.dev.CreateBuffer("Tracer.PaperMaterials", uint64(p.Layers)*kernels.MaterialSize, gpucore.UsageStorage); err != nil {
		return err
	}
	if t.light, err = t.dev.CreateBuffer("Tracer.BackLight", texels*kernels.RadianceSize, gpucore.UsageStorage); err != nil {
		return err
	}

	t.paper = p
	t.params.PaperWidth = uint32(p.Width)   //nolint:gosec // positive
	t.params.PaperHeight = uint32(p.Height) //nolint:gosec // positive
	t.params.PaperCount = uint32(p.Layers)  //nolint:gosec // positive
	slogger().Debug("render: tracer paper size", "width", p.Width, "height", p.Height, "layers", p.Layers)
	return t.bindAll()
}

// SetOutputSize reallocates the output and RNG buffers when the size
// changes, seeds the RNG and re-binds every slot.
func (t *Tracer) SetOutputSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("render: output size %dx%d: %w", w, h, gpucore.ErrInvalidSize)
	}
	if t.output != gpucore.InvalidID && w == int(t.params.OutputWidth) && h == int(t.params.OutputHeight) {
		return nil
	}
	t.destroyBuffer(&t.output)
	t.destroyBuffer(&t.rng)

	n := uint64(w * h) //nolint:gosec // positive
	var err error
	if t.output, err = t.dev.CreateBuffer("Tracer.Output", n*kernels.RadianceSize, gpucore.UsageStorage); err != nil {
		return err
	}
	if t.rng, err = t.dev.CreateBuffer("Tracer.RNGState", n*kernels.RNGSize, gpucore.UsageStorage); err != nil {
		return err
	}
	seeds := make([]uint32, n)
	for i := range seeds {
		seeds[i] = kernels.SeedRNG(uint32(i)) //nolint:gosec // pixel index fits
	}
	if err := t.dev.WriteBuffer(t.rng, 0, gpucore.AppendUint32s(nil, seeds...)); err != nil {
		return fmt.Errorf("render: seed rng: %w", err)
	}

	t.params.OutputWidth = uint32(w)  //nolint:gosec // positive
	t.params.OutputHeight = uint32(h) //nolint:gosec // positive
	slogger().Debug("render: tracer output size", "width", w, "height", h)
	return t.bindAll()
}

// bindAll binds every slot to the current buffers.
func (t *Tracer) bindAll() error {
	for _, b := range []struct {
		name string
		buf  gpucore.BufferID
	}{
		{kernels.PerFrame, t.perFrame},
		{kernels.RNGState, t.rng},
		{kernels.PaperMaterials, t.materials},
		{kernels.Papers, t.papers},
		{kernels.BackLight, t.light},
		{kernels.Output, t.output},
	} {
		if b.buf == gpucore.InvalidID {
			continue
		}
		if err := t.dev.Bind(t.kernel, b.name, b.buf); err != nil {
			return fmt.Errorf("render: tracer bind %s: %w", b.name, err)
		}
	}
	return nil
}

func (t *Tracer) checkLayer(index int) {
	if index < 0 || index >= t.paper.Layers {
		panic(fmt.Sprintf("render: layer index %d out of range [0,%d)", index, t.paper.Layers))
	}
}

// SetLayerPixels uploads the texels of one layer. texels must hold
// exactly one texel per paper pixel.
func (t *Tracer) SetLayerPixels(index int, texels []Texel) error {
	t.checkLayer(index)
	if len(texels) != t.paper.texels() {
		panic(fmt.Sprintf("render: layer %d: got %d texels, want %d", index, len(texels), t.paper.texels()))
	}
	words := make([]uint32, len(texels))
	for i, tx := range texels {
		words[i] = tx.Pack()
	}
	offset := uint64(index) * uint64(t.paper.texels()) * kernels.TexelSize //nolint:gosec // checked range
	return t.dev.WriteBuffer(t.papers, offset, gpucore.AppendUint32s(nil, words...))
}

// SetLayerMaterial uploads the packed material record of one layer.
func (t *Tracer) SetLayerMaterial(index int, m material.Material) error {
	t.checkLayer(index)
	rec := material.Pack(m)
	offset := uint64(index) * kernels.MaterialSize //nolint:gosec // checked range
	return t.dev.WriteBuffer(t.materials, offset, rec.AppendBytes(nil))
}

// SetLightRadiance uploads the back light, one value per paper pixel,
// already linear and scaled by intensity.
func (t *Tracer) SetLightRadiance(px []Radiance) error {
	if len(px) != t.paper.texels() {
		panic(fmt.Sprintf("render: light: got %d pixels, want %d", len(px), t.paper.texels()))
	}
	data := make([]byte, 0, len(px)*kernels.RadianceSize)
	for _, r := range px {
		data = gpucore.AppendFloat32s(data, r[0], r[1], r[2], 0)
	}
	return t.dev.WriteBuffer(t.light, 0, data)
}

// SetSPP sets the samples per pixel of the next Render.
func (t *Tracer) SetSPP(n int) {
	t.params.SPP = uint32(max(n, 1)) //nolint:gosec // clamped positive
}

// SPP returns the samples per pixel.
func (t *Tracer) SPP() int { return int(t.params.SPP) }

// SetPaperDistance sets the spacing between layers in texels.
func (t *Tracer) SetPaperDistance(d float32) { t.params.PaperDistance = d }

// SetLightDistance sets the distance from the last layer to the light in
// texels.
func (t *Tracer) SetLightDistance(d float32) { t.params.LightDistance = d }

// SetEnvLight sets the linear radiance seen by paths leaving toward the
// viewer.
func (t *Tracer) SetEnvLight(r Radiance) { t.params.EnvLight = r }

// SetEyeZ sets the eye position: Orthographic, or a negative value for a
// perspective eye at -z paper lengths in front of the first layer.
func (t *Tracer) SetEyeZ(z float32) { t.params.EyeZ = z }

// Params returns the PerFrame block of the next Render.
func (t *Tracer) Params() kernels.TraceParams { return t.params }

// Render uploads PerFrame and runs one dispatch over the output.
func (t *Tracer) Render() error {
	if err := t.dev.WriteBuffer(t.perFrame, 0, t.params.Bytes()); err != nil {
		return fmt.Errorf("render: tracer params: %w", err)
	}
	if err := t.dev.Dispatch(t.kernel, t.params.OutputWidth, t.params.OutputHeight); err != nil {
		return fmt.Errorf("render: trace: %w", err)
	}
	return nil
}

// Output returns the radiance buffer written by the last Render. It is
// overwritten by the next Render and replaced by SetOutputSize.
func (t *Tracer) Output() gpucore.BufferID { return t.output }

func (t *Tracer) destroyBuffer(id *gpucore.BufferID) {
	if *id != gpucore.InvalidID {
		t.dev.DestroyBuffer(*id)
		*id = gpucore.InvalidID
	}
}

// Destroy releases every tracer resource.
func (t *Tracer) Destroy() {
	for _, id := range []*gpucore.BufferID{&t.perFrame, &t.rng, &t.materials, &t.papers, &t.light, &t.output} {
		t.destroyBuffer(id)
	}
	if t.kernel != gpucore.InvalidID {
		t.dev.DestroyKernel(t.kernel)
		t.kernel = gpucore.InvalidID
	}
}
