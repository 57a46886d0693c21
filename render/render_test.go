// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/cpu"
	"github.com/gogpu/papercut/internal/kernels"
	"github.com/gogpu/papercut/material"
)

func newDevice(t *testing.T) *cpu.Device {
	t.Helper()
	dev := cpu.NewDevice(2)
	t.Cleanup(dev.Destroy)
	return dev
}

// uploadFrame creates a radiance buffer with every channel set to v[i]
// for pixel i.
func uploadFrame(t *testing.T, dev gpucore.Device, v []float32) gpucore.BufferID {
	t.Helper()
	id, err := dev.CreateBuffer("sample", uint64(len(v))*kernels.RadianceSize, gpucore.UsageStorage)
	if err != nil {
		t.Fatal(err)
	}
	writeFrame(t, dev, id, v)
	return id
}

func writeFrame(t *testing.T, dev gpucore.Device, id gpucore.BufferID, v []float32) {
	t.Helper()
	var data []byte
	for _, x := range v {
		data = gpucore.AppendFloat32s(data, x, x, x, x)
	}
	if err := dev.WriteBuffer(id, 0, data); err != nil {
		t.Fatal(err)
	}
}

func readMean(t *testing.T, a *Accumulator) []float32 {
	t.Helper()
	w, h := a.Size()
	got, err := ReadRadiance(a.dev, a.Output(), w, h)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestAccumulatorConstantInput(t *testing.T) {
	dev := newDevice(t)
	a, err := NewAccumulator(dev, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	sample := []float32{0.1, 0.7, 123.456}
	buf := uploadFrame(t, dev, sample)

	for k := 1; k <= 37; k++ {
		if err := a.AddFrame(buf); err != nil {
			t.Fatal(err)
		}
		got := readMean(t, a)
		for i, v := range got {
			if v != sample[i/3] {
				t.Fatalf("after %d frames: mean[%d] = %v, want exactly %v", k, i, v, sample[i/3])
			}
		}
	}
	if a.FrameCount() != 37 {
		t.Errorf("FrameCount = %d, want 37", a.FrameCount())
	}
}

func TestAccumulatorMean(t *testing.T) {
	dev := newDevice(t)
	a, err := NewAccumulator(dev, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	buf := uploadFrame(t, dev, []float32{0, 0})
	frames := [][]float32{{1, -3}, {2, 5}, {3, 0.5}, {4, 10}, {10, 2}}
	var sum [2]float64
	for k, f := range frames {
		writeFrame(t, dev, buf, f)
		if err := a.AddFrame(buf); err != nil {
			t.Fatal(err)
		}
		sum[0] += float64(f[0])
		sum[1] += float64(f[1])

		got := readMean(t, a)
		for p := range 2 {
			want := sum[p] / float64(k+1)
			if math.Abs(float64(got[p*3])-want) > 1e-4 {
				t.Errorf("after %d frames: pixel %d mean = %v, want %v", k+1, p, got[p*3], want)
			}
		}
	}
}

func TestAccumulatorClearHistory(t *testing.T) {
	dev := newDevice(t)
	a, err := NewAccumulator(dev, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	noise := uploadFrame(t, dev, []float32{9, 8, 7, 6})
	for range 5 {
		if err := a.AddFrame(noise); err != nil {
			t.Fatal(err)
		}
	}

	a.ClearHistory()
	if a.FrameCount() != 0 {
		t.Fatalf("FrameCount after clear = %d", a.FrameCount())
	}
	s := []float32{0.25, 0.5, 0.75, 1}
	if err := a.AddFrame(uploadFrame(t, dev, s)); err != nil {
		t.Fatal(err)
	}
	if a.FrameCount() != 1 {
		t.Errorf("FrameCount = %d, want 1", a.FrameCount())
	}
	for i, v := range readMean(t, a) {
		if v != s[i/3] {
			t.Errorf("mean[%d] = %v, want %v", i, v, s[i/3])
		}
	}
}

func TestAccumulatorSetSizeResets(t *testing.T) {
	dev := newDevice(t)
	a, err := NewAccumulator(dev, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.AddFrame(uploadFrame(t, dev, make([]float32, 4))); err != nil {
		t.Fatal(err)
	}
	old := a.Output()
	if err := a.SetSize(3, 1); err != nil {
		t.Fatal(err)
	}
	if a.FrameCount() != 0 {
		t.Errorf("FrameCount after resize = %d", a.FrameCount())
	}
	if _, err := dev.ReadBuffer(old, 0, 16); !errors.Is(err, gpucore.ErrUnknownBuffer) {
		t.Errorf("old buffer still alive: %v", err)
	}
	if err := a.AddFrame(uploadFrame(t, dev, []float32{1, 2, 3})); err != nil {
		t.Fatalf("AddFrame after resize: %v", err)
	}
	if err := a.SetSize(0, 1); !errors.Is(err, gpucore.ErrInvalidSize) {
		t.Errorf("SetSize(0,1) err = %v", err)
	}
}

func TestToneMapper(t *testing.T) {
	dev := newDevice(t)
	tm, err := NewToneMapper(dev, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	var data []byte
	data = gpucore.AppendFloat32s(data, 1, 0, 0, 1)
	data = gpucore.AppendFloat32s(data, 4, 4, 4, 1)
	hdr, _ := dev.CreateBuffer("hdr", uint64(len(data)), gpucore.UsageStorage)
	if err := dev.WriteBuffer(hdr, 0, data); err != nil {
		t.Fatal(err)
	}

	for _, swap := range []bool{false, true} {
		tm.SetSwapRB(swap)
		if err := tm.Render(hdr); err != nil {
			t.Fatal(err)
		}
		img, err := tm.ReadImage()
		if err != nil {
			t.Fatal(err)
		}
		want := []uint8{255, 0, 0, 255, 255, 255, 255, 255}
		if !slices.Equal(img.Pix, want) {
			t.Errorf("swap=%v: pix = %v, want %v", swap, img.Pix, want)
		}
	}

	tm.SetSwapRB(false)
	tm.SetExposure(0)
	if err := tm.Render(hdr); err != nil {
		t.Fatal(err)
	}
	img, _ := tm.ReadImage()
	if img.Pix[0] != 0 || img.Pix[3] != 255 {
		t.Errorf("exposure 0: pix = %v", img.Pix[:4])
	}
}

func whiteTexels(n int) []Texel {
	tx := make([]Texel, n)
	for i := range tx {
		tx[i] = Texel{R: 255, G: 255, B: 255, Mask: 255}
	}
	return tx
}

func uniformLight(n int, v float32) []Radiance {
	px := make([]Radiance, n)
	for i := range px {
		px[i] = Radiance{v, v, v}
	}
	return px
}

func newTestTracer(t *testing.T, dev gpucore.Device, layers int, m material.Material) *Tracer {
	t.Helper()
	tr, err := NewTracer(dev, TracerConfig{
		OutputWidth: 4, OutputHeight: 4,
		Paper:         PaperSize{Width: 8, Height: 8, Layers: layers},
		PaperDistance: 2,
		LightDistance: 1,
		SPP:           2,
	})
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	uploadStack(t, tr, m)
	return tr
}

func uploadStack(t *testing.T, tr *Tracer, m material.Material) {
	t.Helper()
	p := tr.PaperSize()
	for i := range p.Layers {
		if err := tr.SetLayerPixels(i, whiteTexels(p.Width*p.Height)); err != nil {
			t.Fatal(err)
		}
		if err := tr.SetLayerMaterial(i, m); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.SetLightRadiance(uniformLight(p.Width*p.Height, 1)); err != nil {
		t.Fatal(err)
	}
}

func renderRadiance(t *testing.T, tr *Tracer) []float32 {
	t.Helper()
	if err := tr.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	w, h := tr.OutputSize()
	got, err := ReadRadiance(tr.dev, tr.Output(), w, h)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestTracerTransparentStack(t *testing.T) {
	dev := newDevice(t)
	tr := newTestTracer(t, dev, 1, material.NewDiffuse(0))
	for i, v := range renderRadiance(t, tr) {
		if v != 1 {
			t.Fatalf("radiance[%d] = %v, want 1", i, v)
		}
	}
}

func TestTracerResizeRebinds(t *testing.T) {
	dev := newDevice(t)
	tr := newTestTracer(t, dev, 1, material.NewDiffuse(0))

	if err := tr.SetPaperSize(PaperSize{Width: 5, Height: 3, Layers: 3}); err != nil {
		t.Fatal(err)
	}
	uploadStack(t, tr, material.NewDiffuse(0))
	if err := tr.SetOutputSize(7, 2); err != nil {
		t.Fatal(err)
	}
	got := renderRadiance(t, tr)
	if len(got) != 7*2*3 {
		t.Fatalf("got %d values", len(got))
	}
	for i, v := range got {
		if v != 1 {
			t.Fatalf("radiance[%d] = %v, want 1", i, v)
		}
	}

	out := tr.Output()
	if err := tr.SetOutputSize(7, 2); err != nil || tr.Output() != out {
		t.Errorf("same-size SetOutputSize reallocated: err=%v", err)
	}
	if err := tr.SetPaperSize(PaperSize{Width: 1, Height: 1}); !errors.Is(err, gpucore.ErrInvalidSize) {
		t.Errorf("zero layers: err = %v", err)
	}
}

func TestTracerRNGPersists(t *testing.T) {
	dev := newDevice(t)
	tr := newTestTracer(t, dev, 1, material.NewDiffuse(0.5))
	a := renderRadiance(t, tr)
	b := renderRadiance(t, tr)
	if slices.Equal(a, b) {
		t.Error("successive frames are identical; RNG state not advanced")
	}
}

func TestTracerParams(t *testing.T) {
	dev := newDevice(t)
	tr := newTestTracer(t, dev, 2, material.Default())
	tr.SetSPP(0)
	tr.SetEnvLight(Radiance{0.1, 0.2, 0.3})
	tr.SetEyeZ(-3)
	tr.SetPaperDistance(5)
	tr.SetLightDistance(6)

	p := tr.Params()
	if p.SPP != 1 || p.PaperCount != 2 || p.PaperWidth != 8 || p.OutputWidth != 4 {
		t.Errorf("params = %+v", p)
	}
	if p.EnvLight != [3]float32{0.1, 0.2, 0.3} || p.EyeZ != -3 || p.PaperDistance != 5 || p.LightDistance != 6 {
		t.Errorf("params = %+v", p)
	}
	if err := tr.Render(); err != nil {
		t.Fatalf("Render with perspective dipole stack: %v", err)
	}
}

func TestTracerLayerIndexPanics(t *testing.T) {
	dev := newDevice(t)
	tr := newTestTracer(t, dev, 1, material.Default())
	defer func() {
		if recover() == nil {
			t.Error("out-of-range layer did not panic")
		}
	}()
	_ = tr.SetLayerMaterial(1, material.Default())
}

func TestTracerDestroy(t *testing.T) {
	dev := newDevice(t)
	tr := newTestTracer(t, dev, 2, material.Default())
	tr.Destroy()
	if b, k := dev.Stats(); b != 0 || k != 0 {
		t.Errorf("after Destroy: %d buffers, %d kernels", b, k)
	}
}
