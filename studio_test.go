// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gogpu/papercut/asset"
	"github.com/gogpu/papercut/internal/cpu"
	"github.com/gogpu/papercut/material"
)

// fakeWatcher delivers injected file events.
type fakeWatcher struct {
	pending [][2]string
}

func (w *fakeWatcher) Add(string) error    { return nil }
func (w *fakeWatcher) Remove(string) error { return nil }
func (w *fakeWatcher) Close() error        { return nil }

func (w *fakeWatcher) Drain(fn func(dir, name string, op asset.Op)) {
	events := w.pending
	w.pending = nil
	for _, ev := range events {
		fn(ev[0], ev[1], asset.OpWrite)
	}
}

func (w *fakeWatcher) touch(path string) {
	w.pending = append(w.pending, [2]string{filepath.Dir(path), filepath.Base(path)})
}

type fixture struct {
	s   *Studio
	w   *fakeWatcher
	dir string
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PaperSize = image.Pt(8, 8)
	cfg.Device = DeviceCPU
	return cfg
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	w := &fakeWatcher{}
	m, err := asset.NewMonitor(asset.WithWatcher(w))
	if err != nil {
		t.Fatal(err)
	}
	dev := cpu.NewDevice(2)
	s, err := New(cfg, WithDevice(dev), WithMonitor(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
		_ = m.Close()
		dev.Destroy()
	})
	return &fixture{s: s, w: w, dir: t.TempDir()}
}

func (f *fixture) writeMask(t *testing.T, name string, w, h int, v uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return f.write(t, name, img)
}

func (f *fixture) writeLight(t *testing.T, name string, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return f.write(t, name, img)
}

func (f *fixture) write(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *fixture) frames(t *testing.T, n int) {
	t.Helper()
	for range n {
		if err := f.s.Frame(); err != nil {
			t.Fatalf("Frame: %v", err)
		}
	}
}

func statuses(s *Studio) []Status {
	var out []Status
	for _, l := range s.Layers() {
		out = append(out, l.Status)
	}
	return out
}

func TestNewDefaults(t *testing.T) {
	f := newFixture(t, testConfig())
	layers := f.s.Layers()
	if len(layers) != 1 || layers[0].Name != "(01)" || layers[0].Status != StatusUnset {
		t.Errorf("initial layers = %+v", layers)
	}
	if f.s.PaperSize() != image.Pt(8, 8) || f.s.OutputSize() != image.Pt(8, 8) {
		t.Errorf("sizes = %v / %v", f.s.PaperSize(), f.s.OutputSize())
	}
	if f.s.LightStatus() != StatusUnset {
		t.Errorf("light status = %v", f.s.LightStatus())
	}
	if !f.s.Accumulating() || f.s.VSync() {
		t.Error("fresh studio should be accumulating without vsync")
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero paper", func(c *Config) { c.PaperSize = image.Point{} }},
		{"narrow paper", func(c *Config) { c.PaperWidth = 5 }},
		{"camera too near", func(c *Config) { c.CameraDistance = 5 }},
		{"zero spp", func(c *Config) { c.SPP = 0 }},
		{"zero max frames", func(c *Config) { c.MaxFrames = 0 }},
		{"bad device", func(c *Config) { c.Device = "tpu" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			s, err := New(cfg, WithMonitor(nil))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New err = %v, want ErrInvalidConfig", err)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}

func TestOutputSizeFor(t *testing.T) {
	tests := []struct {
		paper, want image.Point
	}{
		{image.Pt(640, 480), image.Pt(640, 480)},
		{image.Pt(1600, 900), image.Pt(800, 450)},
		{image.Pt(900, 1600), image.Pt(450, 800)},
		{image.Pt(4000, 2), image.Pt(800, 1)},
		{image.Pt(1, 5000), image.Pt(1, 800)},
		{image.Pt(1000, 1000), image.Pt(800, 800)},
	}
	for _, tt := range tests {
		if got := OutputSizeFor(tt.paper); got != tt.want {
			t.Errorf("OutputSizeFor(%v) = %v, want %v", tt.paper, got, tt.want)
		}
	}
}

func TestUniqueNames(t *testing.T) {
	f := newFixture(t, testConfig())
	for _, name := range []string{"leaf", "leaf", "leaf", "", "(01)"} {
		if _, err := f.s.AddLayer(name); err != nil {
			t.Fatal(err)
		}
	}
	var names []string
	for _, l := range f.s.Layers() {
		names = append(names, l.Name)
	}
	want := []string{"(01)", "leaf", "leaf(01)", "leaf(02)", "(02)", "(01)(01)"}
	if !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	if err := f.s.RenameLayer(1, "leaf"); err != nil {
		t.Fatal(err)
	}
	if got := f.s.Layers()[1].Name; got != "leaf" {
		t.Errorf("renaming to own name gave %q", got)
	}
	if err := f.s.RenameLayer(0, "leaf"); err != nil {
		t.Fatal(err)
	}
	if got := f.s.Layers()[0].Name; got != "leaf(03)" {
		t.Errorf("rename collision gave %q", got)
	}
}

func TestLayerStatuses(t *testing.T) {
	f := newFixture(t, testConfig())
	ok := f.writeMask(t, "ok.png", 8, 8, 255)

	if err := f.s.SetLayerFile(0, filepath.Join(f.dir, "missing.png")); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if got := f.s.Layers()[0].Status; got != StatusLoadFailed {
		t.Errorf("missing file status = %v, want LoadFailed", got)
	}
	if f.s.PaperSize() != image.Pt(8, 8) {
		t.Errorf("failed load changed paper size to %v", f.s.PaperSize())
	}

	if err := f.s.SetLayerFile(0, ok); err != nil {
		t.Fatal(err)
	}
	if got := f.s.Layers()[0].Status; got != StatusOK {
		t.Errorf("status = %v, want OK", got)
	}
	if _, err := f.s.AddLayer(""); err != nil {
		t.Fatal(err)
	}
	if got := f.s.Layers()[1].Status; got != StatusUnset {
		t.Errorf("new layer status = %v, want Unset", got)
	}
	if err := f.s.SetLayerFile(5, ok); !errors.Is(err, ErrLayerIndex) {
		t.Errorf("bad index err = %v", err)
	}
}

func TestCanonicalSizeAdoption(t *testing.T) {
	f := newFixture(t, testConfig())
	small := f.writeMask(t, "small.png", 8, 8, 255)
	big := f.writeMask(t, "big.png", 12, 6, 255)
	light := f.writeLight(t, "light.png", 8, 8, color.RGBA{255, 255, 255, 255})

	if err := f.s.SetLayerFile(0, small); err != nil {
		t.Fatal(err)
	}
	if err := f.s.SetLightFile(light); err != nil {
		t.Fatal(err)
	}
	if _, err := f.s.AddLayer("b"); err != nil {
		t.Fatal(err)
	}
	f.frames(t, 3)

	if err := f.s.SetLayerFile(1, big); err != nil {
		t.Fatal(err)
	}
	if f.s.PaperSize() != image.Pt(12, 6) {
		t.Errorf("paper size = %v, want (12,6)", f.s.PaperSize())
	}
	if f.s.OutputSize() != image.Pt(12, 6) {
		t.Errorf("output size = %v", f.s.OutputSize())
	}
	if f.s.FrameCount() != 0 {
		t.Errorf("frame count after resize = %d, want 0", f.s.FrameCount())
	}
	if got := statuses(f.s); !slices.Equal(got, []Status{StatusSizeMismatch, StatusOK}) {
		t.Errorf("statuses = %v", got)
	}
	if f.s.LightStatus() != StatusSizeMismatch {
		t.Errorf("light status = %v, want SizeMismatch", f.s.LightStatus())
	}

	// A hot reload at another size does not move the canonical size.
	f.writeMask(t, "big.png", 4, 4, 255)
	f.w.touch(big)
	f.frames(t, 1)
	if f.s.PaperSize() != image.Pt(12, 6) {
		t.Errorf("reload changed paper size to %v", f.s.PaperSize())
	}
	if got := f.s.Layers()[1].Status; got != StatusSizeMismatch {
		t.Errorf("reloaded status = %v, want SizeMismatch", got)
	}
	f.frames(t, 2)
}

func TestHotReloadResetsAccumulation(t *testing.T) {
	f := newFixture(t, testConfig())
	mask := f.writeMask(t, "m.png", 8, 8, 255)
	if err := f.s.SetLayerFile(0, mask); err != nil {
		t.Fatal(err)
	}
	f.frames(t, 4)
	if f.s.FrameCount() != 4 {
		t.Fatalf("frame count = %d", f.s.FrameCount())
	}

	if err := os.WriteFile(mask, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.w.touch(mask)
	f.frames(t, 1)
	if f.s.FrameCount() != 1 {
		t.Errorf("frame count after reload = %d, want 1", f.s.FrameCount())
	}
	if got := f.s.Layers()[0].Status; got != StatusLoadFailed {
		t.Errorf("status = %v, want LoadFailed", got)
	}
}

func TestRemoveLayerReindexes(t *testing.T) {
	f := newFixture(t, testConfig())
	paths := make([]string, 4)
	for i := range paths {
		paths[i] = f.writeMask(t, string(rune('a'+i))+".png", 8, 8, uint8(50*(i+1)))
	}
	if err := f.s.LoadLayers(paths); err != nil {
		t.Fatal(err)
	}
	diffuse := material.NewDiffuse(0.25)
	if err := f.s.SetLayerMaterial(2, diffuse); err != nil {
		t.Fatal(err)
	}

	check := func(wantPaths []string) {
		t.Helper()
		layers := f.s.Layers()
		if len(layers) != len(wantPaths) {
			t.Fatalf("got %d layers, want %d", len(layers), len(wantPaths))
		}
		for i, l := range layers {
			if l.Index != i {
				t.Errorf("layer %d has Index %d", i, l.Index)
			}
			if l.Path != wantPaths[i] {
				t.Errorf("layer %d path = %s, want %s", i, l.Path, wantPaths[i])
			}
			slot, ok := f.s.SlotOf(l.ID)
			if !ok || slot != i {
				t.Errorf("SlotOf(%d) = %d,%v, want %d", l.ID, slot, ok, i)
			}
			px := f.s.monitor.LayerPixels(l.ID)
			if px.Empty() || px.At(0, 0)[0] != uint8(50*(slices.Index(paths, l.Path)+1)) {
				t.Errorf("layer %d pixels do not belong to %s", i, l.Path)
			}
			if l.Path == paths[2] && l.Material != diffuse {
				t.Errorf("layer %d lost its material", i)
			}
		}
	}
	check(paths)

	// a b c d -> move d to front -> d a b c
	if err := f.s.MoveLayer(3, 0); err != nil {
		t.Fatal(err)
	}
	check([]string{paths[3], paths[0], paths[1], paths[2]})

	// remove a -> d b c
	removed := f.s.Layers()[1].ID
	if err := f.s.RemoveLayer(1); err != nil {
		t.Fatal(err)
	}
	check([]string{paths[3], paths[1], paths[2]})
	if _, ok := f.s.SlotOf(removed); ok {
		t.Error("removed layer still has a slot")
	}

	// hot reload of c after reindexing lands on slot 2
	f.writeMask(t, "c.png", 8, 8, 0)
	f.w.touch(paths[2])
	f.frames(t, 1)
	if got := f.s.Layers()[2].Status; got != StatusOK {
		t.Errorf("reloaded layer status = %v", got)
	}
	if got := f.s.monitor.LayerPixels(f.s.Layers()[2].ID).At(0, 0)[0]; got != 0 {
		t.Errorf("reloaded pixels = %d, want 0", got)
	}

	for len(f.s.Layers()) > 1 {
		if err := f.s.RemoveLayer(0); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.s.RemoveLayer(0); !errors.Is(err, ErrLastLayer) {
		t.Errorf("removing last layer: err = %v", err)
	}
	f.frames(t, 1)
}

func TestInvalidation(t *testing.T) {
	f := newFixture(t, testConfig())
	edits := []struct {
		name string
		edit func() error
	}{
		{"material", func() error { return f.s.SetMaterial(material.NewDiffuse(0.3)) }},
		{"layer material", func() error { return f.s.SetLayerMaterial(0, material.Default()) }},
		{"add layer", func() error { _, err := f.s.AddLayer("x"); return err }},
		{"move layer", func() error { return f.s.MoveLayer(0, 1) }},
		{"remove layer", func() error { return f.s.RemoveLayer(1) }},
		{"spp", func() error { f.s.SetSPP(2); return nil }},
		{"paper distance", func() error { f.s.SetPaperDistance(3); return nil }},
		{"light distance", func() error { f.s.SetLightDistance(3); return nil }},
		{"paper width", func() error { f.s.SetPaperWidth(50); return nil }},
		{"camera", func() error { f.s.SetCamera(true, 2); return nil }},
		{"env light", func() error { f.s.SetEnvLight([3]float32{0.5, 0.5, 0.5}); return nil }},
		{"light intensity", func() error { return f.s.SetLightIntensity(2) }},
		{"clear light", func() error { return f.s.ClearLight() }},
	}
	for _, tt := range edits {
		t.Run(tt.name, func(t *testing.T) {
			f.frames(t, 2)
			if f.s.FrameCount() == 0 {
				t.Fatal("no frames accumulated")
			}
			if err := tt.edit(); err != nil {
				t.Fatal(err)
			}
			if f.s.FrameCount() != 0 {
				t.Errorf("frame count after %s = %d, want 0", tt.name, f.s.FrameCount())
			}
		})
	}

	f.frames(t, 2)
	f.s.SetExposure(2)
	if f.s.FrameCount() != 2 {
		t.Errorf("exposure reset accumulation: %d", f.s.FrameCount())
	}
}

func TestFrameCap(t *testing.T) {
	f := newFixture(t, testConfig())
	if err := f.s.SetLightFile(f.writeLight(t, "light.png", 8, 8, color.RGBA{200, 200, 200, 255})); err != nil {
		t.Fatal(err)
	}
	f.s.SetMaxFrames(3)
	f.frames(t, 5)
	if f.s.FrameCount() != 3 {
		t.Errorf("frame count = %d, want 3", f.s.FrameCount())
	}
	if f.s.Accumulating() || !f.s.VSync() {
		t.Error("capped studio should not accumulate and should vsync")
	}

	before, err := f.s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	f.s.SetExposure(0)
	f.frames(t, 1)
	after, err := f.s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if f.s.FrameCount() != 3 {
		t.Errorf("exposure change while capped traced a frame")
	}
	if slices.Equal(before.Pix, after.Pix) {
		t.Error("exposure change while capped was not tone mapped")
	}

	f.s.SetSPP(1)
	if !f.s.Accumulating() || f.s.VSync() {
		t.Error("invalidation should resume accumulation")
	}
}

// TestConvergesToDiffuseHalf renders one diffuse sheet of reflectance
// 0.5 in front of a white light with a black environment. Half of the
// light passes the sheet, so the converged radiance is 0.5 everywhere.
func TestConvergesToDiffuseHalf(t *testing.T) {
	cfg := testConfig()
	cfg.PaperSize = image.Pt(16, 16)
	cfg.Material = material.NewDiffuse(0.5)
	cfg.SPP = 8
	cfg.MaxFrames = 64
	f := newFixture(t, cfg)

	if err := f.s.SetLayerFile(0, f.writeMask(t, "sheet.png", 16, 16, 255)); err != nil {
		t.Fatal(err)
	}
	if err := f.s.SetLightFile(f.writeLight(t, "white.png", 16, 16, color.RGBA{255, 255, 255, 255})); err != nil {
		t.Fatal(err)
	}
	for f.s.Accumulating() {
		f.frames(t, 1)
	}
	if f.s.FrameCount() != 64 {
		t.Fatalf("frame count = %d", f.s.FrameCount())
	}

	rad, err := f.s.Radiance()
	if err != nil {
		t.Fatal(err)
	}
	var sum, sumSq float64
	for _, v := range rad {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	n := float64(len(rad))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if math.Abs(mean-0.5) > 0.02 {
		t.Errorf("mean radiance = %.4f, want 0.5", mean)
	}
	if variance > 2e-3 {
		t.Errorf("variance = %.5f, want < 2e-3", variance)
	}

	img, err := f.s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	// 0.5^(1/2.2) * 255 = 186
	if c := img.RGBAAt(8, 8); c.R < 176 || c.R > 196 || c.A != 255 {
		t.Errorf("display pixel = %v, want ~186", c)
	}
}

func TestLightUpload(t *testing.T) {
	f := newFixture(t, testConfig())
	// no sheet paper: the layer is all holes, so the light is seen directly
	light := f.writeLight(t, "grey.png", 8, 8, color.RGBA{128, 128, 128, 255})
	if err := f.s.SetLightFile(light); err != nil {
		t.Fatal(err)
	}
	if err := f.s.SetLightIntensity(2); err != nil {
		t.Fatal(err)
	}
	f.frames(t, 1)
	rad, err := f.s.Radiance()
	if err != nil {
		t.Fatal(err)
	}
	want := 2 * math.Pow(128.0/255, 2.2)
	for i, v := range rad {
		if math.Abs(float64(v)-want) > 1e-3 {
			t.Fatalf("radiance[%d] = %v, want %v", i, v, want)
		}
	}

	if err := f.s.ClearLight(); err != nil {
		t.Fatal(err)
	}
	f.frames(t, 1)
	rad, _ = f.s.Radiance()
	for i, v := range rad {
		if v != 0 {
			t.Fatalf("radiance[%d] = %v after ClearLight, want 0", i, v)
		}
	}
}

func TestClosed(t *testing.T) {
	f := newFixture(t, testConfig())
	if err := f.s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.s.Frame(); !errors.Is(err, ErrClosed) {
		t.Errorf("Frame after Close: %v", err)
	}
	if err := f.s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLightHotReload(t *testing.T) {
	f := newFixture(t, testConfig())
	light := f.writeLight(t, "light.png", 8, 8, color.RGBA{128, 128, 128, 255})
	if err := f.s.SetLightFile(light); err != nil {
		t.Fatal(err)
	}
	f.frames(t, 3)

	f.writeLight(t, "light.png", 8, 8, color.RGBA{255, 255, 255, 255})
	f.w.touch(light)
	f.frames(t, 1)
	if f.s.LightStatus() != StatusOK {
		t.Errorf("light status = %v, want OK", f.s.LightStatus())
	}
	if f.s.FrameCount() != 1 {
		t.Errorf("frame count after light reload = %d, want 1", f.s.FrameCount())
	}
	rad, err := f.s.Radiance()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range rad {
		if math.Abs(float64(v)-1) > 1e-3 {
			t.Fatalf("radiance[%d] = %v, want 1", i, v)
		}
	}

	if err := os.WriteFile(light, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.w.touch(light)
	f.frames(t, 1)
	if f.s.LightStatus() != StatusLoadFailed {
		t.Errorf("light status = %v, want LoadFailed", f.s.LightStatus())
	}
	if f.s.FrameCount() != 1 {
		t.Errorf("frame count after broken light = %d, want 1", f.s.FrameCount())
	}
}

func TestCloseReleasesSharedMonitor(t *testing.T) {
	f := newFixture(t, testConfig())
	m := f.s.monitor
	mask := f.writeMask(t, "a.png", 8, 8, 255)
	light := f.writeLight(t, "light.png", 8, 8, color.RGBA{200, 200, 200, 255})
	if err := f.s.SetLayerFile(0, mask); err != nil {
		t.Fatal(err)
	}
	if err := f.s.SetLightFile(light); err != nil {
		t.Fatal(err)
	}
	if len(m.WatchedDirs()) == 0 {
		t.Fatal("files are not watched")
	}

	if err := f.s.Close(); err != nil {
		t.Fatal(err)
	}
	if dirs := m.WatchedDirs(); len(dirs) != 0 {
		t.Errorf("watched after Close = %v", dirs)
	}
	if m.LightPath() != "" {
		t.Errorf("light still tracked: %q", m.LightPath())
	}

	f.w.touch(mask)
	f.w.touch(light)
	m.Poll()
	if f.s.err != nil {
		t.Errorf("closed studio handled a file event: %v", f.s.err)
	}
}
