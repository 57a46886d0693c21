// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/papercut/asset"
	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/color"
	"github.com/gogpu/papercut/material"
	"github.com/gogpu/papercut/render"
)

// Studio renders a stack of paper layers in front of a back light and
// refines the picture progressively.
//
// A Studio is not safe for concurrent use: every method, including the
// asset callbacks run from Frame, executes on the caller's goroutine.
type Studio struct {
	dev         gpucore.Device
	ownsDevice  bool
	monitor     *asset.Monitor
	ownsMonitor bool

	tracer *render.Tracer
	acc    *render.Accumulator
	tm     *render.ToneMapper

	layers []*layerRecord
	slots  map[asset.LayerID]int

	paper    image.Point
	material material.Material

	lightPath      string
	lightStatus    Status
	lightIntensity float32
	envLight       [3]float32

	paperWidth     float32
	paperDistance  float32
	lightDistance  float32
	perspective    bool
	cameraDistance float32

	maxFrames int
	// toneDirty forces a tone map pass while accumulation is capped.
	toneDirty bool
	// err is the first failure raised from an asset callback.
	err    error
	closed bool
}

// New creates a Studio with one empty layer.
func New(cfg Config, opts ...Option) (*Studio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o studioOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Studio{
		slots:          make(map[asset.LayerID]int),
		paper:          cfg.PaperSize,
		material:       cfg.Material,
		lightIntensity: cfg.LightIntensity,
		envLight:       cfg.EnvLight,
		paperWidth:     cfg.PaperWidth,
		paperDistance:  cfg.PaperDistance,
		lightDistance:  cfg.LightDistance,
		perspective:    cfg.Perspective,
		cameraDistance: cfg.CameraDistance,
		maxFrames:      cfg.MaxFrames,
	}

	s.dev = o.device
	if s.dev == nil {
		dev, err := openDevice(cfg.Device, cfg.Workers, o.provider)
		if err != nil {
			return nil, err
		}
		s.dev = dev
		s.ownsDevice = true
	}
	Logger().Info("papercut: using device", "device", s.dev.Name())

	s.monitor = o.monitor
	if s.monitor == nil {
		m, err := asset.NewMonitor()
		if err != nil {
			s.Close()
			return nil, err
		}
		s.monitor = m
		s.ownsMonitor = true
	}
	s.monitor.OnLayerChanged(func(ev asset.LayerChanged) {
		if s.closed {
			return
		}
		if _, ok := s.slots[ev.ID]; ok {
			s.fail(s.handleLayer(ev.ID))
		}
	})
	s.monitor.OnLightChanged(func(asset.LightChanged) {
		if s.closed {
			return
		}
		s.fail(s.handleLight())
	})

	s.layers = []*layerRecord{{name: uniqueName(nil, "", -1), material: s.material}}

	out := OutputSizeFor(s.paper)
	var err error
	s.tracer, err = render.NewTracer(s.dev, render.TracerConfig{
		OutputWidth:  out.X,
		OutputHeight: out.Y,
		Paper:        render.PaperSize{Width: s.paper.X, Height: s.paper.Y, Layers: 1},
		SPP:          cfg.SPP,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if s.acc, err = render.NewAccumulator(s.dev, out.X, out.Y); err != nil {
		s.Close()
		return nil, err
	}
	if s.tm, err = render.NewToneMapper(s.dev, out.X, out.Y); err != nil {
		s.Close()
		return nil, err
	}
	s.tm.SetExposure(cfg.Exposure)
	if o.provider != nil && o.provider.SurfaceFormat() == gputypes.TextureFormatBGRA8Unorm {
		s.tm.SetSwapRB(true)
	}

	s.applyCamera()
	s.applyEnvLight()
	s.applyDistances()
	if err := s.uploadStack(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.uploadLight(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// fail records the first error raised where it cannot be returned.
func (s *Studio) fail(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
}

func (s *Studio) invalidate() {
	s.acc.ClearHistory()
	s.toneDirty = true
}

func (s *Studio) checkIndex(i int) error {
	if i < 0 || i >= len(s.layers) {
		return fmt.Errorf("%w: %d of %d", ErrLayerIndex, i, len(s.layers))
	}
	return nil
}

// pixelScale converts physical distances to texels.
func (s *Studio) pixelScale() float32 {
	return float32(s.paper.X) / s.paperWidth
}

// Frame applies pending asset changes and, unless the frame cap has been
// reached, traces one frame, adds it to the average and tone maps the
// average.
func (s *Studio) Frame() error {
	if s.closed {
		return ErrClosed
	}
	s.monitor.Poll()
	if s.err != nil {
		return s.err
	}
	if s.Accumulating() {
		if err := s.tracer.Render(); err != nil {
			return err
		}
		if err := s.acc.AddFrame(s.tracer.Output()); err != nil {
			return err
		}
	} else if !s.toneDirty {
		return nil
	}
	if s.acc.FrameCount() == 0 {
		return nil
	}
	if err := s.tm.Render(s.acc.Output()); err != nil {
		return err
	}
	s.toneDirty = false
	return nil
}

// Accumulating reports whether Frame still adds frames to the average.
func (s *Studio) Accumulating() bool { return s.acc.FrameCount() < s.maxFrames }

// VSync reports whether presentation should be synchronized to the
// display: only once the average has converged.
func (s *Studio) VSync() bool { return !s.Accumulating() }

// FrameCount returns the number of frames in the average.
func (s *Studio) FrameCount() int { return s.acc.FrameCount() }

// Layers returns the stack, front layer first.
func (s *Studio) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	for i, l := range s.layers {
		out[i] = Layer{Index: i, Name: l.name, Path: l.path, ID: l.id, Status: l.status, Material: l.material}
	}
	return out
}

// SlotOf returns the stack index of the layer with asset identity id.
func (s *Studio) SlotOf(id asset.LayerID) (int, bool) {
	i, ok := s.slots[id]
	return i, ok
}

// LightStatus returns the status of the light file.
func (s *Studio) LightStatus() Status { return s.lightStatus }

// PaperSize returns the canonical asset resolution.
func (s *Studio) PaperSize() image.Point { return s.paper }

// OutputSize returns the rendered image resolution.
func (s *Studio) OutputSize() image.Point {
	w, h := s.tracer.OutputSize()
	return image.Pt(w, h)
}

// Device returns the compute device.
func (s *Studio) Device() gpucore.Device { return s.dev }

// AddLayer appends an empty layer behind the stack and returns its index.
// name is made unique with a (NN) suffix if needed.
func (s *Studio) AddLayer(name string) (int, error) {
	s.layers = append(s.layers, &layerRecord{
		name:     uniqueName(s.layers, name, -1),
		material: s.material,
	})
	if err := s.resizeStack(); err != nil {
		return 0, err
	}
	return len(s.layers) - 1, nil
}

// SetLayerFile attaches the image at path to layer i. An image of another
// size than the canonical one becomes the canonical size.
func (s *Studio) SetLayerFile(i int, path string) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	l := s.layers[i]
	if l.id != 0 {
		s.monitor.RemoveLayer(l.id)
		delete(s.slots, l.id)
	}
	l.id = s.monitor.AddLayer(path)
	l.path = path
	s.slots[l.id] = i

	px := s.monitor.LayerPixels(l.id)
	if !px.Empty() && px.Size() != s.paper {
		return s.setPaperSize(px.Size())
	}
	return s.handleLayer(l.id)
}

// RemoveLayer removes layer i. The last layer cannot be removed.
func (s *Studio) RemoveLayer(i int) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	if len(s.layers) == 1 {
		return ErrLastLayer
	}
	if id := s.layers[i].id; id != 0 {
		s.monitor.RemoveLayer(id)
	}
	s.layers = slices.Delete(s.layers, i, i+1)
	s.reindex()
	return s.resizeStack()
}

// MoveLayer moves layer src to index dst, shifting the layers between.
func (s *Studio) MoveLayer(src, dst int) error {
	if err := s.checkIndex(src); err != nil {
		return err
	}
	if err := s.checkIndex(dst); err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	l := s.layers[src]
	s.layers = slices.Delete(s.layers, src, src+1)
	s.layers = slices.Insert(s.layers, dst, l)
	s.reindex()
	if err := s.uploadStack(); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// LoadLayers replaces the stack with one layer per path, front first.
func (s *Studio) LoadLayers(paths []string) error {
	if len(paths) == 0 {
		return ErrLastLayer
	}
	for _, l := range s.layers {
		if l.id != 0 {
			s.monitor.RemoveLayer(l.id)
		}
	}
	s.layers = s.layers[:0]
	clear(s.slots)
	for range paths {
		s.layers = append(s.layers, &layerRecord{
			name:     uniqueName(s.layers, "", -1),
			material: s.material,
		})
	}
	if err := s.resizeStack(); err != nil {
		return err
	}
	for i, p := range paths {
		if err := s.SetLayerFile(i, p); err != nil {
			return err
		}
	}
	return nil
}

// RenameLayer renames layer i, made unique like AddLayer.
func (s *Studio) RenameLayer(i int, name string) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.layers[i].name = uniqueName(s.layers, name, i)
	return nil
}

// reindex rebuilds the identity to slot map after the stack order
// changed.
func (s *Studio) reindex() {
	clear(s.slots)
	for i, l := range s.layers {
		if l.id != 0 {
			s.slots[l.id] = i
		}
	}
}

// resizeStack reallocates the tracer for the current layer count and
// uploads every layer.
func (s *Studio) resizeStack() error {
	err := s.tracer.SetPaperSize(render.PaperSize{Width: s.paper.X, Height: s.paper.Y, Layers: len(s.layers)})
	if err != nil {
		return err
	}
	if err := s.uploadStack(); err != nil {
		return err
	}
	if err := s.uploadLight(); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// uploadStack uploads the texels and material of every layer.
func (s *Studio) uploadStack() error {
	for i := range s.layers {
		if err := s.uploadLayer(i); err != nil {
			return err
		}
		if err := s.tracer.SetLayerMaterial(i, s.layers[i].material); err != nil {
			return err
		}
	}
	return nil
}

// uploadLayer uploads the texels of layer i: white paper wherever the
// mask is non-zero, or all holes unless the layer is StatusOK.
func (s *Studio) uploadLayer(i int) error {
	l := s.layers[i]
	texels := make([]render.Texel, s.paper.X*s.paper.Y)
	if l.status == StatusOK {
		px := s.monitor.LayerPixels(l.id)
		for j, v := range px.Pix {
			if v > 0 {
				texels[j] = render.Texel{R: 255, G: 255, B: 255, Mask: 255}
			}
		}
	}
	return s.tracer.SetLayerPixels(i, texels)
}

func (s *Studio) statusOf(px asset.Pixels) Status {
	switch {
	case px.Empty():
		return StatusLoadFailed
	case px.Size() != s.paper:
		return StatusSizeMismatch
	default:
		return StatusOK
	}
}

// handleLayer re-validates the layer with identity id and uploads it.
func (s *Studio) handleLayer(id asset.LayerID) error {
	i, ok := s.slots[id]
	if !ok {
		return nil
	}
	s.layers[i].status = s.statusOf(s.monitor.LayerPixels(id))
	if err := s.uploadLayer(i); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// handleLight re-validates the light and uploads it.
func (s *Studio) handleLight() error {
	if s.lightPath == "" {
		s.lightStatus = StatusUnset
	} else {
		s.lightStatus = s.statusOf(s.monitor.LightPixels())
	}
	if err := s.uploadLight(); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// uploadLight uploads the light as linear radiance scaled by intensity;
// black unless the light is StatusOK.
func (s *Studio) uploadLight() error {
	radiance := make([]render.Radiance, s.paper.X*s.paper.Y)
	if s.lightStatus == StatusOK {
		px := s.monitor.LightPixels()
		for i := range radiance {
			c := px.Pix[i*3 : i*3+3]
			radiance[i] = render.Radiance(color.DecodeBytes(c[0], c[1], c[2]).Scale(s.lightIntensity))
		}
	}
	return s.tracer.SetLightRadiance(radiance)
}

// setPaperSize makes size the canonical resolution, resizes every stage
// and re-validates every asset against it.
func (s *Studio) setPaperSize(size image.Point) error {
	Logger().Info("papercut: canonical size changed", "from", s.paper, "to", size)
	s.paper = size
	out := OutputSizeFor(size)

	err := s.tracer.SetPaperSize(render.PaperSize{Width: size.X, Height: size.Y, Layers: len(s.layers)})
	if err != nil {
		return err
	}
	if err := s.tracer.SetOutputSize(out.X, out.Y); err != nil {
		return err
	}
	if err := s.acc.SetSize(out.X, out.Y); err != nil {
		return err
	}
	if err := s.tm.SetSize(out.X, out.Y); err != nil {
		return err
	}

	for _, l := range s.layers {
		if l.id != 0 {
			l.status = s.statusOf(s.monitor.LayerPixels(l.id))
		}
	}
	if s.lightPath != "" {
		s.lightStatus = s.statusOf(s.monitor.LightPixels())
	}
	s.applyDistances()
	if err := s.uploadStack(); err != nil {
		return err
	}
	if err := s.uploadLight(); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// SetLightFile attaches the back light image at path. An image of another
// size than the canonical one becomes the canonical size.
func (s *Studio) SetLightFile(path string) error {
	s.monitor.SetLight(path)
	s.lightPath = path

	px := s.monitor.LightPixels()
	if !px.Empty() && px.Size() != s.paper {
		return s.setPaperSize(px.Size())
	}
	return s.handleLight()
}

// ClearLight detaches the light; the stack is then lit only from the
// front.
func (s *Studio) ClearLight() error {
	s.monitor.ClearLight()
	s.lightPath = ""
	return s.handleLight()
}

// LightPath returns the attached light file, "" if none.
func (s *Studio) LightPath() string { return s.lightPath }

// SetLightIntensity scales the back light. Negative values are clamped
// to zero.
func (s *Studio) SetLightIntensity(v float32) error {
	s.lightIntensity = max(v, 0)
	if err := s.uploadLight(); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// SetEnvLight sets the display-gamma RGB radiance in front of the stack.
func (s *Studio) SetEnvLight(rgb [3]float32) {
	s.envLight = rgb
	s.applyEnvLight()
	s.invalidate()
}

func (s *Studio) applyEnvLight() {
	s.tracer.SetEnvLight(render.Radiance(color.DecodeRGB(color.RGB(s.envLight))))
}

// SetLightDistance sets the spacing between the last layer and the light.
func (s *Studio) SetLightDistance(d float32) {
	s.lightDistance = max(d, 0)
	s.applyDistances()
	s.invalidate()
}

// SetPaperDistance sets the spacing between adjacent layers.
func (s *Studio) SetPaperDistance(d float32) {
	s.paperDistance = max(d, 0)
	s.applyDistances()
	s.invalidate()
}

// SetPaperWidth sets the physical paper width, at least MinPaperWidth.
func (s *Studio) SetPaperWidth(w float32) {
	s.paperWidth = max(w, MinPaperWidth)
	s.applyDistances()
	s.invalidate()
}

func (s *Studio) applyDistances() {
	scale := s.pixelScale()
	s.tracer.SetPaperDistance(s.paperDistance * scale)
	s.tracer.SetLightDistance(s.lightDistance * scale)
}

// SetCamera selects an orthographic camera, or a perspective camera at
// distance in [0, MaxCameraDistance] with larger values nearer.
func (s *Studio) SetCamera(perspective bool, distance float32) {
	s.perspective = perspective
	s.cameraDistance = min(max(distance, 0), MaxCameraDistance)
	s.applyCamera()
	s.invalidate()
}

func (s *Studio) applyCamera() {
	if s.perspective {
		s.tracer.SetEyeZ(-(eyeBase - s.cameraDistance))
		return
	}
	s.tracer.SetEyeZ(render.Orthographic)
}

// SetExposure sets the display exposure. The average is kept.
func (s *Studio) SetExposure(e float32) {
	s.tm.SetExposure(max(e, 0))
	s.toneDirty = true
}

// SetSPP sets the samples per pixel of each frame.
func (s *Studio) SetSPP(n int) {
	s.tracer.SetSPP(n)
	s.invalidate()
}

// SetMaxFrames sets the frame cap, at least 1.
func (s *Studio) SetMaxFrames(n int) {
	s.maxFrames = max(n, 1)
}

// SetMaterial gives every layer, and layers added later, material m.
func (s *Studio) SetMaterial(m material.Material) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.material = m
	for i, l := range s.layers {
		l.material = m
		if err := s.tracer.SetLayerMaterial(i, m); err != nil {
			return err
		}
	}
	s.invalidate()
	return nil
}

// SetLayerMaterial sets the material of layer i.
func (s *Studio) SetLayerMaterial(i int, m material.Material) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.layers[i].material = m
	if err := s.tracer.SetLayerMaterial(i, m); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Snapshot returns the last tone-mapped image.
func (s *Studio) Snapshot() (*image.RGBA, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.tm.ReadImage()
}

// Radiance returns the averaged linear radiance as RGB triples, row by
// row.
func (s *Studio) Radiance() ([]float32, error) {
	if s.closed {
		return nil, ErrClosed
	}
	w, h := s.acc.Size()
	return render.ReadRadiance(s.dev, s.acc.Output(), w, h)
}

// Close releases the stages, and the device and monitor unless they were
// supplied by options. A supplied monitor stops tracking the files of this
// Studio.
func (s *Studio) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.monitor != nil && !s.ownsMonitor {
		for _, l := range s.layers {
			if l.id != 0 {
				s.monitor.RemoveLayer(l.id)
			}
		}
		clear(s.slots)
		if s.lightPath != "" {
			s.monitor.ClearLight()
		}
	}
	if s.tm != nil {
		s.tm.Destroy()
	}
	if s.acc != nil {
		s.acc.Destroy()
	}
	if s.tracer != nil {
		s.tracer.Destroy()
	}
	var errs []error
	if s.monitor != nil && s.ownsMonitor {
		errs = append(errs, s.monitor.Close())
	}
	if s.dev != nil && s.ownsDevice {
		s.dev.Destroy()
	}
	return errors.Join(errs...)
}
