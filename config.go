// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import (
	"fmt"
	"image"

	"github.com/gogpu/papercut/material"
)

// Limits of the Studio parameters.
const (
	// MinPaperWidth is the smallest physical paper width.
	MinPaperWidth = 10
	// MaxCameraDistance is the largest perspective camera distance.
	MaxCameraDistance = 4.9
	// MaxOutputSide bounds the longer side of the output image.
	MaxOutputSide = 800
	// eyeBase is the eye offset the camera distance is subtracted from.
	eyeBase = 5
)

// Config holds the initial state of a Studio.
type Config struct {
	// PaperSize is the canonical resolution until an asset of another
	// size is loaded.
	PaperSize image.Point

	// PaperWidth is the physical width of a sheet. Distances use the same
	// unit.
	PaperWidth float32
	// PaperDistance is the spacing between adjacent sheets.
	PaperDistance float32
	// LightDistance is the spacing between the last sheet and the light.
	LightDistance float32

	// LightIntensity scales the back light.
	LightIntensity float32
	// EnvLight is the display-gamma RGB radiance in front of the stack.
	EnvLight [3]float32

	// Perspective selects a perspective camera at CameraDistance
	// (0 is farthest, MaxCameraDistance nearest).
	Perspective    bool
	CameraDistance float32

	Exposure  float32
	SPP       int
	MaxFrames int

	// Material is given to every new layer.
	Material material.Material

	// Device selects the compute device; Workers sizes the CPU device
	// (0 means GOMAXPROCS).
	Device  DeviceKind
	Workers int
}

// DefaultConfig returns the default configuration: a 640x480 sheet of
// default paper 200 units wide, 10 units apart, lit from 1 unit behind.
func DefaultConfig() Config {
	return Config{
		PaperSize:      image.Pt(640, 480),
		PaperWidth:     200,
		PaperDistance:  10,
		LightDistance:  1,
		LightIntensity: 1,
		Exposure:       1,
		SPP:            1,
		MaxFrames:      1024,
		Material:       material.Default(),
		Device:         DeviceAuto,
	}
}

// Validate reports the first unusable field.
func (c *Config) Validate() error {
	switch {
	case c.PaperSize.X <= 0 || c.PaperSize.Y <= 0:
		return fmt.Errorf("%w: paper size %v", ErrInvalidConfig, c.PaperSize)
	case c.PaperWidth < MinPaperWidth:
		return fmt.Errorf("%w: paper width %v below %d", ErrInvalidConfig, c.PaperWidth, MinPaperWidth)
	case c.PaperDistance < 0 || c.LightDistance < 0:
		return fmt.Errorf("%w: negative distance", ErrInvalidConfig)
	case c.CameraDistance < 0 || c.CameraDistance > MaxCameraDistance:
		return fmt.Errorf("%w: camera distance %v outside [0, %v]", ErrInvalidConfig, c.CameraDistance, MaxCameraDistance)
	case c.SPP < 1:
		return fmt.Errorf("%w: spp %d", ErrInvalidConfig, c.SPP)
	case c.MaxFrames < 1:
		return fmt.Errorf("%w: max frames %d", ErrInvalidConfig, c.MaxFrames)
	case c.LightIntensity < 0 || c.Exposure < 0:
		return fmt.Errorf("%w: negative intensity or exposure", ErrInvalidConfig)
	}
	if err := c.Material.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// OutputSizeFor returns the output resolution of a paper resolution: the
// same aspect with the longer side capped at MaxOutputSide and at least
// one pixel per side.
func OutputSizeFor(paper image.Point) image.Point {
	w, h := paper.X, paper.Y
	if w > h {
		ow := min(w, MaxOutputSide)
		return image.Pt(ow, max(1, ow*h/w))
	}
	oh := min(h, MaxOutputSide)
	return image.Pt(max(1, oh*w/h), oh)
}
