// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package material

import "fmt"

// Kind discriminates the Material variants. The numeric values are the
// type tags stored in word 0 of a Record.
type Kind uint32

const (
	// KindDiffuse is an opaque-ish Lambertian sheet described by a single
	// reflectance; the remainder is transmitted diffusely.
	KindDiffuse Kind = 1

	// KindDipole is a translucent slab with dipole diffusion scattering.
	KindDipole Kind = 2
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindDiffuse:
		return "diffuse"
	case KindDipole:
		return "dipole"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Minimum values enforced when a dipole material is derived.
const (
	MinThickness = 0.05
	MinRoughness = 0.01
)

// Diffuse holds the parameters of a diffuse material.
type Diffuse struct {
	// Reflectance in [0, 1]. Values outside are clamped when packed.
	Reflectance float32
}

// Dipole holds the parameters of a translucent paper slab.
//
// WBack is not stored: the front and back phase lobes are weighted
// WFront and 1-WFront.
type Dipole struct {
	GFront     float32 // forward lobe asymmetry
	GBack      float32 // backward lobe asymmetry
	WFront     float32 // forward lobe weight in [0, 1]
	EtaFront   float32
	EtaBack    float32
	RoughFront float32
	RoughBack  float32
	Thickness  float32
	SigmaS     float32 // scattering coefficient
	SigmaA     float32 // absorption coefficient
	Albedo     [3]float32
}

// WBack returns the backward lobe weight.
func (d Dipole) WBack() float32 { return 1 - d.WFront }

// DefaultDipole returns the parameters of typical thin craft paper.
func DefaultDipole() Dipole {
	return Dipole{
		GFront:     0.335,
		GBack:      -0.841,
		WFront:     0.997,
		EtaFront:   1.29,
		EtaBack:    1.55,
		RoughFront: 0.419,
		RoughBack:  0.892,
		Thickness:  0.262,
		SigmaS:     81.38,
		SigmaA:     0.001,
		Albedo:     [3]float32{0.54, 0.54, 0.54},
	}
}

// clamped returns d with thickness and roughness raised to their minimums.
func (d Dipole) clamped() Dipole {
	d.Thickness = max(d.Thickness, MinThickness)
	d.RoughFront = max(d.RoughFront, MinRoughness)
	d.RoughBack = max(d.RoughBack, MinRoughness)
	return d
}

// Material is a closed sum of Diffuse and Dipole, selected by Kind.
// Only the field matching Kind is meaningful.
type Material struct {
	Kind    Kind
	Diffuse Diffuse
	Dipole  Dipole
}

// NewDiffuse returns a diffuse material with the given reflectance.
func NewDiffuse(reflectance float32) Material {
	return Material{Kind: KindDiffuse, Diffuse: Diffuse{Reflectance: reflectance}}
}

// NewDipole returns a dipole material.
func NewDipole(d Dipole) Material {
	return Material{Kind: KindDipole, Dipole: d}
}

// Default returns the dipole material used for freshly added layers.
func Default() Material { return NewDipole(DefaultDipole()) }

// Validate reports whether m is a known variant with usable coefficients.
func (m Material) Validate() error {
	switch m.Kind {
	case KindDiffuse:
		return nil
	case KindDipole:
		if m.Dipole.SigmaS <= 0 || m.Dipole.SigmaA <= 0 {
			return fmt.Errorf("material: dipole coefficients must be positive (sigmaS=%v, sigmaA=%v)",
				m.Dipole.SigmaS, m.Dipole.SigmaA)
		}
		return nil
	default:
		return fmt.Errorf("material: unknown kind %v", m.Kind)
	}
}
