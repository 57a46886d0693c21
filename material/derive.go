// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package material

import "github.com/gogpu/papercut/internal/cache"

// Derived holds the coefficients computed from a dipole material.
type Derived struct {
	// Params are the parameters after clamping.
	Params Dipole

	Rd [3]float32
	Td [3]float32

	// Alpha is the single-scattering albedo sigmaS/(sigmaS+sigmaA).
	Alpha float32
	// Tau is the optical thickness thickness*(sigmaS+sigmaA).
	Tau float32
}

type deriveKey struct {
	params Dipole
	terms  int
}

var derived = cache.New[deriveKey, Derived](256)

// Derive computes the coefficients of d with DefaultTerms dipole pairs.
func Derive(d Dipole) Derived { return DeriveTerms(d, DefaultTerms) }

// DeriveTerms computes the coefficients of d with n dipole pairs.
// Thickness and roughness are clamped to MinThickness and MinRoughness
// first. Results are memoised.
func DeriveTerms(d Dipole, n int) Derived {
	d = d.clamped()
	return derived.GetOrCreate(deriveKey{params: d, terms: n}, func() Derived {
		rd, td := Diffusion(n, d.Albedo, d.SigmaS, d.SigmaA, d.Thickness,
			d.GFront, d.GBack, d.WFront, d.WBack())
		ext := d.SigmaS + d.SigmaA
		return Derived{
			Params: d,
			Rd:     rd,
			Td:     td,
			Alpha:  d.SigmaS / ext,
			Tau:    d.Thickness * ext,
		}
	})
}

// CacheStats reports hit and miss counts of the derivation cache.
func CacheStats() cache.Stats { return derived.Stats() }
