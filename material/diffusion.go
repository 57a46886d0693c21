// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package material

import "math"

// DefaultTerms is the number of dipole pairs summed on each side of the
// slab. Four pairs are enough for thin paper; see TestDiffusionConverges.
const DefaultTerms = 4

// albedoGuard keeps the boundary term A finite as the albedo approaches 1.
const albedoGuard = 1.001

// Diffusion computes the total diffuse reflectance Rd and transmittance Td
// of a slab of thickness d using the multipole extension of the dipole
// approximation, summing dipole pairs i in [-n, n].
//
// The phase function is a two-lobe mixture (wf, gf) + (wb, gb); its mean
// cosine reduces the scattering coefficient. albedo drives the boundary
// condition per channel.
//
// Rd and Td are clamped at zero. The raw sums only go negative for slabs
// thinner than one transport mean free path (d < 1/σt'), so thicker slabs
// get the closed form unchanged.
func Diffusion(n int, albedo [3]float32, sigmaS, sigmaA, d, gf, gb, wf, wb float32) (rd, td [3]float32) {
	ss := float64(sigmaS)
	sa := float64(sigmaA)
	thick := float64(d)

	g := float64(wb*gb + wf*gf)
	ssr := (1 - g) * ss // reduced scattering
	str := sa + ssr     // reduced extinction
	alpha := ssr / str  // reduced albedo
	sigmaTr := math.Sqrt(3 * sa * str)
	l := 1 / str
	diff := 1 / (3 * str)

	for c := range 3 {
		rho := float64(albedo[c])
		a := (1 + rho) / (albedoGuard - rho)
		zb := 2 * a * diff

		var r, t float64
		for i := -n; i <= n; i++ {
			period := 2 * float64(i) * (thick + 2*zb)
			zr := period + l
			zv := period - l - 2*zb

			r += signedExp(zr, sigmaTr) - signedExp(zv, sigmaTr)
			t += signedExp(thick-zr, sigmaTr) - signedExp(thick-zv, sigmaTr)
		}
		// Slabs thinner than one transport mean free path push the real
		// source below the far surface and the sums go negative there.
		rd[c] = float32(max(r*alpha/2, 0))
		td[c] = float32(max(t*alpha/2, 0))
	}
	return rd, td
}

// signedExp returns sgn(x)·exp(-s·|x|) with sgn(0) = +1.
func signedExp(x, s float64) float64 {
	e := math.Exp(-s * math.Abs(x))
	if x < 0 {
		return -e
	}
	return e
}
