// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package material describes the optical behaviour of a paper layer.
//
// A Material is either a plain diffuse surface or a translucent slab whose
// bulk scattering is approximated with the dipole diffusion model. Dipole
// materials are reduced to per-channel diffuse reflectance (Rd) and
// transmittance (Td) with [Diffusion], then packed together with their
// surface parameters into the fixed 20-word [Record] consumed by the trace
// kernel.
//
// Derived coefficients are memoised, so repeatedly packing the same
// parameters costs a map lookup.
package material
