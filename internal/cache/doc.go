// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides a small generic LRU cache for memoising derived
// values, such as per-material diffusion coefficients.
//
//	c := cache.New[Params, Derived](64)
//	d := c.GetOrCreate(p, func() Derived { return derive(p) })
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
