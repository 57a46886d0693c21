// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package gpu implements gpucore.Device on wgpu/hal.
//
// Kernel WGSL is compiled to SPIR-V with naga and run as compute
// pipelines on the Vulkan backend. Each kernel owns one bind group
// layout built from its binding list; the bind group itself is rebuilt
// lazily when the kernel's binding table changes, so reallocating a
// buffer and rebinding it is enough to make the next dispatch see it.
//
// Build with -tags nogpu to exclude this package and its cgo-free
// Vulkan loader from the binary.
package gpu
