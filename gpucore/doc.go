// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the compute device abstraction used by the
// render stages.
//
// A [Device] owns buffers and compute kernels addressed by opaque IDs.
// Kernels declare their inputs as an ordered list of named [Binding]s;
// callers attach buffers to those names with [Device.Bind] and run the
// kernel over a 2D grid with [Device.Dispatch]. Binding names are the
// stable contract between a render stage and its kernel: a stage that
// reallocates a buffer must bind the new ID again, and a dispatch that
// still refers to a destroyed buffer fails with [ErrStaleBinding].
//
// Two implementations exist:
//
//	+------------------+         +-------------------+
//	|   internal/gpu   |         |   internal/cpu    |
//	| wgpu/hal + WGSL  |         | Go HostProgram on |
//	| (naga → SPIR-V)  |         |  a worker pool    |
//	+------------------+         +-------------------+
//
// Every [KernelDesc] therefore carries both a WGSL source and a
// [HostProgram] with identical semantics.
//
// # Synchronisation
//
// Dispatch, WriteBuffer and ReadBuffer are synchronous: when they return,
// the work is complete and visible to the next call. Devices are not safe
// for concurrent use.
//
// # Errors
//
// Allocation failures are reported as [*AllocationError] naming the
// resource. They are fatal for the stage that requested the allocation.
package gpucore
