// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownBuffer is returned for buffer IDs the device never created
	// or already destroyed.
	ErrUnknownBuffer = errors.New("gpucore: unknown buffer")

	// ErrUnknownKernel is returned for kernel IDs the device does not own.
	ErrUnknownKernel = errors.New("gpucore: unknown kernel")

	// ErrUnknownBinding is returned when binding a name the kernel does
	// not declare.
	ErrUnknownBinding = errors.New("gpucore: kernel has no such binding")

	// ErrUnboundSlot is returned by Dispatch when a declared binding has
	// never been bound.
	ErrUnboundSlot = errors.New("gpucore: binding not bound")

	// ErrStaleBinding is returned by Dispatch when a binding refers to a
	// buffer that has been destroyed since it was bound.
	ErrStaleBinding = errors.New("gpucore: binding refers to a destroyed buffer")

	// ErrInvalidSize reports a zero or inconsistent size.
	ErrInvalidSize = errors.New("gpucore: invalid size")

	// ErrOutOfRange reports an access past the end of a buffer.
	ErrOutOfRange = errors.New("gpucore: access out of buffer range")

	// ErrDuplicateBinding is returned by CreateKernel when two bindings
	// share a name.
	ErrDuplicateBinding = errors.New("gpucore: duplicate binding name")

	// ErrNoProgram is returned when a device cannot run a kernel because
	// the description lacks the program form it needs.
	ErrNoProgram = errors.New("gpucore: kernel has no program for this device")
)

// AllocationError reports a failed resource allocation.
type AllocationError struct {
	// Resource names the resource, e.g. "Tracer.Output".
	Resource string
	// Size is the requested size in bytes.
	Size uint64
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("gpucore: allocate %s (%d bytes): %v", e.Resource, e.Size, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }
