// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// KernelID is an opaque handle to a compute kernel.
type KernelID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 7
)

// Common usage combinations.
const (
	// UsageConstants is used for per-dispatch parameter blocks.
	UsageConstants = BufferUsageUniform | BufferUsageCopyDst

	// UsageStorage is used for kernel inputs and outputs that are also
	// uploaded from and read back to the host.
	UsageStorage = BufferUsageStorage | BufferUsageCopyDst | BufferUsageCopySrc
)

// BindingType specifies the type of a kernel binding.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeStorageBuffer is a storage buffer binding (read-write).
	BindingTypeStorageBuffer

	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer
)

// String returns a short name for the binding type.
func (t BindingType) String() string {
	switch t {
	case BindingTypeUniformBuffer:
		return "uniform"
	case BindingTypeStorageBuffer:
		return "storage"
	case BindingTypeReadOnlyStorageBuffer:
		return "read-only-storage"
	default:
		return "unknown"
	}
}

// Binding describes one kernel input. The binding number is the index of
// the entry in KernelDesc.Bindings.
type Binding struct {
	Name string
	Type BindingType
}

// HostProgram is the CPU implementation of a kernel. It is called once for
// every row of the dispatch grid, possibly from several goroutines at once;
// rows must not write to memory owned by other rows.
type HostProgram func(row, width uint32, b *HostBindings)

// KernelDesc describes a compute kernel.
type KernelDesc struct {
	// Label is used in diagnostics.
	Label string

	// Bindings lists the kernel inputs in binding order.
	Bindings []Binding

	// WGSL is the shader source used by GPU devices. The entry point is
	// "main" with a workgroup size of WorkgroupSize.
	WGSL string

	// WorkgroupSize is the 2D workgroup size declared in WGSL.
	// Zero means 8x8.
	WorkgroupSize [2]uint32

	// Host is the program run by the CPU device.
	Host HostProgram
}

// Workgroups returns the number of workgroups needed to cover a
// width x height grid.
func (d *KernelDesc) Workgroups(width, height uint32) (x, y uint32) {
	wx, wy := d.WorkgroupSize[0], d.WorkgroupSize[1]
	if wx == 0 {
		wx = 8
	}
	if wy == 0 {
		wy = 8
	}
	return (width + wx - 1) / wx, (height + wy - 1) / wy
}

// Device runs compute kernels over device buffers.
type Device interface {
	// Name identifies the device in logs, e.g. "cpu" or the adapter name.
	Name() string

	// CreateBuffer allocates a zero-filled buffer of size bytes.
	// Failures are reported as *AllocationError.
	CreateBuffer(label string, size uint64, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a buffer. Bindings that still refer to it
	// become stale.
	DestroyBuffer(id BufferID)

	// WriteBuffer uploads data at offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer downloads size bytes at offset.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// CreateKernel compiles a kernel.
	CreateKernel(desc *KernelDesc) (KernelID, error)

	// DestroyKernel releases a kernel.
	DestroyKernel(id KernelID)

	// Bind attaches buf to the kernel binding called name.
	Bind(kernel KernelID, name string, buf BufferID) error

	// Dispatch runs the kernel once for every cell of a width x height
	// grid and waits for completion.
	Dispatch(kernel KernelID, width, height uint32) error

	// Destroy releases every resource owned by the device.
	Destroy()
}
