// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/cpu"
)

// ErrNoGPU is returned when a GPU device is required but no backend is
// registered.
var ErrNoGPU = errors.New("papercut: no GPU backend registered")

// DeviceKind selects the compute device of a Studio.
type DeviceKind string

// Device kinds.
const (
	// DeviceAuto uses the registered GPU backend and falls back to the CPU
	// when it cannot open a device.
	DeviceAuto DeviceKind = "auto"
	// DeviceGPU requires the GPU backend.
	DeviceGPU DeviceKind = "gpu"
	// DeviceCPU runs kernels on the host.
	DeviceCPU DeviceKind = "cpu"
)

// GPUBackend opens GPU compute devices.
//
// Implementations are provided by GPU backend packages. Users opt in via
// blank import:
//
//	import _ "github.com/gogpu/papercut/gpu" // enables the Vulkan device
type GPUBackend interface {
	// Name returns the backend name, e.g. "wgpu".
	Name() string

	// Open creates a device with its own GPU instance.
	Open() (gpucore.Device, error)

	// OpenShared creates a device on the GPU device of provider. The
	// shared device outlives the returned one.
	OpenShared(provider gpucontext.DeviceProvider) (gpucore.Device, error)
}

var (
	backendMu  sync.RWMutex
	gpuBackend GPUBackend
)

// RegisterGPUBackend registers the GPU backend. Subsequent calls replace
// the previous one.
func RegisterGPUBackend(b GPUBackend) {
	backendMu.Lock()
	gpuBackend = b
	backendMu.Unlock()
	if b != nil {
		propagateLogger(b, Logger())
	}
}

// RegisteredGPUBackend returns the registered backend, or nil.
func RegisteredGPUBackend() GPUBackend {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return gpuBackend
}

func openGPU(provider gpucontext.DeviceProvider) (gpucore.Device, error) {
	b := RegisteredGPUBackend()
	if b == nil {
		return nil, ErrNoGPU
	}
	if provider != nil {
		return b.OpenShared(provider)
	}
	return b.Open()
}

// openDevice opens the device selected by kind.
func openDevice(kind DeviceKind, workers int, provider gpucontext.DeviceProvider) (gpucore.Device, error) {
	switch kind {
	case DeviceCPU:
		return cpu.NewDevice(workers), nil
	case DeviceGPU:
		dev, err := openGPU(provider)
		if err != nil {
			return nil, fmt.Errorf("papercut: open GPU device: %w", err)
		}
		return dev, nil
	case DeviceAuto, "":
		dev, err := openGPU(provider)
		if err == nil {
			return dev, nil
		}
		Logger().Warn("papercut: GPU device not available, using CPU", "err", err)
		return cpu.NewDevice(workers), nil
	default:
		return nil, fmt.Errorf("papercut: device %q: %w", kind, ErrInvalidConfig)
	}
}
