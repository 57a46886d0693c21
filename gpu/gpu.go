// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package gpu registers the wgpu/hal compute device with papercut.
//
// Import this package to run the light-box kernels on a Vulkan GPU. The
// kernels are compiled from WGSL to SPIR-V with naga when a Studio opens
// its device.
//
// If no adapter is available, a Studio configured with
// papercut.DeviceAuto logs a warning and falls back to the CPU device.
//
// Usage:
//
//	import _ "github.com/gogpu/papercut/gpu" // enable GPU rendering
package gpu

import (
	"log/slog"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/papercut"
	"github.com/gogpu/papercut/gpucore"
	gpuimpl "github.com/gogpu/papercut/internal/gpu"
)

func init() {
	papercut.RegisterGPUBackend(backend{})
}

type backend struct{}

func (backend) Name() string { return "wgpu" }

func (backend) Open() (gpucore.Device, error) {
	dev, err := gpuimpl.NewDevice()
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (backend) OpenShared(provider gpucontext.DeviceProvider) (gpucore.Device, error) {
	dev, err := gpuimpl.NewSharedDevice(provider)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (backend) SetLogger(l *slog.Logger) { gpuimpl.SetLogger(l) }

// NewDevice opens a GPU device directly, for use with
// papercut.WithDevice.
func NewDevice() (gpucore.Device, error) { return backend{}.Open() }
