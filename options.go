// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/papercut/asset"
	"github.com/gogpu/papercut/gpucore"
)

// Option configures a Studio during creation.
//
// Example:
//
//	// Default device selection
//	s, err := papercut.New(papercut.DefaultConfig())
//
//	// Share the GPU of a gogpu window
//	s, err := papercut.New(cfg, papercut.WithDeviceProvider(app))
type Option func(*studioOptions)

type studioOptions struct {
	device   gpucore.Device
	monitor  *asset.Monitor
	provider gpucontext.DeviceProvider
}

// WithDevice runs the Studio on dev instead of opening a device. The
// caller keeps ownership; Close does not destroy it.
func WithDevice(dev gpucore.Device) Option {
	return func(o *studioOptions) {
		o.device = dev
	}
}

// WithMonitor uses m to track asset files. The caller keeps ownership;
// Close does not close it.
func WithMonitor(m *asset.Monitor) Option {
	return func(o *studioOptions) {
		o.monitor = m
	}
}

// WithDeviceProvider opens the GPU device on the device of provider,
// typically a gogpu window, and matches the display byte order to the
// provider's surface format. The provider must also expose its HAL
// device, see package gpu.
func WithDeviceProvider(provider gpucontext.DeviceProvider) Option {
	return func(o *studioOptions) {
		o.provider = provider
	}
}
