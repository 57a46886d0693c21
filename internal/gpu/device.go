// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // register the Vulkan backend

	"github.com/gogpu/papercut/gpucore"
)

// Synchronous submissions poll the queue until completed or timed out.
const (
	submitTimeout = 5 * time.Second
	pollInterval  = 50 * time.Microsecond
)

// ErrNoAdapter is returned when no GPU adapter can be found.
var ErrNoAdapter = errors.New("gpu: no GPU adapters found")

type buffer struct {
	label string
	buf   hal.Buffer
	size  uint64
}

type kernel struct {
	label     string
	workgroup [2]uint32
	table     *gpucore.BindingTable

	module         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	// bindGroup is rebuilt whenever the binding table changes.
	bindGroup hal.BindGroup
	bindGen   uint64
}

// Device implements gpucore.Device on a wgpu/hal device.
//
// Every Dispatch and ReadBuffer is one submission that is waited for, so
// callers observe results in program order.
type Device struct {
	mu sync.Mutex

	name     string
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool

	buffers map[gpucore.BufferID]*buffer
	kernels map[gpucore.KernelID]*kernel
	nextID  uint64
}

var _ gpucore.Device = (*Device)(nil)

// NewDevice opens the first discrete or integrated Vulkan adapter.
func NewDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	d := newDevice(selected.Info.Name, openDev.Device, openDev.Queue)
	d.instance = instance
	slogger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// NewSharedDevice runs kernels on a device owned by provider, e.g. a gogpu
// window. The provider must also expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue. Destroy leaves the shared device
// open.
func NewSharedDevice(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	d := newDevice("shared", device, queue)
	d.external = true
	slogger().Info("gpu: using shared device", "surface_format", provider.SurfaceFormat())
	return d, nil
}

func newDevice(name string, device hal.Device, queue hal.Queue) *Device {
	return &Device{
		name:    name,
		device:  device,
		queue:   queue,
		buffers: make(map[gpucore.BufferID]*buffer),
		kernels: make(map[gpucore.KernelID]*kernel),
	}
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return "gpu (" + d.name + ")" }

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if size == 0 || size%4 != 0 {
		return gpucore.InvalidID, &gpucore.AllocationError{Resource: label, Size: size, Err: gpucore.ErrInvalidSize}
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, &gpucore.AllocationError{Resource: label, Size: size, Err: err}
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{label: label, buf: buf, size: size}

	// Device memory is not guaranteed to be zeroed.
	if err := d.queue.WriteBuffer(buf, 0, make([]byte, size)); err != nil {
		d.device.DestroyBuffer(buf)
		delete(d.buffers, id)
		return gpucore.InvalidID, &gpucore.AllocationError{Resource: label, Size: size, Err: err}
	}
	slogger().Debug("gpu: buffer created", "label", label, "size", size)
	return id, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return
	}
	d.device.DestroyBuffer(b.buf)
	delete(d.buffers, id)
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("gpu: write buffer %d: %w", id, gpucore.ErrUnknownBuffer)
	}
	if offset%4 != 0 || len(data)%4 != 0 || offset+uint64(len(data)) > b.size {
		return fmt.Errorf("gpu: write %s [%d:+%d] of %d: %w", b.label, offset, len(data), b.size, gpucore.ErrOutOfRange)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(b.buf, offset, data); err != nil {
		return fmt.Errorf("gpu: write %s: %w", b.label, err)
	}
	return nil
}

// ReadBuffer implements gpucore.Device. The range is copied into a
// temporary staging buffer and read back after the copy completes.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("gpu: read buffer %d: %w", id, gpucore.ErrUnknownBuffer)
	}
	if offset%4 != 0 || size%4 != 0 || offset+size > b.size {
		return nil, fmt.Errorf("gpu: read %s [%d:+%d] of %d: %w", b.label, offset, size, b.size, gpucore.ErrOutOfRange)
	}
	if size == 0 {
		return nil, nil
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + ".staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, &gpucore.AllocationError{Resource: b.label + ".staging", Size: size, Err: err}
	}
	defer d.device.DestroyBuffer(staging)

	err = d.submit("readback", func(encoder hal.CommandEncoder) {
		encoder.CopyBufferToBuffer(b.buf, staging, []hal.BufferCopy{
			{SrcOffset: offset, DstOffset: 0, Size: size},
		})
	})
	if err != nil {
		return nil, err
	}

	mapping, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("gpu: map %s: %w", b.label, err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := d.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("gpu: unmap %s: %w", b.label, err)
	}
	return out, nil
}

// CreateKernel implements gpucore.Device.
func (d *Device) CreateKernel(desc *gpucore.KernelDesc) (gpucore.KernelID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.WGSL == "" {
		return gpucore.InvalidID, fmt.Errorf("gpu: kernel %s: %w", desc.Label, gpucore.ErrNoProgram)
	}
	table, err := gpucore.NewBindingTable(desc.Label, desc.Bindings)
	if err != nil {
		return gpucore.InvalidID, err
	}
	code, err := compileSPIRV(desc.Label, desc.WGSL)
	if err != nil {
		return gpucore.InvalidID, err
	}

	k := &kernel{label: desc.Label, workgroup: desc.WorkgroupSize, table: table}
	if err := d.createPipeline(k, code); err != nil {
		destroyKernel(d.device, k)
		return gpucore.InvalidID, fmt.Errorf("gpu: kernel %s: %w", desc.Label, err)
	}
	id := gpucore.KernelID(d.newID())
	d.kernels[id] = k
	slogger().Debug("gpu: kernel created", "label", desc.Label, "spirv_words", len(code))
	return id, nil
}

func (d *Device) createPipeline(k *kernel, code []uint32) error {
	var err error
	k.module, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  k.label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	k.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   k.label + "_layout",
		Entries: layoutEntries(k.table.Bindings()),
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	k.pipelineLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            k.label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{k.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	k.pipeline, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  k.label,
		Layout: k.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     k.module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	return nil
}

// DestroyKernel implements gpucore.Device.
func (d *Device) DestroyKernel(id gpucore.KernelID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.kernels[id]
	if !ok {
		return
	}
	destroyKernel(d.device, k)
	delete(d.kernels, id)
}

// Bind implements gpucore.Device.
func (d *Device) Bind(id gpucore.KernelID, name string, buf gpucore.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.kernels[id]
	if !ok {
		return fmt.Errorf("gpu: bind %s: %w", name, gpucore.ErrUnknownKernel)
	}
	return k.table.Set(name, buf)
}

// Dispatch implements gpucore.Device.
func (d *Device) Dispatch(id gpucore.KernelID, width, height uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.kernels[id]
	if !ok {
		return fmt.Errorf("gpu: dispatch: %w", gpucore.ErrUnknownKernel)
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("gpu: dispatch %s %dx%d: %w", k.label, width, height, gpucore.ErrInvalidSize)
	}
	if err := d.updateBindGroup(k); err != nil {
		return err
	}

	desc := gpucore.KernelDesc{WorkgroupSize: k.workgroup}
	x, y := desc.Workgroups(width, height)
	return d.submit(k.label, func(encoder hal.CommandEncoder) {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: k.label})
		pass.SetPipeline(k.pipeline)
		pass.SetBindGroup(0, k.bindGroup, nil)
		pass.Dispatch(x, y, 1)
		pass.End()
	})
}

// updateBindGroup recreates the kernel's bind group when bindings changed
// since the last dispatch.
func (d *Device) updateBindGroup(k *kernel) error {
	ids, err := k.table.Resolve(func(b gpucore.BufferID) bool {
		_, ok := d.buffers[b]
		return ok
	})
	if err != nil {
		return err
	}
	if k.bindGroup != nil && k.bindGen == k.table.Generation() {
		return nil
	}
	if k.bindGroup != nil {
		d.device.DestroyBindGroup(k.bindGroup)
		k.bindGroup = nil
	}

	entries := make([]gputypes.BindGroupEntry, len(ids))
	for i, id := range ids {
		b := d.buffers[id]
		entries[i] = gputypes.BindGroupEntry{
			Binding:  uint32(i), //nolint:gosec // binding count is tiny
			Resource: gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: 0, Size: b.size},
		}
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   k.label + "_bg",
		Layout:  k.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("gpu: bind group %s: %w", k.label, err)
	}
	k.bindGroup = bg
	k.bindGen = k.table.Generation()
	return nil
}

// submit records one command buffer, submits it and waits until the
// queue reports it completed.
func (d *Device) submit(label string, record func(hal.CommandEncoder)) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("gpu: %s: create encoder: %w", label, err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("gpu: %s: begin encoding: %w", label, err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: %s: end encoding: %w", label, err)
	}

	index, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("gpu: %s: submit: %w", label, err)
	}
	deadline := time.Now().Add(submitTimeout)
	for d.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			// The command buffer may still be in flight; leak it.
			return fmt.Errorf("gpu: %s: submission %d not completed after %v", label, index, submitTimeout)
		}
		time.Sleep(pollInterval)
	}
	d.device.FreeCommandBuffer(cmdBuf)
	return nil
}

// Destroy implements gpucore.Device. A shared device is left open.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return
	}
	for id, k := range d.kernels {
		destroyKernel(d.device, k)
		delete(d.kernels, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}
