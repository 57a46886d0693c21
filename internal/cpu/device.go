// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cpu implements gpucore.Device on the host. Kernels run their
// HostProgram once per grid row on a worker pool.
package cpu

import (
	"fmt"

	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/internal/parallel"
)

// MaxBufferSize bounds a single allocation.
const MaxBufferSize = 1 << 30

type buffer struct {
	label string
	words []uint32
	size  uint64
}

type kernel struct {
	label   string
	program gpucore.HostProgram
	table   *gpucore.BindingTable
}

// Device is the host compute device.
type Device struct {
	pool    *parallel.WorkerPool
	buffers map[gpucore.BufferID]*buffer
	kernels map[gpucore.KernelID]*kernel
	nextID  uint64
}

var _ gpucore.Device = (*Device)(nil)

// NewDevice creates a host device using the given number of workers
// (0 means GOMAXPROCS).
func NewDevice(workers int) *Device {
	return &Device{
		pool:    parallel.NewWorkerPool(workers),
		buffers: make(map[gpucore.BufferID]*buffer),
		kernels: make(map[gpucore.KernelID]*kernel),
	}
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return fmt.Sprintf("cpu (%d workers)", d.pool.Workers()) }

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(label string, size uint64, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size == 0 || size > MaxBufferSize {
		return gpucore.InvalidID, &gpucore.AllocationError{Resource: label, Size: size, Err: gpucore.ErrInvalidSize}
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{
		label: label,
		words: make([]uint32, (size+3)/4),
		size:  size,
	}
	return id, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	delete(d.buffers, id)
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("cpu: write buffer %d: %w", id, gpucore.ErrUnknownBuffer)
	}
	if offset%4 != 0 || len(data)%4 != 0 || offset+uint64(len(data)) > b.size {
		return fmt.Errorf("cpu: write %s [%d:+%d] of %d: %w", b.label, offset, len(data), b.size, gpucore.ErrOutOfRange)
	}
	copy(b.words[offset/4:], gpucore.Uint32s(data))
	return nil
}

// ReadBuffer implements gpucore.Device.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("cpu: read buffer %d: %w", id, gpucore.ErrUnknownBuffer)
	}
	if offset%4 != 0 || size%4 != 0 || offset+size > b.size {
		return nil, fmt.Errorf("cpu: read %s [%d:+%d] of %d: %w", b.label, offset, size, b.size, gpucore.ErrOutOfRange)
	}
	return gpucore.AppendUint32s(make([]byte, 0, size), b.words[offset/4:(offset+size)/4]...), nil
}

// CreateKernel implements gpucore.Device.
func (d *Device) CreateKernel(desc *gpucore.KernelDesc) (gpucore.KernelID, error) {
	if desc.Host == nil {
		return gpucore.InvalidID, fmt.Errorf("cpu: kernel %s: %w", desc.Label, gpucore.ErrNoProgram)
	}
	table, err := gpucore.NewBindingTable(desc.Label, desc.Bindings)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.KernelID(d.newID())
	d.kernels[id] = &kernel{label: desc.Label, program: desc.Host, table: table}
	return id, nil
}

// DestroyKernel implements gpucore.Device.
func (d *Device) DestroyKernel(id gpucore.KernelID) {
	delete(d.kernels, id)
}

// Bind implements gpucore.Device.
func (d *Device) Bind(id gpucore.KernelID, name string, buf gpucore.BufferID) error {
	k, ok := d.kernels[id]
	if !ok {
		return fmt.Errorf("cpu: bind %s: %w", name, gpucore.ErrUnknownKernel)
	}
	return k.table.Set(name, buf)
}

// Dispatch implements gpucore.Device.
func (d *Device) Dispatch(id gpucore.KernelID, width, height uint32) error {
	k, ok := d.kernels[id]
	if !ok {
		return fmt.Errorf("cpu: dispatch: %w", gpucore.ErrUnknownKernel)
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("cpu: dispatch %s %dx%d: %w", k.label, width, height, gpucore.ErrInvalidSize)
	}
	ids, err := k.table.Resolve(func(b gpucore.BufferID) bool {
		_, ok := d.buffers[b]
		return ok
	})
	if err != nil {
		return err
	}

	words := make([][]uint32, len(ids))
	for i, b := range ids {
		words[i] = d.buffers[b].words
	}
	hb := gpucore.NewHostBindings(words)

	d.pool.ForRows(height, func(row uint32) {
		k.program(row, width, hb)
	})
	return nil
}

// Destroy implements gpucore.Device.
func (d *Device) Destroy() {
	d.pool.Close()
	clear(d.buffers)
	clear(d.kernels)
}

// Stats reports the number of live resources.
func (d *Device) Stats() (buffers, kernels int) {
	return len(d.buffers), len(d.kernels)
}
