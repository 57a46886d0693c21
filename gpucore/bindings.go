// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"
	"unsafe"
)

// BindingTable tracks which buffer is attached to each named binding of a
// kernel. Device implementations share it so that binding semantics and
// stale-binding detection are identical on every device.
type BindingTable struct {
	label    string
	bindings []Binding
	index    map[string]int
	bound    []BufferID
	gen      uint64
}

// NewBindingTable creates an empty table for the given bindings.
func NewBindingTable(label string, bindings []Binding) (*BindingTable, error) {
	t := &BindingTable{
		label:    label,
		bindings: bindings,
		index:    make(map[string]int, len(bindings)),
		bound:    make([]BufferID, len(bindings)),
	}
	for i, b := range bindings {
		if _, dup := t.index[b.Name]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateBinding, label, b.Name)
		}
		t.index[b.Name] = i
	}
	return t, nil
}

// Bindings returns the declared bindings in binding order.
func (t *BindingTable) Bindings() []Binding { return t.bindings }

// Set attaches buf to the binding called name.
func (t *BindingTable) Set(name string, buf BufferID) error {
	i, ok := t.index[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownBinding, t.label, name)
	}
	if t.bound[i] != buf {
		t.bound[i] = buf
		t.gen++
	}
	return nil
}

// Generation changes every time a binding changes. Devices use it to
// invalidate cached bind groups.
func (t *BindingTable) Generation() uint64 { return t.gen }

// Resolve returns the bound buffers in binding order. alive reports
// whether a buffer still exists.
func (t *BindingTable) Resolve(alive func(BufferID) bool) ([]BufferID, error) {
	for i, id := range t.bound {
		name := t.bindings[i].Name
		if id == InvalidID {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnboundSlot, t.label, name)
		}
		if !alive(id) {
			return nil, fmt.Errorf("%w: %s.%s (buffer %d)", ErrStaleBinding, t.label, name, id)
		}
	}
	return t.bound, nil
}

// HostBindings gives a HostProgram access to its bound buffers as 32-bit
// words, indexed by binding number.
type HostBindings struct {
	buffers [][]uint32
}

// NewHostBindings wraps buffers given in binding order.
func NewHostBindings(buffers [][]uint32) *HostBindings {
	return &HostBindings{buffers: buffers}
}

// Words returns binding i as 32-bit words.
func (b *HostBindings) Words(i int) []uint32 { return b.buffers[i] }

// Floats returns binding i reinterpreted as float32 values.
func (b *HostBindings) Floats(i int) []float32 {
	w := b.buffers[i]
	if len(w) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&w[0])), len(w))
}
