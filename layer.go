// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import (
	"fmt"

	"github.com/gogpu/papercut/asset"
	"github.com/gogpu/papercut/material"
)

// Status is the load state of a layer or light file.
type Status int

// Asset states.
const (
	// StatusUnset means no file is attached.
	StatusUnset Status = iota
	// StatusOK means the file is decoded at the canonical size.
	StatusOK
	// StatusLoadFailed means the file could not be read or decoded.
	StatusLoadFailed
	// StatusSizeMismatch means the file decoded at another size.
	StatusSizeMismatch
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusOK:
		return "ok"
	case StatusLoadFailed:
		return "load failed"
	case StatusSizeMismatch:
		return "size mismatch"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Layer describes one sheet of the stack.
type Layer struct {
	// Index is the position in the stack; 0 faces the viewer.
	Index int
	Name  string
	// Path is the attached file as given, "" if none.
	Path string
	// ID is the asset identity, valid while a file is attached.
	ID       asset.LayerID
	Status   Status
	Material material.Material
}

type layerRecord struct {
	name     string
	path     string
	id       asset.LayerID
	status   Status
	material material.Material
}

// uniqueName returns name if no other layer uses it, otherwise the first
// free name(01), name(02), ... skip is the index of the layer being
// renamed, or -1.
func uniqueName(layers []*layerRecord, name string, skip int) string {
	taken := func(s string) bool {
		for i, l := range layers {
			if i != skip && l.name == s {
				return true
			}
		}
		return false
	}
	if name != "" && !taken(name) {
		return name
	}
	for i := 1; ; i++ {
		s := fmt.Sprintf("%s(%02d)", name, i)
		if !taken(s) {
			return s
		}
	}
}
