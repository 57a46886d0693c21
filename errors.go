// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import "errors"

var (
	// ErrLastLayer is returned when an edit would leave the stack without
	// layers.
	ErrLastLayer = errors.New("papercut: the stack must keep at least one layer")

	// ErrLayerIndex is returned for a layer index outside the stack.
	ErrLayerIndex = errors.New("papercut: layer index out of range")

	// ErrInvalidConfig reports a Config or parameter the Studio cannot use.
	ErrInvalidConfig = errors.New("papercut: invalid configuration")

	// ErrClosed is returned by operations on a closed Studio.
	ErrClosed = errors.New("papercut: studio is closed")
)
