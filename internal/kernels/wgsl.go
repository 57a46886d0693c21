// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import _ "embed"

//go:embed shaders/trace.wgsl
var traceWGSL string

//go:embed shaders/accumulate.wgsl
var accumulateWGSL string

//go:embed shaders/tonemap.wgsl
var toneMapWGSL string
