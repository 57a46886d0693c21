// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package asset tracks the image files a paper stack is built from.
//
// A Monitor maps layer identities and the single back light to file
// paths, keeps a decoded copy of each file, and watches the containing
// directories for changes. Nothing happens in the background: pending
// filesystem events are applied by Poll, which reloads the affected files
// and notifies subscribers before it returns.
//
// Failures never surface as errors. A file that cannot be read or decoded
// is stored as empty Pixels and the failure is logged; callers decide what
// an empty or differently sized image means for them.
//
//	m, err := asset.NewMonitor()
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	m.OnLayerChanged(func(ev asset.LayerChanged) {
//		px := m.LayerPixels(ev.ID)
//		// ...
//	})
//	id := m.AddLayer("layers/front.png")
//	for range ticker.C {
//		m.Poll()
//	}
package asset
