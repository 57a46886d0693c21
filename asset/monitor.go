// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"os"
	"path/filepath"
	"slices"
)

// LayerID identifies a tracked layer file. IDs are never reused.
type LayerID uint64

// LayerChanged is sent when a layer file was reloaded.
type LayerChanged struct {
	ID LayerID
}

// LightChanged is sent when the light file was reloaded.
type LightChanged struct{}

// Option configures a Monitor.
type Option func(*Monitor)

// WithWatcher replaces the default fsnotify watcher. The monitor takes
// ownership and closes it in Close.
func WithWatcher(w Watcher) Option {
	return func(m *Monitor) { m.watcher = w }
}

// WithDecoder replaces the default image decoder.
func WithDecoder(d Decoder) Option {
	return func(m *Monitor) { m.decoder = d }
}

// file is one tracked path. Several layers may share a file.
type file struct {
	ids    []LayerID
	pixels Pixels
}

// Monitor owns the mapping from layer and light identities to files and
// their decoded pixels.
//
// Monitor is not safe for concurrent use. All methods, and the
// subscriber callbacks run by Poll, execute on the caller's goroutine.
type Monitor struct {
	watcher Watcher
	decoder Decoder

	nextID LayerID
	layers map[LayerID]string
	files  map[string]*file

	lightPath string
	light     Pixels

	watched map[string]bool

	layerSubs []func(LayerChanged)
	lightSubs []func(LightChanged)
}

// NewMonitor creates a monitor. Without WithWatcher it starts an
// fsnotify watcher, which is the only way NewMonitor can fail.
func NewMonitor(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		layers:  make(map[LayerID]string),
		files:   make(map[string]*file),
		watched: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.decoder == nil {
		m.decoder = ImageDecoder{}
	}
	if m.watcher == nil {
		w, err := NewFSWatcher()
		if err != nil {
			return nil, err
		}
		m.watcher = w
	}
	return m, nil
}

// AddLayer starts tracking path under a fresh identity and decodes it.
func (m *Monitor) AddLayer(path string) LayerID {
	path = NormalizePath(path)
	m.nextID++
	id := m.nextID
	m.layers[id] = path

	f, ok := m.files[path]
	if !ok {
		f = &file{}
		m.files[path] = f
	}
	f.ids = append(f.ids, id)

	m.updateWatches()
	m.reloadLayerFile(path, f)
	return id
}

// RemoveLayer stops tracking id. Unknown IDs are ignored.
func (m *Monitor) RemoveLayer(id LayerID) {
	path, ok := m.layers[id]
	if !ok {
		return
	}
	delete(m.layers, id)
	f := m.files[path]
	f.ids = slices.DeleteFunc(f.ids, func(x LayerID) bool { return x == id })
	if len(f.ids) == 0 {
		delete(m.files, path)
	}
	m.updateWatches()
}

// SetLight tracks path as the back light and decodes it.
func (m *Monitor) SetLight(path string) {
	m.lightPath = NormalizePath(path)
	m.updateWatches()
	m.reloadLight()
}

// ClearLight stops tracking the back light.
func (m *Monitor) ClearLight() {
	m.lightPath = ""
	m.light = Pixels{}
	m.updateWatches()
}

// LayerPixels returns the decoded pixels of id; empty if the file could
// not be decoded or id is unknown.
func (m *Monitor) LayerPixels(id LayerID) Pixels {
	path, ok := m.layers[id]
	if !ok {
		return Pixels{}
	}
	return m.files[path].pixels
}

// LayerPath returns the normalized path of id.
func (m *Monitor) LayerPath(id LayerID) (string, bool) {
	path, ok := m.layers[id]
	return path, ok
}

// LightPixels returns the decoded back light; empty when no light is set
// or it could not be decoded.
func (m *Monitor) LightPixels() Pixels { return m.light }

// LightPath returns the normalized light path, or "" when none is set.
func (m *Monitor) LightPath() string { return m.lightPath }

// OnLayerChanged registers fn to run for every reloaded layer.
func (m *Monitor) OnLayerChanged(fn func(LayerChanged)) {
	m.layerSubs = append(m.layerSubs, fn)
}

// OnLightChanged registers fn to run when the light is reloaded.
func (m *Monitor) OnLightChanged(fn func(LightChanged)) {
	m.lightSubs = append(m.lightSubs, fn)
}

// Poll applies pending file events. Each affected file is reloaded once
// however many events it received, and each affected identity is
// notified once, in ID order with the light last. Poll never blocks.
func (m *Monitor) Poll() {
	changed := make(map[string]bool)
	m.watcher.Drain(func(dir, name string, _ Op) {
		changed[NormalizePath(filepath.Join(dir, name))] = true
	})
	if len(changed) == 0 {
		return
	}

	var ids []LayerID
	for path := range changed {
		f, ok := m.files[path]
		if !ok {
			continue
		}
		m.reloadLayerFile(path, f)
		ids = append(ids, f.ids...)
	}
	lightChanged := m.lightPath != "" && changed[m.lightPath]
	if lightChanged {
		m.reloadLight()
	}

	slices.Sort(ids)
	for _, id := range ids {
		ev := LayerChanged{ID: id}
		for _, fn := range m.layerSubs {
			fn(ev)
		}
	}
	if lightChanged {
		for _, fn := range m.lightSubs {
			fn(LightChanged{})
		}
	}
}

// Close stops watching. The monitor must not be used afterwards.
func (m *Monitor) Close() error {
	return m.watcher.Close()
}

func (m *Monitor) reloadLayerFile(path string, f *file) {
	px, err := m.decoder.DecodeGray(path)
	if err != nil {
		slogger().Warn("asset: layer not loaded", "path", path, "err", err)
		px = Pixels{}
	}
	f.pixels = px
}

func (m *Monitor) reloadLight() {
	px, err := m.decoder.DecodeRGB(m.lightPath)
	if err != nil {
		slogger().Warn("asset: light not loaded", "path", m.lightPath, "err", err)
		px = Pixels{}
	}
	m.light = px
}

// updateWatches makes the watched directory set equal to the parent
// directories of all tracked files.
func (m *Monitor) updateWatches() {
	want := make(map[string]bool, len(m.files)+1)
	for path := range m.files {
		want[filepath.Dir(path)] = true
	}
	if m.lightPath != "" {
		want[filepath.Dir(m.lightPath)] = true
	}

	for dir := range m.watched {
		if want[dir] {
			continue
		}
		if err := m.watcher.Remove(dir); err != nil {
			slogger().Debug("asset: unwatch failed", "dir", dir, "err", err)
		}
		delete(m.watched, dir)
	}
	for dir := range want {
		if m.watched[dir] {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slogger().Warn("asset: create watch directory", "dir", dir, "err", err)
			continue
		}
		if err := m.watcher.Add(dir); err != nil {
			slogger().Warn("asset: watch failed", "dir", dir, "err", err)
			continue
		}
		m.watched[dir] = true
		slogger().Debug("asset: watching", "dir", dir)
	}
}

// WatchedDirs returns the watched directories in sorted order.
func (m *Monitor) WatchedDirs() []string {
	dirs := make([]string, 0, len(m.watched))
	for dir := range m.watched {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)
	return dirs
}
