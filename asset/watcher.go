// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Op describes what happened to a file.
type Op uint32

// File operations reported by a Watcher.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	var s string
	for _, o := range []struct {
		op   Op
		name string
	}{{OpCreate, "create"}, {OpWrite, "write"}, {OpRemove, "remove"}, {OpRename, "rename"}} {
		if op&o.op != 0 {
			if s != "" {
				s += "|"
			}
			s += o.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Watcher watches directories (non-recursively) and queues file events
// until they are drained. Implementations must be safe for events that
// arrive on other goroutines; Drain is only called from the goroutine
// that owns the Monitor.
type Watcher interface {
	Add(dir string) error
	Remove(dir string) error
	// Drain calls fn for every queued event and clears the queue.
	// It never blocks waiting for new events.
	Drain(fn func(dir, name string, op Op))
	Close() error
}

type event struct {
	dir, name string
	op        Op
}

// FSWatcher is the fsnotify-backed Watcher.
type FSWatcher struct {
	w *fsnotify.Watcher

	mu      sync.Mutex
	pending []event

	done chan struct{}
}

var _ Watcher = (*FSWatcher)(nil)

// NewFSWatcher starts a watcher. Close must be called to stop it.
func NewFSWatcher() (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("asset: create watcher: %w", err)
	}
	fw := &FSWatcher{w: w, done: make(chan struct{})}
	go fw.run()
	return fw, nil
}

func (fw *FSWatcher) run() {
	defer close(fw.done)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			op := convertOp(ev.Op)
			if op == 0 {
				continue
			}
			fw.mu.Lock()
			fw.pending = append(fw.pending, event{
				dir:  filepath.Dir(ev.Name),
				name: filepath.Base(ev.Name),
				op:   op,
			})
			fw.mu.Unlock()
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			slogger().Warn("asset: watcher error", "err", err)
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= OpWrite
	}
	if op.Has(fsnotify.Remove) {
		out |= OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= OpRename
	}
	return out
}

// Add implements Watcher.
func (fw *FSWatcher) Add(dir string) error { return fw.w.Add(dir) }

// Remove implements Watcher.
func (fw *FSWatcher) Remove(dir string) error { return fw.w.Remove(dir) }

// Drain implements Watcher.
func (fw *FSWatcher) Drain(fn func(dir, name string, op Op)) {
	fw.mu.Lock()
	events := fw.pending
	fw.pending = nil
	fw.mu.Unlock()

	for _, ev := range events {
		fn(ev.dir, ev.name, ev.op)
	}
}

// Close implements Watcher.
func (fw *FSWatcher) Close() error {
	err := fw.w.Close()
	<-fw.done
	return err
}
