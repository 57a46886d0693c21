// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath returns the absolute, lexically clean, NFC form of path.
// Two spellings of the same file compare equal after normalization.
func NormalizePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return norm.NFC.String(filepath.Clean(path))
}
