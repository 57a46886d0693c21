// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/papercut"
	"github.com/gogpu/papercut/material"
)

func writeScene(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScene(t *testing.T) {
	path := writeScene(t, `{
		"width": 64, "height": 32,
		"paperDistance": 0,
		"light": "light.png",
		"intensity": 3,
		"env": [0.1, 0.2, 0.3],
		"spp": 4,
		"material": {"kind": "dipole", "dipole": {"thickness": 0.5}},
		"layers": [
			{"name": "front", "path": "front.png", "material": {"kind": "diffuse", "reflectance": 0.4}},
			{"path": "/abs/back.png"}
		]
	}`)
	sc, err := loadScene(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if sc.Light != filepath.Join(dir, "light.png") {
		t.Errorf("light = %s", sc.Light)
	}
	if sc.Layers[0].Path != filepath.Join(dir, "front.png") || sc.Layers[1].Path != "/abs/back.png" {
		t.Errorf("layer paths = %s, %s", sc.Layers[0].Path, sc.Layers[1].Path)
	}

	cfg, err := sc.config(papercut.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PaperSize != image.Pt(64, 32) || cfg.SPP != 4 || cfg.LightIntensity != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PaperDistance != 0 {
		t.Errorf("explicit zero paper distance lost: %v", cfg.PaperDistance)
	}
	if cfg.LightDistance != papercut.DefaultConfig().LightDistance {
		t.Errorf("missing light distance did not keep the default")
	}
	want := material.DefaultDipole()
	want.Thickness = 0.5
	if cfg.Material != material.NewDipole(want) {
		t.Errorf("material = %+v", cfg.Material)
	}
	m, err := sc.Layers[0].Material.material()
	if err != nil || m != material.NewDiffuse(0.4) {
		t.Errorf("layer material = %+v, %v", m, err)
	}
}

func TestSceneErrors(t *testing.T) {
	tests := []struct {
		name, body string
	}{
		{"syntax", `{"width": `},
		{"unknown material", `{"material": {"kind": "glass"}}`},
		{"bad dipole", `{"material": {"kind": "dipole", "dipole": {"thickness": "thick"}}}`},
		{"invalid config", `{"paperWidth": 2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := loadScene(writeScene(t, tt.body))
			if err == nil {
				_, err = sc.config(papercut.DefaultConfig())
			}
			if err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRunWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.png")
	o := options{out: out, device: "cpu", workers: 1, frames: 2}
	if err := run(t.Context(), o, papercut.Logger()); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(out); err != nil || fi.Size() == 0 {
		t.Errorf("output not written: %v", err)
	}
}

func TestMainCode(t *testing.T) {
	t.Cleanup(func() { papercut.SetLogger(nil) })
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"renders", []string{"-device", "cpu", "-workers", "1", "-frames", "1", "-out", filepath.Join(dir, "ok.png")}, 0},
		{"help", []string{"-h"}, 0},
		{"bad flag", []string{"-nope"}, 2},
		{"missing scene", []string{"-scene", filepath.Join(dir, "none.json")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := mainCode(tt.args, &stderr); got != tt.want {
				t.Errorf("exit code = %d, want %d; stderr:\n%s", got, tt.want, stderr.String())
			}
		})
	}
}
