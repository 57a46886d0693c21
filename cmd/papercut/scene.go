// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gogpu/papercut"
	"github.com/gogpu/papercut/material"
)

// scene is the JSON scene file. Zero fields keep the defaults; relative
// paths are resolved against the directory of the file.
type scene struct {
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	PaperWidth     float32       `json:"paperWidth"`
	PaperDistance  *float32      `json:"paperDistance"`
	LightDistance  *float32      `json:"lightDistance"`
	Light          string        `json:"light"`
	Intensity      *float32      `json:"intensity"`
	Env            [3]float32    `json:"env"`
	Perspective    bool          `json:"perspective"`
	CameraDistance float32       `json:"cameraDistance"`
	Exposure       *float32      `json:"exposure"`
	SPP            int           `json:"spp"`
	MaxFrames      int           `json:"maxFrames"`
	Material       *materialSpec `json:"material"`
	Layers         []layerSpec   `json:"layers"`
}

type layerSpec struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Material *materialSpec `json:"material"`
}

// materialSpec is "diffuse" with a reflectance, or "dipole" with any
// subset of the dipole parameters over the default paper.
type materialSpec struct {
	Kind        string          `json:"kind"`
	Reflectance float32         `json:"reflectance"`
	Dipole      json.RawMessage `json:"dipole"`
}

func (m *materialSpec) material() (material.Material, error) {
	switch m.Kind {
	case "diffuse":
		return material.NewDiffuse(m.Reflectance), nil
	case "dipole", "":
		d := material.DefaultDipole()
		if len(m.Dipole) > 0 {
			if err := json.Unmarshal(m.Dipole, &d); err != nil {
				return material.Material{}, fmt.Errorf("dipole parameters: %w", err)
			}
		}
		return material.NewDipole(d), nil
	default:
		return material.Material{}, fmt.Errorf("unknown material kind %q", m.Kind)
	}
}

func loadScene(path string) (*scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc scene
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	sc.Light = resolve(sc.Light)
	for i := range sc.Layers {
		sc.Layers[i].Path = resolve(sc.Layers[i].Path)
	}
	return &sc, nil
}

// config overlays the scene on cfg.
func (sc *scene) config(cfg papercut.Config) (papercut.Config, error) {
	if sc.Width > 0 && sc.Height > 0 {
		cfg.PaperSize = image.Pt(sc.Width, sc.Height)
	}
	if sc.PaperWidth != 0 {
		cfg.PaperWidth = sc.PaperWidth
	}
	if sc.PaperDistance != nil {
		cfg.PaperDistance = *sc.PaperDistance
	}
	if sc.LightDistance != nil {
		cfg.LightDistance = *sc.LightDistance
	}
	if sc.Intensity != nil {
		cfg.LightIntensity = *sc.Intensity
	}
	if sc.Exposure != nil {
		cfg.Exposure = *sc.Exposure
	}
	if sc.SPP > 0 {
		cfg.SPP = sc.SPP
	}
	if sc.MaxFrames > 0 {
		cfg.MaxFrames = sc.MaxFrames
	}
	cfg.EnvLight = sc.Env
	cfg.Perspective = sc.Perspective
	cfg.CameraDistance = sc.CameraDistance
	if sc.Material != nil {
		m, err := sc.Material.material()
		if err != nil {
			return cfg, err
		}
		cfg.Material = m
	}
	return cfg, cfg.Validate()
}

// apply builds the layer stack and light of the scene.
func (sc *scene) apply(s *papercut.Studio) error {
	if len(sc.Layers) > 0 {
		paths := make([]string, len(sc.Layers))
		for i, l := range sc.Layers {
			paths[i] = l.Path
		}
		if err := s.LoadLayers(paths); err != nil {
			return err
		}
	}
	for i, l := range sc.Layers {
		if l.Name != "" {
			if err := s.RenameLayer(i, l.Name); err != nil {
				return err
			}
		}
		if l.Material != nil {
			m, err := l.Material.material()
			if err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
			if err := s.SetLayerMaterial(i, m); err != nil {
				return err
			}
		}
	}
	if sc.Light != "" {
		return s.SetLightFile(sc.Light)
	}
	return nil
}
