// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command papercut renders a stack of paper cut layers lit from behind.
//
//	papercut -scene box.json -out box.png
//	papercut -light light.png -out box.png front.png middle.png back.png
//
// With -watch it keeps running, re-rendering whenever a layer or light
// file changes and writing the output each time the picture converges.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/papercut"
	_ "github.com/gogpu/papercut/gpu" // enables the GPU device
)

type options struct {
	scene   string
	light   string
	out     string
	device  string
	workers int
	frames  int
	spp     int
	watch   bool
	verbose bool
	layers  []string
}

func main() {
	os.Exit(mainCode(os.Args[1:], os.Stderr))
}

// mainCode runs the command and returns the process exit code once the
// deferred cleanups have run.
func mainCode(args []string, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("papercut", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.scene, "scene", "", "JSON scene file")
	fs.StringVar(&o.light, "light", "", "back light image (overrides the scene)")
	fs.StringVar(&o.out, "out", "papercut.png", "output PNG")
	fs.StringVar(&o.device, "device", "auto", "compute device: auto, gpu or cpu")
	fs.IntVar(&o.workers, "workers", 0, "CPU device workers (0 = GOMAXPROCS)")
	fs.IntVar(&o.frames, "frames", 0, "frames to accumulate (0 = scene maxFrames)")
	fs.IntVar(&o.spp, "spp", 0, "samples per pixel per frame (0 = scene value)")
	fs.BoolVar(&o.watch, "watch", false, "keep running and re-render on file changes")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	o.layers = fs.Args()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	papercut.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, logger); err != nil {
		logger.Error("papercut failed", "err", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, o options, logger *slog.Logger) error {
	sc := &scene{}
	if o.scene != "" {
		var err error
		if sc, err = loadScene(o.scene); err != nil {
			return err
		}
	}
	if o.light != "" {
		sc.Light = o.light
	}
	if len(o.layers) > 0 {
		sc.Layers = sc.Layers[:0]
		for _, p := range o.layers {
			sc.Layers = append(sc.Layers, layerSpec{Path: p})
		}
	}
	if o.frames > 0 {
		sc.MaxFrames = o.frames
	}
	if o.spp > 0 {
		sc.SPP = o.spp
	}

	cfg := papercut.DefaultConfig()
	cfg.Device = papercut.DeviceKind(o.device)
	cfg.Workers = o.workers
	cfg, err := sc.config(cfg)
	if err != nil {
		return err
	}

	s, err := papercut.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := sc.apply(s); err != nil {
		return err
	}
	for _, l := range s.Layers() {
		if l.Status != papercut.StatusOK {
			logger.Warn("layer not rendered", "index", l.Index, "name", l.Name, "path", l.Path, "status", l.Status)
		}
	}
	if sc.Light != "" && s.LightStatus() != papercut.StatusOK {
		logger.Warn("light not rendered", "path", sc.Light, "status", s.LightStatus())
	}

	if !o.watch {
		return converge(ctx, s, o.out, logger)
	}
	return watch(ctx, s, o.out, logger)
}

// converge accumulates until the frame cap and writes the picture.
func converge(ctx context.Context, s *papercut.Studio, out string, logger *slog.Logger) error {
	start := time.Now()
	for s.Accumulating() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Frame(); err != nil {
			return err
		}
	}
	logger.Info("converged", "frames", s.FrameCount(), "size", s.OutputSize(), "elapsed", time.Since(start))
	return writeSnapshot(s, out)
}

// watch runs the frame loop until interrupted. Frames run back to back
// while accumulating; once converged the loop only polls for changes. The
// output is written each time the frame cap is reached.
func watch(ctx context.Context, s *papercut.Studio, out string, logger *slog.Logger) error {
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	written := false
	for {
		if s.Accumulating() {
			written = false
		} else {
			select {
			case <-ctx.Done():
				logger.Info("stopped")
				return nil
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			logger.Info("stopped")
			return nil
		}
		if err := s.Frame(); err != nil {
			return err
		}
		if !s.Accumulating() && !written {
			if err := writeSnapshot(s, out); err != nil {
				return err
			}
			logger.Info("wrote", "path", out, "frames", s.FrameCount())
			written = true
		}
	}
}

func writeSnapshot(s *papercut.Studio, path string) (err error) {
	img, err := s.Snapshot()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
