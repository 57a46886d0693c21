// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"os"

	_ "golang.org/x/image/bmp"  // register BMP
	"golang.org/x/image/draw"   // format conversion
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP
)

// Decoder turns image files into Pixels.
type Decoder interface {
	// DecodeGray decodes path to a single-channel image.
	DecodeGray(path string) (Pixels, error)
	// DecodeRGB decodes path to a three-channel image.
	DecodeRGB(path string) (Pixels, error)
}

// ImageDecoder decodes every format registered with the image package:
// PNG, JPEG, GIF, BMP, TIFF and WebP.
type ImageDecoder struct{}

var _ Decoder = ImageDecoder{}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("asset: decode %s: %w", path, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("asset: decode %s: empty %s image", path, format)
	}
	return img, nil
}

// DecodeGray implements Decoder.
func (ImageDecoder) DecodeGray(path string) (Pixels, error) {
	img, err := decodeFile(path)
	if err != nil {
		return Pixels{}, err
	}
	return grayPixels(img), nil
}

// DecodeRGB implements Decoder.
func (ImageDecoder) DecodeRGB(path string) (Pixels, error) {
	img, err := decodeFile(path)
	if err != nil {
		return Pixels{}, err
	}
	return rgbPixels(img), nil
}

func grayPixels(img image.Image) Pixels {
	b := img.Bounds()
	gray, ok := img.(*image.Gray)
	if !ok || gray.Stride != b.Dx() {
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	}
	return Pixels{Width: b.Dx(), Height: b.Dy(), Channels: 1, Pix: gray.Pix[:b.Dx()*b.Dy()]}
}

func rgbPixels(img image.Image) Pixels {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	n := b.Dx() * b.Dy()
	pix := make([]uint8, n*3)
	for i := range n {
		copy(pix[i*3:i*3+3], rgba.Pix[i*4:i*4+3])
	}
	return Pixels{Width: b.Dx(), Height: b.Dy(), Channels: 3, Pix: pix}
}
