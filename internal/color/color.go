// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package color converts between display-encoded values and linear
// radiance using a pure 2.2 power curve.
//
// Images and colour pickers hand over display-encoded bytes; the tracer
// works in linear radiance. Decoding uses a 256-entry table, encoding a
// 4096-entry table, replacing math.Pow calls in per-pixel loops.
package color

import "math"

// Gamma is the exponent of the display transfer curve.
const Gamma = 2.2

// RGB is a linear colour triple.
type RGB [3]float32

// Scale returns c multiplied by s.
func (c RGB) Scale(s float32) RGB {
	return RGB{c[0] * s, c[1] * s, c[2] * s}
}

// decodeLUT maps a display byte to linear [0,1].
var decodeLUT [256]float32

// encodeLUT maps linear [0,1] in 12-bit steps to a display byte.
var encodeLUT [4096]uint8

func init() {
	for i := range decodeLUT {
		decodeLUT[i] = float32(math.Pow(float64(i)/255, Gamma))
	}
	for i := range encodeLUT {
		encodeLUT[i] = ToByte(float32(math.Pow(float64(i)/4095, 1/Gamma)))
	}
}

// DecodeByte converts a display-encoded byte to linear [0,1].
func DecodeByte(c uint8) float32 { return decodeLUT[c] }

// DecodeBytes converts a display-encoded byte triple to linear RGB.
func DecodeBytes(r, g, b uint8) RGB {
	return RGB{decodeLUT[r], decodeLUT[g], decodeLUT[b]}
}

// Decode converts a display-encoded value in [0,1] to linear.
// Values outside [0,1] are clamped.
func Decode(v float32) float32 {
	return float32(math.Pow(float64(clamp01(v)), Gamma))
}

// DecodeRGB converts a display-encoded colour to linear.
func DecodeRGB(c RGB) RGB {
	return RGB{Decode(c[0]), Decode(c[1]), Decode(c[2])}
}

// Encode converts a linear value to display encoding in [0,1].
// Values outside [0,1] are clamped.
func Encode(l float32) float32 {
	return float32(math.Pow(float64(clamp01(l)), 1/Gamma))
}

// EncodeByte converts a linear value to a display byte using a lookup
// table. Input is clamped to [0,1].
func EncodeByte(l float32) uint8 {
	if !(l > 0) { // also catches NaN
		return 0
	}
	if l >= 1 {
		return 255
	}
	return encodeLUT[int(l*4095+0.5)]
}

// ToByte clamps v to [0,1] and converts it to a byte with rounding.
func ToByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}

func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	return min(v, 1)
}
