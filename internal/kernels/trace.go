// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernels

import (
	"math"

	"github.com/gogpu/papercut/gpucore"
	"github.com/gogpu/papercut/material"
)

// MaxBounces bounds the number of paper interactions of one light path.
const MaxBounces = 32

type vec3 [3]float32

func (a vec3) add(b vec3) vec3      { return vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a vec3) mul(b vec3) vec3      { return vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }
func (a vec3) scale(s float32) vec3 { return vec3{a[0] * s, a[1] * s, a[2] * s} }

func (a vec3) normalize() vec3 {
	l := float32(math.Sqrt(float64(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])))
	if l == 0 {
		return vec3{0, 0, -1}
	}
	return a.scale(1 / l)
}

// scene is the decoded view of the trace bindings.
type scene struct {
	p         TraceParams
	materials []uint32
	papers    []uint32
	light     []float32
	lightZ    float32
}

func decodeTraceParams(w []uint32) TraceParams {
	f := func(i int) float32 { return math.Float32frombits(w[i]) }
	return TraceParams{
		OutputWidth:   w[0],
		OutputHeight:  w[1],
		PaperCount:    w[2],
		SPP:           w[3],
		PaperWidth:    w[4],
		PaperHeight:   w[5],
		PaperDistance: f(6),
		LightDistance: f(7),
		EnvLight:      [3]float32{f(8), f(9), f(10)},
		EyeZ:          f(11),
	}
}

// Trace is the host form of the trace kernel. For every output pixel it
// averages SPP light paths into Output and advances the pixel's RNGState.
func Trace(row, width uint32, b *gpucore.HostBindings) {
	s := scene{
		p:         decodeTraceParams(b.Words(traceBindPerFrame)),
		materials: b.Words(traceBindMaterials),
		papers:    b.Words(traceBindPapers),
		light:     b.Floats(traceBindLight),
	}
	s.lightZ = -float32(max(int(s.p.PaperCount)-1, 0))*s.p.PaperDistance - s.p.LightDistance

	rng := b.Words(traceBindRNG)
	out := b.Floats(traceBindOutput)
	spp := max(s.p.SPP, 1)

	for x := range width {
		i := row*width + x
		state := rng[i]
		var sum vec3
		for range spp {
			sum = sum.add(s.path(x, row, &state))
		}
		rng[i] = state

		sum = sum.scale(1 / float32(spp))
		o := out[i*4 : i*4+4]
		o[0], o[1], o[2], o[3] = sum[0], sum[1], sum[2], 1
	}
}

// path traces one light path backwards from the eye and returns the
// radiance it carries.
func (s *scene) path(ox, oy uint32, rng *uint32) vec3 {
	p := &s.p
	fx := (float32(ox) + next(rng)) * float32(p.PaperWidth) / float32(p.OutputWidth)
	fy := (float32(oy) + next(rng)) * float32(p.PaperHeight) / float32(p.OutputHeight)

	var pos, dir vec3
	if p.EyeZ > 0 {
		pos = vec3{fx, fy, 1}
		dir = vec3{0, 0, -1}
	} else {
		extent := float32(max(p.PaperWidth, p.PaperHeight))
		pos = vec3{float32(p.PaperWidth) / 2, float32(p.PaperHeight) / 2, -p.EyeZ * extent}
		dir = vec3{fx - pos[0], fy - pos[1], -pos[2]}.normalize()
	}

	n := int(p.PaperCount)
	gap := 0 // space between layer gap-1 and layer gap
	throughput := vec3{1, 1, 1}
	env := vec3(p.EnvLight)

	for range MaxBounces {
		var layer int
		var planeZ float32
		switch {
		case dir[2] < 0 && gap >= n:
			t := (s.lightZ - pos[2]) / dir[2]
			pos = pos.add(dir.scale(t))
			return throughput.mul(s.lightAt(pos[0], pos[1]))
		case dir[2] < 0:
			layer = gap
		case dir[2] > 0 && gap > 0:
			layer = gap - 1
		default:
			return throughput.mul(env)
		}
		planeZ = -float32(layer) * p.PaperDistance
		t := (planeZ - pos[2]) / dir[2]
		pos = pos.add(dir.scale(t))
		pos[2] = planeZ

		down := dir[2] < 0
		texel, ok := s.paperAt(layer, pos[0], pos[1])
		if !ok {
			if down {
				gap++
			} else {
				gap--
			}
			continue
		}

		rec := s.materials[layer*material.RecordWords : (layer+1)*material.RecordWords]
		out, weight, transmitted := scatter(rec, dir, down, rng)
		tint := vec3{float32(texel.R) / 255, float32(texel.G) / 255, float32(texel.B) / 255}
		throughput = throughput.mul(weight).mul(tint)
		if throughput[0] <= 0 && throughput[1] <= 0 && throughput[2] <= 0 {
			return vec3{}
		}
		if transmitted {
			if down {
				gap++
			} else {
				gap--
			}
		}
		dir = out
	}
	return vec3{}
}

// paperAt returns the texel of layer at paper position (x, y) and whether
// paper is present there.
func (s *scene) paperAt(layer int, x, y float32) (Texel, bool) {
	if x < 0 || y < 0 {
		return Texel{}, false
	}
	ix, iy := uint32(x), uint32(y)
	w, h := s.p.PaperWidth, s.p.PaperHeight
	if ix >= w || iy >= h {
		return Texel{}, false
	}
	t := UnpackTexel(s.papers[uint32(layer)*w*h+iy*w+ix])
	return t, t.Mask > 0
}

// lightAt returns back light radiance with clamp-to-edge addressing.
func (s *scene) lightAt(x, y float32) vec3 {
	w, h := s.p.PaperWidth, s.p.PaperHeight
	ix := uint32(min(max(x, 0), float32(w-1)))
	iy := uint32(min(max(y, 0), float32(h-1)))
	i := (iy*w + ix) * 4
	return vec3{s.light[i], s.light[i+1], s.light[i+2]}
}

// scatter samples the interaction of a path with a paper sheet. down
// reports whether the path travels toward the light. It returns the new
// direction, the throughput weight and whether the path crossed the sheet.
func scatter(rec []uint32, dir vec3, down bool, rng *uint32) (vec3, vec3, bool) {
	f := func(i int) float32 { return math.Float32frombits(rec[i]) }
	// Side the path arrives from: +1 above the sheet, -1 below.
	side := float32(1)
	if !down {
		side = -1
	}

	switch material.Kind(rec[0]) {
	case material.KindDiffuse:
		if next(rng) < f(1) {
			return cosineHemisphere(side, rng), vec3{1, 1, 1}, false
		}
		return cosineHemisphere(-side, rng), vec3{1, 1, 1}, true

	case material.KindDipole:
		eta, rough := f(1), f(3)
		if !down {
			eta, rough = f(2), f(4)
		}
		cosI := float32(math.Abs(float64(dir[2])))
		if next(rng) < fresnel(cosI, eta) {
			mirror := vec3{dir[0], dir[1], -dir[2]}
			return glossy(mirror, rough, side, rng), vec3{1, 1, 1}, false
		}

		tau := f(12)
		if next(rng) < float32(math.Exp(-float64(tau/max(cosI, 1e-4)))) {
			return dir, vec3{1, 1, 1}, true
		}

		rd := vec3{f(5), f(6), f(7)}
		td := vec3{f(8), f(9), f(10)}
		mr := (rd[0] + rd[1] + rd[2]) / 3
		mt := (td[0] + td[1] + td[2]) / 3
		if mr+mt <= 0 {
			return dir, vec3{}, false
		}
		pr := mr / (mr + mt)
		if next(rng) < pr {
			return cosineHemisphere(side, rng), rd.scale(1 / pr), false
		}
		return cosineHemisphere(-side, rng), td.scale(1 / (1 - pr)), true

	default:
		// Unknown tag: the sheet is transparent.
		return dir, vec3{1, 1, 1}, true
	}
}

// fresnel is Schlick's approximation of dielectric reflectance.
func fresnel(cosI, eta float32) float32 {
	r0 := (eta - 1) / (eta + 1)
	r0 *= r0
	m := 1 - cosI
	return r0 + (1-r0)*m*m*m*m*m
}

// cosineHemisphere samples a cosine-weighted direction on the side of the
// sheet given by the sign of zSign.
func cosineHemisphere(zSign float32, rng *uint32) vec3 {
	u1, u2 := next(rng), next(rng)
	r := float32(math.Sqrt(float64(u1)))
	phi := 2 * math.Pi * float64(u2)
	z := float32(math.Sqrt(float64(max(1-u1, 0))))
	return vec3{r * float32(math.Cos(phi)), r * float32(math.Sin(phi)), z * zSign}
}

// glossy perturbs a mirror direction by roughness, keeping it on the side
// given by zSign.
func glossy(mirror vec3, rough, zSign float32, rng *uint32) vec3 {
	d := mirror.add(cosineHemisphere(zSign, rng).scale(rough)).normalize()
	if d[2]*zSign <= 0 {
		d[2] = -d[2]
	}
	if d[2] == 0 {
		d[2] = zSign * 1e-3
	}
	return d.normalize()
}
