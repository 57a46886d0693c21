// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package material

import (
	"encoding/binary"
	"math"
)

// RecordWords is the number of 32-bit words in a packed material.
const RecordWords = 20

// RecordSize is the byte size of a packed material.
const RecordSize = RecordWords * 4

// Word offsets inside a Record.
const (
	wordKind        = 0
	wordReflectance = 1

	wordEtaFront   = 1
	wordEtaBack    = 2
	wordRoughFront = 3
	wordRoughBack  = 4
	wordRd         = 5 // 3 words
	wordTd         = 8 // 3 words
	wordAlpha      = 11
	wordTau        = 12
	wordWFront     = 13
	wordGFront     = 14
	wordWBack      = 15
	wordGBack      = 16
)

// Record is the flat GPU representation of a Material.
// Word 0 holds the Kind tag, the remaining words hold float32 bits.
type Record [RecordWords]uint32

// Kind returns the type tag of the record.
func (r *Record) Kind() Kind { return Kind(r[wordKind]) }

// Float returns word i interpreted as float32.
func (r *Record) Float(i int) float32 { return math.Float32frombits(r[i]) }

func (r *Record) setFloat(i int, v float32) { r[i] = math.Float32bits(v) }

// AppendBytes appends the little-endian encoding of r to b.
func (r *Record) AppendBytes(b []byte) []byte {
	for _, w := range r {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return b
}

// Pack converts m into its GPU record. Dipole materials are derived first.
// An unknown kind packs as an all-zero record, which the trace kernel
// treats as empty space.
func Pack(m Material) Record {
	var r Record
	switch m.Kind {
	case KindDiffuse:
		r[wordKind] = uint32(KindDiffuse)
		r.setFloat(wordReflectance, min(max(m.Diffuse.Reflectance, 0), 1))
	case KindDipole:
		d := Derive(m.Dipole)
		p := d.Params
		r[wordKind] = uint32(KindDipole)
		r.setFloat(wordEtaFront, p.EtaFront)
		r.setFloat(wordEtaBack, p.EtaBack)
		r.setFloat(wordRoughFront, p.RoughFront)
		r.setFloat(wordRoughBack, p.RoughBack)
		for c := range 3 {
			r.setFloat(wordRd+c, d.Rd[c])
			r.setFloat(wordTd+c, d.Td[c])
		}
		r.setFloat(wordAlpha, d.Alpha)
		r.setFloat(wordTau, d.Tau)
		r.setFloat(wordWFront, p.WFront)
		r.setFloat(wordGFront, p.GFront)
		r.setFloat(wordWBack, p.WBack())
		r.setFloat(wordGBack, p.GBack)
	}
	return r
}
