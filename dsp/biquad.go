// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dsp implements the causal per-sample DSP primitives every other
// kernel in this engine is built from: biquad IIR filters (high-pass,
// low-pass, notch, and an offline zero-phase variant), a precomputed Hann
// window, a real-to-complex FFT, and an FFT-based analytic-signal
// (Hilbert) construction.
//
// Biquads are transposed direct-form-II with per-channel state; the FFT
// and window primitives are thin wrappers over
// gonum.org/v1/gonum/dsp/fourier and gonum.org/v1/gonum/dsp/window.
package dsp

import (
	"math"

	"github.com/qeeg-nfb/qengine/qerr"
)

// BiquadKind selects the filter response shape.
type BiquadKind int

const (
	Highpass BiquadKind = iota
	Lowpass
	Notch
)

// BiquadCoeffs are the normalized (a0 == 1) difference-equation
// coefficients for a single biquad section.
type BiquadCoeffs struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// DesignBiquad computes RBJ Audio-EQ-Cookbook coefficients for kind at
// center/cutoff frequency f0Hz with quality factor q, sampled at fsHz. For
// Notch, q controls the bandwidth as f0/q.
func DesignBiquad(kind BiquadKind, fsHz, f0Hz, q float64) (BiquadCoeffs, error) {
	const op = "dsp.DesignBiquad"
	if fsHz <= 0 {
		return BiquadCoeffs{}, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	nyquist := fsHz / 2
	if !(f0Hz > 0 && f0Hz < nyquist) {
		return BiquadCoeffs{}, qerr.New(qerr.InvalidParam, op, "f0Hz must be in (0, fs/2), got %v (nyquist %v)", f0Hz, nyquist)
	}
	if !(q > 0) {
		return BiquadCoeffs{}, qerr.New(qerr.InvalidParam, op, "q must be > 0, got %v", q)
	}

	w0 := 2 * math.Pi * f0Hz / fsHz
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64
	switch kind {
	case Lowpass:
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case Highpass:
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case Notch:
		b0 = 1
		b1 = -2 * cosW0
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	default:
		return BiquadCoeffs{}, qerr.New(qerr.InvalidParam, op, "unknown biquad kind %v", kind)
	}

	return BiquadCoeffs{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}, nil
}

// Biquad is a stateful transposed direct-form-II IIR section. State is
// per-instance; independent Biquads (e.g. one per EEG channel) never share
// state.
type Biquad struct {
	c      BiquadCoeffs
	z1, z2 float64
}

// NewBiquad designs and returns a fresh, zeroed Biquad.
func NewBiquad(kind BiquadKind, fsHz, f0Hz, q float64) (*Biquad, error) {
	c, err := DesignBiquad(kind, fsHz, f0Hz, q)
	if err != nil {
		return nil, err
	}
	return &Biquad{c: c}, nil
}

// Reset zeroes the filter's internal state without changing its design.
func (b *Biquad) Reset() {
	b.z1, b.z2 = 0, 0
}

// Step filters a single sample and advances state (transposed direct-form-II):
//
//	y   = b0*x + z1
//	z1' = b1*x - a1*y + z2
//	z2' = b2*x - a2*y
func (b *Biquad) Step(x float64) float64 {
	y := b.c.B0*x + b.z1
	b.z1 = b.c.B1*x - b.c.A1*y + b.z2
	b.z2 = b.c.B2*x - b.c.A2*y
	return y
}

// ProcessInPlace runs Step causally over xs, in place, continuing from
// whatever state the filter already holds. Concatenated blocks therefore
// produce identical output to one larger block, up to
// floating-point associativity.
func (b *Biquad) ProcessInPlace(xs []float64) {
	for i, x := range xs {
		xs[i] = b.Step(x)
	}
}

// ZeroPhase applies b forward over x, then reverses the result and runs b
// forward again over the reversed series, reversing back at the end.
// b's state is reset before each pass and left reset on return; this is
// an offline-only operation since it needs the whole buffer up front.
func ZeroPhase(b *Biquad, x []float64) []float64 {
	b.Reset()
	y := append([]float64(nil), x...)
	b.ProcessInPlace(y)
	reverse(y)
	b.Reset()
	b.ProcessInPlace(y)
	reverse(y)
	b.Reset()
	return y
}

func reverse(xs []float64) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}
