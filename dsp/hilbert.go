// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
)

// AnalyticSignal builds the discrete-time analytic signal of xs by the
// standard FFT construction:
//
//  1. compute the full complex FFT X of length N;
//  2. leave DC (and, for even N, the Nyquist bin) unchanged;
//  3. double the strictly-positive-frequency bins;
//  4. zero the strictly-negative-frequency bins;
//  5. inverse FFT back to the time domain.
//
// It uses gonum.org/v1/gonum/dsp/fourier.CmplxFFT rather than the
// real-input FFT because step 2-4 needs per-bin control over the full
// (not one-sided) spectrum.
func AnalyticSignal(xs []float64) (recording.AnalyticWindow, error) {
	const op = "dsp.AnalyticSignal"
	n := len(xs)
	if n < 2 {
		return nil, qerr.New(qerr.InsufficientData, op, "need at least 2 samples, got %d", n)
	}

	seq := make([]complex128, n)
	for i, x := range xs {
		seq[i] = complex(x, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	spec := fft.Coefficients(nil, seq)

	h := make([]float64, n)
	h[0] = 1
	if n%2 == 0 {
		h[n/2] = 1
		for i := 1; i < n/2; i++ {
			h[i] = 2
		}
	} else {
		for i := 1; i < (n+1)/2; i++ {
			h[i] = 2
		}
	}
	for i, s := range spec {
		spec[i] = s * complex(h[i], 0)
	}

	// CmplxFFT's Coefficients/Sequence round-trip is unnormalized and
	// scales by N.
	out := fft.Sequence(nil, spec)
	for i := range out {
		out[i] /= complex(float64(n), 0)
	}
	return recording.AnalyticWindow(out), nil
}

// Envelope returns the instantaneous amplitude |analytic[i]|.
func Envelope(analytic recording.AnalyticWindow) []float64 {
	out := make([]float64, len(analytic))
	for i, z := range analytic {
		out[i] = cmplx.Abs(z)
	}
	return out
}

// InstantaneousPhase returns the wrapped instantaneous phase, in radians,
// of each analytic-signal sample.
func InstantaneousPhase(analytic recording.AnalyticWindow) []float64 {
	out := make([]float64, len(analytic))
	for i, z := range analytic {
		out[i] = cmplx.Phase(z)
	}
	return out
}
