// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/qeeg-nfb/qengine/qerr"
)

// Spectrum is a one-sided real-input FFT result: Freqs runs 0..fs/2
// inclusive, Coeffs holds the corresponding complex DFT coefficients
// (unnormalized, as returned by gonum's fourier.FFT).
type Spectrum struct {
	Freqs  []float64
	Coeffs []complex128
}

// RealSpectrum computes the one-sided FFT of xs at sample rate fsHz, using
// gonum.org/v1/gonum/dsp/fourier.FFT. Arbitrary lengths >= 2 are accepted;
// power-of-two is not required.
func RealSpectrum(xs []float64, fsHz float64) (Spectrum, error) {
	const op = "dsp.RealSpectrum"
	n := len(xs)
	if n < 2 {
		return Spectrum{}, qerr.New(qerr.InsufficientData, op, "need at least 2 samples, got %d", n)
	}
	if fsHz <= 0 {
		return Spectrum{}, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, xs)
	freqs := make([]float64, len(coeffs))
	for i := range coeffs {
		freqs[i] = fft.Freq(i) * fsHz
	}
	return Spectrum{Freqs: freqs, Coeffs: coeffs}, nil
}
