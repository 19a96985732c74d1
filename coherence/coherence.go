// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coherence computes Welch-based magnitude-squared coherence and
// imaginary coherency between channel pairs, and their band averages.
package coherence

import (
	"math"
	"math/cmplx"

	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
	"github.com/qeeg-nfb/qengine/welch"
)

// Spectrum pairs a frequency grid with magnitude-squared and
// imaginary-coherency-magnitude values at each bin, both clamped to [0,1].
type Spectrum struct {
	FreqsHz          []float64
	MagnitudeSquared []float64
	ImaginaryAbs     []float64
}

// Compute builds the coherence spectrum between x and y:
// Welch cross-spectral accumulation, then per bin
// MagnitudeSquared = |Pxy|²/(Pxx·Pyy) and
// ImaginaryCoherencyAbs = |Im(Pxy/√(Pxx·Pyy))|, both clamped to [0,1].
func Compute(x, y []float64, fsHz float64, opts welch.Options) (Spectrum, error) {
	const op = "coherence.Compute"
	freqs, pxx, pyy, pxy, err := welch.CrossSpectra(x, y, fsHz, opts)
	if err != nil {
		return Spectrum{}, qerr.New(qerr.InvalidParam, op, "%v", err)
	}

	msc := make([]float64, len(freqs))
	imAbs := make([]float64, len(freqs))
	for i := range freqs {
		denom := pxx[i] * pyy[i]
		if denom <= 0 {
			msc[i] = 0
			imAbs[i] = 0
			continue
		}
		mag2 := cmplx.Abs(pxy[i])
		mag2 = mag2 * mag2
		msc[i] = clamp01(mag2 / denom)

		coh := pxy[i] / complex(math.Sqrt(denom), 0)
		imAbs[i] = clamp01(math.Abs(imag(coh)))
	}
	return Spectrum{FreqsHz: freqs, MagnitudeSquared: msc, ImaginaryAbs: imAbs}, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// BandAverage integrates vals (either MagnitudeSquared or ImaginaryAbs)
// over [fminHz, fmaxHz] by trapezoid rule and divides by the band width,
// returning NaN if the band doesn't overlap the spectrum or the effective
// width is <= 0.
func BandAverage(freqsHz, vals []float64, fminHz, fmaxHz float64) (float64, error) {
	const op = "coherence.BandAverage"
	psd := recording.PsdResult{FreqsHz: freqsHz, Psd: vals}
	if len(freqsHz) == 0 {
		return math.NaN(), nil
	}
	lo, hi := freqsHz[0], freqsHz[len(freqsHz)-1]
	f0 := math.Max(fminHz, lo)
	f1 := math.Min(fmaxHz, hi)
	width := f1 - f0
	if width <= 0 {
		return math.NaN(), nil
	}
	area, err := welch.IntegrateBandpower(psd, fminHz, fmaxHz)
	if err != nil {
		return 0, qerr.New(qerr.InvalidParam, op, "%v", err)
	}
	return area / width, nil
}

// Matrix returns the symmetric N×N band-averaged magnitude-squared
// coherence matrix across channels, with a diagonal of 1 (each channel is
// perfectly coherent with itself at every frequency).
func Matrix(channels [][]float64, fsHz, fminHz, fmaxHz float64, opts welch.Options) ([][]float64, error) {
	const op = "coherence.Matrix"
	n := len(channels)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			spec, err := Compute(channels[i], channels[j], fsHz, opts)
			if err != nil {
				return nil, qerr.New(qerr.InvalidParam, op, "channel pair (%d,%d): %v", i, j, err)
			}
			avg, err := BandAverage(spec.FreqsHz, spec.MagnitudeSquared, fminHz, fmaxHz)
			if err != nil {
				return nil, err
			}
			m[i][j] = avg
			m[j][i] = avg
		}
	}
	return m, nil
}
