// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package welch implements the windowed-and-averaged periodogram (Welch's
// method) this engine uses for every offline power-spectrum and
// cross-spectrum estimate, plus trapezoidal band-power integration over the
// resulting frequency grid.
package welch

import (
	"math"

	"github.com/qeeg-nfb/qengine/dsp"
	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
)

// Options configures a Welch estimate: segment length and overlap fraction.
type Options struct {
	Nperseg         int
	OverlapFraction float64
}

// DefaultOptions returns Nperseg=256, 50% overlap.
func DefaultOptions() Options {
	return Options{Nperseg: 256, OverlapFraction: 0.5}
}

func (o Options) validate(op string, n int, fsHz float64) error {
	if fsHz <= 0 {
		return qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	if o.Nperseg < 8 {
		return qerr.New(qerr.InvalidParam, op, "nperseg must be >= 8, got %d", o.Nperseg)
	}
	if o.Nperseg > n {
		return qerr.New(qerr.InvalidParam, op, "nperseg %d exceeds input length %d", o.Nperseg, n)
	}
	if o.OverlapFraction < 0 || o.OverlapFraction >= 1 {
		return qerr.New(qerr.InvalidParam, op, "overlapFraction must be in [0,1), got %v", o.OverlapFraction)
	}
	return nil
}

func segmentStep(nperseg int, overlapFraction float64) int {
	step := int(math.Round(float64(nperseg) * (1 - overlapFraction)))
	if step < 1 {
		step = 1
	}
	return step
}

// segmentStarts returns the start index of every full-length segment of
// nperseg samples, stepping by step, covering n total samples.
func segmentStarts(n, nperseg, step int) []int {
	var starts []int
	for start := 0; start+nperseg <= n; start += step {
		starts = append(starts, start)
	}
	return starts
}

func detrendMean(seg []float64) []float64 {
	var mean float64
	for _, x := range seg {
		mean += x
	}
	mean /= float64(len(seg))
	out := make([]float64, len(seg))
	for i, x := range seg {
		out[i] = x - mean
	}
	return out
}

func sumSquares(w []float64) float64 {
	var s float64
	for _, x := range w {
		s += x * x
	}
	return s
}

// doublingRange returns the half-open [lo, hi) index range of one-sided FFT
// bins that sit strictly between DC and Nyquist, which Welch folding must
// double in power. For even nperseg the last bin is the exact Nyquist bin
// and is excluded; for odd nperseg there is no exact Nyquist bin and every
// non-DC bin is doubled.
func doublingRange(nFreqs, nperseg int) (lo, hi int) {
	if nperseg%2 == 0 {
		return 1, nFreqs - 1
	}
	return 1, nFreqs
}

// PSD computes the Welch power spectral density of xs at fsHz:
// partition into overlapping Hann-windowed, mean-detrended
// segments, FFT each, average the squared magnitudes, normalize by
// fs*Σw², and fold to one-sided power by doubling the interior bins.
func PSD(xs []float64, fsHz float64, opts Options) (recording.PsdResult, error) {
	const op = "welch.PSD"
	if err := opts.validate(op, len(xs), fsHz); err != nil {
		return recording.PsdResult{}, err
	}

	win, err := dsp.HannWindow(opts.Nperseg)
	if err != nil {
		return recording.PsdResult{}, err
	}
	sumw2 := sumSquares(win)

	step := segmentStep(opts.Nperseg, opts.OverlapFraction)
	starts := segmentStarts(len(xs), opts.Nperseg, step)
	if len(starts) == 0 {
		return recording.PsdResult{}, qerr.New(qerr.InsufficientData, op, "no full-length segments fit in %d samples with nperseg=%d", len(xs), opts.Nperseg)
	}

	var freqs []float64
	var accum []float64
	for _, start := range starts {
		seg := detrendMean(xs[start : start+opts.Nperseg])
		windowed, err := dsp.ApplyWindow(seg, win)
		if err != nil {
			return recording.PsdResult{}, err
		}
		spec, err := dsp.RealSpectrum(windowed, fsHz)
		if err != nil {
			return recording.PsdResult{}, err
		}
		if accum == nil {
			freqs = spec.Freqs
			accum = make([]float64, len(spec.Coeffs))
		}
		for i, c := range spec.Coeffs {
			re, im := real(c), imag(c)
			accum[i] += re*re + im*im
		}
	}

	n := float64(len(starts))
	scale := 1.0 / (n * fsHz * sumw2)
	lo, hi := doublingRange(len(accum), opts.Nperseg)
	psd := make([]float64, len(accum))
	for i, v := range accum {
		p := v * scale
		if i >= lo && i < hi {
			p *= 2
		}
		psd[i] = p
	}

	return recording.PsdResult{FreqsHz: freqs, Psd: psd}, nil
}

// CrossSpectra computes the Welch-averaged auto- and cross-spectra Pxx,
// Pyy, Pxy of xs and ys, with identical windowing/overlap
// and per-segment mean detrend to PSD. xs and ys must have equal length.
func CrossSpectra(xs, ys []float64, fsHz float64, opts Options) (freqsHz []float64, pxx, pyy []float64, pxy []complex128, err error) {
	const op = "welch.CrossSpectra"
	if len(xs) != len(ys) {
		return nil, nil, nil, nil, qerr.New(qerr.InvalidParam, op, "len(xs)=%d != len(ys)=%d", len(xs), len(ys))
	}
	if err := opts.validate(op, len(xs), fsHz); err != nil {
		return nil, nil, nil, nil, err
	}

	win, werr := dsp.HannWindow(opts.Nperseg)
	if werr != nil {
		return nil, nil, nil, nil, werr
	}
	sumw2 := sumSquares(win)

	step := segmentStep(opts.Nperseg, opts.OverlapFraction)
	starts := segmentStarts(len(xs), opts.Nperseg, step)
	if len(starts) == 0 {
		return nil, nil, nil, nil, qerr.New(qerr.InsufficientData, op, "no full-length segments fit in %d samples with nperseg=%d", len(xs), opts.Nperseg)
	}

	var freqs []float64
	var accXX, accYY []float64
	var accXY []complex128
	for _, start := range starts {
		segX := detrendMean(xs[start : start+opts.Nperseg])
		segY := detrendMean(ys[start : start+opts.Nperseg])
		wx, _ := dsp.ApplyWindow(segX, win)
		wy, _ := dsp.ApplyWindow(segY, win)
		specX, err := dsp.RealSpectrum(wx, fsHz)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		specY, err := dsp.RealSpectrum(wy, fsHz)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if accXX == nil {
			freqs = specX.Freqs
			accXX = make([]float64, len(specX.Coeffs))
			accYY = make([]float64, len(specX.Coeffs))
			accXY = make([]complex128, len(specX.Coeffs))
		}
		for i := range specX.Coeffs {
			cx, cy := specX.Coeffs[i], specY.Coeffs[i]
			accXX[i] += real(cx)*real(cx) + imag(cx)*imag(cx)
			accYY[i] += real(cy)*real(cy) + imag(cy)*imag(cy)
			accXY[i] += cx * cmplxConj(cy)
		}
	}

	n := float64(len(starts))
	scale := 1.0 / (n * fsHz * sumw2)
	lo, hi := doublingRange(len(accXX), opts.Nperseg)
	pxx = make([]float64, len(accXX))
	pyy = make([]float64, len(accYY))
	pxy = make([]complex128, len(accXY))
	for i := range accXX {
		mult := 1.0
		if i >= lo && i < hi {
			mult = 2
		}
		pxx[i] = accXX[i] * scale * mult
		pyy[i] = accYY[i] * scale * mult
		pxy[i] = accXY[i] * complex(scale*mult, 0)
	}
	return freqs, pxx, pyy, pxy, nil
}

func cmplxConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

// IntegrateBandpower integrates psd over [fminHz, fmaxHz] using the
// trapezoid rule, linearly interpolating the PSD value at the band
// boundaries when they fall between grid points.
func IntegrateBandpower(psd recording.PsdResult, fminHz, fmaxHz float64) (float64, error) {
	const op = "welch.IntegrateBandpower"
	if len(psd.FreqsHz) != len(psd.Psd) || len(psd.FreqsHz) < 2 {
		return 0, qerr.New(qerr.InvalidParam, op, "psd must have >= 2 matching freq/value points")
	}
	if !(fmaxHz > fminHz) {
		return 0, qerr.New(qerr.InvalidParam, op, "fmaxHz must be > fminHz, got [%v, %v]", fminHz, fmaxHz)
	}

	freqs, vals := psd.FreqsHz, psd.Psd
	lo, hi := freqs[0], freqs[len(freqs)-1]
	f0 := math.Max(fminHz, lo)
	f1 := math.Min(fmaxHz, hi)
	if f1 <= f0 {
		return 0, nil
	}

	var points []float64
	points = append(points, f0)
	for _, f := range freqs {
		if f > f0 && f < f1 {
			points = append(points, f)
		}
	}
	points = append(points, f1)

	var area float64
	prevF := points[0]
	prevV := interpAt(freqs, vals, prevF)
	for _, f := range points[1:] {
		v := interpAt(freqs, vals, f)
		area += (v + prevV) / 2 * (f - prevF)
		prevF, prevV = f, v
	}
	return area, nil
}

// RelativeBandpower divides the integrated power of [fminHz,fmaxHz] by the
// integrated power of the enclosing [totalFminHz,totalFmaxHz] band,
// returning 0 if the denominator is <= 0.
func RelativeBandpower(psd recording.PsdResult, fminHz, fmaxHz, totalFminHz, totalFmaxHz float64) (float64, error) {
	numer, err := IntegrateBandpower(psd, fminHz, fmaxHz)
	if err != nil {
		return 0, err
	}
	denom, err := IntegrateBandpower(psd, totalFminHz, totalFmaxHz)
	if err != nil {
		return 0, err
	}
	if denom <= 0 {
		return 0, nil
	}
	return numer / denom, nil
}

// interpAt linearly interpolates vals at query frequency f against the
// ascending freqs grid, clamping to the nearest endpoint outside its range.
func interpAt(freqs, vals []float64, f float64) float64 {
	n := len(freqs)
	if f <= freqs[0] {
		return vals[0]
	}
	if f >= freqs[n-1] {
		return vals[n-1]
	}
	// linear scan is fine: Welch grids are at most a few thousand bins.
	for i := 1; i < n; i++ {
		if freqs[i] >= f {
			f0, f1 := freqs[i-1], freqs[i]
			v0, v1 := vals[i-1], vals[i]
			frac := (f - f0) / (f1 - f0)
			return v0 + frac*(v1-v0)
		}
	}
	return vals[n-1]
}
