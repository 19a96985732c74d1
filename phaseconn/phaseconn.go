// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package phaseconn implements the narrow-band phase-connectivity measures
// (PLV, PLI, wPLI, debiased wPLI²) this engine derives from per-channel
// analytic signals: bandpass filter, Hilbert transform, then an
// accumulation over the cross-product z_x(t)·conj(z_y(t)).
package phaseconn

import (
	"math"
	"math/cmplx"

	"github.com/qeeg-nfb/qengine/dsp"
	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
)

// Options configures shared preprocessing ahead of every measure in this
// package.
type Options struct {
	ZeroPhase        bool
	EdgeTrimFraction float64
	Q                float64 // biquad Q for the internal bandpass
}

// DefaultOptions returns zero-phase filtering, a 10% edge trim (keep the
// middle 80%), and Q=0.707.
func DefaultOptions() Options {
	return Options{ZeroPhase: true, EdgeTrimFraction: 0.10, Q: 0.707}
}

func (o Options) validate(op string) error {
	if o.EdgeTrimFraction < 0 || o.EdgeTrimFraction > 0.49 {
		return qerr.New(qerr.InvalidParam, op, "edgeTrimFraction must be in [0, 0.49], got %v", o.EdgeTrimFraction)
	}
	if !(o.Q > 0) {
		return qerr.New(qerr.InvalidParam, op, "Q must be > 0, got %v", o.Q)
	}
	return nil
}

func edgeTrimSamples(n int, frac float64) int {
	return int(float64(n) * frac)
}

// unitPhasors bandpass-filters x to band, takes its analytic signal, and
// returns the unit-magnitude phasor e^{iφ(t)} at each sample.
func unitPhasors(x []float64, fsHz float64, band recording.BandDefinition, opt Options) ([]complex128, error) {
	const op = "phaseconn.unitPhasors"
	if err := band.Validate(fsHz / 2); err != nil {
		return nil, err
	}
	bp, err := dsp.NewBandpass(fsHz, band.FminHz, band.FmaxHz, opt.Q)
	if err != nil {
		return nil, err
	}
	var filtered []float64
	if opt.ZeroPhase {
		filtered = dsp.ZeroPhaseBandpass(bp, x)
	} else {
		filtered = append([]float64(nil), x...)
		bp.ProcessInPlace(filtered)
	}
	analytic, err := dsp.AnalyticSignal(filtered)
	if err != nil {
		return nil, qerr.New(qerr.InsufficientData, op, "%v", err)
	}
	u := make([]complex128, len(analytic))
	for i, z := range analytic {
		ph := cmplx.Phase(complex128(z))
		u[i] = complex(math.Cos(ph), math.Sin(ph))
	}
	return u, nil
}

// trimmedRange returns the [i0, i1) sample range left after discarding
// opt.EdgeTrimFraction of samples from each end of a length-m sequence, or
// ok=false if fewer than 2 samples would remain.
func trimmedRange(m int, opt Options) (i0, i1 int, ok bool) {
	trim := edgeTrimSamples(m, opt.EdgeTrimFraction)
	i0 = trim
	i1 = m - trim
	if i1 <= i0+1 {
		return 0, 0, false
	}
	return i0, i1, true
}

func commonLen(a, b []complex128) int {
	if len(a) < len(b) {
		return len(a)
	}
	return len(b)
}

func finite2(z complex128) bool {
	re, im := real(z), imag(z)
	return !math.IsNaN(re) && !math.IsInf(re, 0) && !math.IsNaN(im) && !math.IsInf(im, 0)
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

// PLV computes the Phase Locking Value between x and y in band.
// Returns NaN if either signal is too short or no finite samples
// remain after trimming.
func PLV(x, y []float64, fsHz float64, band recording.BandDefinition, opt Options) (float64, error) {
	const op = "phaseconn.PLV"
	if err := opt.validate(op); err != nil {
		return 0, err
	}
	n := minInt(len(x), len(y))
	if n < 4 {
		return math.NaN(), nil
	}
	ux, err := unitPhasors(x[:n], fsHz, band, opt)
	if err != nil {
		return 0, err
	}
	uy, err := unitPhasors(y[:n], fsHz, band, opt)
	if err != nil {
		return 0, err
	}
	m := commonLen(ux, uy)
	if m < 4 {
		return math.NaN(), nil
	}
	i0, i1, ok := trimmedRange(m, opt)
	if !ok {
		return math.NaN(), nil
	}

	var acc complex128
	cnt := 0
	for i := i0; i < i1; i++ {
		a, b := ux[i], uy[i]
		if !finite2(a) || !finite2(b) {
			continue
		}
		acc += a * cmplx.Conj(b)
		cnt++
	}
	if cnt == 0 {
		return math.NaN(), nil
	}
	plv := cmplx.Abs(acc) / float64(cnt)
	if math.IsNaN(plv) || math.IsInf(plv, 0) {
		return math.NaN(), nil
	}
	return clamp01(plv), nil
}

// analyticSignals bandpass-filters x and y to band and returns their full
// analytic signals — PLI/wPLI/dwPLI² need the analytic signal itself
// (not just its unit phasor) to weight by |Im(c(t))|.
func analyticSignals(x, y []float64, fsHz float64, band recording.BandDefinition, opt Options) (zx, zy recording.AnalyticWindow, err error) {
	const op = "phaseconn.analyticSignals"
	if err := band.Validate(fsHz / 2); err != nil {
		return nil, nil, err
	}
	n := minInt(len(x), len(y))
	if n < 4 {
		return nil, nil, qerr.New(qerr.InsufficientData, op, "need at least 4 samples, got %d", n)
	}
	bpx, err := dsp.NewBandpass(fsHz, band.FminHz, band.FmaxHz, opt.Q)
	if err != nil {
		return nil, nil, err
	}
	bpy, err := dsp.NewBandpass(fsHz, band.FminHz, band.FmaxHz, opt.Q)
	if err != nil {
		return nil, nil, err
	}
	var fx, fy []float64
	if opt.ZeroPhase {
		fx = dsp.ZeroPhaseBandpass(bpx, x[:n])
		fy = dsp.ZeroPhaseBandpass(bpy, y[:n])
	} else {
		fx = append([]float64(nil), x[:n]...)
		fy = append([]float64(nil), y[:n]...)
		bpx.ProcessInPlace(fx)
		bpy.ProcessInPlace(fy)
	}
	zx, err = dsp.AnalyticSignal(fx)
	if err != nil {
		return nil, nil, qerr.New(qerr.InsufficientData, op, "%v", err)
	}
	zy, err = dsp.AnalyticSignal(fy)
	if err != nil {
		return nil, nil, qerr.New(qerr.InsufficientData, op, "%v", err)
	}
	return zx, zy, nil
}

// crossImagSeries returns Im(z_x(t)·conj(z_y(t))) over the trimmed overlap
// of zx, zy, skipping non-finite entries. It reports the kept count.
func crossImagSeries(zx, zy recording.AnalyticWindow, opt Options) (imVals []float64, ok bool) {
	m := minInt(len(zx), len(zy))
	i0, i1, trimOK := trimmedRange(m, opt)
	if !trimOK {
		return nil, false
	}
	out := make([]float64, 0, i1-i0)
	for i := i0; i < i1; i++ {
		c := complex128(zx[i]) * cmplx.Conj(complex128(zy[i]))
		if !finite2(c) {
			continue
		}
		out = append(out, imag(c))
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// PLI computes the Phase Lag Index: |mean(sign(Im(c(t))))|.
func PLI(x, y []float64, fsHz float64, band recording.BandDefinition, opt Options) (float64, error) {
	const op = "phaseconn.PLI"
	if err := opt.validate(op); err != nil {
		return 0, err
	}
	zx, zy, err := analyticSignals(x, y, fsHz, band, opt)
	if err != nil {
		if qerr.Is(err, qerr.InsufficientData) {
			return math.NaN(), nil
		}
		return 0, err
	}
	imVals, ok := crossImagSeries(zx, zy, opt)
	if !ok {
		return math.NaN(), nil
	}
	var sum float64
	for _, v := range imVals {
		sum += sign(v)
	}
	pli := math.Abs(sum) / float64(len(imVals))
	return clamp01(pli), nil
}

// WPLI computes the Weighted Phase Lag Index:
// |Σ Im(c(t))| / Σ |Im(c(t))|, returning 0 if the denominator is ~0.
func WPLI(x, y []float64, fsHz float64, band recording.BandDefinition, opt Options) (float64, error) {
	const op = "phaseconn.WPLI"
	if err := opt.validate(op); err != nil {
		return 0, err
	}
	zx, zy, err := analyticSignals(x, y, fsHz, band, opt)
	if err != nil {
		if qerr.Is(err, qerr.InsufficientData) {
			return math.NaN(), nil
		}
		return 0, err
	}
	imVals, ok := crossImagSeries(zx, zy, opt)
	if !ok {
		return math.NaN(), nil
	}
	var sIm, sAbs float64
	for _, v := range imVals {
		sIm += v
		sAbs += math.Abs(v)
	}
	const eps = 1e-12
	if sAbs <= eps {
		return 0, nil
	}
	return clamp01(math.Abs(sIm) / sAbs), nil
}

// DebiasedWPLI2 computes the debiased estimator of squared wPLI (Vinck et
// al. 2011). Convention for N<2: returns 0, not NaN.
func DebiasedWPLI2(x, y []float64, fsHz float64, band recording.BandDefinition, opt Options) (float64, error) {
	const op = "phaseconn.DebiasedWPLI2"
	if err := opt.validate(op); err != nil {
		return 0, err
	}
	zx, zy, err := analyticSignals(x, y, fsHz, band, opt)
	if err != nil {
		if qerr.Is(err, qerr.InsufficientData) {
			return 0, nil
		}
		return 0, err
	}
	imVals, ok := crossImagSeries(zx, zy, opt)
	if !ok || len(imVals) < 2 {
		return 0, nil
	}
	var sIm, sAbs, sSq float64
	for _, v := range imVals {
		sIm += v
		sAbs += math.Abs(v)
		sSq += v * v
	}
	const eps = 1e-12
	numer := sIm*sIm - sSq
	denom := sAbs*sAbs - sSq
	if denom <= eps {
		return 0, nil
	}
	return clamp01(numer / denom), nil
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Measure names one of the four supported phase-connectivity kernels.
type Measure int

const (
	MeasurePLV Measure = iota
	MeasurePLI
	MeasureWPLI
	MeasureDebiasedWPLI2
)

// Matrix returns a symmetric N×N table of the given measure across all
// channel pairs. Diagonal is 1 for PLV, 0 for the lag-based measures.
func Matrix(channels [][]float64, fsHz float64, band recording.BandDefinition, measure Measure, opt Options) ([][]float64, error) {
	const op = "phaseconn.Matrix"
	n := len(channels)
	m := make([][]float64, n)
	diag := 0.0
	if measure == MeasurePLV {
		diag = 1
	}
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = diag
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var v float64
			var err error
			switch measure {
			case MeasurePLV:
				v, err = PLV(channels[i], channels[j], fsHz, band, opt)
			case MeasurePLI:
				v, err = PLI(channels[i], channels[j], fsHz, band, opt)
			case MeasureWPLI:
				v, err = WPLI(channels[i], channels[j], fsHz, band, opt)
			case MeasureDebiasedWPLI2:
				v, err = DebiasedWPLI2(channels[i], channels[j], fsHz, band, opt)
			default:
				err = qerr.New(qerr.InvalidParam, op, "unknown measure %v", measure)
			}
			if err != nil {
				return nil, err
			}
			m[i][j] = v
			m[j][i] = v
		}
	}
	return m, nil
}
