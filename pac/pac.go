// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pac implements phase-amplitude coupling between a low-frequency
// phase band and a higher-frequency amplitude band: mean vector length
// (MVL) and the Tort modulation index (MI).
package pac

import (
	"math"

	"github.com/qeeg-nfb/qengine/dsp"
	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
)

// Options configures the shared phase/amplitude extraction pipeline.
type Options struct {
	ZeroPhase        bool
	EdgeTrimFraction float64
	NPhaseBins       int
	Q                float64
}

// DefaultOptions returns zero-phase filtering off (causal filtering
// suits online estimation), a 10% edge trim, 18 phase bins, and Q=0.707.
func DefaultOptions() Options {
	return Options{ZeroPhase: false, EdgeTrimFraction: 0.10, NPhaseBins: 18, Q: 0.707}
}

func (o Options) validate(op string) error {
	if o.EdgeTrimFraction < 0 || o.EdgeTrimFraction > 0.49 {
		return qerr.New(qerr.InvalidParam, op, "edgeTrimFraction must be in [0, 0.49], got %v", o.EdgeTrimFraction)
	}
	if o.NPhaseBins < 2 {
		return qerr.New(qerr.InvalidParam, op, "nPhaseBins must be >= 2, got %d", o.NPhaseBins)
	}
	if !(o.Q > 0) {
		return qerr.New(qerr.InvalidParam, op, "Q must be > 0, got %v", o.Q)
	}
	return nil
}

func extractBand(x []float64, fsHz float64, band recording.BandDefinition, opt Options) (recording.AnalyticWindow, error) {
	const op = "pac.extractBand"
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
	return analytic, nil
}

// phaseAndAmplitude runs the shared extraction: bandpass to phaseBand ->
// analytic signal -> phase; bandpass to ampBand -> analytic signal ->
// envelope; then trims edgeTrimFraction off both ends of both series.
func phaseAndAmplitude(x []float64, fsHz float64, phaseBand, ampBand recording.BandDefinition, opt Options) (phi, amp []float64, err error) {
	const op = "pac.phaseAndAmplitude"
	zPhase, err := extractBand(x, fsHz, phaseBand, opt)
	if err != nil {
		return nil, nil, err
	}
	zAmp, err := extractBand(x, fsHz, ampBand, opt)
	if err != nil {
		return nil, nil, err
	}
	m := len(zPhase)
	if len(zAmp) < m {
		m = len(zAmp)
	}
	trim := int(float64(m) * opt.EdgeTrimFraction)
	i0, i1 := trim, m-trim
	if i1 <= i0+1 {
		return nil, nil, qerr.New(qerr.InsufficientData, op, "window too short after edge trim")
	}
	phaseFull := dsp.InstantaneousPhase(zPhase[:m])
	ampFull := dsp.Envelope(zAmp[:m])
	return phaseFull[i0:i1], ampFull[i0:i1], nil
}

// MVL computes the Mean Vector Length: |Σ a(t)·e^{iφ(t)}| / Σ a(t),
// returning 0 if the denominator is <= 0.
func MVL(x []float64, fsHz float64, phaseBand, ampBand recording.BandDefinition, opt Options) (float64, error) {
	const op = "pac.MVL"
	if err := opt.validate(op); err != nil {
		return 0, err
	}
	phi, amp, err := phaseAndAmplitude(x, fsHz, phaseBand, ampBand, opt)
	if err != nil {
		if qerr.Is(err, qerr.InsufficientData) {
			return 0, nil
		}
		return 0, err
	}
	var sumRe, sumIm, sumAmp float64
	for i := range phi {
		sumRe += amp[i] * math.Cos(phi[i])
		sumIm += amp[i] * math.Sin(phi[i])
		sumAmp += amp[i]
	}
	if sumAmp <= 0 {
		return 0, nil
	}
	return math.Hypot(sumRe, sumIm) / sumAmp, nil
}

// Distribution is the raw per-phase-bin mean-amplitude histogram behind a
// modulation-index computation, exposed for inspection.
type Distribution struct {
	BinCentersRad []float64
	MeanAmplitude []float64
	Probability   []float64
}

// ModulationIndex computes the Tort modulation index: bin phases into
// opt.NPhaseBins uniform bins over [-π, π), take the mean amplitude per
// bin, normalize to a probability distribution, and return
// (log B - H) / log B where B is the bin count and H is its Shannon
// entropy (with 0*log(0) = 0). Returns NaN if total amplitude is <= 0.
func ModulationIndex(x []float64, fsHz float64, phaseBand, ampBand recording.BandDefinition, opt Options) (float64, Distribution, error) {
	const op = "pac.ModulationIndex"
	if err := opt.validate(op); err != nil {
		return 0, Distribution{}, err
	}
	phi, amp, err := phaseAndAmplitude(x, fsHz, phaseBand, ampBand, opt)
	if err != nil {
		if qerr.Is(err, qerr.InsufficientData) {
			return math.NaN(), Distribution{}, nil
		}
		return 0, Distribution{}, err
	}

	b := opt.NPhaseBins
	binSum := make([]float64, b)
	binCount := make([]int, b)
	binWidth := 2 * math.Pi / float64(b)
	for i, p := range phi {
		idx := int((p + math.Pi) / binWidth)
		if idx < 0 {
			idx = 0
		}
		if idx >= b {
			idx = b - 1
		}
		binSum[idx] += amp[i]
		binCount[idx]++
	}

	meanAmp := make([]float64, b)
	var total float64
	for i := range meanAmp {
		if binCount[i] > 0 {
			meanAmp[i] = binSum[i] / float64(binCount[i])
		}
		total += meanAmp[i]
	}
	if total <= 0 {
		return math.NaN(), Distribution{}, nil
	}

	prob := make([]float64, b)
	centers := make([]float64, b)
	var entropy float64
	for i := range prob {
		prob[i] = meanAmp[i] / total
		centers[i] = -math.Pi + (float64(i)+0.5)*binWidth
		if prob[i] > 0 {
			entropy -= prob[i] * math.Log(prob[i])
		}
	}

	logB := math.Log(float64(b))
	mi := (logB - entropy) / logB
	dist := Distribution{BinCentersRad: centers, MeanAmplitude: meanAmp, Probability: prob}
	return mi, dist, nil
}
