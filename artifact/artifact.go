// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package artifact implements the online artifact detector:
// per-channel peak-to-peak, RMS, and excess-kurtosis summaries, scored
// against a frozen baseline of robust per-channel statistics.
package artifact

import (
	"math"

	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/ringbuf"
	"github.com/qeeg-nfb/qengine/stats"
	"gonum.org/v1/gonum/stat"
)

// Options configures a Detector. A threshold <= 0 disables that summary's
// criterion entirely.
type Options struct {
	WindowSeconds      float64
	UpdateSeconds      float64
	BaselineSeconds    float64
	PTPZThreshold      float64
	RMSZThreshold      float64
	KurtosisZThreshold float64
	MinBadChannels     int
}

// DefaultOptions returns a 1s window updated every 0.25s, a 30s baseline,
// z-thresholds of 4 for each summary, and min_bad_channels=1.
func DefaultOptions() Options {
	return Options{
		WindowSeconds:      1.0,
		UpdateSeconds:      0.25,
		BaselineSeconds:    30.0,
		PTPZThreshold:      4.0,
		RMSZThreshold:      4.0,
		KurtosisZThreshold: 4.0,
		MinBadChannels:     1,
	}
}

// Frame is one emitted artifact-detection report.
type Frame struct {
	TEndSec         float64
	BaselineReady   bool
	Bad             bool
	BadChannelCount int
	MaxPTPZ         float64
	MaxRMSZ         float64
	MaxKurtosisZ    float64
}

type summaries struct {
	ptp, rms, kurtosis float64
}

func computeSummaries(window []float64) summaries {
	n := float64(len(window))
	mean := stat.Mean(window, nil)
	lo, hi := window[0], window[0]
	for _, x := range window {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}

	var m2, m4 float64
	for _, x := range window {
		d := x - mean
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	m2 /= n
	m4 /= n

	kurt := 0.0
	if m2 > 0 {
		kurt = m4/(m2*m2) - 3
	}

	return summaries{ptp: hi - lo, rms: math.Sqrt(mean*mean + m2), kurtosis: kurt}
}

type baselineStore struct {
	ptp, rms, kurtosis []float64
}

type frozenStats struct {
	ptpMedian, ptpSigma           float64
	rmsMedian, rmsSigma           float64
	kurtosisMedian, kurtosisSigma float64
}

// Detector runs the artifact check for a fixed set of channels.
type Detector struct {
	opt       Options
	framers   []*ringbuf.Framer
	fsHz      float64
	baselines []baselineStore
	frozen    []frozenStats
	ready     bool
}

// New constructs a Detector for nChannels channels at fsHz.
func New(nChannels int, fsHz float64, opt Options) (*Detector, error) {
	const op = "artifact.New"
	if opt.MinBadChannels < 1 {
		return nil, qerr.New(qerr.InvalidParam, op, "minBadChannels must be >= 1, got %d", opt.MinBadChannels)
	}
	windowSamples, err := ringbuf.WindowSamples(opt.WindowSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	updateSamples, err := ringbuf.UpdateSamples(opt.UpdateSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	framers := make([]*ringbuf.Framer, nChannels)
	for i := range framers {
		f, err := ringbuf.NewFramer(windowSamples, updateSamples)
		if err != nil {
			return nil, err
		}
		framers[i] = f
	}
	return &Detector{
		opt:       opt,
		framers:   framers,
		fsHz:      fsHz,
		baselines: make([]baselineStore, nChannels),
		frozen:    make([]frozenStats, nChannels),
	}, nil
}

func (d *Detector) freezeBaseline() {
	for c := range d.baselines {
		b := &d.baselines[c]
		ptpSigma, ptpMedian := stats.MAD(b.ptp)
		rmsSigma, rmsMedian := stats.MAD(b.rms)
		kurtSigma, kurtMedian := stats.MAD(b.kurtosis)
		d.frozen[c] = frozenStats{
			ptpMedian: ptpMedian, ptpSigma: ptpSigma,
			rmsMedian: rmsMedian, rmsSigma: rmsSigma,
			kurtosisMedian: kurtMedian, kurtosisSigma: kurtSigma,
		}
	}
	d.ready = true
}

func zScore(value, median, sigma, threshold float64) (z float64, bad bool) {
	if threshold <= 0 {
		return 0, false
	}
	if sigma <= 0 {
		if value == median {
			return 0, false
		}
		return math.Inf(1), true
	}
	z = math.Abs(value-median) / sigma
	return z, z > threshold
}

// PushBlock pushes one sample-aligned block per channel and returns the
// frames emitted during that block, in temporal order.
func (d *Detector) PushBlock(block [][]float64) ([]Frame, error) {
	const op = "artifact.Detector.PushBlock"
	if len(block) != len(d.framers) {
		return nil, qerr.New(qerr.StateViolation, op, "block has %d channels, want %d", len(block), len(d.framers))
	}
	n := len(block[0])
	var frames []Frame
	for t := 0; t < n; t++ {
		ready := true
		for ci, ch := range block {
			d.framers[ci].Push(ch[t])
			ready = ready && d.framers[ci].ShouldEmit()
		}
		if !ready {
			continue
		}

		tEnd := float64(d.framers[0].TotalSamples()) / d.fsHz
		sums := make([]summaries, len(d.framers))
		for c, f := range d.framers {
			sums[c] = computeSummaries(f.Window())
			f.Emitted()
		}

		if !d.ready {
			for c, s := range sums {
				d.baselines[c].ptp = append(d.baselines[c].ptp, s.ptp)
				d.baselines[c].rms = append(d.baselines[c].rms, s.rms)
				d.baselines[c].kurtosis = append(d.baselines[c].kurtosis, s.kurtosis)
			}
			if tEnd > d.opt.BaselineSeconds {
				d.freezeBaseline()
			}
		}

		frame := Frame{TEndSec: tEnd, BaselineReady: d.ready}
		if d.ready {
			for c, s := range sums {
				fz := d.frozen[c]
				ptpZ, ptpBad := zScore(s.ptp, fz.ptpMedian, fz.ptpSigma, d.opt.PTPZThreshold)
				rmsZ, rmsBad := zScore(s.rms, fz.rmsMedian, fz.rmsSigma, d.opt.RMSZThreshold)
				kurtZ, kurtBad := zScore(s.kurtosis, fz.kurtosisMedian, fz.kurtosisSigma, d.opt.KurtosisZThreshold)
				if ptpZ > frame.MaxPTPZ {
					frame.MaxPTPZ = ptpZ
				}
				if rmsZ > frame.MaxRMSZ {
					frame.MaxRMSZ = rmsZ
				}
				if kurtZ > frame.MaxKurtosisZ {
					frame.MaxKurtosisZ = kurtZ
				}
				if ptpBad || rmsBad || kurtBad {
					frame.BadChannelCount++
				}
			}
			frame.Bad = frame.BadChannelCount >= d.opt.MinBadChannels
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
