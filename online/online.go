// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package online wraps the offline Welch, coherence, phase-connectivity
// and PAC kernels with per-channel ring buffers, turning a stream of
// pushed samples into periodically emitted frames.
//
// Every estimator here shares one shape: construct with a channel count
// (PAC: a single channel), a sampling rate, the band or bands to track, and
// options; call PushBlock with one block of samples per channel (PAC: one
// slice); read back zero or more frames, in temporal order, each stamped
// with t_end_sec.
package online

import (
	"fmt"

	"github.com/qeeg-nfb/qengine/coherence"
	"github.com/qeeg-nfb/qengine/pac"
	"github.com/qeeg-nfb/qengine/phaseconn"
	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
	"github.com/qeeg-nfb/qengine/ringbuf"
	"github.com/qeeg-nfb/qengine/welch"
)

// ChannelPair names two channel indices whose connectivity is tracked.
type ChannelPair struct {
	A, B int
}

// PairName returns the "A-B" label for a pair given the owning channel
// names.
func PairName(names []string, p ChannelPair) string {
	return fmt.Sprintf("%s-%s", names[p.A], names[p.B])
}

func newFramers(nChannels, windowSamples, updateSamples int) ([]*ringbuf.Framer, error) {
	framers := make([]*ringbuf.Framer, nChannels)
	for i := range framers {
		f, err := ringbuf.NewFramer(windowSamples, updateSamples)
		if err != nil {
			return nil, err
		}
		framers[i] = f
	}
	return framers, nil
}

// BandpowerOptions configures Bandpower.
type BandpowerOptions struct {
	WindowSeconds float64
	UpdateSeconds float64
	Welch         welch.Options
}

// DefaultBandpowerOptions returns a 4s window, 0.25s update cadence, and
// default Welch parameters.
func DefaultBandpowerOptions() BandpowerOptions {
	return BandpowerOptions{WindowSeconds: 4.0, UpdateSeconds: 0.25, Welch: welch.DefaultOptions()}
}

// BandpowerFrame is one emitted absolute-bandpower estimate per channel.
type BandpowerFrame struct {
	TEndSec float64
	Values  []float64 // one bandpower value per channel, in band
}

// Bandpower is an online, per-channel absolute-bandpower estimator over a
// single band.
type Bandpower struct {
	fsHz    float64
	band    recording.BandDefinition
	opt     BandpowerOptions
	framers []*ringbuf.Framer
}

// NewBandpower constructs a Bandpower estimator for nChannels channels.
func NewBandpower(nChannels int, fsHz float64, band recording.BandDefinition, opt BandpowerOptions) (*Bandpower, error) {
	const op = "online.NewBandpower"
	if err := band.Validate(fsHz / 2); err != nil {
		return nil, err
	}
	windowSamples, err := ringbuf.WindowSamples(opt.WindowSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	updateSamples, err := ringbuf.UpdateSamples(opt.UpdateSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	if opt.Welch.Nperseg > windowSamples {
		return nil, qerr.New(qerr.InvalidParam, op, "welch nperseg %d exceeds window_samples %d", opt.Welch.Nperseg, windowSamples)
	}
	framers, err := newFramers(nChannels, windowSamples, updateSamples)
	if err != nil {
		return nil, err
	}
	return &Bandpower{fsHz: fsHz, band: band, opt: opt, framers: framers}, nil
}

// PushBlock pushes one sample-aligned block per channel (block[c][t]) and
// returns the frames emitted during that block, in temporal order.
func (b *Bandpower) PushBlock(block [][]float64) ([]BandpowerFrame, error) {
	const op = "online.Bandpower.PushBlock"
	if len(block) != len(b.framers) {
		return nil, qerr.New(qerr.StateViolation, op, "block has %d channels, want %d", len(block), len(b.framers))
	}
	n := len(block[0])
	for _, ch := range block {
		if len(ch) != n {
			return nil, qerr.New(qerr.InvalidParam, op, "ragged block: channel lengths differ")
		}
	}

	var frames []BandpowerFrame
	for t := 0; t < n; t++ {
		emit := false
		for c, ch := range block {
			b.framers[c].Push(ch[t])
			if b.framers[c].ShouldEmit() {
				emit = true
			}
		}
		if !emit {
			continue
		}
		values := make([]float64, len(b.framers))
		for c, f := range b.framers {
			if !f.ShouldEmit() {
				values[c] = 0
				continue
			}
			psd, err := welch.PSD(f.Window(), b.fsHz, b.opt.Welch)
			if err != nil {
				return nil, err
			}
			area, err := welch.IntegrateBandpower(psd, b.band.FminHz, b.band.FmaxHz)
			if err != nil {
				return nil, err
			}
			values[c] = area
			f.Emitted()
		}
		totalSamples := b.framers[0].TotalSamples()
		frames = append(frames, BandpowerFrame{
			TEndSec: float64(totalSamples) / b.fsHz,
			Values:  values,
		})
	}
	return frames, nil
}

// ConnectivityOptions configures both Coherence and PhaseConn.
type ConnectivityOptions struct {
	WindowSeconds float64
	UpdateSeconds float64
}

// DefaultConnectivityOptions returns a 2s window, 0.25s update cadence.
func DefaultConnectivityOptions() ConnectivityOptions {
	return ConnectivityOptions{WindowSeconds: 2.0, UpdateSeconds: 0.25}
}

// CoherenceFrame is one emitted band-averaged-coherence estimate across a
// fixed list of channel pairs and bands: Values[bandIdx][pairIdx].
type CoherenceFrame struct {
	TEndSec float64
	Values  [][]float64
}

// Coherence is an online multi-channel magnitude-squared-coherence
// estimator over a fixed pair list and band list.
type Coherence struct {
	fsHz    float64
	bands   []recording.BandDefinition
	pairs   []ChannelPair
	welch   welch.Options
	framers []*ringbuf.Framer
}

// NewCoherence constructs a Coherence estimator for nChannels channels,
// tracking the given pairs over the given bands.
func NewCoherence(nChannels int, fsHz float64, bands []recording.BandDefinition, pairs []ChannelPair, opt ConnectivityOptions, welchOpt welch.Options) (*Coherence, error) {
	windowSamples, err := ringbuf.WindowSamples(opt.WindowSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	updateSamples, err := ringbuf.UpdateSamples(opt.UpdateSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	if welchOpt.Nperseg > windowSamples {
		return nil, qerr.New(qerr.InvalidParam, "online.NewCoherence", "welch nperseg %d exceeds window_samples %d", welchOpt.Nperseg, windowSamples)
	}
	framers, err := newFramers(nChannels, windowSamples, updateSamples)
	if err != nil {
		return nil, err
	}
	return &Coherence{fsHz: fsHz, bands: bands, pairs: pairs, welch: welchOpt, framers: framers}, nil
}

// PushBlock pushes one sample-aligned block per channel and returns the
// frames emitted during that block.
func (c *Coherence) PushBlock(block [][]float64) ([]CoherenceFrame, error) {
	const op = "online.Coherence.PushBlock"
	if len(block) != len(c.framers) {
		return nil, qerr.New(qerr.StateViolation, op, "block has %d channels, want %d", len(block), len(c.framers))
	}
	n := len(block[0])
	var frames []CoherenceFrame
	for t := 0; t < n; t++ {
		ready := true
		for ci, ch := range block {
			c.framers[ci].Push(ch[t])
			ready = ready && c.framers[ci].ShouldEmit()
		}
		if !ready {
			continue
		}
		values := make([][]float64, len(c.bands))
		for bi := range c.bands {
			values[bi] = make([]float64, len(c.pairs))
		}
		for pi, pair := range c.pairs {
			spec, err := coherence.Compute(c.framers[pair.A].Window(), c.framers[pair.B].Window(), c.fsHz, c.welch)
			if err != nil {
				return nil, err
			}
			for bi, band := range c.bands {
				avg, err := coherence.BandAverage(spec.FreqsHz, spec.MagnitudeSquared, band.FminHz, band.FmaxHz)
				if err != nil {
					return nil, err
				}
				values[bi][pi] = avg
			}
		}
		for _, f := range c.framers {
			f.Emitted()
		}
		frames = append(frames, CoherenceFrame{TEndSec: float64(c.framers[0].TotalSamples()) / c.fsHz, Values: values})
	}
	return frames, nil
}

// PhaseConnFrame is one emitted band-averaged phase-connectivity estimate
// across a fixed list of channel pairs and bands: Values[bandIdx][pairIdx].
type PhaseConnFrame struct {
	TEndSec float64
	Values  [][]float64
}

// PhaseConn is an online multi-channel PLV/PLI/wPLI/debiased-wPLI²
// estimator over a fixed pair list and band list.
type PhaseConn struct {
	fsHz    float64
	bands   []recording.BandDefinition
	pairs   []ChannelPair
	measure phaseconn.Measure
	opt     phaseconn.Options
	framers []*ringbuf.Framer
}

// NewPhaseConn constructs a PhaseConn estimator. opt is used as given,
// including opt.ZeroPhase; phaseconn.DefaultOptions turns zero-phase
// filtering on.
func NewPhaseConn(nChannels int, fsHz float64, bands []recording.BandDefinition, pairs []ChannelPair, measure phaseconn.Measure, connOpt ConnectivityOptions, opt phaseconn.Options) (*PhaseConn, error) {
	windowSamples, err := ringbuf.WindowSamples(connOpt.WindowSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	updateSamples, err := ringbuf.UpdateSamples(connOpt.UpdateSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	framers, err := newFramers(nChannels, windowSamples, updateSamples)
	if err != nil {
		return nil, err
	}
	return &PhaseConn{fsHz: fsHz, bands: bands, pairs: pairs, measure: measure, opt: opt, framers: framers}, nil
}

// PushBlock pushes one sample-aligned block per channel and returns the
// frames emitted during that block.
func (p *PhaseConn) PushBlock(block [][]float64) ([]PhaseConnFrame, error) {
	const op = "online.PhaseConn.PushBlock"
	if len(block) != len(p.framers) {
		return nil, qerr.New(qerr.StateViolation, op, "block has %d channels, want %d", len(block), len(p.framers))
	}
	n := len(block[0])
	var frames []PhaseConnFrame
	for t := 0; t < n; t++ {
		ready := true
		for ci, ch := range block {
			p.framers[ci].Push(ch[t])
			ready = ready && p.framers[ci].ShouldEmit()
		}
		if !ready {
			continue
		}
		values := make([][]float64, len(p.bands))
		for bi := range p.bands {
			values[bi] = make([]float64, len(p.pairs))
		}
		for bi, band := range p.bands {
			for pi, pair := range p.pairs {
				var v float64
				var err error
				x, y := p.framers[pair.A].Window(), p.framers[pair.B].Window()
				switch p.measure {
				case phaseconn.MeasurePLV:
					v, err = phaseconn.PLV(x, y, p.fsHz, band, p.opt)
				case phaseconn.MeasurePLI:
					v, err = phaseconn.PLI(x, y, p.fsHz, band, p.opt)
				case phaseconn.MeasureWPLI:
					v, err = phaseconn.WPLI(x, y, p.fsHz, band, p.opt)
				case phaseconn.MeasureDebiasedWPLI2:
					v, err = phaseconn.DebiasedWPLI2(x, y, p.fsHz, band, p.opt)
				default:
					err = qerr.New(qerr.InvalidParam, op, "unknown measure %v", p.measure)
				}
				if err != nil {
					return nil, err
				}
				values[bi][pi] = v
			}
		}
		for _, f := range p.framers {
			f.Emitted()
		}
		frames = append(frames, PhaseConnFrame{TEndSec: float64(p.framers[0].TotalSamples()) / p.fsHz, Values: values})
	}
	return frames, nil
}

// PACMeasure selects which PAC quantity an online PAC estimator computes.
type PACMeasure int

const (
	PACMeasureModulationIndex PACMeasure = iota
	PACMeasureMVL
)

// PACFrame is one emitted PAC estimate for a single channel.
type PACFrame struct {
	TEndSec float64
	Value   float64
}

// PAC is an online, single-channel phase-amplitude-coupling estimator.
type PAC struct {
	fsHz               float64
	phaseBand, ampBand recording.BandDefinition
	measure            PACMeasure
	opt                pac.Options
	framer             *ringbuf.Framer
}

// NewPAC constructs a PAC estimator for a single channel. opt is used as
// given, including opt.ZeroPhase; pac.DefaultOptions turns zero-phase
// filtering off.
func NewPAC(fsHz float64, phaseBand, ampBand recording.BandDefinition, measure PACMeasure, windowSeconds, updateSeconds float64, opt pac.Options) (*PAC, error) {
	windowSamples, err := ringbuf.WindowSamples(windowSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	updateSamples, err := ringbuf.UpdateSamples(updateSeconds, fsHz)
	if err != nil {
		return nil, err
	}
	framer, err := ringbuf.NewFramer(windowSamples, updateSamples)
	if err != nil {
		return nil, err
	}
	return &PAC{fsHz: fsHz, phaseBand: phaseBand, ampBand: ampBand, measure: measure, opt: opt, framer: framer}, nil
}

// PushBlock pushes one block of samples for the estimator's single channel
// and returns the frames emitted during that block.
func (p *PAC) PushBlock(xs []float64) ([]PACFrame, error) {
	var frames []PACFrame
	for _, x := range xs {
		p.framer.Push(x)
		if !p.framer.ShouldEmit() {
			continue
		}
		window := p.framer.Window()
		var v float64
		var err error
		switch p.measure {
		case PACMeasureModulationIndex:
			v, _, err = pac.ModulationIndex(window, p.fsHz, p.phaseBand, p.ampBand, p.opt)
		case PACMeasureMVL:
			v, err = pac.MVL(window, p.fsHz, p.phaseBand, p.ampBand, p.opt)
		default:
			err = qerr.New(qerr.InvalidParam, "online.PAC.PushBlock", "unknown measure %v", p.measure)
		}
		if err != nil {
			return nil, err
		}
		p.framer.Emitted()
		frames = append(frames, PACFrame{TEndSec: float64(p.framer.TotalSamples()) / p.fsHz, Value: v})
	}
	return frames, nil
}
