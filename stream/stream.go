// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream implements the stateful, causal per-channel preprocessing
// chain every online estimator sits behind: optional common-average
// reference, optional notch, optional high-pass + low-pass.
package stream

import (
	"github.com/qeeg-nfb/qengine/dsp"
	"github.com/qeeg-nfb/qengine/qerr"
)

// Options configures one Preprocessor. Any stage with a zero/empty
// frequency is disabled; HighpassHz/LowpassHz of 0 skip that filter.
type Options struct {
	CAR        bool
	NotchHz    float64
	NotchQ     float64
	HighpassHz float64
	LowpassHz  float64
	Q          float64
}

// DefaultOptions returns CAR enabled, a 50Hz notch (Q=30), a 1Hz highpass,
// and a 40Hz lowpass, all at Q=0.707 unless overridden.
func DefaultOptions() Options {
	return Options{CAR: true, NotchHz: 50, NotchQ: 30, HighpassHz: 1, LowpassHz: 40, Q: 0.707}
}

// Preprocessor holds one independent causal filter chain per channel, plus
// the shared CAR computation. All state is retained across PushBlock
// calls so concatenated blocks produce identical output to a single
// larger block, up to floating-point associativity.
type Preprocessor struct {
	fsHz     float64
	opt      Options
	notch    []*dsp.Biquad
	highpass []*dsp.Biquad
	lowpass  []*dsp.Biquad
}

// New builds a Preprocessor for nChannels channels at fsHz.
func New(nChannels int, fsHz float64, opt Options) (*Preprocessor, error) {
	const op = "stream.New"
	if fsHz <= 0 {
		return nil, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	if nChannels < 1 {
		return nil, qerr.New(qerr.InvalidParam, op, "nChannels must be >= 1, got %d", nChannels)
	}
	p := &Preprocessor{fsHz: fsHz, opt: opt}
	if opt.NotchHz > 0 {
		p.notch = make([]*dsp.Biquad, nChannels)
		for i := range p.notch {
			b, err := dsp.NewBiquad(dsp.Notch, fsHz, opt.NotchHz, opt.NotchQ)
			if err != nil {
				return nil, err
			}
			p.notch[i] = b
		}
	}
	if opt.HighpassHz > 0 {
		p.highpass = make([]*dsp.Biquad, nChannels)
		for i := range p.highpass {
			b, err := dsp.NewBiquad(dsp.Highpass, fsHz, opt.HighpassHz, opt.Q)
			if err != nil {
				return nil, err
			}
			p.highpass[i] = b
		}
	}
	if opt.LowpassHz > 0 {
		p.lowpass = make([]*dsp.Biquad, nChannels)
		for i := range p.lowpass {
			b, err := dsp.NewBiquad(dsp.Lowpass, fsHz, opt.LowpassHz, opt.Q)
			if err != nil {
				return nil, err
			}
			p.lowpass[i] = b
		}
	}
	return p, nil
}

func (p *Preprocessor) nChannels() int {
	switch {
	case p.notch != nil:
		return len(p.notch)
	case p.highpass != nil:
		return len(p.highpass)
	case p.lowpass != nil:
		return len(p.lowpass)
	default:
		return 0
	}
}

func carSubtract(block [][]float64) {
	if len(block) == 0 {
		return
	}
	n := len(block[0])
	for t := 0; t < n; t++ {
		var mean float64
		for _, ch := range block {
			mean += ch[t]
		}
		mean /= float64(len(block))
		for _, ch := range block {
			ch[t] -= mean
		}
	}
}

// PushBlock runs the full causal chain over block in place: CAR across
// channels at each sample, then per-channel notch, then per-channel
// high-pass and low-pass, continuing every filter's state from the
// previous call.
func (p *Preprocessor) PushBlock(block [][]float64) error {
	const op = "stream.Preprocessor.PushBlock"
	nCh := p.nChannels()
	if nCh == 0 {
		nCh = len(block)
	}
	if len(block) != nCh {
		return qerr.New(qerr.StateViolation, op, "block has %d channels, want %d", len(block), nCh)
	}
	if p.opt.CAR {
		carSubtract(block)
	}
	for i, ch := range block {
		if p.notch != nil {
			p.notch[i].ProcessInPlace(ch)
		}
		if p.highpass != nil {
			p.highpass[i].ProcessInPlace(ch)
		}
		if p.lowpass != nil {
			p.lowpass[i].ProcessInPlace(ch)
		}
	}
	return nil
}

// ProcessOffline runs the same chain as PushBlock but over a complete
// recording buffer, using forward-backward (zero-phase) filtering for
// every active stage instead of the causal one-pass filter.
// block is modified in place; filter state used
// internally is fresh per call and not retained.
func ProcessOffline(block [][]float64, fsHz float64, opt Options) error {
	const op = "stream.ProcessOffline"
	if fsHz <= 0 {
		return qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	if opt.CAR {
		carSubtract(block)
	}
	for i, ch := range block {
		if opt.NotchHz > 0 {
			b, err := dsp.NewBiquad(dsp.Notch, fsHz, opt.NotchHz, opt.NotchQ)
			if err != nil {
				return err
			}
			copy(ch, dsp.ZeroPhase(b, ch))
		}
		if opt.HighpassHz > 0 {
			b, err := dsp.NewBiquad(dsp.Highpass, fsHz, opt.HighpassHz, opt.Q)
			if err != nil {
				return err
			}
			copy(ch, dsp.ZeroPhase(b, ch))
		}
		if opt.LowpassHz > 0 {
			b, err := dsp.NewBiquad(dsp.Lowpass, fsHz, opt.LowpassHz, opt.Q)
			if err != nil {
				return err
			}
			copy(ch, dsp.ZeroPhase(b, ch))
		}
		block[i] = ch
	}
	return nil
}
