// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

// Bandpass chains a highpass and a lowpass biquad, each run causally in
// series over xs in place: highpass at loHz removes drift, lowpass at
// hiHz removes anything above the band of interest. q applies to both
// sections.
type Bandpass struct {
	hp, lp *Biquad
}

// NewBandpass constructs a Bandpass section from a highpass cutoff loHz
// and a lowpass cutoff hiHz (loHz < hiHz < fs/2).
func NewBandpass(fsHz, loHz, hiHz, q float64) (*Bandpass, error) {
	hp, err := NewBiquad(Highpass, fsHz, loHz, q)
	if err != nil {
		return nil, err
	}
	lp, err := NewBiquad(Lowpass, fsHz, hiHz, q)
	if err != nil {
		return nil, err
	}
	return &Bandpass{hp: hp, lp: lp}, nil
}

// Reset zeroes both sections' state.
func (b *Bandpass) Reset() {
	b.hp.Reset()
	b.lp.Reset()
}

// ProcessInPlace runs the highpass section then the lowpass section over
// xs, in place, continuing from whatever state each section already holds.
func (b *Bandpass) ProcessInPlace(xs []float64) {
	b.hp.ProcessInPlace(xs)
	b.lp.ProcessInPlace(xs)
}

// ZeroPhaseBandpass applies ZeroPhase with the highpass section, then
// ZeroPhase with the lowpass section, over the result — an offline,
// zero-phase bandpass built from the same forward/reverse construction as
// ZeroPhase.
func ZeroPhaseBandpass(b *Bandpass, xs []float64) []float64 {
	return ZeroPhase(b.lp, ZeroPhase(b.hp, xs))
}
