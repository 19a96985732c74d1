// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package artifact

import (
	"math"
	"testing"
)

func constWave(n int, amp, freqHz, fsHz float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = amp * math.Sin(2*math.Pi*freqHz*float64(i)/fsHz)
	}
	return xs
}

func TestBaselineBecomesReadyAfterBaselineSeconds(t *testing.T) {
	const fs = 256.0
	opt := DefaultOptions()
	opt.BaselineSeconds = 2.0
	d, err := New(1, fs, opt)
	if err != nil {
		t.Fatal(err)
	}
	xs := constWave(int(5*fs), 1, 10, fs)
	frames, err := d.PushBlock([][]float64{xs})
	if err != nil {
		t.Fatal(err)
	}
	sawReady := false
	for _, f := range frames {
		if f.BaselineReady {
			sawReady = true
			break
		}
	}
	if !sawReady {
		t.Fatal("expected baseline to become ready within 5s of a 2s baseline window")
	}
}

func TestStableSignalProducesNoArtifactsAfterBaseline(t *testing.T) {
	const fs = 256.0
	opt := DefaultOptions()
	opt.BaselineSeconds = 1.0
	d, err := New(1, fs, opt)
	if err != nil {
		t.Fatal(err)
	}
	xs := constWave(int(6*fs), 1, 10, fs)
	frames, err := d.PushBlock([][]float64{xs})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range frames {
		if f.BaselineReady && f.Bad {
			t.Fatalf("stable repeating signal flagged bad at t=%v (maxPTPz=%v maxRMSz=%v maxKurtz=%v)",
				f.TEndSec, f.MaxPTPZ, f.MaxRMSZ, f.MaxKurtosisZ)
		}
	}
}

func TestSuddenSpikeIsFlaggedBad(t *testing.T) {
	const fs = 256.0
	opt := DefaultOptions()
	opt.BaselineSeconds = 1.0
	d, err := New(1, fs, opt)
	if err != nil {
		t.Fatal(err)
	}
	xs := constWave(int(6*fs), 1, 10, fs)
	spikeStart := int(5 * fs)
	for i := spikeStart; i < spikeStart+8 && i < len(xs); i++ {
		xs[i] += 500
	}
	frames, err := d.PushBlock([][]float64{xs})
	if err != nil {
		t.Fatal(err)
	}
	sawBad := false
	for _, f := range frames {
		if f.BaselineReady && f.Bad {
			sawBad = true
		}
	}
	if !sawBad {
		t.Fatal("expected a large spike to be flagged bad after baseline is ready")
	}
}

func TestZeroOrNegativeThresholdDisablesCriterion(t *testing.T) {
	z, bad := zScore(100, 0, 1, 0)
	if z != 0 || bad {
		t.Fatalf("threshold <= 0 should disable criterion, got z=%v bad=%v", z, bad)
	}
	z, bad = zScore(100, -5, 0, -1)
	if z != 0 || bad {
		t.Fatalf("threshold <= 0 should disable criterion regardless of sigma, got z=%v bad=%v", z, bad)
	}
}

func TestZScoreZeroSigmaExactMatchIsNotBad(t *testing.T) {
	z, bad := zScore(5, 5, 0, 4)
	if z != 0 || bad {
		t.Fatalf("exact match against zero-sigma baseline should not be bad, got z=%v bad=%v", z, bad)
	}
}

func TestZScoreZeroSigmaMismatchIsBad(t *testing.T) {
	z, bad := zScore(6, 5, 0, 4)
	if !bad || !math.IsInf(z, 1) {
		t.Fatalf("any deviation from a zero-sigma baseline should be bad with z=+Inf, got z=%v bad=%v", z, bad)
	}
}

func TestPushBlockRejectsChannelCountMismatch(t *testing.T) {
	d, err := New(2, 256, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.PushBlock([][]float64{make([]float64, 10)}); err == nil {
		t.Fatal("expected error for channel count mismatch")
	}
}

func TestNewRejectsMinBadChannelsBelowOne(t *testing.T) {
	if _, err := New(1, 256, Options{MinBadChannels: 0}); err == nil {
		t.Fatal("expected error for minBadChannels < 1")
	}
}
