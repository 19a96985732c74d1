// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package microstates

import (
	"math"
	"testing"
)

func TestComputeGFPPopulationFormula(t *testing.T) {
	channels := [][]float64{
		{1, 0, 2},
		{-1, 0, -2},
	}
	gfp := ComputeGFP(channels)
	want := []float64{1, 0, 2}
	for i := range want {
		if math.Abs(gfp[i]-want[i]) > 1e-9 {
			t.Fatalf("gfp[%d] = %v, want %v", i, gfp[i], want[i])
		}
	}
}

func TestDemeanAndNormalizeRejectsZeroVector(t *testing.T) {
	v := []float64{0, 0, 0}
	if demeanAndNormalize(v, false) {
		t.Fatal("zero vector should be rejected")
	}
	v2 := []float64{3, 4}
	if !demeanAndNormalize(v2, false) {
		t.Fatal("non-zero vector should normalize")
	}
	if math.Abs(v2[0]-0.6) > 1e-9 || math.Abs(v2[1]-0.8) > 1e-9 {
		t.Fatalf("got %v, want unit vector [0.6, 0.8]", v2)
	}
}

func TestSmoothMinDurationMergesShortRuns(t *testing.T) {
	labels := []int{0, 0, 0, 0, 1, 0, 0, 0, 0, 0}
	smoothMinDuration(labels, 3)
	for _, l := range labels {
		if l != 0 {
			t.Fatalf("expected isolated single-sample run to be absorbed: %v", labels)
		}
	}
}

// buildSyntheticTopographies generates data with one channel per template
// entry that cycles three times through the given templates,
// samplesPerState samples per template, with added per-channel noise,
// separated by GFP peaks.
func buildSyntheticTopographies(templates [][]float64, samplesPerState int, noise float64, seed int64) [][]float64 {
	nChannels := len(templates[0])
	nStates := len(templates)
	n := samplesPerState * nStates * 3
	channels := make([][]float64, nChannels)
	for c := range channels {
		channels[c] = make([]float64, n)
	}
	rngState := seed
	nextRand := func() float64 {
		rngState = rngState*6364136223846793005 + 1442695040888963407
		return float64(uint64(rngState)>>11) / float64(1<<53)
	}
	for t := 0; t < n; t++ {
		block := (t / samplesPerState) % nStates
		phase := float64(t%samplesPerState) / float64(samplesPerState)
		envelope := math.Sin(math.Pi * phase) // 0 at edges, 1 at block center: creates a GFP peak per block
		for c := 0; c < nChannels; c++ {
			v := envelope*templates[block][c] + noise*(2*nextRand()-1)
			channels[c][t] = v
		}
	}
	return channels
}

func bestAbsCorrelation(templates [][]float64, target []float64) float64 {
	best := 0.0
	for _, tpl := range templates {
		d := dotUnit(tpl, target)
		if math.Abs(d) > best {
			best = math.Abs(d)
		}
	}
	return best
}

func TestEstimateRecoversKnownTemplates(t *testing.T) {
	trueTemplates := [][]float64{
		{1, 1, -1, -1, 0},
		{1, -1, 1, -1, 0},
		{1, -1, -1, 1, 0},
		{0, 1, 1, -1, -1},
	}
	for _, tpl := range trueTemplates {
		demeanAndNormalize(tpl, true)
	}

	channels := buildSyntheticTopographies(trueTemplates, 20, 0.05, 42)

	opt := DefaultOptions()
	opt.K = 4
	opt.Seed = 42
	opt.PeakPickFraction = 1.0
	opt.MaxPeaks = 10000

	res, err := Estimate(channels, 100.0, opt)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	for i, tpl := range trueTemplates {
		corr := bestAbsCorrelation(res.Templates, tpl)
		if corr < 0.80 {
			t.Fatalf("true template %d: best |corr| with recovered templates = %v, want > 0.80", i, corr)
		}
	}
	if res.GEV < 0.50 {
		t.Fatalf("GEV = %v, want > 0.50", res.GEV)
	}
}

func TestEstimateCoverageSumsToOne(t *testing.T) {
	trueTemplates := [][]float64{
		{1, 1, -1, -1},
		{1, -1, 1, -1},
	}
	for _, tpl := range trueTemplates {
		demeanAndNormalize(tpl, true)
	}
	channels := buildSyntheticTopographies(trueTemplates, 15, 0.05, 7)
	opt := DefaultOptions()
	opt.K = 2
	opt.Seed = 7
	opt.PeakPickFraction = 1.0

	res, err := Estimate(channels, 100.0, opt)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, c := range res.Coverage {
		sum += c
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("coverage should sum to 1, got %v", sum)
	}
	if res.GEV < 0 || res.GEV > 1 {
		t.Fatalf("GEV out of [0,1]: %v", res.GEV)
	}
	for _, lab := range res.Labels {
		if lab < -1 || lab >= opt.K {
			t.Fatalf("label %d out of range [-1, %d)", lab, opt.K)
		}
	}
	for _, tpl := range res.Templates {
		var n2 float64
		for _, x := range tpl {
			n2 += x * x
		}
		if math.Abs(n2-1) > 1e-6 {
			t.Fatalf("template not unit-L2: norm^2 = %v", n2)
		}
	}
}

func TestEstimateRejectsTooFewChannels(t *testing.T) {
	_, err := Estimate([][]float64{{1, 2, 3}}, 100, DefaultOptions())
	if err == nil {
		t.Fatal("expected error for single channel")
	}
}

func TestEstimateRejectsNonPositiveFs(t *testing.T) {
	channels := [][]float64{{1, 2, 3}, {4, 5, 6}}
	_, err := Estimate(channels, 0, DefaultOptions())
	if err == nil {
		t.Fatal("expected error for fsHz <= 0")
	}
}

func TestSegmenterWorkedExample(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1, 1, 0, 0}
	corr := make([]float64, len(labels))
	gfp := make([]float64, len(labels))
	for i := range corr {
		corr[i] = 1.0
		gfp[i] = 1.0
	}
	segs, err := Segmenter(labels, corr, gfp, 10.0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	wantDur := []float64{0.3, 0.3, 0.2}
	wantLabel := []int{0, 1, 0}
	for i, s := range segs {
		if s.Label != wantLabel[i] {
			t.Fatalf("segment %d: label = %d, want %d", i, s.Label, wantLabel[i])
		}
		if math.Abs(s.DurationSec-wantDur[i]) > 1e-9 {
			t.Fatalf("segment %d: duration = %v, want %v", i, s.DurationSec, wantDur[i])
		}
		if math.Abs(s.MeanCorr-1.0) > 1e-9 {
			t.Fatalf("segment %d: mean corr = %v, want 1.0", i, s.MeanCorr)
		}
	}
}

func TestSegmenterIncludeUndefined(t *testing.T) {
	labels := []int{-1, -1, 0, 0}
	corr := []float64{0, 0, 0.9, 0.9}
	gfp := []float64{0, 0, 1, 1}

	without, err := Segmenter(labels, corr, gfp, 10.0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(without) != 1 {
		t.Fatalf("excluding undefined: got %d segments, want 1", len(without))
	}

	with, err := Segmenter(labels, corr, gfp, 10.0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(with) != 2 {
		t.Fatalf("including undefined: got %d segments, want 2", len(with))
	}
	if with[0].Label != -1 {
		t.Fatalf("first segment should carry label -1, got %d", with[0].Label)
	}
}

func TestSegmenterRejectsMismatchedLengths(t *testing.T) {
	if _, err := Segmenter([]int{0, 1}, []float64{1}, []float64{1, 1}, 10, false); err == nil {
		t.Fatal("expected error for mismatched corr length")
	}
}
