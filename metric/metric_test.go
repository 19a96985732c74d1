// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metric

import (
	"math"
	"testing"

	"github.com/qeeg-nfb/qengine/pac"
	"github.com/qeeg-nfb/qengine/phaseconn"
	"github.com/qeeg-nfb/qengine/recording"
	"github.com/qeeg-nfb/qengine/welch"
)

func sineWave(n int, fsHz, freqHz, amp float64) []float32 {
	xs := make([]float32, n)
	for i := range xs {
		xs[i] = float32(amp * math.Sin(2*math.Pi*freqHz*float64(i)/fsHz))
	}
	return xs
}

func testRecording() *recording.Recording {
	const fs = 256.0
	n := int(8 * fs)
	return &recording.Recording{
		FsHz:         fs,
		ChannelNames: []string{"Fz", "Pz"},
		Channels: [][]float32{
			sineWave(n, fs, 10, 1),
			sineWave(n, fs, 10, 1),
		},
	}
}

func TestParseBandShorthandAndExplicit(t *testing.T) {
	bands := recording.DefaultBands()
	s, err := Parse("alpha:Fz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != KindBand || s.Channel != "Fz" || s.Band.Name != "alpha" {
		t.Fatalf("got %+v", s)
	}

	s2, err := Parse("band:alpha:Fz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s2 != s {
		t.Fatalf("explicit and shorthand band specs should parse identically: %+v vs %+v", s, s2)
	}
}

func TestParseRatioShorthandAndExplicit(t *testing.T) {
	bands := recording.DefaultBands()
	s, err := Parse("theta/alpha:Fz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != KindRatio || s.NumBand.Name != "theta" || s.DenBand.Name != "alpha" || s.Channel != "Fz" {
		t.Fatalf("got %+v", s)
	}
	s2, err := Parse("ratio:theta:alpha:Fz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s2 != s {
		t.Fatalf("explicit and shorthand ratio specs should parse identically")
	}
}

func TestParseAsym(t *testing.T) {
	bands := recording.DefaultBands()
	s, err := Parse("asym:alpha:Fz:Pz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != KindAsym || s.ChannelA != "Fz" || s.ChannelB != "Pz" {
		t.Fatalf("got %+v", s)
	}
}

func TestParseCoherenceWithAndWithoutMeasure(t *testing.T) {
	bands := recording.DefaultBands()
	s, err := Parse("coh:alpha:Fz:Pz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != KindCoherence || s.CoherenceMeasure != CoherenceMSC {
		t.Fatalf("got %+v", s)
	}
	s2, err := Parse("coh:imag:alpha:Fz:Pz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s2.CoherenceMeasure != CoherenceImaginary {
		t.Fatalf("got %+v", s2)
	}
}

func TestEvaluateCoherencePLVOfIdenticalChannelsIsNearOne(t *testing.T) {
	rec := testRecording()
	e := &Evaluator{
		Recording:     rec,
		WelchOpts:     welch.Options{Nperseg: 256, OverlapFraction: 0.5},
		PhaseConnOpts: phaseconn.DefaultOptions(),
	}
	s, err := Parse("coh:plv:alpha:Fz:Pz", recording.DefaultBands())
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Evaluate(s)
	if err != nil {
		t.Fatal(err)
	}
	if v < 0.9 {
		t.Fatalf("PLV of identical channels = %v, want close to 1", v)
	}
}

func TestParsePACAndMVL(t *testing.T) {
	bands := recording.DefaultBands()
	s, err := Parse("pac:theta:gamma:Fz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != KindPAC || s.UseMVL || s.Channel != "Fz" {
		t.Fatalf("got %+v", s)
	}
	s2, err := Parse("mvl:theta:gamma:Fz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if !s2.UseMVL {
		t.Fatalf("expected UseMVL=true for mvl: prefix")
	}
}

func TestParseExplicitRangeAsBand(t *testing.T) {
	bands := recording.DefaultBands()
	s, err := Parse("band:9-11:Fz", bands)
	if err != nil {
		t.Fatal(err)
	}
	if s.Band.FminHz != 9 || s.Band.FmaxHz != 11 {
		t.Fatalf("got band %+v", s.Band)
	}
}

func TestParseRejectsUnknownBand(t *testing.T) {
	if _, err := Parse("band:notaband:Fz", recording.DefaultBands()); err == nil {
		t.Fatal("expected error for unknown band name")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse("ratio:alpha:Fz", recording.DefaultBands()); err == nil {
		t.Fatal("expected error for wrong arity")
	}
	if _, err := Parse("", recording.DefaultBands()); err == nil {
		t.Fatal("expected error for empty spec")
	}
}

func TestEvaluateBandIsNonNegative(t *testing.T) {
	rec := testRecording()
	e := &Evaluator{Recording: rec, WelchOpts: welch.Options{Nperseg: 256, OverlapFraction: 0.5}}
	s, err := Parse("alpha:Fz", recording.DefaultBands())
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Evaluate(s)
	if err != nil {
		t.Fatal(err)
	}
	if v < 0 {
		t.Fatalf("bandpower = %v, want >= 0", v)
	}
}

func TestEvaluateCoherenceOfIdenticalChannelsIsNearOne(t *testing.T) {
	rec := testRecording()
	e := &Evaluator{Recording: rec, WelchOpts: welch.Options{Nperseg: 256, OverlapFraction: 0.5}}
	s, err := Parse("coh:alpha:Fz:Pz", recording.DefaultBands())
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Evaluate(s)
	if err != nil {
		t.Fatal(err)
	}
	if v < 0.9 {
		t.Fatalf("coherence of identical channels = %v, want close to 1", v)
	}
}

func TestEvaluateAsymOfIdenticalChannelsIsZero(t *testing.T) {
	rec := testRecording()
	e := &Evaluator{Recording: rec, WelchOpts: welch.Options{Nperseg: 256, OverlapFraction: 0.5}}
	s, err := Parse("asym:alpha:Fz:Pz", recording.DefaultBands())
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Evaluate(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v) > 1e-6 {
		t.Fatalf("asym of identical channels = %v, want ~0", v)
	}
}

func TestEvaluatePACReturnsFiniteValue(t *testing.T) {
	const fs = 500.0
	n := int(12 * fs)
	xs := make([]float32, n)
	for i := range xs {
		tSec := float64(i) / fs
		env := 1 + 0.9*math.Sin(2*math.Pi*6*tSec)
		xs[i] = float32(0.5*math.Sin(2*math.Pi*6*tSec) + env*math.Sin(2*math.Pi*80*tSec))
	}
	rec := &recording.Recording{FsHz: fs, ChannelNames: []string{"Cz"}, Channels: [][]float32{xs}}
	bands := []recording.BandDefinition{
		{Name: "phase", FminHz: 4, FmaxHz: 8},
		{Name: "amp", FminHz: 70, FmaxHz: 90},
	}
	e := &Evaluator{
		Recording: rec,
		PacOpts:   pac.Options{ZeroPhase: true, EdgeTrimFraction: 0.10, NPhaseBins: 18, Q: 0.707},
	}
	s, err := Parse("pac:phase:amp:Cz", bands)
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Evaluate(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(v) {
		t.Fatal("expected a finite MI on a strongly coupled toy signal")
	}
}

func TestBaselineNormalizeIdentityLaws(t *testing.T) {
	const x = 3.5
	if got := BaselineNormalize(x, x, BaselineRatio); math.Abs(got-1) > 1e-12 {
		t.Fatalf("ratio(x,x) = %v, want 1", got)
	}
	if got := BaselineNormalize(x, x, BaselineRelativeChange); math.Abs(got) > 1e-12 {
		t.Fatalf("rel(x,x) = %v, want 0", got)
	}
	if got := BaselineNormalize(x, x, BaselineLog10Ratio); math.Abs(got) > 1e-12 {
		t.Fatalf("logratio(x,x) = %v, want 0", got)
	}
	if got := BaselineNormalize(x, x, BaselineDecibel); math.Abs(got) > 1e-12 {
		t.Fatalf("db(x,x) = %v, want 0", got)
	}
}

func TestBaselineNormalizeNonPositiveBaselineIsNaN(t *testing.T) {
	for _, mode := range []BaselineMode{BaselineRatio, BaselineRelativeChange, BaselineLog10Ratio, BaselineDecibel} {
		if got := BaselineNormalize(1.0, 0, mode); !math.IsNaN(got) {
			t.Fatalf("mode %v: baseline=0 should yield NaN, got %v", mode, got)
		}
		if got := BaselineNormalize(1.0, -1, mode); !math.IsNaN(got) {
			t.Fatalf("mode %v: negative baseline should yield NaN, got %v", mode, got)
		}
	}
}
