// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package welch

import (
	"math"
	"testing"

	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
)

func sineWave(n int, fsHz, freqHz, amp float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = amp * math.Sin(2*math.Pi*freqHz*float64(i)/fsHz)
	}
	return xs
}

func TestPSDFrequencyGrid(t *testing.T) {
	const fs = 256.0
	nperseg := 64
	xs := sineWave(2048, fs, 10, 1)
	res, err := PSD(xs, fs, Options{Nperseg: nperseg, OverlapFraction: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	wantLen := nperseg/2 + 1
	if len(res.FreqsHz) != wantLen {
		t.Fatalf("len(freqs) = %d, want %d", len(res.FreqsHz), wantLen)
	}
	if res.FreqsHz[0] != 0 {
		t.Fatalf("freqs[0] = %v, want 0", res.FreqsHz[0])
	}
	if math.Abs(res.FreqsHz[len(res.FreqsHz)-1]-fs/2) > 1e-9 {
		t.Fatalf("last freq = %v, want fs/2 = %v", res.FreqsHz[len(res.FreqsHz)-1], fs/2)
	}
	step := fs / float64(nperseg)
	for i := 1; i < len(res.FreqsHz); i++ {
		if math.Abs((res.FreqsHz[i]-res.FreqsHz[i-1])-step) > 1e-9 {
			t.Fatalf("freq step at %d = %v, want %v", i, res.FreqsHz[i]-res.FreqsHz[i-1], step)
		}
	}
}

func TestPSDPeaksAtSignalFrequency(t *testing.T) {
	const fs = 256.0
	xs := sineWave(4096, fs, 10, 2)
	res, err := PSD(xs, fs, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	bestIdx := 0
	for i, p := range res.Psd {
		if p > res.Psd[bestIdx] {
			bestIdx = i
		}
	}
	if math.Abs(res.FreqsHz[bestIdx]-10) > fs/float64(DefaultOptions().Nperseg) {
		t.Fatalf("peak at %v Hz, want ~10Hz", res.FreqsHz[bestIdx])
	}
}

func TestPSDRejectsBadParams(t *testing.T) {
	xs := make([]float64, 100)
	if _, err := PSD(xs, 0, DefaultOptions()); !qerr.Is(err, qerr.InvalidParam) {
		t.Fatalf("fs<=0: got %v", err)
	}
	if _, err := PSD(xs, 256, Options{Nperseg: 4, OverlapFraction: 0.5}); !qerr.Is(err, qerr.InvalidParam) {
		t.Fatalf("nperseg<8: got %v", err)
	}
	if _, err := PSD(xs, 256, Options{Nperseg: 256, OverlapFraction: 0.5}); !qerr.Is(err, qerr.InvalidParam) {
		t.Fatalf("nperseg>len: got %v", err)
	}
	if _, err := PSD(xs, 256, Options{Nperseg: 32, OverlapFraction: 1}); !qerr.Is(err, qerr.InvalidParam) {
		t.Fatalf("overlap>=1: got %v", err)
	}
}

func TestIntegrateBandpowerNonNegative(t *testing.T) {
	const fs = 256.0
	xs := sineWave(4096, fs, 10, 2)
	res, err := PSD(xs, fs, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	area, err := IntegrateBandpower(res, 0, fs/2)
	if err != nil {
		t.Fatal(err)
	}
	if area < 0 {
		t.Fatalf("IntegrateBandpower(full range) = %v, want >= 0", area)
	}
}

func TestIntegrateBandpowerInterpolatesAtBoundaries(t *testing.T) {
	psd := recording.PsdResult{
		FreqsHz: []float64{0, 1, 2, 3, 4},
		Psd:     []float64{0, 2, 4, 2, 0},
	}
	// triangular PSD; integral over [0,4] should equal the exact triangle area.
	area, err := IntegrateBandpower(psd, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(area-8) > 1e-9 {
		t.Fatalf("area = %v, want 8", area)
	}
	// sub-band [0.5, 1.5] interpolates the boundary values (1 at 0.5, 3 at
	// 1.5): 0.75 over [0.5, 1] plus 1.25 over [1, 1.5].
	area2, err := IntegrateBandpower(psd, 0.5, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(area2-2) > 1e-9 {
		t.Fatalf("area2 = %v, want 2", area2)
	}
}

func TestRelativeBandpowerZeroDenominator(t *testing.T) {
	psd := recording.PsdResult{FreqsHz: []float64{0, 1, 2}, Psd: []float64{0, 0, 0}}
	got, err := RelativeBandpower(psd, 0, 1, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Fatalf("RelativeBandpower with zero total power = %v, want 0", got)
	}
}

func TestCrossSpectraSymmetryWithSelf(t *testing.T) {
	const fs = 256.0
	xs := sineWave(2048, fs, 10, 1)
	_, pxx, pyy, pxy, err := CrossSpectra(xs, xs, fs, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i := range pxx {
		if math.Abs(pxx[i]-pyy[i]) > 1e-9 {
			t.Fatalf("pxx[%d]=%v != pyy[%d]=%v for identical input", i, pxx[i], i, pyy[i])
		}
		// Pxy should equal Pxx (up to float error) when x==y, and be real.
		if math.Abs(imag(pxy[i])) > 1e-6 {
			t.Fatalf("Im(Pxy[%d]) = %v, want ~0 for identical input", i, imag(pxy[i]))
		}
	}
}

func TestCrossSpectraRejectsLengthMismatch(t *testing.T) {
	xs := make([]float64, 128)
	ys := make([]float64, 64)
	if _, _, _, _, err := CrossSpectra(xs, ys, 256, DefaultOptions()); !qerr.Is(err, qerr.InvalidParam) {
		t.Fatalf("got %v, want InvalidParam", err)
	}
}
