// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"math"
	"testing"
)

func TestMedianOddEven(t *testing.T) {
	if got := Median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("Median(odd) = %v, want 2", got)
	}
	if got := Median([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("Median(even) = %v, want 2.5", got)
	}
}

func TestMedianEmpty(t *testing.T) {
	if got := Median(nil); !math.IsNaN(got) {
		t.Fatalf("Median(nil) = %v, want NaN", got)
	}
}

func TestMedianDropsNonFinite(t *testing.T) {
	got := Median([]float64{1, 2, 3, math.NaN(), math.Inf(1)})
	if got != 2 {
		t.Fatalf("Median with non-finite entries = %v, want 2", got)
	}
}

func TestMADConstantData(t *testing.T) {
	sigma, median := MAD([]float64{5, 5, 5, 5})
	if median != 5 {
		t.Fatalf("median = %v, want 5", median)
	}
	if sigma != 0 {
		t.Fatalf("sigma = %v, want 0", sigma)
	}
}

func TestMADKnownCase(t *testing.T) {
	// median = 3, abs devs = {2,1,0,1,2}, median abs dev = 1, sigma = 1.4826.
	sigma, median := MAD([]float64{1, 2, 3, 4, 5})
	if median != 3 {
		t.Fatalf("median = %v, want 3", median)
	}
	if math.Abs(sigma-MADScale) > 1e-9 {
		t.Fatalf("sigma = %v, want %v", sigma, MADScale)
	}
}

func TestQuantileBounds(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	if got := Quantile(sorted, 0); got != 1 {
		t.Fatalf("Quantile(0) = %v, want 1", got)
	}
	if got := Quantile(sorted, 1); got != 5 {
		t.Fatalf("Quantile(1) = %v, want 5", got)
	}
	if got := Quantile(sorted, 0.5); got != 3 {
		t.Fatalf("Quantile(0.5) = %v, want 3", got)
	}
}

func TestQuantileInterpolates(t *testing.T) {
	sorted := []float64{0, 10}
	if got := Quantile(sorted, 0.25); got != 2.5 {
		t.Fatalf("Quantile(0.25) = %v, want 2.5", got)
	}
}

func TestQuantileEmpty(t *testing.T) {
	if got := Quantile(nil, 0.5); !math.IsNaN(got) {
		t.Fatalf("Quantile(nil) = %v, want NaN", got)
	}
}
