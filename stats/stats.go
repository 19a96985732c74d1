// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats implements the small robust-statistics utilities the rest
// of the engine leans on: median, median-absolute-deviation (scaled to a
// robust sigma estimate), and an empirical quantile with explicit linear
// interpolation semantics.
//
// These are deliberately built on the standard library rather than
// gonum/stat: the z-threshold and quantile semantics that artifact
// detection and threshold adaptation need (exact
// interpolation rule, MAD scaling constant) are exact contract points this
// engine must pin down itself rather than inherit from a general-purpose
// statistics package.
package stats

import (
	"math"
	"sort"
)

// MADScale is the constant (1.4826) that turns a median absolute deviation
// into a robust estimator of sigma for a normal distribution.
const MADScale = 1.4826

// Median returns the median of xs. xs is not mutated. Returns NaN for an
// empty slice.
func Median(xs []float64) float64 {
	return Quantile(sortedCopy(xs), 0.5)
}

// MAD returns the median absolute deviation of xs about its median, scaled
// by MADScale so it estimates sigma for normally distributed data: sigma =
// MADScale * median(|x - median|). Sigma is 0 for empty or constant input.
func MAD(xs []float64) (sigma, median float64) {
	sorted := sortedCopy(xs)
	median = Quantile(sorted, 0.5)
	if len(sorted) == 0 {
		return 0, median
	}
	devs := make([]float64, len(sorted))
	for i, x := range sorted {
		d := x - median
		if d < 0 {
			d = -d
		}
		devs[i] = d
	}
	sort.Float64s(devs)
	sigma = Quantile(devs, 0.5) * MADScale
	return sigma, median
}

// Quantile returns the p-quantile (p in [0,1]) of sorted, using linear
// interpolation between the two nearest ranks (the common "R type 7" /
// numpy-default convention). sorted must already be ascending; use
// sortedCopy to produce one from unordered data. Returns NaN if sorted is
// empty.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// sortedCopy returns a sorted ascending copy of xs, dropping any non-finite
// values (NaN/Inf), which would otherwise poison rank-based statistics.
func sortedCopy(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if isFinite(x) {
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
