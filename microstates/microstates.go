// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package microstates implements the offline EEG microstate pipeline:
// GFP computation, peak picking, polarity-aware k-means
// clustering of peak topographies into templates, per-sample labeling, and
// summary statistics.
package microstates

import (
	"math"
	"math/rand"
	"sort"

	"github.com/qeeg-nfb/qengine/qerr"
	"gonum.org/v1/gonum/floats"
)

// Options configures one Estimate call. All fields are immutable once
// passed in.
type Options struct {
	K                      int
	PeakPickFraction       float64
	MaxPeaks               int
	MinPeakDistanceSamples int
	DemeanTopography       bool
	PolarityInvariant      bool
	MaxIterations          int
	ConvergenceTol         float64
	Seed                   int64
	MinSegmentSamples      int
}

// DefaultOptions returns the usual starting configuration: k=4, 10% peak
// pick fraction, up to 1000 peaks, no minimum peak spacing, demeaned
// polarity-invariant topographies, 100 k-means iterations, tol=1e-6.
func DefaultOptions() Options {
	return Options{
		K:                 4,
		PeakPickFraction:  0.10,
		MaxPeaks:          1000,
		DemeanTopography:  true,
		PolarityInvariant: true,
		MaxIterations:     100,
		ConvergenceTol:    1e-6,
		Seed:              12345,
	}
}

// Result is the full output of Estimate.
type Result struct {
	Templates        [][]float64 // k x nChannels, unit-L2
	Labels           []int       // length nSamples, in {-1, 0, ..., k-1}
	GFP              []float64
	Corr             []float64 // per-sample |correlation| to assigned template, in [0,1]
	GEV              float64
	GEVState         []float64
	Coverage         []float64
	MeanDurationSec  []float64
	OccurrencePerSec []float64
	TransitionCounts [][]int
}

// ComputeGFP returns the Global Field Power at every sample: the
// bias-free (population, denominator C = channel count) cross-channel
// standard deviation. channels is channel-major: channels[c][t].
func ComputeGFP(channels [][]float64) []float64 {
	c := len(channels)
	if c == 0 {
		return nil
	}
	n := len(channels[0])
	gfp := make([]float64, n)
	for t := 0; t < n; t++ {
		var mean float64
		for ch := 0; ch < c; ch++ {
			mean += channels[ch][t]
		}
		mean /= float64(c)
		var variance float64
		for ch := 0; ch < c; ch++ {
			d := channels[ch][t] - mean
			variance += d * d
		}
		variance /= float64(c)
		if variance < 0 {
			variance = 0
		}
		gfp[t] = math.Sqrt(variance)
	}
	return gfp
}

func findGFPPeaksRaw(gfp []float64) []int {
	var peaks []int
	if len(gfp) < 3 {
		return peaks
	}
	for i := 1; i+1 < len(gfp); i++ {
		if gfp[i] > gfp[i-1] && gfp[i] >= gfp[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

func enforceMinDistance(peaks []int, gfp []float64, minDist int) []int {
	if minDist <= 0 || len(peaks) == 0 {
		return peaks
	}
	order := append([]int(nil), peaks...)
	sort.Slice(order, func(i, j int) bool { return gfp[order[i]] > gfp[order[j]] })

	var kept []int
	for _, idx := range order {
		ok := true
		for _, j := range kept {
			d := idx - j
			if d < 0 {
				d = -d
			}
			if d < minDist {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, idx)
		}
	}
	sort.Ints(kept)
	return kept
}

func pickTopFraction(peaks []int, gfp []float64, frac float64, maxPeaks, minKeep int) []int {
	if len(peaks) == 0 {
		return peaks
	}
	if frac <= 0 {
		frac = 1
	}
	if frac > 1 {
		frac = 1
	}
	want := int(math.Ceil(frac * float64(len(peaks))))
	if want < minKeep {
		want = minKeep
	}
	if want > len(peaks) {
		want = len(peaks)
	}
	if maxPeaks > 0 && want > maxPeaks {
		want = maxPeaks
	}

	order := append([]int(nil), peaks...)
	sort.Slice(order, func(i, j int) bool { return gfp[order[i]] > gfp[order[j]] })
	order = order[:want]
	sort.Ints(order)
	return order
}

// demeanAndNormalize optionally subtracts the mean, then L2-normalizes v
// in place. On an empty v or a zero or non-finite norm it returns false
// without normalizing; v then keeps the optional demeaning.
func demeanAndNormalize(v []float64, demean bool) bool {
	if len(v) == 0 {
		return false
	}
	if demean {
		var mean float64
		for _, x := range v {
			mean += x
		}
		mean /= float64(len(v))
		for i := range v {
			v[i] -= mean
		}
	}
	n := floats.Norm(v, 2)
	if !(n > 0) || math.IsNaN(n) || math.IsInf(n, 0) || n < 1e-12 {
		return false
	}
	floats.Scale(1/n, v)
	return true
}

func dotUnit(a, b []float64) float64 {
	return floats.Dot(a, b)
}

func dist2Unit(x, c []float64, polarityInvariant bool) float64 {
	d := dotUnit(x, c)
	if polarityInvariant && d < 0 {
		d = -d
	}
	return 2 - 2*d
}

func extractPeakTopographies(channels [][]float64, peaks []int, demean bool) [][]float64 {
	c := len(channels)
	var out [][]float64
	for _, t := range peaks {
		v := make([]float64, c)
		for ch := 0; ch < c; ch++ {
			v[ch] = channels[ch][t]
		}
		if demeanAndNormalize(v, demean) {
			out = append(out, v)
		}
	}
	return out
}

// kmeansTemplates runs polarity-aware k-means++ initialization followed by
// Lloyd iteration over unit-norm topographies X.
func kmeansTemplates(x [][]float64, k int, polarityInvariant, demeanTemplates bool, maxIter int, tol float64, seed int64) ([][]float64, error) {
	const op = "microstates.kmeansTemplates"
	if k <= 0 {
		return nil, qerr.New(qerr.InvalidParam, op, "k must be > 0, got %d", k)
	}
	n := len(x)
	if n == 0 {
		return nil, qerr.New(qerr.InsufficientData, op, "no peak topographies to cluster")
	}
	d := len(x[0])
	for _, row := range x {
		if len(row) != d {
			return nil, qerr.New(qerr.InvalidParam, op, "inconsistent topography dimensions")
		}
	}
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), x[rng.Intn(n)]...))

	dist2 := make([]float64, n)
	for c := 1; c < k; c++ {
		var sum float64
		for i := 0; i < n; i++ {
			best := math.Inf(1)
			for _, cen := range centroids {
				if v := dist2Unit(x[i], cen, polarityInvariant); v < best {
					best = v
				}
			}
			dist2[i] = best
			sum += best
		}
		if !(sum > 0) || math.IsNaN(sum) || math.IsInf(sum, 0) {
			centroids = append(centroids, append([]float64(nil), x[rng.Intn(n)]...))
			continue
		}
		r := rng.Float64() * sum
		var acc float64
		pick := 0
		for i := 0; i < n; i++ {
			acc += dist2[i]
			if acc >= r {
				pick = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), x[pick]...))
	}
	for _, c := range centroids {
		demeanAndNormalize(c, demeanTemplates)
	}

	labels := make([]int, n)
	signs := make([]int, n)
	for i := range labels {
		labels[i] = -1
		signs[i] = 1
	}

	for iter := 0; iter < maxIter; iter++ {
		anyChange := false

		for i := 0; i < n; i++ {
			bestD2 := math.Inf(1)
			bestK, bestS := 0, 1
			for j, cen := range centroids {
				dd := dotUnit(x[i], cen)
				s := 1
				if polarityInvariant && dd < 0 {
					s = -1
					dd = -dd
				}
				d2 := 2 - 2*dd
				if d2 < bestD2 {
					bestD2, bestK, bestS = d2, j, s
				}
			}
			if labels[i] != bestK || signs[i] != bestS {
				labels[i], signs[i] = bestK, bestS
				anyChange = true
			}
		}

		newCentroids := make([][]float64, k)
		counts := make([]int, k)
		for j := range newCentroids {
			newCentroids[j] = make([]float64, d)
		}
		for i := 0; i < n; i++ {
			lab := labels[i]
			if lab < 0 || lab >= k {
				continue
			}
			acc := newCentroids[lab]
			if polarityInvariant && signs[i] < 0 {
				for c := 0; c < d; c++ {
					acc[c] -= x[i][c]
				}
			} else {
				for c := 0; c < d; c++ {
					acc[c] += x[i][c]
				}
			}
			counts[lab]++
		}
		for j := 0; j < k; j++ {
			if counts[j] <= 0 {
				newCentroids[j] = append([]float64(nil), x[rng.Intn(n)]...)
			} else {
				inv := 1.0 / float64(counts[j])
				for c := range newCentroids[j] {
					newCentroids[j][c] *= inv
				}
			}
			demeanAndNormalize(newCentroids[j], demeanTemplates)
		}

		maxShift := 0.0
		for j := 0; j < k; j++ {
			oldC := centroids[j]
			shiftTarget := append([]float64(nil), newCentroids[j]...)
			if polarityInvariant {
				if dotUnit(oldC, shiftTarget) < 0 {
					for c := range shiftTarget {
						shiftTarget[c] = -shiftTarget[c]
					}
				}
			}
			var s2 float64
			for c := 0; c < d; c++ {
				diff := shiftTarget[c] - oldC[c]
				s2 += diff * diff
			}
			if shift := math.Sqrt(s2); shift > maxShift {
				maxShift = shift
			}
		}

		centroids = newCentroids
		if !anyChange || maxShift < tol {
			break
		}
	}

	return centroids, nil
}

func smoothMinDuration(labels []int, minLen int) {
	n := len(labels)
	if n == 0 || minLen <= 1 {
		return
	}
	changed := true
	for guard := 0; changed && guard < 10; guard++ {
		changed = false
		i := 0
		for i < n {
			lab := labels[i]
			j := i + 1
			for j < n && labels[j] == lab {
				j++
			}
			runLen := j - i

			if lab >= 0 && runLen < minLen {
				newLab := lab
				switch {
				case i == 0:
					if j < n {
						newLab = labels[j]
					}
				case j >= n:
					newLab = labels[i-1]
				default:
					prevLab := labels[i-1]
					nextLab := labels[j]
					prevLen := 0
					for p := i - 1; p >= 0 && labels[p] == prevLab; p-- {
						prevLen++
					}
					nextLen := 0
					for q := j; q < n && labels[q] == nextLab; q++ {
						nextLen++
					}
					if nextLen > prevLen {
						newLab = nextLab
					} else {
						newLab = prevLab
					}
				}
				if newLab != lab && newLab >= 0 {
					for t := i; t < j; t++ {
						labels[t] = newLab
					}
					changed = true
				}
			}
			i = j
		}
	}
}

// Estimate runs the full microstates pipeline over channels (channel-major,
// already CAR-referenced and optionally bandpassed) at fsHz, per Options.
func Estimate(channels [][]float64, fsHz float64, opt Options) (Result, error) {
	const op = "microstates.Estimate"
	if len(channels) < 2 {
		return Result{}, qerr.New(qerr.InvalidParam, op, "need >= 2 channels, got %d", len(channels))
	}
	n := len(channels[0])
	if n < 3 {
		return Result{}, qerr.New(qerr.InvalidParam, op, "need >= 3 samples, got %d", n)
	}
	if opt.K <= 0 {
		return Result{}, qerr.New(qerr.InvalidParam, op, "k must be > 0, got %d", opt.K)
	}
	if fsHz <= 0 {
		return Result{}, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}

	gfp := ComputeGFP(channels)

	peaks := findGFPPeaksRaw(gfp)
	peaks = enforceMinDistance(peaks, gfp, opt.MinPeakDistanceSamples)
	if len(peaks) == 0 {
		maxPeaks := opt.MaxPeaks
		if maxPeaks < 1 {
			maxPeaks = 1
		}
		stride := n / maxPeaks
		if stride < 1 {
			stride = 1
		}
		for t := 0; t < n; t += stride {
			peaks = append(peaks, t)
		}
	}

	minKeep := opt.K
	if minKeep < 1 {
		minKeep = 1
	}
	peaks = pickTopFraction(peaks, gfp, opt.PeakPickFraction, opt.MaxPeaks, minKeep)

	x := extractPeakTopographies(channels, peaks, opt.DemeanTopography)
	if len(x) == 0 {
		return Result{}, qerr.New(qerr.Numerical, op, "no usable peak topographies (all zero-norm)")
	}

	k := opt.K
	if k > len(x) {
		k = len(x)
	}

	templates, err := kmeansTemplates(x, k, opt.PolarityInvariant, opt.DemeanTopography, opt.MaxIterations, opt.ConvergenceTol, opt.Seed)
	if err != nil {
		return Result{}, err
	}

	c := len(channels)
	labels := make([]int, n)
	corr := make([]float64, n)
	topo := make([]float64, c)
	for t := 0; t < n; t++ {
		for ch := 0; ch < c; ch++ {
			topo[ch] = channels[ch][t]
		}
		sample := append([]float64(nil), topo...)
		if !demeanAndNormalize(sample, opt.DemeanTopography) {
			labels[t] = -1
			corr[t] = 0
			continue
		}
		bestAbsDot := -1.0
		bestK := 0
		for j := 0; j < k; j++ {
			dd := dotUnit(sample, templates[j])
			if opt.PolarityInvariant {
				dd = math.Abs(dd)
			}
			if dd > bestAbsDot {
				bestAbsDot = dd
				bestK = j
			}
		}
		labels[t] = bestK
		corr[t] = math.Max(0, math.Min(1, bestAbsDot))
	}

	if opt.MinSegmentSamples > 1 {
		smoothMinDuration(labels, opt.MinSegmentSamples)
	}

	coverage := make([]float64, k)
	meanDuration := make([]float64, k)
	occurrence := make([]float64, k)
	transitions := make([][]int, k)
	for j := range transitions {
		transitions[j] = make([]int, k)
	}

	sampleCounts := make([]int, k)
	for _, lab := range labels {
		if lab >= 0 && lab < k {
			sampleCounts[lab]++
		}
	}
	total := math.Max(1, float64(n))
	for j := 0; j < k; j++ {
		coverage[j] = float64(sampleCounts[j]) / total
	}

	segCount := make([]int, k)
	segLenSum := make([]float64, k)
	prevSegLab := -1
	i := 0
	for i < n {
		lab := labels[i]
		j := i + 1
		for j < n && labels[j] == lab {
			j++
		}
		runLen := j - i
		if lab >= 0 && lab < k {
			segCount[lab]++
			segLenSum[lab] += float64(runLen)
			if prevSegLab >= 0 && prevSegLab < k {
				transitions[prevSegLab][lab]++
			}
			prevSegLab = lab
		}
		i = j
	}

	durationSec := float64(n) / fsHz
	for j := 0; j < k; j++ {
		if segCount[j] > 0 {
			meanDuration[j] = (segLenSum[j] / float64(segCount[j])) / fsHz
			occurrence[j] = float64(segCount[j]) / math.Max(1e-9, durationSec)
		}
	}

	gevState := make([]float64, k)
	var numer, denom float64
	for t := 0; t < n; t++ {
		w := gfp[t] * gfp[t]
		denom += w
		contrib := w * corr[t] * corr[t]
		numer += contrib
		if lab := labels[t]; lab >= 0 && lab < k {
			gevState[lab] += contrib
		}
	}
	gev := 0.0
	if denom > 0 {
		gev = numer / denom
		for j := range gevState {
			gevState[j] /= denom
		}
	}

	return Result{
		Templates:        templates,
		Labels:           labels,
		GFP:              gfp,
		Corr:             corr,
		GEV:              gev,
		GEVState:         gevState,
		Coverage:         coverage,
		MeanDurationSec:  meanDuration,
		OccurrencePerSec: occurrence,
		TransitionCounts: transitions,
	}, nil
}
