// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

import (
	"gonum.org/v1/gonum/dsp/window"

	"github.com/qeeg-nfb/qengine/qerr"
)

// HannWindow returns a precomputed Hann window of length n, via
// gonum.org/v1/gonum/dsp/window.
func HannWindow(n int) ([]float64, error) {
	if n <= 0 {
		return nil, qerr.New(qerr.InvalidParam, "dsp.HannWindow", "n must be > 0, got %d", n)
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w), nil
}

// ApplyWindow multiplies xs by win elementwise into a freshly allocated
// slice; len(xs) must equal len(win).
func ApplyWindow(xs, win []float64) ([]float64, error) {
	if len(xs) != len(win) {
		return nil, qerr.New(qerr.InvalidParam, "dsp.ApplyWindow", "len(xs)=%d != len(win)=%d", len(xs), len(win))
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * win[i]
	}
	return out, nil
}
