// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package welch

import (
	"testing"

	"pgregory.net/rapid"
)

// TestPSDIsNonNegative checks that the power spectral density is
// non-negative at every bin for arbitrary finite input.
func TestPSDIsNonNegative(t *testing.T) {
	const fs = 128.0
	const n = 512

	rapid.Check(t, func(t *rapid.T) {
		xs := rapid.SliceOfN(rapid.Float64Range(-100, 100), n, n).Draw(t, "xs")

		psd, err := PSD(xs, fs, Options{Nperseg: 128, OverlapFraction: 0.5})
		if err != nil {
			t.Fatalf("PSD: %v", err)
		}
		for i, p := range psd.Psd {
			if p < 0 {
				t.Fatalf("psd[%d] = %v, want >= 0", i, p)
			}
		}
		if len(psd.Psd) != len(psd.FreqsHz) {
			t.Fatalf("len(Psd)=%d != len(FreqsHz)=%d", len(psd.Psd), len(psd.FreqsHz))
		}
	})
}
