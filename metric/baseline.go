// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metric

import "math"

// BaselineMode names one of the four epoch-vs-baseline power transforms.
type BaselineMode int

const (
	BaselineRatio BaselineMode = iota
	BaselineRelativeChange
	BaselineLog10Ratio
	BaselineDecibel
)

// BaselineNormalize transforms epoch relative to baseline per mode,
// returning NaN for a non-positive baseline.
func BaselineNormalize(epoch, baseline float64, mode BaselineMode) float64 {
	if !(baseline > 0) {
		return math.NaN()
	}
	ratio := epoch / baseline
	switch mode {
	case BaselineRatio:
		return ratio
	case BaselineRelativeChange:
		return (epoch - baseline) / baseline
	case BaselineLog10Ratio:
		return math.Log10(ratio)
	case BaselineDecibel:
		return 10 * math.Log10(ratio)
	default:
		return math.NaN()
	}
}
