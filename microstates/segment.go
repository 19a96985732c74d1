// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package microstates

import "github.com/qeeg-nfb/qengine/qerr"

// Segment is one contiguous run of a single label.
type Segment struct {
	Label       int
	StartSample int
	EndSample   int // exclusive
	StartSec    float64
	EndSec      float64
	DurationSec float64
	MeanCorr    float64
	MeanGFP     float64
}

// Segmenter walks a label stream (as produced by Estimate) into contiguous
// (label, span) tuples. Runs with Label == -1 are included only when
// includeUndefined is true.
func Segmenter(labels []int, corr, gfp []float64, fsHz float64, includeUndefined bool) ([]Segment, error) {
	const op = "microstates.Segmenter"
	n := len(labels)
	if n == 0 {
		return nil, qerr.New(qerr.InvalidParam, op, "empty label stream")
	}
	if len(corr) != n || len(gfp) != n {
		return nil, qerr.New(qerr.InvalidParam, op, "corr and gfp must match labels length")
	}
	if fsHz <= 0 {
		return nil, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}

	var segments []Segment
	i := 0
	for i < n {
		lab := labels[i]
		j := i + 1
		for j < n && labels[j] == lab {
			j++
		}
		if lab != -1 || includeUndefined {
			var corrSum, gfpSum float64
			for t := i; t < j; t++ {
				corrSum += corr[t]
				gfpSum += gfp[t]
			}
			count := float64(j - i)
			segments = append(segments, Segment{
				Label:       lab,
				StartSample: i,
				EndSample:   j,
				StartSec:    float64(i) / fsHz,
				EndSec:      float64(j) / fsHz,
				DurationSec: float64(j-i) / fsHz,
				MeanCorr:    corrSum / count,
				MeanGFP:     gfpSum / count,
			})
		}
		i = j
	}
	return segments, nil
}
