// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nfctrl

import (
	"math"

	"github.com/qeeg-nfb/qengine/qerr"
)

// maxQueuedArtifacts bounds the aligner's queue when the artifact stream
// runs ahead of the metric stream; the oldest frames are dropped first.
const maxQueuedArtifacts = 256

type timedArtifact struct {
	tEndSec float64
	in      ArtifactInput
}

// ArtifactAligner pairs an artifact-frame stream with a metric-frame
// stream by t_end_sec. Two frames match when their times differ by at
// most half a sample period; artifact frames older than the current
// metric frame are discarded.
type ArtifactAligner struct {
	tol   float64
	queue []timedArtifact
}

// NewArtifactAligner constructs an aligner with tolerance 0.5/fsHz.
func NewArtifactAligner(fsHz float64) (*ArtifactAligner, error) {
	const op = "nfctrl.NewArtifactAligner"
	if fsHz <= 0 {
		return nil, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	return &ArtifactAligner{tol: 0.5 / fsHz}, nil
}

// Push enqueues one artifact frame.
func (a *ArtifactAligner) Push(tEndSec float64, in ArtifactInput) {
	a.queue = append(a.queue, timedArtifact{tEndSec: tEndSec, in: in})
	if len(a.queue) > maxQueuedArtifacts {
		a.queue = a.queue[len(a.queue)-maxQueuedArtifacts:]
	}
}

// Match consumes and returns the artifact frame matching metricTSec, or
// nil if none is queued within tolerance. Stale frames older than the
// metric time are dropped; frames still in the future stay queued.
func (a *ArtifactAligner) Match(metricTSec float64) *ArtifactInput {
	for len(a.queue) > 0 {
		head := a.queue[0]
		if head.tEndSec < metricTSec-a.tol {
			a.queue = a.queue[1:]
			continue
		}
		if math.Abs(head.tEndSec-metricTSec) <= a.tol {
			a.queue = a.queue[1:]
			in := head.in
			return &in
		}
		return nil
	}
	return nil
}
