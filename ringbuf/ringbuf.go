// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ringbuf implements the fixed-capacity ring buffer and the
// "push one sample, maybe emit a frame" bookkeeping every online estimator
// in this engine shares.
package ringbuf

import (
	"math"

	"github.com/qeeg-nfb/qengine/qerr"
)

// Ring is a fixed-capacity circular buffer of float64 samples.
type Ring struct {
	buf   []float64
	head  int
	count int
}

// New allocates a Ring of the given capacity, which must be >= 1.
func New(capacity int) (*Ring, error) {
	if capacity < 1 {
		return nil, qerr.New(qerr.InvalidParam, "ringbuf.New", "capacity must be >= 1, got %d", capacity)
	}
	return &Ring{buf: make([]float64, capacity)}, nil
}

// Capacity returns the ring's fixed capacity.
func (r *Ring) Capacity() int { return len(r.buf) }

// Full reports whether the ring holds Capacity() samples.
func (r *Ring) Full() bool { return r.count == len(r.buf) }

// Push appends v, overwriting the oldest sample once the ring is full.
func (r *Ring) Push(v float64) {
	n := len(r.buf)
	idx := (r.head + r.count) % n
	r.buf[idx] = v
	if r.count < n {
		r.count++
	} else {
		r.head = (r.head + 1) % n
	}
}

// Extract returns the ring's contents in oldest-to-newest order.
func (r *Ring) Extract() []float64 {
	out := make([]float64, r.count)
	n := len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%n]
	}
	return out
}

// WindowSamples converts a window length in seconds to a sample count,
// rounding to the nearest integer and enforcing the >= 8 sample floor
// every online estimator's analysis window must satisfy.
func WindowSamples(windowSeconds, fsHz float64) (int, error) {
	const op = "ringbuf.WindowSamples"
	if fsHz <= 0 {
		return 0, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	if windowSeconds <= 0 {
		return 0, qerr.New(qerr.InvalidParam, op, "windowSeconds must be > 0, got %v", windowSeconds)
	}
	n := int(math.Round(windowSeconds * fsHz))
	if n < 8 {
		return 0, qerr.New(qerr.InvalidParam, op, "window_samples = %d < 8 (window_seconds=%v, fs=%v)", n, windowSeconds, fsHz)
	}
	return n, nil
}

// UpdateSamples converts an update interval in seconds to a sample count,
// rounding to the nearest integer and enforcing a floor of 1.
func UpdateSamples(updateSeconds, fsHz float64) (int, error) {
	const op = "ringbuf.UpdateSamples"
	if fsHz <= 0 {
		return 0, qerr.New(qerr.InvalidParam, op, "fsHz must be > 0, got %v", fsHz)
	}
	if updateSeconds <= 0 {
		return 0, qerr.New(qerr.InvalidParam, op, "updateSeconds must be > 0, got %v", updateSeconds)
	}
	n := int(math.Round(updateSeconds * fsHz))
	if n < 1 {
		n = 1
	}
	return n, nil
}

// Framer tracks the "ring full AND enough new samples" gate shared by every
// online estimator: push samples one at a time with Push, and call
// ShouldEmit after each push to find out whether a frame is due. Calling
// Emitted after producing a frame subtracts UpdateSamples from the
// since-last-update counter, preserving phase across irregular chunk
// sizes.
type Framer struct {
	ring            *Ring
	updateSamples   int
	totalSamples    int
	sinceLastUpdate int
}

// NewFramer builds a Framer around a fresh Ring of the given window and
// update sample counts.
func NewFramer(windowSamples, updateSamples int) (*Framer, error) {
	ring, err := New(windowSamples)
	if err != nil {
		return nil, err
	}
	if updateSamples < 1 {
		return nil, qerr.New(qerr.InvalidParam, "ringbuf.NewFramer", "updateSamples must be >= 1, got %d", updateSamples)
	}
	return &Framer{ring: ring, updateSamples: updateSamples}, nil
}

// Push advances total_samples and since_last_update and feeds v into the
// underlying ring. While the ring is filling, since_last_update is capped
// at UpdateSamples, so the first frame is due once the ring is full and
// later frames follow every UpdateSamples samples.
func (f *Framer) Push(v float64) {
	f.ring.Push(v)
	f.totalSamples++
	f.sinceLastUpdate++
	if f.totalSamples <= f.ring.Capacity() && f.sinceLastUpdate > f.updateSamples {
		f.sinceLastUpdate = f.updateSamples
	}
}

// ShouldEmit reports whether the ring is full and enough new samples have
// accumulated since the last emitted frame.
func (f *Framer) ShouldEmit() bool {
	return f.ring.Full() && f.sinceLastUpdate >= f.updateSamples
}

// Emitted records that a frame was just produced, subtracting
// UpdateSamples from the since-last-update counter.
func (f *Framer) Emitted() {
	f.sinceLastUpdate -= f.updateSamples
}

// Window returns the ring's current contents, oldest-to-newest.
func (f *Framer) Window() []float64 { return f.ring.Extract() }

// TotalSamples returns the number of samples pushed so far.
func (f *Framer) TotalSamples() int { return f.totalSamples }
