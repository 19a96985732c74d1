// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ringbuf

import "testing"

func TestRingFillsAndOverwrites(t *testing.T) {
	r, err := New(3)
	if err != nil {
		t.Fatal(err)
	}
	if r.Full() {
		t.Fatal("empty ring reports Full()")
	}
	r.Push(1)
	r.Push(2)
	if r.Full() {
		t.Fatal("2/3 ring reports Full()")
	}
	r.Push(3)
	if !r.Full() {
		t.Fatal("3/3 ring does not report Full()")
	}
	if got := r.Extract(); !equal(got, []float64{1, 2, 3}) {
		t.Fatalf("Extract() = %v, want [1 2 3]", got)
	}
	r.Push(4)
	if got := r.Extract(); !equal(got, []float64{2, 3, 4}) {
		t.Fatalf("Extract() after overwrite = %v, want [2 3 4]", got)
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for capacity=0")
	}
}

func TestWindowSamplesRounding(t *testing.T) {
	n, err := WindowSamples(4.0, 256)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1024 {
		t.Fatalf("WindowSamples(4s, 256Hz) = %d, want 1024", n)
	}
}

func TestWindowSamplesRejectsBelowFloor(t *testing.T) {
	if _, err := WindowSamples(0.01, 256); err == nil {
		t.Fatal("expected error for window_samples < 8")
	}
}

func TestUpdateSamplesFloorsAtOne(t *testing.T) {
	n, err := UpdateSamples(0.0001, 256)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("UpdateSamples(tiny) = %d, want 1", n)
	}
}

func TestFramerEmitsOnCadenceAndPreservesPhase(t *testing.T) {
	f, err := NewFramer(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	emits := 0
	for i := 0; i < 20; i++ {
		f.Push(float64(i))
		if f.ShouldEmit() {
			emits++
			f.Emitted()
		}
	}
	// ring fills after sample 4 (index 3, 1-based count 4); updates every
	// 3 samples after that: emits at total counts 4,7,10,...,19 -> 6 emits.
	if emits != 6 {
		t.Fatalf("emits = %d, want 6", emits)
	}
}

func TestFramerWindowContents(t *testing.T) {
	f, err := NewFramer(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []float64{10, 20, 30, 40} {
		f.Push(v)
	}
	if got := f.Window(); !equal(got, []float64{20, 30, 40}) {
		t.Fatalf("Window() = %v, want [20 30 40]", got)
	}
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
