// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"testing"

	"pgregory.net/rapid"
)

// TestRingExtractMatchesLastCapacityPushes checks that after any sequence
// of pushes, Extract() holds exactly the last min(len(pushes), capacity)
// values, oldest to newest.
func TestRingExtractMatchesLastCapacityPushes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 64).Draw(t, "capacity")
		pushes := rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 0, 256).Draw(t, "pushes")

		r, err := New(capacity)
		if err != nil {
			t.Fatalf("New(%d): %v", capacity, err)
		}
		for _, v := range pushes {
			r.Push(v)
		}

		want := pushes
		if len(want) > capacity {
			want = want[len(want)-capacity:]
		}
		got := r.Extract()
		if len(got) != len(want) {
			t.Fatalf("Extract() length = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Extract()[%d] = %v, want %v", i, got[i], want[i])
			}
		}
		if r.Full() != (len(pushes) >= capacity) {
			t.Fatalf("Full() = %v, want %v", r.Full(), len(pushes) >= capacity)
		}
	})
}
