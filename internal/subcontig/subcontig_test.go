// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subcontig

import (
	"strings"
	"testing"
)

func TestBuildShortSequence(t *testing.T) {
	seq := strings.Repeat("A", 100)
	ws, err := Build("c1", seq, Params{WindowSize: 10000, Overlap: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 1 {
		t.Fatalf("got %d windows, want 1", len(ws))
	}
	if ws[0].ID != "c1_0" {
		t.Errorf("got id %q, want c1_0", ws[0].ID)
	}
	if ws[0].Sequence != seq {
		t.Errorf("sequence mismatch")
	}
}

func TestBuildTrivialTiling(t *testing.T) {
	// spec.md §8 scenario 1: contig of length 25000, W=10000, O=2000.
	seq := strings.Repeat("ACGT", 25000/4)
	ws, err := Build("c1", seq, Params{WindowSize: 10000, Overlap: 2000})
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		ordinal, start, end int
	}{
		{0, 0, 10000},
		{1, 8000, 18000},
		{2, 15000, 25000},
	}
	if len(ws) != len(want) {
		t.Fatalf("got %d windows, want %d", len(ws), len(want))
	}
	for i, w := range want {
		if ws[i].Ordinal != w.ordinal || ws[i].Start != w.start || ws[i].End != w.end {
			t.Errorf("window %d: got {%d %d %d}, want {%d %d %d}",
				i, ws[i].Ordinal, ws[i].Start, ws[i].End, w.ordinal, w.start, w.end)
		}
		if ws[i].ID != "c1_"+itoa(w.ordinal) {
			t.Errorf("window %d: got id %q", i, ws[i].ID)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func TestBuildShorterThanOverlap(t *testing.T) {
	seq := "AC"
	ws, err := Build("c1", seq, Params{WindowSize: 10000, Overlap: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 1 || ws[0].Sequence != seq {
		t.Fatalf("expected single window with full sequence, got %+v", ws)
	}
}

func TestBuildExactMultiple(t *testing.T) {
	seq := strings.Repeat("A", 10000)
	ws, err := Build("c1", seq, Params{WindowSize: 10000, Overlap: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 1 {
		t.Fatalf("got %d windows, want 1 (exact-fit window should not duplicate as tail)", len(ws))
	}
}

func TestValidate(t *testing.T) {
	cases := []Params{
		{WindowSize: 0, Overlap: 0},
		{WindowSize: 10, Overlap: -1},
		{WindowSize: 10, Overlap: 10},
		{WindowSize: 10, Overlap: 20},
	}
	for _, p := range cases {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", p)
		}
	}
}
