// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coverage

import (
	"reflect"
	"testing"
)

func TestJoinZeroFillsUnknown(t *testing.T) {
	tbl := &Table{
		Samples: []string{"s1", "s2"},
		Rows: map[string][]float64{
			"c1_0": {1.0, 2.0},
		},
	}
	rows, samples, err := Join([]string{"c1_0", "c1_1"}, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(samples, []string{"s1", "s2"}) {
		t.Fatalf("got samples %v", samples)
	}
	if !reflect.DeepEqual(rows[0], []float64{1.0, 2.0}) {
		t.Errorf("row 0 = %v, want [1 2]", rows[0])
	}
	if !reflect.DeepEqual(rows[1], []float64{0, 0}) {
		t.Errorf("row 1 = %v, want zero-filled", rows[1])
	}
}

func TestJoinDropsUnknownIDs(t *testing.T) {
	tbl := &Table{
		Samples: []string{"s1"},
		Rows: map[string][]float64{
			"c1_0":    {5.0},
			"unknown": {9.0},
		},
	}
	rows, _, err := Join([]string{"c1_0"}, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	dropped := DroppedIDs([]string{"c1_0"}, tbl)
	if !reflect.DeepEqual(dropped, []string{"unknown"}) {
		t.Errorf("got dropped %v, want [unknown]", dropped)
	}
}

func TestValidateRejectsNegative(t *testing.T) {
	tbl := &Table{
		Samples: []string{"s1"},
		Rows: map[string][]float64{
			"c1_0": {-1.0},
		},
	}
	if err := tbl.Validate(); err == nil {
		t.Fatal("expected error for negative coverage value")
	}
}

func TestValidateRejectsRaggedRow(t *testing.T) {
	tbl := &Table{
		Samples: []string{"s1", "s2"},
		Rows: map[string][]float64{
			"c1_0": {1.0},
		},
	}
	if err := tbl.Validate(); err == nil {
		t.Fatal("expected error for ragged row")
	}
}

func TestJoinSortsSampleColumns(t *testing.T) {
	tbl := &Table{
		Samples: []string{"s2", "s1"},
		Rows: map[string][]float64{
			"c1_0": {20.0, 10.0},
		},
	}
	rows, samples, err := Join([]string{"c1_0"}, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(samples, []string{"s1", "s2"}) {
		t.Fatalf("got samples %v, want sorted", samples)
	}
	if !reflect.DeepEqual(rows[0], []float64{10.0, 20.0}) {
		t.Errorf("row 0 = %v, want reordered to [10 20]", rows[0])
	}
}
