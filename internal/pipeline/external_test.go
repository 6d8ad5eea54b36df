// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"os"
	"testing"
)

func TestWriteAndReadFloatTSVRoundTrip(t *testing.T) {
	f, err := os.CreateTemp("", "binner-roundtrip-*.tsv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	ids := []string{"a_0", "a_1", "b_0"}
	rows := [][]float64{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
	if err := writeFeatureTSV(f, ids, rows); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := readFloatTSV(f.Name(), ids, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rows {
		for j := range rows[i] {
			if got[i][j] != rows[i][j] {
				t.Errorf("row %d col %d = %v, want %v", i, j, got[i][j], rows[i][j])
			}
		}
	}
}

func TestReadFloatTSVMissingID(t *testing.T) {
	f, err := os.CreateTemp("", "binner-missing-*.tsv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if err := writeFeatureTSV(f, []string{"a_0"}, [][]float64{{1, 2}}); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := readFloatTSV(f.Name(), []string{"a_0", "a_1"}, 2); err == nil {
		t.Fatal("expected error for an id absent from the external tool's output")
	}
}
