// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recruit

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestIQRBounds(t *testing.T) {
	scores := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	lower, upper, err := IQRBounds(scores, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if lower >= upper {
		t.Fatalf("got lower %v >= upper %v", lower, upper)
	}
}

func TestIQRBoundsDegenerate(t *testing.T) {
	scores := []float64{5, 5, 5, 5}
	lower, upper, err := IQRBounds(scores, 3.0)
	if err != nil {
		t.Fatal(err)
	}
	if lower != 5 || upper != 5 {
		t.Errorf("got [%v,%v], want [5,5] for constant scores", lower, upper)
	}
}

func TestIQRBoundsEmpty(t *testing.T) {
	if _, _, err := IQRBounds(nil, 1.0); err == nil {
		t.Fatal("expected error for empty score set")
	}
}

func TestAggregateContigs(t *testing.T) {
	candidates := []Candidate{
		{SubcontigID: "c1_0", ContigID: "c1"},
		{SubcontigID: "c1_1", ContigID: "c1"},
		{SubcontigID: "c2_0", ContigID: "c2"},
	}
	recruited := map[string]bool{"c1_0": true, "c2_0": true}
	p := AggregateContigs(candidates, recruited)
	if !approxEqual(p["c1"], 0.5, 1e-9) {
		t.Errorf("got p[c1]=%v, want 0.5", p["c1"])
	}
	if !approxEqual(p["c2"], 1.0, 1e-9) {
		t.Errorf("got p[c2]=%v, want 1.0", p["c2"])
	}
}

func TestScaleFiltersAndScales(t *testing.T) {
	// spec.md §8 scenario 5: gmm_p=0.80, theta=0.50 -> s=0.60.
	rows := Scale(map[string]float64{"X": 0.80}, GMM)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if !approxEqual(rows[0].Scaled, 0.60, 1e-9) {
		t.Errorf("got scaled %v, want 0.60", rows[0].Scaled)
	}
}

func TestScaleExcludesAtThreshold(t *testing.T) {
	// spec.md §8 scenario 6: svm_p=0.00 with theta=0.00 must not pass (p>theta, strict).
	rows := Scale(map[string]float64{"Y": 0.00}, SVM)
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0 (p must be strictly greater than theta)", len(rows))
	}
}

func TestFitKMeansConverges(t *testing.T) {
	rows := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
	res := FitKMeans(rows, KMeansParams{MaxK: 2, Seed: 1, Iters: 50})
	if res.Labels[0] != res.Labels[1] || res.Labels[1] != res.Labels[2] {
		t.Errorf("expected first blob to share a label, got %v", res.Labels[:3])
	}
	if res.Labels[3] != res.Labels[4] || res.Labels[4] != res.Labels[5] {
		t.Errorf("expected second blob to share a label, got %v", res.Labels[3:])
	}
	if res.Labels[0] == res.Labels[3] {
		t.Errorf("expected the two blobs to receive different labels")
	}
}

func anchorRows(n, dims int, center float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, dims)
		for d := range row {
			row[d] = center + float64(i%3)*0.01
		}
		rows[i] = row
	}
	return rows
}

func TestRecruitGMM(t *testing.T) {
	anchor := anchorRows(20, 3, 0)
	candidates := []Candidate{
		{SubcontigID: "near", Features: []float64{0.01, 0.01, 0.01}},
		{SubcontigID: "far", Features: []float64{50, 50, 50}},
	}
	recruited, err := RecruitGMM(anchor, candidates, DefaultGMMParams())
	if err != nil {
		t.Fatal(err)
	}
	if !recruited["near"] {
		t.Error("expected near candidate to be recruited")
	}
	if recruited["far"] {
		t.Error("expected far candidate to be rejected")
	}
}

func TestRecruitOCSVM(t *testing.T) {
	anchor := anchorRows(20, 3, 0)
	candidates := []Candidate{
		{SubcontigID: "near", Features: []float64{0.01, 0.01, 0.01}},
		{SubcontigID: "far", Features: []float64{500, 500, 500}},
	}
	recruited, err := RecruitOCSVM(anchor, candidates, DefaultOCSVMParams())
	if err != nil {
		t.Fatal(err)
	}
	if !recruited["near"] {
		t.Error("expected near candidate to be recruited")
	}
	if recruited["far"] {
		t.Error("expected far candidate to be rejected")
	}
}

func TestRecruitIsolationForest(t *testing.T) {
	anchor := anchorRows(30, 3, 0)
	candidates := []Candidate{
		{SubcontigID: "near", Features: []float64{0.01, 0.01, 0.01}},
		{SubcontigID: "far", Features: []float64{500, 500, 500}},
	}
	p := DefaultIsoForestParams()
	p.NumTrees = 100
	recruited, err := RecruitIsolationForest(anchor, candidates, p)
	if err != nil {
		t.Fatal(err)
	}
	if !recruited["near"] {
		t.Error("expected near candidate to be recruited")
	}
	if recruited["far"] {
		t.Error("expected far candidate to be rejected")
	}
}

func TestFitGMMRejectsTooFewRows(t *testing.T) {
	if _, err := FitGMM([][]float64{{1, 2}}, DefaultGMMParams()); err == nil {
		t.Fatal("expected error for insufficient training rows")
	}
}
