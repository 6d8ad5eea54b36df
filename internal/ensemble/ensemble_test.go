// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ensemble

import (
	"math"
	"testing"

	"github.com/kortschak/binner/internal/recruit"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCombineAcceptsScenario5(t *testing.T) {
	// spec.md §8 scenario 5.
	recruiters := []RecruiterRows{
		{Kind: recruit.GMM, Rows: []recruit.ScaledRow{{ContigID: "X", Scaled: 0.60}}},
		{Kind: recruit.SVM, Rows: []recruit.ScaledRow{{ContigID: "X", Scaled: 0.60}}},
		{Kind: recruit.ISO, Rows: []recruit.ScaledRow{{ContigID: "X", Scaled: 0.615}}},
	}
	out := Combine("A", recruiters, AcceptThreshold)
	if len(out) != 1 {
		t.Fatalf("got %d rows, want 1", len(out))
	}
	if !approxEqual(out[0].EnsembleScore, 0.602, 0.005) {
		t.Errorf("got ensemble score %v, want ≈0.602", out[0].EnsembleScore)
	}
}

func TestCombineRejectsMissingRecruiter(t *testing.T) {
	// spec.md §8 scenario 6: svm fails its threshold so Y never appears in
	// the svm table, and the inner join drops Y entirely.
	recruiters := []RecruiterRows{
		{Kind: recruit.GMM, Rows: []recruit.ScaledRow{{ContigID: "Y", Scaled: 0.10}}},
		{Kind: recruit.SVM, Rows: nil},
		{Kind: recruit.ISO, Rows: []recruit.ScaledRow{{ContigID: "Y", Scaled: 0.01}}},
	}
	out := Combine("A", recruiters, AcceptThreshold)
	if len(out) != 0 {
		t.Fatalf("got %d rows, want 0 (Y missing from svm table)", len(out))
	}
}

func TestCombineMonotoneInRecruiterScore(t *testing.T) {
	low := []RecruiterRows{
		{Kind: recruit.GMM, Rows: []recruit.ScaledRow{{ContigID: "X", Scaled: 0.1}}},
		{Kind: recruit.SVM, Rows: []recruit.ScaledRow{{ContigID: "X", Scaled: 0.1}}},
	}
	high := []RecruiterRows{
		{Kind: recruit.GMM, Rows: []recruit.ScaledRow{{ContigID: "X", Scaled: 0.9}}},
		{Kind: recruit.SVM, Rows: []recruit.ScaledRow{{ContigID: "X", Scaled: 0.1}}},
	}
	lowOut := Combine("A", low, 0)
	highOut := Combine("A", high, 0)
	if highOut[0].EnsembleScore < lowOut[0].EnsembleScore {
		t.Errorf("increasing one recruiter's score decreased the ensemble score: %v -> %v", lowOut[0].EnsembleScore, highOut[0].EnsembleScore)
	}
}
