// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recruit

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// OCSVMParams controls the one-class SVM recruiter of spec.md §4.H.2. The
// example corpus carries no QP solver for the dual SVM problem, so the
// decision function is approximated by an RBF Parzen-window density — the
// same kernel and gamma the real one-class SVM would use — thresholded at
// the nu-quantile of the anchor's own scores, which is the standard
// one-class SVM calibration: nu upper-bounds the fraction of training
// points allowed to be called outliers.
type OCSVMParams struct {
	Nu    float64
	Gamma float64
}

func DefaultOCSVMParams() OCSVMParams {
	return OCSVMParams{Nu: 0.9, Gamma: 1e-4}
}

// OCSVM is a fitted one-class model.
type OCSVM struct {
	trainRows [][]float64
	gamma     float64
	rho       float64
}

func rbfKernel(a, b []float64, gamma float64) float64 {
	var sq float64
	for i := range a {
		diff := a[i] - b[i]
		sq += diff * diff
	}
	return math.Exp(-gamma * sq)
}

// decisionScore is the mean RBF similarity of row to the training set,
// standing in for the one-class SVM's signed distance from the separating
// hyperplane: large when row resembles the training density, small when it
// does not.
func (m *OCSVM) decisionScore(row []float64) float64 {
	var sum float64
	for _, t := range m.trainRows {
		sum += rbfKernel(row, t, m.gamma)
	}
	return sum/float64(len(m.trainRows)) - m.rho
}

// FitOCSVM fits the model on anchorRows: rho is chosen as the nu-quantile of
// the anchor's own decision scores, so that approximately nu of the training
// points end up classified as outliers (decisionScore < 0), matching the
// one-class SVM's nu-property.
func FitOCSVM(anchorRows [][]float64, p OCSVMParams) (*OCSVM, error) {
	if len(anchorRows) < 2 {
		return nil, fmt.Errorf("recruit: ocsvm needs at least 2 training rows, got %d", len(anchorRows))
	}
	m := &OCSVM{trainRows: anchorRows, gamma: p.Gamma}
	rawScores := make([]float64, len(anchorRows))
	for i, row := range anchorRows {
		var sum float64
		for _, t := range anchorRows {
			sum += rbfKernel(row, t, p.Gamma)
		}
		rawScores[i] = sum / float64(len(anchorRows))
	}
	sorted := append([]float64(nil), rawScores...)
	sort.Float64s(sorted)
	m.rho = stat.Quantile(p.Nu, stat.Empirical, sorted, nil)
	return m, nil
}

// RecruitOCSVM returns the set of candidate subcontig ids predicted as
// inliers (decision score >= 0), per spec.md §4.H.2.
func RecruitOCSVM(anchorRows [][]float64, candidates []Candidate, p OCSVMParams) (map[string]bool, error) {
	m, err := FitOCSVM(anchorRows, p)
	if err != nil {
		return nil, err
	}
	recruited := make(map[string]bool)
	for _, c := range candidates {
		if m.decisionScore(c.Features) >= 0 {
			recruited[c.SubcontigID] = true
		}
	}
	return recruited, nil
}
