// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package recruit implements the 4.H one-class recruiters: three
// independent per-anchor anomaly models (Bayesian Gaussian mixture,
// one-class SVM, isolation forest), each deciding whether a candidate
// subcontig belongs to an anchor's genome, plus the shared contig
// aggregation and score scaling of spec.md §4.H.
package recruit

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Kind names a recruiter.
type Kind string

const (
	GMM Kind = "gmm"
	SVM Kind = "svm"
	ISO Kind = "iso"
)

// ThresholdWeight is spec.md §4.H's per-recruiter threshold/weight table.
var ThresholdWeight = map[Kind]struct{ Theta, Weight float64 }{
	GMM: {Theta: 0.50, Weight: 0.50},
	SVM: {Theta: 0.00, Weight: 1.00},
	ISO: {Theta: 0.74, Weight: 0.26},
}

// Candidate is a single subcontig offered to a recruiter, keyed back to its
// parent contig for the per-contig aggregation step.
type Candidate struct {
	SubcontigID string
	ContigID    string
	Features    []float64
}

// IQRBounds computes the Tukey fence [Q1 - k*IQR, Q3 + k*IQR] for scores,
// using gonum/stat's quantile estimator.
func IQRBounds(scores []float64, k float64) (lower, upper float64, err error) {
	if len(scores) == 0 {
		return 0, 0, fmt.Errorf("recruit: cannot compute IQR bounds of an empty score set")
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	if iqr == 0 {
		// Degenerate IQR: every anchor score is identical. Treat as a
		// zero-width fence rather than dividing by zero downstream.
		return q1, q3, nil
	}
	return q1 - k*iqr, q3 + k*iqr, nil
}

// AggregateContigs groups recruited subcontig ids by contig and returns, for
// each contig with at least one candidate subcontig, p = recruited/total.
func AggregateContigs(candidates []Candidate, recruited map[string]bool) map[string]float64 {
	total := make(map[string]int)
	hit := make(map[string]int)
	for _, c := range candidates {
		total[c.ContigID]++
		if recruited[c.SubcontigID] {
			hit[c.ContigID]++
		}
	}
	p := make(map[string]float64, len(total))
	for contig, n := range total {
		p[contig] = float64(hit[contig]) / float64(n)
	}
	return p
}

// ScaledRow is one contig's scaled score from a single recruiter, emitted
// only when p > theta (spec.md §4.H). Recruiter weights are applied later,
// by the ensemble combiner.
type ScaledRow struct {
	ContigID string
	P        float64
	Scaled   float64 // s = (p - theta) / (1 - theta)
}

// Scale filters contigPs to rows with p > theta and computes the scaled
// score s for each survivor.
func Scale(contigPs map[string]float64, kind Kind) []ScaledRow {
	tw := ThresholdWeight[kind]
	var out []ScaledRow
	ids := make([]string, 0, len(contigPs))
	for id := range contigPs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := contigPs[id]
		if p <= tw.Theta {
			continue
		}
		s := (p - tw.Theta) / (1 - tw.Theta)
		out = append(out, ScaledRow{ContigID: id, P: p, Scaled: s})
	}
	return out
}
