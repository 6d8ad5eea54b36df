// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ensemble implements the 4.I ensemble combiner: inner-joining the
// three per-recruiter scaled-score tables on (anchor_id, contig_id) and
// summing the weighted scores.
package ensemble

import (
	"sort"

	"github.com/kortschak/binner/internal/recruit"
)

// AcceptThreshold is spec.md §6's ensemble_accept_threshold default.
const AcceptThreshold = 0.10

// totalRecruiterWeight is the fixed Σw = 1.76 normalizer from spec.md §4.I:
// the sum of recruit.ThresholdWeight's Weight field across all three
// recruiter kinds, regardless of which recruiters actually produced rows for
// a given anchor. A recruiter that fails for an anchor (diagnostics.tsv logs
// it as RecruiterFailed) must not shrink the denominator, or the remaining
// recruiters' scores would be inflated relative to an anchor where all three
// ran cleanly.
var totalRecruiterWeight = recruit.ThresholdWeight[recruit.GMM].Weight +
	recruit.ThresholdWeight[recruit.SVM].Weight +
	recruit.ThresholdWeight[recruit.ISO].Weight

// RecruiterRows is one recruiter's scaled rows for a single anchor.
type RecruiterRows struct {
	Kind recruit.Kind
	Rows []recruit.ScaledRow
}

// Row is one accepted (anchor_id, contig_id) ensemble row.
type Row struct {
	AnchorID      string
	ContigID      string
	EnsembleScore float64
}

// Combine inner-joins the per-recruiter rows for a single anchor on
// contig_id, drops contigs missing from any recruiter, sums the
// weight-scaled scores, and keeps rows with ensemble_score >= accept.
func Combine(anchorID string, recruiters []RecruiterRows, accept float64) []Row {
	if len(recruiters) == 0 {
		return nil
	}
	perRecruiter := make(map[recruit.Kind]map[string]float64, len(recruiters))
	for _, r := range recruiters {
		m := make(map[string]float64, len(r.Rows))
		for _, row := range r.Rows {
			m[row.ContigID] = row.Scaled
		}
		perRecruiter[r.Kind] = m
	}

	// Inner join: a contig must appear in every recruiter's table.
	var common []string
	if len(recruiters) > 0 {
		first := perRecruiter[recruiters[0].Kind]
		for contig := range first {
			inAll := true
			for _, r := range recruiters[1:] {
				if _, ok := perRecruiter[r.Kind][contig]; !ok {
					inAll = false
					break
				}
			}
			if inAll {
				common = append(common, contig)
			}
		}
	}
	sort.Strings(common)

	var out []Row
	for _, contig := range common {
		var score float64
		for _, r := range recruiters {
			tw := recruit.ThresholdWeight[r.Kind]
			s := perRecruiter[r.Kind][contig]
			score += s * tw.Weight / totalRecruiterWeight
		}
		if score >= accept {
			out = append(out, Row{AnchorID: anchorID, ContigID: contig, EnsembleScore: score})
		}
	}
	return out
}
