// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package denoise implements the 4.F cluster denoiser: choosing one label
// per contig from its subcontigs' per-subcontig cluster labels, then
// unifying labels that keep co-occurring on the same contigs.
package denoise

import (
	"sort"

	"github.com/kortschak/binner/internal/unionfind"
)

// SubcontigLabel is one subcontig's 4.E/4.G output row.
type SubcontigLabel struct {
	ContigID     string
	Label        int
	Probability  float64
	OutlierScore float64
}

// Params names the thresholds of the denoiser rule, configurable per
// spec.md §6 (denoise_strong_probability, denoise_strong_outlier,
// denoise_noise_ratio, denoise_link_minor).
type Params struct {
	StrongProbability float64
	StrongOutlier     float64
	NoiseRatio        float64
	LinkMinor         float64
}

// DefaultParams returns spec.md's default thresholds.
func DefaultParams() Params {
	return Params{
		StrongProbability: 0.95,
		StrongOutlier:     0.05,
		NoiseRatio:        0.51,
		LinkMinor:         0.49,
	}
}

// ContigResult is a single contig's denoised label, before unification.
type ContigResult struct {
	ContigID  string
	BestLabel int
	LinkLabel int // -2 means "none"
}

const NoLink = -2

// PerContig applies the per-contig rule (spec.md §4.F steps 1-3) to rows
// grouped by contig id.
func PerContig(rows map[string][]SubcontigLabel, p Params) []ContigResult {
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]ContigResult, 0, len(ids))
	for _, id := range ids {
		subs := rows[id]
		n, s := 0, 0
		var strong []SubcontigLabel
		for _, sc := range subs {
			if sc.Label == -1 {
				n++
				continue
			}
			if sc.Probability >= p.StrongProbability && sc.OutlierScore <= p.StrongOutlier {
				s++
				strong = append(strong, sc)
			}
		}
		if s == 0 || float64(n)/float64(n+s) >= p.NoiseRatio {
			results = append(results, ContigResult{ContigID: id, BestLabel: -1, LinkLabel: NoLink})
			continue
		}

		freq := make(map[int]int)
		for _, sc := range strong {
			freq[sc.Label]++
		}
		type labelFrac struct {
			label int
			frac  float64
		}
		var table []labelFrac
		for label, count := range freq {
			table = append(table, labelFrac{label, float64(count) / float64(len(strong))})
		}
		sort.Slice(table, func(i, j int) bool {
			if table[i].frac != table[j].frac {
				return table[i].frac > table[j].frac
			}
			return table[i].label < table[j].label
		})

		best := table[0].label
		link := NoLink
		if len(table) > 1 && table[1].frac >= p.LinkMinor {
			link = table[1].label
		}
		results = append(results, ContigResult{ContigID: id, BestLabel: best, LinkLabel: link})
	}
	return results
}

// Unify builds the undirected graph on {best_label, link_label} pairs and
// renames every label to the minimum label id in its connected component,
// using a union-find forest in place of the graph-connected-components
// construction of the upstream collaborator.
func Unify(results []ContigResult) []ContigResult {
	labels := make(map[int]bool)
	for _, r := range results {
		if r.BestLabel != -1 {
			labels[r.BestLabel] = true
		}
		if r.LinkLabel != NoLink {
			labels[r.LinkLabel] = true
		}
	}
	ordered := make([]int, 0, len(labels))
	for l := range labels {
		ordered = append(ordered, l)
	}
	sort.Ints(ordered)
	idx := make(map[int]int, len(ordered))
	for i, l := range ordered {
		idx[l] = i
	}

	uf := unionfind.New(len(ordered))
	for _, r := range results {
		if r.LinkLabel != NoLink && r.BestLabel != -1 {
			uf.Union(idx[r.BestLabel], idx[r.LinkLabel])
		}
	}

	repMin := make(map[int]int)
	for _, l := range ordered {
		root := uf.Find(idx[l])
		if cur, ok := repMin[root]; !ok || l < cur {
			repMin[root] = l
		}
	}

	out := make([]ContigResult, len(results))
	for i, r := range results {
		out[i] = r
		if r.BestLabel == -1 {
			continue
		}
		root := uf.Find(idx[r.BestLabel])
		out[i].BestLabel = repMin[root]
		out[i].LinkLabel = NoLink
	}
	return out
}

// Run is the end-to-end 4.F pipeline: per-contig assignment followed by
// unification.
func Run(rows map[string][]SubcontigLabel, p Params) []ContigResult {
	return Unify(PerContig(rows, p))
}
