// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package anchorclust implements the anchor-ownership half of 4.G: given the
// denoised output of the anchor-tuned clusterer, assign each non-noise label
// to the anchor it best matches and materialize each anchor's anchored
// cluster.
package anchorclust

import "sort"

// Anchor is one (anchor_id, contig_id) row from the anchor table filtered to
// jacc_sim_max = 1.0 (spec.md §6).
type Anchor struct {
	AnchorID string
	ContigID string
}

// ContigLabel is one contig's denoised best_label from the anchor-tuned
// clusterer (package denoise's Run output, restricted to non-noise rows for
// label counting but noise rows are also consulted for each anchor's own
// noise fold-in).
type ContigLabel struct {
	ContigID  string
	BestLabel int // -1 for noise
}

// Membership is one row of the anchored-cluster membership table: (anchor_id,
// contig_id).
type Membership struct {
	AnchorID string
	ContigID string
}

// Assign computes label ownership and the resulting anchored-cluster
// membership per spec.md §4.G steps 1-3.
func Assign(anchors []Anchor, labels []ContigLabel) []Membership {
	anchorContigs := make(map[string]map[string]bool)
	contigToAnchors := make(map[string][]string)
	for _, a := range anchors {
		if anchorContigs[a.AnchorID] == nil {
			anchorContigs[a.AnchorID] = make(map[string]bool)
		}
		anchorContigs[a.AnchorID][a.ContigID] = true
		contigToAnchors[a.ContigID] = append(contigToAnchors[a.ContigID], a.AnchorID)
	}

	labelOf := make(map[string]int, len(labels))
	noise := make(map[string]bool)
	contigsOfLabel := make(map[int][]string)
	for _, l := range labels {
		labelOf[l.ContigID] = l.BestLabel
		if l.BestLabel == -1 {
			noise[l.ContigID] = true
			continue
		}
		contigsOfLabel[l.BestLabel] = append(contigsOfLabel[l.BestLabel], l.ContigID)
	}

	// anch_cnt[label][anchor] = number of anchored non-noise contigs under
	// that label that belong to that anchor.
	anchCnt := make(map[int]map[string]int)
	for label, contigs := range contigsOfLabel {
		for _, c := range contigs {
			for _, anchorID := range contigToAnchors[c] {
				if anchCnt[label] == nil {
					anchCnt[label] = make(map[string]int)
				}
				anchCnt[label][anchorID]++
			}
		}
	}

	owner := make(map[int]string)
	for label, counts := range anchCnt {
		var anchorIDs []string
		for a := range counts {
			anchorIDs = append(anchorIDs, a)
		}
		sort.Strings(anchorIDs)
		best := anchorIDs[0]
		bestCount := counts[best]
		for _, a := range anchorIDs[1:] {
			if counts[a] > bestCount {
				best = a
				bestCount = counts[a]
			}
		}
		owner[label] = best
	}

	ownedLabels := make(map[string][]int)
	for label, anchorID := range owner {
		ownedLabels[anchorID] = append(ownedLabels[anchorID], label)
	}

	anchorIDs := make([]string, 0, len(anchorContigs))
	for id := range anchorContigs {
		anchorIDs = append(anchorIDs, id)
	}
	sort.Strings(anchorIDs)

	var out []Membership
	for _, anchorID := range anchorIDs {
		members := make(map[string]bool)
		for c := range anchorContigs[anchorID] {
			members[c] = true
		}
		for _, label := range ownedLabels[anchorID] {
			for _, c := range contigsOfLabel[label] {
				members[c] = true
			}
		}
		for c := range anchorContigs[anchorID] {
			if noise[c] {
				members[c] = true
			}
		}
		contigIDs := make([]string, 0, len(members))
		for c := range members {
			contigIDs = append(contigIDs, c)
		}
		sort.Strings(contigIDs)
		for _, c := range contigIDs {
			out = append(out, Membership{AnchorID: anchorID, ContigID: c})
		}
	}
	return out
}
