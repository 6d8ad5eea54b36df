// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reconcile implements the 4.J intersection reconciler: combining
// each anchor's anchored cluster (4.G), ensemble recruits (4.I), and its own
// input anchor-contig pairs into a final membership table.
package reconcile

import "sort"

// Row is one final (best_label, contig_id) row, where best_label is an
// anchor id.
type Row struct {
	BestLabel string
	ContigID  string
}

// Reconcile computes, for a single anchor a:
//
//	anchors ∪ (anchoredCluster ∩ anchors) ∪ (ensemble ∩ anchors) ∪ (anchoredCluster ∩ ensemble)
//
// which spec.md §4.J notes is equivalent to the union of anchors with every
// pairwise intersection among {anchors, anchoredCluster, ensemble}.
func Reconcile(anchorID string, anchors, anchoredCluster, ensemble []string) []Row {
	anchorSet := toSet(anchors)
	clusterSet := toSet(anchoredCluster)
	ensembleSet := toSet(ensemble)

	keep := make(map[string]bool, len(anchorSet))
	for c := range anchorSet {
		keep[c] = true
	}
	for c := range clusterSet {
		if ensembleSet[c] {
			keep[c] = true
		}
	}

	ids := make([]string, 0, len(keep))
	for c := range keep {
		ids = append(ids, c)
	}
	sort.Strings(ids)

	out := make([]Row, len(ids))
	for i, c := range ids {
		out[i] = Row{BestLabel: anchorID, ContigID: c}
	}
	return out
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
