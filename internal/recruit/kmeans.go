// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recruit

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// KMeansParams controls the k-means denoising pre-pass of spec.md §4.H:
// "MiniBatch k-means with up to 10 clusters, iterated until convergence".
type KMeansParams struct {
	MaxK  int
	Seed  uint64
	Iters int
}

// DefaultKMeansParams returns the defaults named in spec.md §4.H.
func DefaultKMeansParams() KMeansParams {
	return KMeansParams{MaxK: 10, Seed: 42, Iters: 300}
}

// KMeansResult is the fitted assignment of each input row to a cluster.
type KMeansResult struct {
	Labels    []int
	Centroids [][]float64
}

// FitKMeans runs Lloyd's algorithm (the full-batch limit of MiniBatch
// k-means) to a fixed point for k = min(MaxK, n), seeded for
// reproducibility.
func FitKMeans(rows [][]float64, p KMeansParams) KMeansResult {
	n := len(rows)
	k := p.MaxK
	if k > n {
		k = n
	}
	if k <= 0 {
		return KMeansResult{}
	}
	dims := 0
	if n > 0 {
		dims = len(rows[0])
	}

	rng := rand.New(rand.NewSource(int64(p.Seed)))
	perm := rng.Perm(n)
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), rows[perm[i]]...)
	}

	labels := make([]int, n)
	for iter := 0; iter < p.Iters; iter++ {
		changed := false
		for i, row := range rows {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := floats.Distance(row, centroid, 2)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if labels[i] != best {
				changed = true
				labels[i] = best
			}
		}
		if !changed && iter > 0 {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range rows {
			c := labels[i]
			counts[c]++
			floats.Add(sums[c], row)
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}
	}
	return KMeansResult{Labels: labels, Centroids: centroids}
}

// AnchorContainingClusters returns the set of cluster indices that contain
// at least one of the anchor row indices.
func AnchorContainingClusters(labels []int, anchorIdx []int) map[int]bool {
	out := make(map[int]bool)
	for _, i := range anchorIdx {
		out[labels[i]] = true
	}
	return out
}

// FilterContigs decides, per candidate contig, whether it passes the
// k-means denoising pre-pass: a contig passes if at least fraction (0.95 in
// spec.md §4.H) of its subcontigs land in an anchor-containing cluster.
func FilterContigs(candidates []Candidate, labels []int, anchorClusters map[int]bool, fraction float64) map[string]bool {
	total := make(map[string]int)
	hit := make(map[string]int)
	for i, c := range candidates {
		total[c.ContigID]++
		if anchorClusters[labels[i]] {
			hit[c.ContigID]++
		}
	}
	pass := make(map[string]bool, len(total))
	for contig, n := range total {
		if float64(hit[contig])/float64(n) >= fraction {
			pass[contig] = true
		}
	}
	return pass
}
