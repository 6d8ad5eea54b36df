// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cluster implements the 4.E/4.G hierarchical density-based
// clusterer: a from-scratch HDBSCAN-style construction over a mutual
// reachability minimum spanning tree, using the leaf cluster-selection
// strategy (recursively peel off components smaller than the minimum
// cluster size rather than selecting by excess-of-mass stability).
package cluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Params controls the clusterer. The same type serves both the de-novo
// (4.E) and anchored (4.G) passes; the anchored pass is simply invoked with
// larger MinClusterSize/MinSamples.
type Params struct {
	MinClusterSize int
	MinSamples     int
}

func (p Params) Validate() error {
	if p.MinClusterSize < 1 {
		return fmt.Errorf("cluster: minimum_cluster_size must be >= 1, got %d", p.MinClusterSize)
	}
	if p.MinSamples < 1 {
		return fmt.Errorf("cluster: minimum_samples must be >= 1, got %d", p.MinSamples)
	}
	return nil
}

// Result holds one row per input point, aligned by index.
type Result struct {
	Label        []int
	Probability  []float64
	OutlierScore []float64
}

type edge struct {
	a, b int
	w    float64
}

// Run clusters rows (one feature vector per point, typically the embedding
// of 4.D) and returns per-point labels in {-1, 0, 1, ...}, membership
// probabilities in [0,1], and outlier scores in [0,1].
func Run(rows [][]float64, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(rows)
	res := &Result{
		Label:        make([]int, n),
		Probability:  make([]float64, n),
		OutlierScore: make([]float64, n),
	}
	if n == 0 {
		return res, nil
	}
	if n < p.MinClusterSize {
		for i := range res.Label {
			res.Label[i] = -1
			res.OutlierScore[i] = 1
		}
		return res, nil
	}

	core := coreDistances(rows, p.MinSamples)
	edges := mutualReachabilityMST(rows, core)

	assign := newLabeler()
	leaves := condense(allPoints(n), edges, p.MinClusterSize)
	for _, leaf := range leaves {
		assign.add(leaf)
	}

	maxCore := floats.Max(core)
	if maxCore == 0 {
		maxCore = 1
	}
	for i := 0; i < n; i++ {
		label, inCluster := assign.labelOf[i]
		if !inCluster {
			res.Label[i] = -1
			res.OutlierScore[i] = clamp01(core[i] / maxCore)
			res.Probability[i] = 0
			continue
		}
		res.Label[i] = label
		members := assign.members[label]
		var clusterMaxCore float64
		for _, m := range members {
			if core[m] > clusterMaxCore {
				clusterMaxCore = core[m]
			}
		}
		if clusterMaxCore == 0 {
			res.Probability[i] = 1
		} else {
			res.Probability[i] = clamp01(1 - core[i]/clusterMaxCore)
		}
		res.OutlierScore[i] = clamp01(core[i] / maxCore)
	}
	return res, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func allPoints(n int) []int {
	pts := make([]int, n)
	for i := range pts {
		pts[i] = i
	}
	return pts
}

// coreDistances returns, for each point, the distance to its k-th nearest
// neighbor (k = minSamples), computed by brute force over a Euclidean
// metric in the (typically low-dimensional) embedding space.
func coreDistances(rows [][]float64, k int) []float64 {
	n := len(rows)
	core := make([]float64, n)
	for i := range rows {
		ds := make([]float64, 0, n-1)
		for j := range rows {
			if j == i {
				continue
			}
			ds = append(ds, floats.Distance(rows[i], rows[j], 2))
		}
		sort.Float64s(ds)
		idx := k - 1
		if idx >= len(ds) {
			idx = len(ds) - 1
		}
		if idx < 0 {
			core[i] = 0
		} else {
			core[i] = ds[idx]
		}
	}
	return core
}

// mutualReachabilityMST builds the minimum spanning tree of the complete
// mutual-reachability graph using Prim's algorithm.
func mutualReachabilityMST(rows [][]float64, core []float64) []edge {
	n := len(rows)
	inTree := make([]bool, n)
	minEdge := make([]float64, n)
	minFrom := make([]int, n)
	for i := range minEdge {
		minEdge[i] = math.Inf(1)
		minFrom[i] = -1
	}
	inTree[0] = true
	for j := 1; j < n; j++ {
		d := mutualReach(rows, core, 0, j)
		minEdge[j] = d
		minFrom[j] = 0
	}
	var edges []edge
	for iter := 1; iter < n; iter++ {
		next := -1
		best := math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && minEdge[j] < best {
				best = minEdge[j]
				next = j
			}
		}
		if next == -1 {
			break
		}
		inTree[next] = true
		edges = append(edges, edge{a: minFrom[next], b: next, w: minEdge[next]})
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := mutualReach(rows, core, next, j)
			if d < minEdge[j] {
				minEdge[j] = d
				minFrom[j] = next
			}
		}
	}
	return edges
}

func mutualReach(rows [][]float64, core []float64, i, j int) float64 {
	d := floats.Distance(rows[i], rows[j], 2)
	m := core[i]
	if core[j] > m {
		m = core[j]
	}
	if d > m {
		return d
	}
	return m
}

// labeler accumulates the leaf clusters found by condense, assigning each a
// stable ascending integer label in discovery order.
type labeler struct {
	next    int
	labelOf map[int]int
	members map[int][]int
}

func newLabeler() *labeler {
	return &labeler{labelOf: make(map[int]int), members: make(map[int][]int)}
}

func (l *labeler) add(points []int) {
	label := l.next
	l.next++
	l.members[label] = points
	for _, p := range points {
		l.labelOf[p] = label
	}
}

// condense recursively removes the largest edge of the induced subtree over
// points; a side smaller than minSize falls out as noise (dropped, not
// returned as a leaf), a side meeting minSize recurses further. A
// component that can no longer be split without producing an undersized
// side becomes one leaf cluster, provided it itself meets minSize.
func condense(points []int, edges []edge, minSize int) [][]int {
	if len(points) < minSize {
		return nil
	}
	if len(edges) == 0 {
		return [][]int{points}
	}
	// Find the largest edge among those induced by points.
	maxIdx := -1
	for i, e := range edges {
		if maxIdx == -1 || e.w > edges[maxIdx].w {
			maxIdx = i
		}
	}
	cut := edges[maxIdx]
	rest := make([]edge, 0, len(edges)-1)
	for i, e := range edges {
		if i != maxIdx {
			rest = append(rest, e)
		}
	}

	adj := make(map[int][]edge, len(points))
	for _, e := range rest {
		adj[e.a] = append(adj[e.a], e)
		adj[e.b] = append(adj[e.b], e)
	}

	sideA := bfsComponent(cut.a, adj)
	setA := make(map[int]bool, len(sideA))
	for _, p := range sideA {
		setA[p] = true
	}
	var sideB []int
	for _, p := range points {
		if !setA[p] {
			sideB = append(sideB, p)
		}
	}

	edgesFor := func(side []int) []edge {
		set := make(map[int]bool, len(side))
		for _, p := range side {
			set[p] = true
		}
		var es []edge
		for _, e := range rest {
			if set[e.a] && set[e.b] {
				es = append(es, e)
			}
		}
		return es
	}

	switch {
	case len(sideA) < minSize && len(sideB) < minSize:
		return [][]int{points}
	case len(sideA) < minSize:
		return condense(sideB, edgesFor(sideB), minSize)
	case len(sideB) < minSize:
		return condense(sideA, edgesFor(sideA), minSize)
	default:
		var leaves [][]int
		leaves = append(leaves, condense(sideA, edgesFor(sideA), minSize)...)
		leaves = append(leaves, condense(sideB, edgesFor(sideB), minSize)...)
		return leaves
	}
}

func bfsComponent(start int, adj map[int][]edge) []int {
	seen := map[int]bool{start: true}
	queue := []int{start}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		for _, e := range adj[cur] {
			next := e.a
			if next == cur {
				next = e.b
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return out
}
