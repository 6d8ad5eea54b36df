// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package unionfind implements a disjoint-set forest used by package denoise
// to unify cluster labels that co-occur on the same contigs, replacing the
// connected-components-over-a-graph construction of the upstream collaborator
// with a union-find structure as called for by the redesign.
package unionfind

// Forest is a disjoint-set forest over small non-negative integer elements,
// with union by rank and path-halving find.
type Forest struct {
	parent []int
	rank   []int
}

// New returns a Forest with n singleton sets {0}, {1}, …, {n-1}.
func New(n int) *Forest {
	f := &Forest{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range f.parent {
		f.parent[i] = i
	}
	return f
}

// Find returns the representative of x's set, compressing the path to it.
func (f *Forest) Find(x int) int {
	for f.parent[x] != x {
		f.parent[x] = f.parent[f.parent[x]]
		x = f.parent[x]
	}
	return x
}

// Union merges the sets containing x and y, returning their (possibly new)
// common representative.
func (f *Forest) Union(x, y int) int {
	rx, ry := f.Find(x), f.Find(y)
	if rx == ry {
		return rx
	}
	if f.rank[rx] < f.rank[ry] {
		rx, ry = ry, rx
	}
	f.parent[ry] = rx
	if f.rank[rx] == f.rank[ry] {
		f.rank[rx]++
	}
	return rx
}

// Connected reports whether x and y are in the same set.
func (f *Forest) Connected(x, y int) bool {
	return f.Find(x) == f.Find(y)
}

// Groups returns the sets of the forest as slices of their original element
// ids, keyed by representative. Elements within each group are in ascending
// order; the map itself has no defined iteration order.
func (f *Forest) Groups() map[int][]int {
	groups := make(map[int][]int)
	for i := range f.parent {
		r := f.Find(i)
		groups[r] = append(groups[r], i)
	}
	return groups
}

// Len returns the number of elements in the forest.
func (f *Forest) Len() int { return len(f.parent) }
