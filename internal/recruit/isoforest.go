// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recruit

import (
	"fmt"
	"math"
	"math/rand"
)

// IsoForestParams controls the isolation-forest recruiter of spec.md
// §4.H.3.
type IsoForestParams struct {
	NumTrees  int
	SampleSz  int // rows per tree; 0 means use all training rows
	Seed      uint64
	IQRFactor float64
}

func DefaultIsoForestParams() IsoForestParams {
	return IsoForestParams{NumTrees: 1000, SampleSz: 256, Seed: 42, IQRFactor: 0.5}
}

type isoNode struct {
	splitFeature int
	splitValue   float64
	left, right  *isoNode
	size         int // leaf-only: number of training rows that reached this node
}

// IsolationForest is a fitted ensemble of random isolation trees.
type IsolationForest struct {
	trees      []*isoNode
	sampleSize int
}

func (f *IsolationForest) pathLength(row []float64, n *isoNode, depth int) float64 {
	if n.left == nil && n.right == nil {
		if n.size <= 1 {
			return float64(depth)
		}
		return float64(depth) + averagePathLength(n.size)
	}
	if row[n.splitFeature] < n.splitValue {
		return f.pathLength(row, n.left, depth+1)
	}
	return f.pathLength(row, n.right, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n points, as used to normalize
// isolation-forest path lengths.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerGamma = 0.5772156649
	return 2*(math.Log(float64(n-1))+eulerGamma) - 2*float64(n-1)/float64(n)
}

// meanPathLength returns the mean path length of row across all trees.
func (f *IsolationForest) meanPathLength(row []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += f.pathLength(row, t, 0)
	}
	return sum / float64(len(f.trees))
}

// DecisionFunction mirrors scikit-learn's isolation forest decision
// function: higher values are more normal, values near/below zero are more
// anomalous. It is continuous, which is what spec.md §4.H.3 IQR-bounds.
func (f *IsolationForest) DecisionFunction(row []float64) float64 {
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		c = 1
	}
	anomalyScore := math.Pow(2, -f.meanPathLength(row)/c)
	return 0.5 - anomalyScore
}

// FitIsolationForest builds NumTrees random isolation trees, each over an
// independent random subsample of rows (or all of rows if SampleSz <= 0 or
// larger than len(rows)).
func FitIsolationForest(rows [][]float64, p IsoForestParams) (*IsolationForest, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("recruit: isolation forest needs at least 2 training rows, got %d", len(rows))
	}
	sampleSz := p.SampleSz
	if sampleSz <= 0 || sampleSz > len(rows) {
		sampleSz = len(rows)
	}
	dims := len(rows[0])
	rng := rand.New(rand.NewSource(int64(p.Seed)))
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSz))))
	if maxDepth < 1 {
		maxDepth = 1
	}

	f := &IsolationForest{sampleSize: sampleSz}
	for t := 0; t < p.NumTrees; t++ {
		sample := sampleRows(rows, sampleSz, rng)
		f.trees = append(f.trees, buildIsoTree(sample, dims, 0, maxDepth, rng))
	}
	return f, nil
}

func sampleRows(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	perm := rng.Perm(len(rows))
	out := make([][]float64, k)
	for i := 0; i < k; i++ {
		out[i] = rows[perm[i]]
	}
	return out
}

func buildIsoTree(rows [][]float64, dims, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if depth >= maxDepth || len(rows) <= 1 {
		return &isoNode{size: len(rows)}
	}
	feature := rng.Intn(dims)
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows[1:] {
		if r[feature] < lo {
			lo = r[feature]
		}
		if r[feature] > hi {
			hi = r[feature]
		}
	}
	if lo == hi {
		return &isoNode{size: len(rows)}
	}
	splitValue := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < splitValue {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(rows)}
	}
	return &isoNode{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         buildIsoTree(left, dims, depth+1, maxDepth, rng),
		right:        buildIsoTree(right, dims, depth+1, maxDepth, rng),
	}
}

// RecruitIsolationForest fits a forest on anchorRows, computes the
// continuous decision function on the anchor's own rows to calibrate an IQR
// fence (Tukey factor 0.5), and recruits candidates whose decision score
// lies inside the fence.
func RecruitIsolationForest(anchorRows [][]float64, candidates []Candidate, p IsoForestParams) (map[string]bool, error) {
	f, err := FitIsolationForest(anchorRows, p)
	if err != nil {
		return nil, err
	}
	anchorScores := make([]float64, len(anchorRows))
	for i, row := range anchorRows {
		anchorScores[i] = f.DecisionFunction(row)
	}
	lower, upper, err := IQRBounds(anchorScores, p.IQRFactor)
	if err != nil {
		return nil, err
	}
	recruited := make(map[string]bool)
	for _, c := range candidates {
		s := f.DecisionFunction(c.Features)
		if s >= lower && s <= upper {
			recruited[c.SubcontigID] = true
		}
	}
	return recruited, nil
}
