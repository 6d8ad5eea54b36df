// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package embed implements the 4.D embedding stage: a manifold-learning
// projection of the joined TNF+coverage feature table into a low-dimensional
// space that preserves local neighborhoods under the Manhattan metric.
//
// The construction follows the UMAP family of algorithms: build a fuzzy
// k-nearest-neighbor graph under L1 distance, then lay the graph out in D
// dimensions by stochastic gradient descent, alternately attracting edges of
// the graph and repelling random negative samples.
package embed

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Params controls the embedding.
type Params struct {
	Components   int     // D, target dimensionality; default 2
	NumNeighbors int     // k, neighbors per point for the fuzzy graph; default 15
	MinDist      float64 // packs points closer than this in the embedding; default 0.1
	Epochs       int     // SGD epochs; default 200
	Seed         uint64  // fixed random state for reproducibility
}

// DefaultParams returns spec.md §4.D's default embedding parameters.
func DefaultParams() Params {
	return Params{
		Components:   2,
		NumNeighbors: 15,
		MinDist:      0.1,
		Epochs:       200,
		Seed:         42,
	}
}

func (p Params) Validate() error {
	if p.Components <= 0 {
		return fmt.Errorf("embed: components must be positive, got %d", p.Components)
	}
	if p.NumNeighbors <= 0 {
		return fmt.Errorf("embed: num_neighbors must be positive, got %d", p.NumNeighbors)
	}
	if p.MinDist <= 0 {
		return fmt.Errorf("embed: min_dist must be positive, got %v", p.MinDist)
	}
	if p.Epochs <= 0 {
		return fmt.Errorf("embed: epochs must be positive, got %d", p.Epochs)
	}
	return nil
}

// neighborGraph is the fuzzy simplicial set approximated as a symmetric
// weighted adjacency list, one entry per point.
type neighborGraph struct {
	neighbors [][]int
	weights   [][]float64
}

func buildNeighborGraph(rows [][]float64, k int) (*neighborGraph, error) {
	n := len(rows)
	if n == 0 {
		return &neighborGraph{}, nil
	}
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		return &neighborGraph{neighbors: make([][]int, n), weights: make([][]float64, n)}, nil
	}

	g := &neighborGraph{
		neighbors: make([][]int, n),
		weights:   make([][]float64, n),
	}
	dists := make([][]float64, n)
	type cand struct {
		idx int
		d   float64
	}
	for i := range rows {
		cands := make([]cand, 0, n-1)
		for j := range rows {
			if j == i {
				continue
			}
			cands = append(cands, cand{j, floats.Distance(rows[i], rows[j], 1)})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].d < cands[b].d })
		if len(cands) > k {
			cands = cands[:k]
		}
		nbrs := make([]int, len(cands))
		ds := make([]float64, len(cands))
		for idx, c := range cands {
			nbrs[idx] = c.idx
			ds[idx] = c.d
		}
		g.neighbors[i] = nbrs
		dists[i] = ds
	}

	// Calibrate per-point sigma so the sum of membership strengths to its
	// neighbors matches log2(k), the standard UMAP fuzzy-set calibration.
	target := math.Log2(float64(k))
	for i := range rows {
		ds := dists[i]
		if len(ds) == 0 {
			g.weights[i] = nil
			continue
		}
		rho := floats.Min(ds)
		sigma := calibrateSigma(ds, rho, target)
		w := make([]float64, len(ds))
		for j, d := range ds {
			w[j] = math.Exp(-math.Max(0, d-rho) / sigma)
		}
		g.weights[i] = w
	}

	// Symmetrize: edge weight is the fuzzy union, w_ij ∪ w_ji = w_ij + w_ji − w_ij·w_ji.
	sym := make(map[[2]int]float64)
	for i, nbrs := range g.neighbors {
		for j, nb := range nbrs {
			w := g.weights[i][j]
			key := edgeKey(i, nb)
			if existing, ok := sym[key]; ok {
				sym[key] = existing + w - existing*w
			} else {
				sym[key] = w
			}
		}
	}

	adj := make(map[int][]int, n)
	wadj := make(map[int][]float64, n)
	keys := make([][2]int, 0, len(sym))
	for key := range sym {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, key := range keys {
		w := sym[key]
		a, b := key[0], key[1]
		adj[a] = append(adj[a], b)
		wadj[a] = append(wadj[a], w)
		adj[b] = append(adj[b], a)
		wadj[b] = append(wadj[b], w)
	}
	for i := 0; i < n; i++ {
		g.neighbors[i] = adj[i]
		g.weights[i] = wadj[i]
	}
	return g, nil
}

func edgeKey(a, b int) [2]int {
	if a < b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

// calibrateSigma performs the binary search UMAP uses to find a bandwidth
// whose resulting membership strengths sum to target.
func calibrateSigma(ds []float64, rho, target float64) float64 {
	lo, hi := 1e-6, 1e6
	sigma := 1.0
	for iter := 0; iter < 64; iter++ {
		sigma = (lo + hi) / 2
		sum := 0.0
		for _, d := range ds {
			sum += math.Exp(-math.Max(0, d-rho) / sigma)
		}
		if math.Abs(sum-target) < 1e-5 {
			break
		}
		if sum > target {
			hi = sigma
		} else {
			lo = sigma
		}
	}
	return sigma
}

// curveParams fits the a,b coefficients of the (1+a·d^(2b))^-1 low-dimensional
// similarity curve to the min_dist parameter, following the UMAP construction.
// For the default min_dist=0.1 these are close to (1.929, 0.7915); other
// values use a closed-form approximation, not a numeric fit.
func curveParams(minDist float64) (a, b float64) {
	if minDist == 0.1 {
		return 1.929, 0.7915
	}
	// b is fixed at 1 and a = minDist^-2b, so the curve takes the value 1/2
	// at d = minDist; no least-squares search over b is performed.
	b = 1.0
	a = 1.0 / math.Pow(minDist, 2*b)
	return a, b
}

// edge is one fuzzy-graph edge prepared for the SGD layout pass.
type edge struct {
	i, j int
	w    float64
}

func buildEdges(g *neighborGraph) []edge {
	var edges []edge
	for i, nbrs := range g.neighbors {
		for k, j := range nbrs {
			if j > i {
				edges = append(edges, edge{i, j, g.weights[i][k]})
			}
		}
	}
	return edges
}

// runSGD lays edges out by attract/repel stochastic gradient descent over
// the given number of epochs, mutating emb in place.
func runSGD(emb [][]float64, edges []edge, rng *rand.Rand, a, b float64, epochs int) {
	if len(edges) == 0 {
		return
	}
	n := len(emb)
	const negSamples = 5
	const gamma = 1.0
	initialAlpha := 1.0
	for epoch := 0; epoch < epochs; epoch++ {
		alpha := initialAlpha * (1 - float64(epoch)/float64(epochs))
		for _, e := range edges {
			if rng.Float64() > e.w {
				continue
			}
			attract(emb[e.i], emb[e.j], a, b, alpha)
			for s := 0; s < negSamples; s++ {
				k := rng.Intn(n)
				if k == e.i {
					continue
				}
				repel(emb[e.i], emb[k], a, b, alpha, gamma)
			}
		}
	}
}

// randomInit scatters n points uniformly in [-10, 10]^d, the fallback
// starting point when no structured initialization succeeds.
func randomInit(n, d int, rng *rand.Rand) [][]float64 {
	emb := make([][]float64, n)
	for i := range emb {
		emb[i] = make([]float64, d)
		for k := range emb[i] {
			emb[i][k] = (rng.Float64()*2 - 1) * 10
		}
	}
	return emb
}

// finite reports whether every coordinate in emb is a finite number. A
// degenerate neighbor graph (near-duplicate rows, disconnected components)
// can drive the spectral or PCA solvers to NaN/Inf, which must be caught
// before handing the result to the SGD pass.
func finite(emb [][]float64) bool {
	for _, row := range emb {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// maxSpectralN bounds the size of problem spectralInit will attempt: the
// dense symmetric eigendecomposition is O(n^3), and past this size the
// two-stage or PCA fallback is cheaper and just as reproducible.
const maxSpectralN = 2000

// spectralInit seeds the embedding from the low-frequency eigenvectors of
// the fuzzy graph's Laplacian, the first initialization strategy tried by
// UMAP's reference implementation.
func spectralInit(n int, g *neighborGraph, p Params) ([][]float64, error) {
	if n > maxSpectralN {
		return nil, fmt.Errorf("embed: spectral init skipped for n=%d (limit %d)", n, maxSpectralN)
	}
	if n <= p.Components+1 {
		return nil, fmt.Errorf("embed: spectral init needs more than %d points", p.Components+1)
	}

	w := mat.NewSymDense(n, nil)
	deg := make([]float64, n)
	for i, nbrs := range g.neighbors {
		for k, j := range nbrs {
			wt := g.weights[i][k]
			if j > i {
				w.SetSym(i, j, wt)
			}
			deg[i] += wt
		}
	}
	lap := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				lap.SetSym(i, j, deg[i])
			} else {
				lap.SetSym(i, j, -w.At(i, j))
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(lap, true) {
		return nil, errors.New("embed: spectral eigendecomposition failed to converge")
	}
	values := eig.Values(nil) // ascending
	if len(values) < p.Components+1 {
		return nil, fmt.Errorf("embed: only %d eigenvalues available, need %d", len(values), p.Components+1)
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// The smallest eigenvalue's eigenvector is constant on a connected
	// graph and carries no embedding information; skip it.
	emb := make([][]float64, n)
	for row := range emb {
		emb[row] = make([]float64, p.Components)
	}
	for comp := 0; comp < p.Components; comp++ {
		col := comp + 1
		for row := 0; row < n; row++ {
			emb[row][comp] = vecs.At(row, col)
		}
	}
	return emb, nil
}

// twoStageInit reruns the layout once over a coarser, wider-k neighbor
// graph and uses the resulting positions as a seed, the "2-stage DR"
// fallback used when spectral initialization fails (e.g. a disconnected or
// oversized graph).
func twoStageInit(n int, rows [][]float64, p Params, rng *rand.Rand) ([][]float64, error) {
	k2 := p.NumNeighbors * 3
	if k2 > n-1 {
		k2 = n - 1
	}
	if k2 < 1 {
		return nil, errors.New("embed: two-stage init needs at least 2 points")
	}
	g2, err := buildNeighborGraph(rows, k2)
	if err != nil {
		return nil, fmt.Errorf("embed: two-stage init: %w", err)
	}

	emb := randomInit(n, p.Components, rng)
	a, b := curveParams(p.MinDist)
	coarseEpochs := p.Epochs / 4
	if coarseEpochs < 1 {
		coarseEpochs = 1
	}
	runSGD(emb, buildEdges(g2), rng, a, b, coarseEpochs)
	return emb, nil
}

// pcaInit seeds the embedding from the leading principal components of the
// raw feature rows, the last-resort fallback when both the graph-based
// strategies fail.
func pcaInit(rows [][]float64, p Params) ([][]float64, error) {
	n := len(rows)
	d := len(rows[0])
	if d == 0 {
		return nil, errors.New("embed: pca init needs a nonzero feature dimension")
	}

	mean := make([]float64, d)
	for _, r := range rows {
		for j, v := range r {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	centered := mat.NewDense(n, d, nil)
	for i, r := range rows {
		for j, v := range r {
			centered.Set(i, j, v-mean[j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return nil, errors.New("embed: pca svd failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	_, vc := v.Dims()
	comps := p.Components
	if comps > vc {
		comps = vc
	}

	emb := make([][]float64, n)
	for i := 0; i < n; i++ {
		emb[i] = make([]float64, p.Components)
		for c := 0; c < comps; c++ {
			var sum float64
			for j := 0; j < d; j++ {
				sum += centered.At(i, j) * v.At(j, c)
			}
			emb[i][c] = sum
		}
	}
	return emb, nil
}

// initEmbedding runs the spec.md §9 bounded retry chain: spectral
// initialization first, then the two-stage coarse layout, then a PCA seed,
// accepting the first strategy whose result is entirely finite. This
// mirrors the nested fallback in the original clusterer, which retries with
// a cheaper initialization whenever the preferred one raises.
func initEmbedding(rows [][]float64, g *neighborGraph, p Params, rng *rand.Rand) ([][]float64, error) {
	n := len(rows)
	var lastErr error

	if emb, err := spectralInit(n, g, p); err != nil {
		lastErr = err
	} else if !finite(emb) {
		lastErr = errors.New("embed: spectral init produced non-finite coordinates")
	} else {
		return emb, nil
	}

	if emb, err := twoStageInit(n, rows, p, rng); err != nil {
		lastErr = err
	} else if !finite(emb) {
		lastErr = errors.New("embed: two-stage init produced non-finite coordinates")
	} else {
		return emb, nil
	}

	if emb, err := pcaInit(rows, p); err != nil {
		lastErr = err
	} else if !finite(emb) {
		lastErr = errors.New("embed: pca init produced non-finite coordinates")
	} else {
		return emb, nil
	}

	return nil, fmt.Errorf("embed: spectral, two-stage and pca initialization all failed, last error: %w", lastErr)
}

// Embed lays out rows (Manhattan metric) into p.Components dimensions and
// returns one coordinate slice per input row, in the same order.
//
// Initialization follows spec.md §9's bounded retry/fallback chain
// (spectral, then two-stage, then PCA) before the attract/repel SGD pass
// runs for p.Epochs epochs.
func Embed(rows [][]float64, p Params) ([][]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(rows)
	if n == 0 {
		return nil, nil
	}

	g, err := buildNeighborGraph(rows, p.NumNeighbors)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(int64(p.Seed)))
	if n == 1 {
		return randomInit(1, p.Components, rng), nil
	}

	emb, err := initEmbedding(rows, g, p, rng)
	if err != nil {
		return nil, err
	}

	a, b := curveParams(p.MinDist)
	runSGD(emb, buildEdges(g), rng, a, b, p.Epochs)
	return emb, nil
}

func sqDist(x, y []float64) float64 {
	var sum float64
	for i := range x {
		diff := x[i] - y[i]
		sum += diff * diff
	}
	return sum
}

func attract(x, y []float64, a, b, alpha float64) {
	d2 := sqDist(x, y)
	if d2 <= 0 {
		return
	}
	grad := (-2 * a * b * math.Pow(d2, b-1)) / (1 + a*math.Pow(d2, b))
	for i := range x {
		delta := clampGrad(grad*(x[i]-y[i])) * alpha
		x[i] += delta
		y[i] -= delta
	}
}

func repel(x, y []float64, a, b, alpha, gamma float64) {
	d2 := sqDist(x, y)
	if d2 <= 0 {
		d2 = 1e-4
	}
	grad := (2 * gamma * b) / ((0.001 + d2) * (1 + a*math.Pow(d2, b)))
	for i := range x {
		delta := clampGrad(grad*(x[i]-y[i])) * alpha
		x[i] += delta
	}
}

func clampGrad(g float64) float64 {
	const bound = 4.0
	if g > bound {
		return bound
	}
	if g < -bound {
		return -bound
	}
	return g
}
