// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recruit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// GMMParams controls the Bayesian Gaussian mixture recruiter. Components
// bounds the number of mixture components; since this package has no
// Dirichlet-process implementation available in the example corpus, the
// "infinite" DP prior is approximated by fitting a fixed, small number of
// components and letting EM collapse unneeded ones toward negligible
// weight, then scoring on the full mixture density. IQRFactor is spec.md
// §4.H's Tukey factor (3.0).
type GMMParams struct {
	Components int
	IQRFactor  float64
	Iters      int
}

func DefaultGMMParams() GMMParams {
	return GMMParams{Components: 3, IQRFactor: 3.0, Iters: 50}
}

type gaussianComponent struct {
	weight float64
	mean   []float64
	cov    *mat.SymDense
	dist   *distmv.Normal
}

// GMM is a fitted mixture, ready to score candidate feature rows.
type GMM struct {
	components []gaussianComponent
}

// FitGMM fits a Gaussian mixture to rows by expectation-maximization. The
// initial means are evenly spaced rows of the input, rows[i*n/k], so the fit
// is deterministic given a deterministic input order.
func FitGMM(rows [][]float64, p GMMParams) (*GMM, error) {
	n := len(rows)
	if n < 2 {
		return nil, fmt.Errorf("recruit: gmm needs at least 2 training rows, got %d", n)
	}
	dims := len(rows[0])
	k := p.Components
	if k > n {
		k = n
	}

	means := make([][]float64, k)
	for i := 0; i < k; i++ {
		means[i] = append([]float64(nil), rows[(i*n)/k]...)
	}
	weights := make([]float64, k)
	for i := range weights {
		weights[i] = 1.0 / float64(k)
	}
	covs := make([]*mat.SymDense, k)
	for i := range covs {
		covs[i] = identityCov(dims, varianceOf(rows))
	}

	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}

	for iter := 0; iter < p.Iters; iter++ {
		dists := make([]*distmv.Normal, k)
		for c := 0; c < k; c++ {
			d, ok := distmv.NewNormal(means[c], covs[c], nil)
			if !ok {
				covs[c] = identityCov(dims, varianceOf(rows))
				d, ok = distmv.NewNormal(means[c], covs[c], nil)
				if !ok {
					return nil, fmt.Errorf("recruit: gmm component %d has a singular covariance", c)
				}
			}
			dists[c] = d
		}
		for i, row := range rows {
			var sum float64
			raw := make([]float64, k)
			for c := 0; c < k; c++ {
				raw[c] = weights[c] * math.Exp(dists[c].LogProb(row))
				sum += raw[c]
			}
			if sum == 0 {
				for c := range raw {
					resp[i][c] = 1.0 / float64(k)
				}
				continue
			}
			for c := range raw {
				resp[i][c] = raw[c] / sum
			}
		}
		for c := 0; c < k; c++ {
			var nk float64
			newMean := make([]float64, dims)
			for i, row := range rows {
				r := resp[i][c]
				nk += r
				for d := 0; d < dims; d++ {
					newMean[d] += r * row[d]
				}
			}
			if nk < 1e-9 {
				continue
			}
			for d := range newMean {
				newMean[d] /= nk
			}
			cov := mat.NewSymDense(dims, nil)
			for i, row := range rows {
				r := resp[i][c]
				for d1 := 0; d1 < dims; d1++ {
					diff1 := row[d1] - newMean[d1]
					for d2 := d1; d2 < dims; d2++ {
						diff2 := row[d2] - newMean[d2]
						cov.SetSym(d1, d2, cov.At(d1, d2)+r*diff1*diff2)
					}
				}
			}
			for d1 := 0; d1 < dims; d1++ {
				for d2 := d1; d2 < dims; d2++ {
					v := cov.At(d1, d2)/nk + regularizer(d1, d2)
					cov.SetSym(d1, d2, v)
				}
			}
			means[c] = newMean
			covs[c] = cov
			weights[c] = nk / float64(n)
		}
	}

	g := &GMM{}
	for c := 0; c < k; c++ {
		d, ok := distmv.NewNormal(means[c], covs[c], nil)
		if !ok {
			continue
		}
		g.components = append(g.components, gaussianComponent{weight: weights[c], mean: means[c], cov: covs[c], dist: d})
	}
	if len(g.components) == 0 {
		return nil, fmt.Errorf("recruit: gmm fit produced no usable components")
	}
	return g, nil
}

func regularizer(d1, d2 int) float64 {
	if d1 == d2 {
		return 1e-6
	}
	return 0
}

func identityCov(dims int, scale float64) *mat.SymDense {
	cov := mat.NewSymDense(dims, nil)
	for i := 0; i < dims; i++ {
		cov.SetSym(i, i, scale)
	}
	return cov
}

func varianceOf(rows [][]float64) float64 {
	if len(rows) == 0 {
		return 1
	}
	var sum, sumSq float64
	var count int
	for _, row := range rows {
		for _, v := range row {
			sum += v
			sumSq += v * v
			count++
		}
	}
	if count == 0 {
		return 1
	}
	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance <= 0 {
		return 1
	}
	return variance
}

// Score returns the mixture's log-likelihood for row.
func (g *GMM) Score(row []float64) float64 {
	var sum float64
	for _, c := range g.components {
		sum += c.weight * math.Exp(c.dist.LogProb(row))
	}
	if sum <= 0 {
		return math.Inf(-1)
	}
	return math.Log(sum)
}

// RecruitGMM scores trainRows (the anchor's own subcontigs, to calibrate the
// IQR fence) and candidates, returning the set of recruited subcontig ids:
// those whose score falls within [lower, upper] of the anchor-score IQR
// fence (spec.md §4.H.1 — anomalous subcontigs, i.e. those outside the
// fence, are excluded).
func RecruitGMM(anchorRows [][]float64, candidates []Candidate, p GMMParams) (map[string]bool, error) {
	g, err := FitGMM(anchorRows, p)
	if err != nil {
		return nil, err
	}
	anchorScores := make([]float64, len(anchorRows))
	for i, row := range anchorRows {
		anchorScores[i] = g.Score(row)
	}
	lower, upper, err := IQRBounds(anchorScores, p.IQRFactor)
	if err != nil {
		return nil, err
	}
	recruited := make(map[string]bool)
	for _, c := range candidates {
		s := g.Score(c.Features)
		if s >= lower && s <= upper {
			recruited[c.SubcontigID] = true
		}
	}
	return recruited, nil
}
