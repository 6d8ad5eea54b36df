// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package embed

import (
	"math"
	"math/rand"
	"testing"
)

func TestEmbedDeterministic(t *testing.T) {
	rows := [][]float64{
		{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0},
		{10, 10, 10}, {10.1, 10, 10}, {10, 10.1, 10},
	}
	p := DefaultParams()
	p.Epochs = 20
	p.NumNeighbors = 2

	a, err := Embed(rows, p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Embed(rows, p)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		for d := range a[i] {
			if a[i][d] != b[i][d] {
				t.Fatalf("non-deterministic output at row %d dim %d: %v vs %v", i, d, a[i][d], b[i][d])
			}
		}
	}
}

func TestEmbedShape(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(i) * 2}
	}
	p := DefaultParams()
	p.Epochs = 10
	p.NumNeighbors = 3
	out, err := Embed(rows, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(rows) {
		t.Fatalf("got %d embedded rows, want %d", len(out), len(rows))
	}
	for i, r := range out {
		if len(r) != p.Components {
			t.Fatalf("row %d has %d components, want %d", i, len(r), p.Components)
		}
		for _, x := range r {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				t.Fatalf("row %d has non-finite coordinate: %v", i, x)
			}
		}
	}
}

func TestEmbedSinglePoint(t *testing.T) {
	rows := [][]float64{{1, 2, 3}}
	out, err := Embed(rows, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || len(out[0]) != 2 {
		t.Fatalf("got %v, want one 2-d row", out)
	}
}

func TestEmbedEmpty(t *testing.T) {
	out, err := Embed(nil, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Fatalf("got %v, want nil", out)
	}
}

func TestSpectralInitProducesFiniteCoordinates(t *testing.T) {
	rows := [][]float64{
		{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0}, {0.1, 0.1, 0},
		{10, 10, 10}, {10.1, 10, 10}, {10, 10.1, 10}, {10.1, 10.1, 10},
	}
	p := DefaultParams()
	p.NumNeighbors = 3
	g, err := buildNeighborGraph(rows, p.NumNeighbors)
	if err != nil {
		t.Fatal(err)
	}
	emb, err := spectralInit(len(rows), g, p)
	if err != nil {
		t.Fatal(err)
	}
	if !finite(emb) {
		t.Fatalf("spectralInit produced non-finite coordinates: %v", emb)
	}
	if len(emb) != len(rows) || len(emb[0]) != p.Components {
		t.Fatalf("got shape %dx%d, want %dx%d", len(emb), len(emb[0]), len(rows), p.Components)
	}
}

func TestSpectralInitRejectsOversizedGraph(t *testing.T) {
	p := DefaultParams()
	if _, err := spectralInit(maxSpectralN+1, &neighborGraph{}, p); err == nil {
		t.Fatal("expected spectralInit to refuse a graph past maxSpectralN")
	}
}

func TestInitEmbeddingFallsBackToPCA(t *testing.T) {
	// n=1 fails spectralInit's n<=Components+1 check and twoStageInit's
	// k2<1 check (n-1=0 neighbors available), leaving only pcaInit.
	rows := [][]float64{{0, 0, 1}}
	p := Params{Components: 2, NumNeighbors: 15, MinDist: 0.1, Epochs: 10, Seed: 1}
	rng := rand.New(rand.NewSource(1))
	g, err := buildNeighborGraph(rows, p.NumNeighbors)
	if err != nil {
		t.Fatal(err)
	}
	emb, err := initEmbedding(rows, g, p, rng)
	if err != nil {
		t.Fatal(err)
	}
	if !finite(emb) {
		t.Fatalf("initEmbedding produced non-finite coordinates: %v", emb)
	}
}

func TestValidateRejectsBadParams(t *testing.T) {
	bad := []Params{
		{Components: 0, NumNeighbors: 1, MinDist: 0.1, Epochs: 1},
		{Components: 1, NumNeighbors: 0, MinDist: 0.1, Epochs: 1},
		{Components: 1, NumNeighbors: 1, MinDist: 0, Epochs: 1},
		{Components: 1, NumNeighbors: 1, MinDist: 0.1, Epochs: 0},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", p)
		}
	}
}
