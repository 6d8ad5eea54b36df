// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"strings"
	"testing"

	"github.com/kortschak/binner/internal/anchorclust"
	"github.com/kortschak/binner/internal/config"
	"github.com/kortschak/binner/internal/coverage"
	"github.com/kortschak/binner/internal/subcontig"
)

func randomSeq(n int, seed int) string {
	bases := "ACGT"
	var b strings.Builder
	x := seed*2654435761 + 1
	for i := 0; i < n; i++ {
		x = x*1103515245 + 12345
		b.WriteByte(bases[(x>>16)&3])
	}
	return b.String()
}

func smallConfig() config.Config {
	cfg := config.Default()
	cfg.WindowSize = 10000
	cfg.Overlap = 2000
	cfg.DenovoMinClusterSize = 2
	cfg.DenovoMinSamples = 1
	cfg.AnchorMinClusterSize = 2
	cfg.AnchorMinSamples = 1
	return cfg
}

func TestRunWithoutAnchorsSkipsAnchoredStages(t *testing.T) {
	contigs := []subcontig.Contig{
		{ID: "c1", Sequence: randomSeq(3000, 1)},
		{ID: "c2", Sequence: randomSeq(3000, 2)},
		{ID: "c3", Sequence: randomSeq(3000, 3)},
	}
	in := Input{
		Contigs:  contigs,
		Coverage: &coverage.Table{Samples: nil, Rows: map[string][]float64{}},
		Config:   smallConfig(),
	}
	c := NewCoordinator()
	out, err := c.Run(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.DenovoClusters)+len(out.DenovoNoise) != 3 {
		t.Fatalf("got %d+%d denovo rows, want 3 total", len(out.DenovoClusters), len(out.DenovoNoise))
	}
	if len(out.HDBSCANClusters) != 0 || len(out.OCSVMClusters) != 0 || len(out.InterClusters) != 0 {
		t.Fatalf("anchored tables should be empty without anchors, got %+v", out)
	}
}

func TestRunWithAnchorsPopulatesReconciledTable(t *testing.T) {
	contigs := []subcontig.Contig{
		{ID: "c1", Sequence: randomSeq(3000, 1)},
		{ID: "c2", Sequence: randomSeq(3000, 2)},
		{ID: "c3", Sequence: randomSeq(3000, 3)},
		{ID: "c4", Sequence: randomSeq(3000, 4)},
	}
	anchors := []anchorclust.Anchor{
		{AnchorID: "A1", ContigID: "c1"},
		{AnchorID: "A1", ContigID: "c2"},
	}
	in := Input{
		Contigs:  contigs,
		Coverage: &coverage.Table{Samples: nil, Rows: map[string][]float64{}},
		Anchors:  anchors,
		Config:   smallConfig(),
	}
	c := NewCoordinator()
	out, err := c.Run(in)
	if err != nil {
		t.Fatal(err)
	}
	// Anchors are always a subset of the reconciled output (spec.md §8
	// invariant: anchors(a) subseteq final(a)).
	final := make(map[string]bool)
	for _, r := range out.InterClusters {
		final[r.ContigID] = true
	}
	for _, a := range anchors {
		if !final[a.ContigID] {
			t.Errorf("anchor contig %s missing from reconciled output", a.ContigID)
		}
	}
}

func TestCoordinatorMalformedConfigIsFatal(t *testing.T) {
	c := NewCoordinator()
	cfg := config.Default()
	cfg.WindowSize = -1
	_, err := c.Run(Input{Config: cfg})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if _, ok := err.(*StageError); !ok {
		t.Fatalf("got %T, want *StageError", err)
	}
}
