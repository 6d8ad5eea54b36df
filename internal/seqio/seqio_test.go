// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seqio

import (
	"strings"
	"testing"
)

func TestReadContigs(t *testing.T) {
	data := ">c1\nACGTACGT\n>c2\nTTTT\n"
	contigs, err := ReadContigs(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(contigs) != 2 {
		t.Fatalf("got %d contigs, want 2", len(contigs))
	}
	if contigs[0].ID != "c1" || contigs[0].Sequence != "ACGTACGT" {
		t.Errorf("got %+v", contigs[0])
	}
}

func TestReadContigsRejectsDuplicates(t *testing.T) {
	data := ">c1\nACGT\n>c1\nTTTT\n"
	if _, err := ReadContigs(strings.NewReader(data)); err == nil {
		t.Fatal("expected error for duplicate contig id")
	}
}

func TestReadCoverage(t *testing.T) {
	data := "subcontig_id\ts1\ts2\nc1_0\t1.5\t2.0\nc1_1\t0\t0\n"
	tbl, err := ReadCoverage(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Samples) != 2 || tbl.Samples[0] != "s1" {
		t.Fatalf("got samples %v", tbl.Samples)
	}
	if tbl.Rows["c1_0"][0] != 1.5 {
		t.Errorf("got %v, want 1.5", tbl.Rows["c1_0"][0])
	}
}

func TestReadCoverageRejectsBadHeader(t *testing.T) {
	data := "wrong_header\ts1\nc1_0\t1.0\n"
	if _, err := ReadCoverage(strings.NewReader(data)); err == nil {
		t.Fatal("expected error for malformed header")
	}
}

func TestReadAnchorsFiltersJaccSimMax(t *testing.T) {
	data := "anchor_id\tq_contig_id\tjacc_sim\tjacc_sim_max\nA1\tc1\t1.0\t1.0\nA1\tc2\t0.5\t0.8\n"
	rows, err := ReadAnchors(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (only jacc_sim_max=1.0 retained)", len(rows))
	}
	if rows[0].ContigID != "c1" {
		t.Errorf("got contig %q, want c1", rows[0].ContigID)
	}
}

func TestReadAnchorsRequiresColumns(t *testing.T) {
	data := "anchor_id\tq_contig_id\n A1\tc1\n"
	if _, err := ReadAnchors(strings.NewReader(data)); err == nil {
		t.Fatal("expected error for missing required columns")
	}
}
