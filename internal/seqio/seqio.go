// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seqio implements the §6 external interfaces: reading the contig
// FASTA stream, the coverage table, and the anchor table the core consumes
// from its collaborator.
package seqio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/kortschak/binner/internal/coverage"
	"github.com/kortschak/binner/internal/subcontig"
)

// ReadContigs reads a FASTA stream into subcontig.Contig rows, in file
// order. Duplicate ids are a malformed-input error (spec.md §7).
func ReadContigs(r io.Reader) ([]subcontig.Contig, error) {
	fr := fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))
	sc := seqio.NewScanner(fr)
	seen := make(map[string]bool)
	var out []subcontig.Contig
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		id := s.Name()
		if seen[id] {
			return nil, fmt.Errorf("seqio: duplicate contig id %q", id)
		}
		seen[id] = true
		letters := make([]byte, len(s.Seq))
		for i, l := range s.Seq {
			letters[i] = byte(l)
		}
		out = append(out, subcontig.Contig{ID: id, Sequence: string(letters)})
	}
	if err := sc.Error(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("seqio: reading contig fasta: %w", err)
	}
	return out, nil
}

// ReadCoverage parses the tab-separated coverage table of spec.md §6: header
// row "subcontig_id" + one column per sample, floats >= 0.
func ReadCoverage(r io.Reader) (*coverage.Table, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, fmt.Errorf("seqio: empty coverage table")
	}
	header := strings.Split(sc.Text(), "\t")
	if len(header) < 2 || header[0] != "subcontig_id" {
		return nil, fmt.Errorf("seqio: coverage table header must start with \"subcontig_id\", got %v", header)
	}
	t := &coverage.Table{
		Samples: header[1:],
		Rows:    make(map[string][]float64),
	}
	lineNo := 1
	for sc.Scan() {
		lineNo++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("seqio: coverage table line %d has %d columns, want %d", lineNo, len(fields), len(header))
		}
		id := fields[0]
		if _, dup := t.Rows[id]; dup {
			return nil, fmt.Errorf("seqio: duplicate subcontig id %q in coverage table", id)
		}
		row := make([]float64, len(fields)-1)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("seqio: coverage table line %d column %q: %w", lineNo, header[i+1], err)
			}
			row[i] = v
		}
		t.Rows[id] = row
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("seqio: reading coverage table: %w", err)
	}
	return t, nil
}

// AnchorRow is one row of the anchor table, filtered to jacc_sim_max = 1.0
// rows by ReadAnchors (spec.md §6: "the core uses only rows with
// jacc_sim_max = 1.0").
type AnchorRow struct {
	AnchorID   string
	ContigID   string
	JaccSim    float64
	JaccSimMax float64
}

// ReadAnchors parses the tab-separated anchor table and returns only the
// rows the core consumes: jacc_sim_max = 1.0.
func ReadAnchors(r io.Reader) ([]AnchorRow, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, fmt.Errorf("seqio: empty anchor table")
	}
	header := strings.Split(sc.Text(), "\t")
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	required := []string{"anchor_id", "q_contig_id", "jacc_sim", "jacc_sim_max"}
	for _, r := range required {
		if _, ok := col[r]; !ok {
			return nil, fmt.Errorf("seqio: anchor table missing required column %q", r)
		}
	}

	var out []AnchorRow
	lineNo := 1
	for sc.Scan() {
		lineNo++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("seqio: anchor table line %d has %d columns, want %d", lineNo, len(fields), len(header))
		}
		jaccSimMax, err := strconv.ParseFloat(fields[col["jacc_sim_max"]], 64)
		if err != nil {
			return nil, fmt.Errorf("seqio: anchor table line %d: jacc_sim_max: %w", lineNo, err)
		}
		if jaccSimMax != 1.0 {
			continue
		}
		jaccSim, err := strconv.ParseFloat(fields[col["jacc_sim"]], 64)
		if err != nil {
			return nil, fmt.Errorf("seqio: anchor table line %d: jacc_sim: %w", lineNo, err)
		}
		out = append(out, AnchorRow{
			AnchorID:   fields[col["anchor_id"]],
			ContigID:   fields[col["q_contig_id"]],
			JaccSim:    jaccSim,
			JaccSimMax: jaccSimMax,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("seqio: reading anchor table: %w", err)
	}
	return out, nil
}
