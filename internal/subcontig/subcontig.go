// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package subcontig implements the 4.A subcontig builder: partitioning a
// contig into fixed-length overlapping windows with stable identifiers.
package subcontig

import "fmt"

// Window is a single tiled slice of a contig.
type Window struct {
	ID       string // contig_id ⊕ "_" ⊕ ordinal
	ContigID string
	Ordinal  int
	Start    int // offset into the contig, inclusive
	End      int // offset into the contig, exclusive
	Sequence string
}

// Params controls the tiling.
type Params struct {
	WindowSize int // W
	Overlap    int // O, must be < WindowSize
}

// Validate reports whether the parameters are usable.
func (p Params) Validate() error {
	if p.WindowSize <= 0 {
		return fmt.Errorf("subcontig: window_size must be positive, got %d", p.WindowSize)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("subcontig: overlap must be non-negative, got %d", p.Overlap)
	}
	if p.Overlap >= p.WindowSize {
		return fmt.Errorf("subcontig: overlap (%d) must be less than window_size (%d)", p.Overlap, p.WindowSize)
	}
	return nil
}

// Build tiles a single contig's sequence into windows following spec.md
// §4.A: if the sequence is shorter than W, emit it whole as ordinal 0;
// otherwise slide a window of size W by step W-O across the sequence,
// stopping once a full window no longer fits, then append one final window
// covering the last W bases so the tail is always covered with overlap ≥ O.
func Build(contigID, seq string, p Params) ([]Window, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(seq)
	if n < p.WindowSize {
		return []Window{{
			ID:       fmt.Sprintf("%s_%d", contigID, 0),
			ContigID: contigID,
			Ordinal:  0,
			Start:    0,
			End:      n,
			Sequence: seq,
		}}, nil
	}

	step := p.WindowSize - p.Overlap
	var windows []Window
	ordinal := 0
	lastStart := -1
	for start := 0; start+p.WindowSize <= n; start += step {
		windows = append(windows, Window{
			ID:       fmt.Sprintf("%s_%d", contigID, ordinal),
			ContigID: contigID,
			Ordinal:  ordinal,
			Start:    start,
			End:      start + p.WindowSize,
			Sequence: seq[start : start+p.WindowSize],
		})
		lastStart = start
		ordinal++
	}
	tailStart := n - p.WindowSize
	if tailStart != lastStart {
		windows = append(windows, Window{
			ID:       fmt.Sprintf("%s_%d", contigID, ordinal),
			ContigID: contigID,
			Ordinal:  ordinal,
			Start:    tailStart,
			End:      n,
			Sequence: seq[tailStart:n],
		})
	}
	return windows, nil
}

// Contig is the minimal input the builder needs from the upstream
// collaborator that owns FASTA I/O (spec.md §6).
type Contig struct {
	ID       string
	Sequence string
}

// BuildAll tiles a batch of contigs. Each contig is independent and
// commutative with the others (spec.md §5), so callers may shard this
// across a worker pool; BuildAll itself runs sequentially and is safe to
// call concurrently with disjoint input slices.
func BuildAll(contigs []Contig, p Params) ([]Window, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var all []Window
	for _, c := range contigs {
		ws, err := Build(c.ID, c.Sequence, p)
		if err != nil {
			return nil, fmt.Errorf("subcontig: contig %q: %w", c.ID, err)
		}
		all = append(all, ws...)
	}
	return all, nil
}
