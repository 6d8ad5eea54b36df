// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry holds the struct-of-arrays tables shared by the pipeline
// stages: the subcontig universe and the parallel numeric columns (TNF,
// coverage, embedding) that are joined onto it by subcontig id.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/biogo/store/interval"
)

// ParseSubcontigID splits a subcontig id into its parent contig id and
// ordinal. The contig id is everything before the last underscore-delimited
// field, matching the convention used by the upstream collaborator that
// produces subcontig ids (contig ids may themselves contain underscores).
func ParseSubcontigID(id string) (contigID string, ordinal int, err error) {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return "", 0, fmt.Errorf("registry: malformed subcontig id %q: no ordinal separator", id)
	}
	contigID = id[:i]
	_, err = fmt.Sscanf(id[i+1:], "%d", &ordinal)
	if err != nil {
		return "", 0, fmt.Errorf("registry: malformed subcontig id %q: %w", id, err)
	}
	return contigID, ordinal, nil
}

// Subcontig is a single row of the subcontig universe.
type Subcontig struct {
	ID       string
	ContigID string
	Ordinal  int
	Start    int // offset into the parent contig, inclusive
	End      int // offset into the parent contig, exclusive
	Length   int
}

// window implements interval.IntRange-compatible lookups over a contig's
// subcontig tiling, in the style of cmd/ins's cullContained interval index.
type window struct {
	id    uintptr
	start int
	end   int
	sub   string
}

func (w window) Overlap(b interval.IntRange) bool { return b.Start < w.end && w.start < b.End }
func (w window) ID() uintptr                      { return w.id }
func (w window) Range() interval.IntRange         { return interval.IntRange{Start: w.start, End: w.end} }

// Universe is the ordered, deduplicated set of subcontigs produced by the
// subcontig builder, together with an interval index per contig used to
// validate and query tiling coverage.
type Universe struct {
	order   []string // canonical lexicographic order of subcontig ids
	byID    map[string]Subcontig
	byIndex map[string]int
	tiling  map[string]*interval.IntTree // contig id -> window index
}

// NewUniverse builds a Universe from an unordered slice of subcontigs. It
// panics if two subcontigs share an id; that is a caller invariant violation,
// not a recoverable runtime condition.
func NewUniverse(subs []Subcontig) *Universe {
	u := &Universe{
		byID:    make(map[string]Subcontig, len(subs)),
		byIndex: make(map[string]int, len(subs)),
		tiling:  make(map[string]*interval.IntTree),
	}
	for _, s := range subs {
		if _, dup := u.byID[s.ID]; dup {
			panic(fmt.Sprintf("registry: duplicate subcontig id %q", s.ID))
		}
		u.byID[s.ID] = s
	}
	u.order = make([]string, 0, len(subs))
	for id := range u.byID {
		u.order = append(u.order, id)
	}
	sort.Strings(u.order)
	for i, id := range u.order {
		u.byIndex[id] = i
	}
	var nextUID uintptr
	for _, s := range subs {
		tree, ok := u.tiling[s.ContigID]
		if !ok {
			tree = &interval.IntTree{}
			u.tiling[s.ContigID] = tree
		}
		err := tree.Insert(window{id: nextUID, start: s.Start, end: s.End, sub: s.ID}, true)
		if err != nil {
			panic(fmt.Sprintf("registry: failed to index subcontig %q: %v", s.ID, err))
		}
		nextUID++
	}
	for _, tree := range u.tiling {
		tree.AdjustRanges()
	}
	return u
}

// Len returns the number of subcontigs in the universe.
func (u *Universe) Len() int { return len(u.order) }

// IDs returns the canonical lexicographic order of subcontig ids. The
// returned slice must not be modified.
func (u *Universe) IDs() []string { return u.order }

// IndexOf returns the canonical row index of a subcontig id, and whether it
// is present in the universe.
func (u *Universe) IndexOf(id string) (int, bool) {
	i, ok := u.byIndex[id]
	return i, ok
}

// Lookup returns the Subcontig row for an id.
func (u *Universe) Lookup(id string) (Subcontig, bool) {
	s, ok := u.byID[id]
	return s, ok
}

// CoversWithOverlap reports whether the subcontigs belonging to contigID tile
// the half-open range [0, length) with overlap of at least minOverlap between
// consecutive windows, or the contig has exactly one subcontig (the "shorter
// than window" edge case, spec.md §4.A).
func (u *Universe) CoversWithOverlap(contigID string, length, minOverlap int) bool {
	tree, ok := u.tiling[contigID]
	if !ok {
		return false
	}
	hits := tree.Get(window{start: 0, end: length})
	if len(hits) == 1 {
		return true
	}
	type iv struct{ start, end int }
	var ivs []iv
	for _, h := range hits {
		w := h.(window)
		ivs = append(ivs, iv{w.start, w.end})
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
	if len(ivs) == 0 || ivs[0].start != 0 {
		return false
	}
	covered := ivs[0].end
	for i := 1; i < len(ivs); i++ {
		if ivs[i].start > covered {
			return false
		}
		if covered-ivs[i].start < minOverlap && ivs[i].start != 0 {
			return false
		}
		if ivs[i].end > covered {
			covered = ivs[i].end
		}
	}
	return covered >= length
}

// ContigIDs returns the distinct contig ids with at least one subcontig, in
// lexicographic order.
func (u *Universe) ContigIDs() []string {
	seen := make(map[string]bool, len(u.tiling))
	for c := range u.tiling {
		seen[c] = true
	}
	ids := make([]string, 0, len(seen))
	for c := range seen {
		ids = append(ids, c)
	}
	sort.Strings(ids)
	return ids
}

// Matrix is a dense row-major table of float64 columns, row-aligned to a
// Universe's canonical subcontig order.
type Matrix struct {
	Cols int
	Data []float64 // len == universe.Len() * Cols
}

// NewMatrix allocates a zero-filled Matrix for n rows and cols columns.
func NewMatrix(n, cols int) *Matrix {
	return &Matrix{Cols: cols, Data: make([]float64, n*cols)}
}

// Row returns the slice of columns for row i. The slice aliases the
// Matrix's backing array.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Rows returns the number of rows in the matrix.
func (m *Matrix) Rows() int {
	if m.Cols == 0 {
		return 0
	}
	return len(m.Data) / m.Cols
}
