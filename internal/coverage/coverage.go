// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coverage implements the 4.C coverage joiner: aligning a table of
// per-sample abundance values onto the subcontig universe produced by
// package subcontig/registry.
package coverage

import (
	"fmt"
	"sort"
)

// Table is a parsed, unjoined coverage table as read from the upstream
// collaborator: one row per subcontig id, one column per sample.
type Table struct {
	Samples []string
	Rows    map[string][]float64
}

// Validate checks that every row has Samples-width and all values are
// non-negative.
func (t *Table) Validate() error {
	k := len(t.Samples)
	for id, row := range t.Rows {
		if len(row) != k {
			return fmt.Errorf("coverage: subcontig %q has %d samples, want %d", id, len(row), k)
		}
		for i, v := range row {
			if v < 0 {
				return fmt.Errorf("coverage: subcontig %q sample %q is negative (%v)", id, t.Samples[i], v)
			}
		}
	}
	return nil
}

// Join aligns t onto the subcontig ids in order, filling unknown subcontigs
// with a zero row of width len(t.Samples) and dropping any table rows whose
// id is not present in ids (spec.md §4.C guarantees).
func Join(ids []string, t *Table) ([][]float64, []string, error) {
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	samples := append([]string(nil), t.Samples...)
	sort.Strings(samples)
	perm := make([]int, len(samples))
	for i, s := range samples {
		for j, s2 := range t.Samples {
			if s == s2 {
				perm[i] = j
				break
			}
		}
	}
	out := make([][]float64, len(ids))
	for i, id := range ids {
		row, ok := t.Rows[id]
		if !ok {
			out[i] = make([]float64, len(samples))
			continue
		}
		reordered := make([]float64, len(samples))
		for j, p := range perm {
			reordered[j] = row[p]
		}
		out[i] = reordered
	}
	return out, samples, nil
}

// DroppedIDs returns the table row ids that are not present in the
// universe's subcontig id set, for diagnostic reporting.
func DroppedIDs(ids []string, t *Table) []string {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	var dropped []string
	for id := range t.Rows {
		if !known[id] {
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	return dropped
}
