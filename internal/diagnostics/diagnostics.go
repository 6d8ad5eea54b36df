// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diagnostics implements spec.md §7's per-anchor status ledger: a
// run always writes a table enumerating every anchor and its per-stage
// status, so downstream consumers can filter skipped items rather than
// mistake silence for success.
package diagnostics

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Status names the per-anchor per-stage outcomes of spec.md §7.
type Status string

const (
	Passed           Status = "passed"
	RecruiterSkipped Status = "recruiter-skipped"
	AnchorSkipped    Status = "anchor-skipped"
)

// Entry is one row of the diagnostics table.
type Entry struct {
	AnchorID string
	Stage    string
	Status   Status
	Detail   string
}

// Ledger accumulates isolated-error entries without ever propagating them
// upward, per spec.md §7's propagation policy.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// Record appends a diagnostics row. It is safe for concurrent use.
func (l *Ledger) Record(anchorID, stage string, status Status, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{AnchorID: anchorID, Stage: stage, Status: status, Detail: detail})
}

// RecruiterFailed records a model-fit-failure for a single (anchor,
// recruiter) pair: that recruiter contributes no rows for the anchor, but
// the ensemble still runs with the remaining recruiters.
func (l *Ledger) RecruiterFailed(anchorID, recruiterKind string, err error) {
	l.Record(anchorID, recruiterKind, RecruiterSkipped, err.Error())
}

// AnchorFailed records an anchor that could not proceed past a stage at
// all, e.g. fewer than 2 trusted subcontigs (spec.md §7 insufficient-data).
func (l *Ledger) AnchorFailed(anchorID, stage string, err error) {
	l.Record(anchorID, stage, AnchorSkipped, err.Error())
}

// Passed records a successful stage completion for an anchor.
func (l *Ledger) Passed(anchorID, stage string) {
	l.Record(anchorID, stage, Passed, "")
}

// Entries returns the accumulated rows in a stable order: ascending anchor
// id, then ascending stage name.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	out := append([]Entry(nil), l.entries...)
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnchorID != out[j].AnchorID {
			return out[i].AnchorID < out[j].AnchorID
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// WriteTSV writes the ledger as a tab-separated table with header
// "anchor_id\tstage\tstatus\tdetail", grounded on the upstream collaborator's
// errstat tables (original_source/dev_utils/hdbscan_errstat.py,
// saber-errstat.py).
func (l *Ledger) WriteTSV(w io.Writer) error {
	if _, err := io.WriteString(w, "anchor_id\tstage\tstatus\tdetail\n"); err != nil {
		return err
	}
	for _, e := range l.Entries() {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.AnchorID, e.Stage, e.Status, e.Detail)
		if err != nil {
			return err
		}
	}
	return nil
}
