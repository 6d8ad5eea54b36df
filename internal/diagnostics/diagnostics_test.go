// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diagnostics

import (
	"errors"
	"strings"
	"testing"
)

func TestLedgerOrdersEntries(t *testing.T) {
	var l Ledger
	l.Passed("A2", "recruit")
	l.Passed("A1", "cluster")
	l.Passed("A1", "recruit")
	entries := l.Entries()
	if entries[0].AnchorID != "A1" || entries[0].Stage != "cluster" {
		t.Fatalf("got %+v first, want A1/cluster", entries[0])
	}
	if entries[2].AnchorID != "A2" {
		t.Fatalf("got %+v last, want A2", entries[2])
	}
}

func TestWriteTSV(t *testing.T) {
	var l Ledger
	l.RecruiterFailed("A1", "gmm", errors.New("singular covariance"))
	var buf strings.Builder
	if err := l.WriteTSV(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "A1\tgmm\trecruiter-skipped\tsingular covariance") {
		t.Fatalf("unexpected TSV output:\n%s", out)
	}
}
