// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tetra implements the 4.B tetranucleotide-frequency featurizer:
// counting canonical 4-mers over a subcontig's sequence and turning the
// counts into a standardized, compositionally closed feature vector.
package tetra

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// bases is the alphabet the counter recognizes; any other byte (N runs,
// soft-masked lowercase is upcased first) causes the overlapping 4-mers to be
// skipped rather than guessed at.
const bases = "ACGT"

var baseIndex = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i, b := range []byte(bases) {
		idx[b] = int8(i)
	}
	return idx
}()

// canon holds, for each of the 256 4-mers, the lexicographically smaller of
// itself and its reverse (not reverse-complement) partner, collapsing the
// 256 raw 4-mers into the 136 distinct canonical tetranucleotides used as
// features.
var canon = buildCanon()

// NumFeatures is the width of a canonical tetranucleotide feature vector.
const NumFeatures = 136

func buildCanon() map[[4]int8][4]int8 {
	m := make(map[[4]int8][4]int8)
	var kmer [4]int8
	var rec func(i int)
	rec = func(i int) {
		if i == 4 {
			rev := [4]int8{kmer[3], kmer[2], kmer[1], kmer[0]}
			a, b := kmer, rev
			if less(b, a) {
				a, b = b, a
			}
			m[kmer] = a
			_ = b
			return
		}
		for v := int8(0); v < 4; v++ {
			kmer[i] = v
			rec(i + 1)
		}
	}
	rec(0)
	return m
}

func less(a, b [4]int8) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// canonKeys is the sorted list of distinct canonical 4-mers, fixing the
// column order of feature vectors produced by this package.
var canonKeys = func() [][4]int8 {
	seen := make(map[[4]int8]bool)
	for _, c := range canon {
		seen[c] = true
	}
	keys := make([][4]int8, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}()

var canonColumn = func() map[[4]int8]int {
	m := make(map[[4]int8]int, len(canonKeys))
	for i, k := range canonKeys {
		m[k] = i
	}
	return m
}()

func init() {
	if len(canonKeys) != NumFeatures {
		panic(fmt.Sprintf("tetra: canonical 4-mer table has %d entries, want %d", len(canonKeys), NumFeatures))
	}
}

// Count returns the raw canonical tetranucleotide counts for seq, with a
// +1 pseudocount already applied to every column so downstream log-ratio
// transforms never see a zero.
func Count(seq string) [NumFeatures]float64 {
	var counts [NumFeatures]float64
	for i := range counts {
		counts[i] = 1
	}
	up := strings.ToUpper(seq)
	n := len(up)
	if n < 4 {
		return counts
	}
	var window [4]int8
	valid := 0
	for i := 0; i < n; i++ {
		idx := baseIndex[up[i]]
		copy(window[:], window[1:])
		if idx < 0 {
			valid = 0
			continue
		}
		window[3] = idx
		if valid < 3 {
			valid++
			continue
		}
		col := canonColumn[canon[window]]
		counts[col]++
	}
	return counts
}

// Vector is a single subcontig's closed, standardized feature vector.
type Vector [NumFeatures]float64

// Featurize computes the closed, centered log-ratio transformed
// tetranucleotide features of every sequence in seqs, in the given order,
// without yet standardizing them. Use
// Standardize afterward once the whole population is assembled, since
// standardization needs the population's column statistics.
func Featurize(seqs []string) ([]Vector, error) {
	out := make([]Vector, len(seqs))
	for i, s := range seqs {
		raw := Count(s)
		closed, err := closure(raw, len(s))
		if err != nil {
			return nil, fmt.Errorf("tetra: subcontig %d: %w", i, err)
		}
		out[i] = closed
	}
	return out, nil
}

// closure applies, in order: proportion normalization (divide the
// pseudocounted row by its sum), length normalization (divide by the
// subcontig's sequence length), and a centered log-ratio transform. This
// mirrors the order of operations used by the upstream TNF pipeline this
// package is grounded on.
func closure(raw [NumFeatures]float64, length int) (Vector, error) {
	if length <= 0 {
		return Vector{}, fmt.Errorf("zero-length subcontig")
	}
	var v Vector
	sum := 0.0
	for _, c := range raw {
		sum += c
	}
	if sum == 0 {
		return Vector{}, fmt.Errorf("degenerate count row")
	}
	for i, c := range raw {
		prop := c / sum
		v[i] = prop / float64(length)
	}
	return clr(v), nil
}

// clr applies the centered log-ratio transform: log(x_i) minus the mean of
// log(x) across the row.
func clr(v Vector) Vector {
	logs := make([]float64, len(v))
	for i, x := range v {
		logs[i] = math.Log(x)
	}
	mean := floats.Sum(logs) / float64(len(logs))
	var out Vector
	for i, l := range logs {
		out[i] = l - mean
	}
	return out
}

// Standardize rescales each of the NumFeatures columns across the whole
// population to zero mean and unit variance, in place. A column with zero
// variance (e.g. a single-subcontig population) is left at zero rather than
// dividing by zero.
func Standardize(vecs []Vector) {
	if len(vecs) == 0 {
		return
	}
	col := make([]float64, len(vecs))
	for j := 0; j < NumFeatures; j++ {
		for i := range vecs {
			col[i] = vecs[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		for i := range vecs {
			if std == 0 || math.IsNaN(std) {
				vecs[i][j] = 0
				continue
			}
			vecs[i][j] = (col[i] - mean) / std
		}
	}
}

// Build is the end-to-end entry point: featurize every sequence and
// standardize the resulting population in place.
func Build(seqs []string) ([]Vector, error) {
	vecs, err := Featurize(seqs)
	if err != nil {
		return nil, err
	}
	Standardize(vecs)
	return vecs, nil
}
