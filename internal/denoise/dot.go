// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denoise

import (
	"fmt"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// labelNode is a graph.Node wrapping a cluster label, in the style of
// cmd/cmpint's node/nameGraph types.
type labelNode struct {
	id    int64
	label int
}

func (n labelNode) ID() int64 { return n.id }

func (n labelNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: fmt.Sprintf("%d", n.label)}}
}

// LinkageGraph renders the label-linkage graph implied by a batch of
// per-contig denoiser results as a DOT document, for operators inspecting
// why labels were unified.
func LinkageGraph(results []ContigResult) ([]byte, error) {
	g := simple.NewUndirectedGraph()
	nodes := make(map[int]labelNode)

	nodeFor := func(label int) labelNode {
		if n, ok := nodes[label]; ok {
			return n
		}
		n := labelNode{id: int64(len(nodes)), label: label}
		nodes[label] = n
		g.AddNode(n)
		return n
	}

	for _, r := range results {
		if r.BestLabel == -1 {
			continue
		}
		a := nodeFor(r.BestLabel)
		if r.LinkLabel == NoLink {
			continue
		}
		b := nodeFor(r.LinkLabel)
		if !g.HasEdgeBetween(a.ID(), b.ID()) {
			g.SetEdge(g.NewEdge(a, b))
		}
	}

	return dot.Marshal(g, "labels", "", "  ")
}
