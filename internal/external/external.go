// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package external builds os/exec commands for optional external
// collaborator tools the core can delegate to in place of its own
// hand-rolled numeric stages — for example a native UMAP or HDBSCAN binary
// an operator has installed and wants to use for speed. Struct fields tagged
// buildarg describe the tool's command line the way blast.Nucleic once
// described BLAST's.
package external

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/biogo/external"
)

// Embedder describes an external embedding tool's command line:
//
//	Usage: <cmd> -input <file> -output <file> -dim <n> -metric <s> -seed <n>
type Embedder struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}umap-embed{{end}}"`

	Input  string `buildarg:"{{with .}}-input{{split}}{{.}}{{end}}"`
	Output string `buildarg:"{{with .}}-output{{split}}{{.}}{{end}}"`
	Dim    int    `buildarg:"{{if .}}-dim{{split}}{{.}}{{end}}"`
	Metric string `buildarg:"{{with .}}-metric{{split}}{{.}}{{end}}"`
	Seed   uint64 `buildarg:"{{if .}}-seed{{split}}{{.}}{{end}}"`

	// ExtraFlags is passed through to the external tool as flags.
	ExtraFlags string
}

// BuildCommand builds the *exec.Cmd for e, failing fast if the required
// input/output paths are missing.
func (e Embedder) BuildCommand() (*exec.Cmd, error) {
	if e.Input == "" {
		return nil, errors.New("external: embedder missing input path")
	}
	if e.Output == "" {
		return nil, errors.New("external: embedder missing output path")
	}
	cl := external.Must(external.Build(e))
	var extra []string
	if e.ExtraFlags != "" {
		extra = strings.Split(e.ExtraFlags, " ")
	}
	return exec.Command(cl[0], append(cl[1:], extra...)...), nil
}

// Clusterer describes an external density-based clustering tool's command
// line:
//
//	Usage: <cmd> -input <file> -output <file> -min-cluster-size <n> -min-samples <n>
type Clusterer struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}hdbscan-cluster{{end}}"`

	Input          string `buildarg:"{{with .}}-input{{split}}{{.}}{{end}}"`
	Output         string `buildarg:"{{with .}}-output{{split}}{{.}}{{end}}"`
	MinClusterSize int    `buildarg:"{{if .}}-min-cluster-size{{split}}{{.}}{{end}}"`
	MinSamples     int    `buildarg:"{{if .}}-min-samples{{split}}{{.}}{{end}}"`

	ExtraFlags string
}

// BuildCommand builds the *exec.Cmd for c.
func (c Clusterer) BuildCommand() (*exec.Cmd, error) {
	if c.Input == "" {
		return nil, errors.New("external: clusterer missing input path")
	}
	if c.Output == "" {
		return nil, errors.New("external: clusterer missing output path")
	}
	cl := external.Must(external.Build(c))
	var extra []string
	if c.ExtraFlags != "" {
		extra = strings.Split(c.ExtraFlags, " ")
	}
	return exec.Command(cl[0], append(cl[1:], extra...)...), nil
}
