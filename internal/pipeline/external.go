// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kortschak/binner/internal/cluster"
	"github.com/kortschak/binner/internal/embed"
	"github.com/kortschak/binner/internal/external"
)

// runExternalEmbed delegates the 4.D embedding stage to an external
// collaborator tool named by cmd, feeding it the subcontig feature matrix
// over a tab-separated file and reading back one embedding row per id in
// the same order.
func runExternalEmbed(cmdName string, ids []string, features [][]float64, p embed.Params) ([][]float64, error) {
	in, err := os.CreateTemp("", "binner-embed-in-*.tsv")
	if err != nil {
		return nil, fmt.Errorf("external embed: %w", err)
	}
	defer os.Remove(in.Name())
	if err := writeFeatureTSV(in, ids, features); err != nil {
		in.Close()
		return nil, fmt.Errorf("external embed: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("external embed: %w", err)
	}

	out, err := os.CreateTemp("", "binner-embed-out-*.tsv")
	if err != nil {
		return nil, fmt.Errorf("external embed: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	e := external.Embedder{
		Cmd:    cmdName,
		Input:  in.Name(),
		Output: outPath,
		Dim:    p.Components,
		Metric: "manhattan",
		Seed:   p.Seed,
	}
	cmd, err := e.BuildCommand()
	if err != nil {
		return nil, fmt.Errorf("external embed: %w", err)
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("external embed: running %s: %w", cmdName, err)
	}

	rows, err := readFloatTSV(outPath, ids, p.Components)
	if err != nil {
		return nil, fmt.Errorf("external embed: %w", err)
	}
	return rows, nil
}

// runExternalCluster delegates the 4.E/4.G clustering stage to an external
// collaborator tool named by cmd, writing the embedding over a
// tab-separated file and reading back (label, probability, outlier_score)
// triples in the same id order.
func runExternalCluster(cmdName string, ids []string, rows [][]float64, p cluster.Params) (*cluster.Result, error) {
	in, err := os.CreateTemp("", "binner-cluster-in-*.tsv")
	if err != nil {
		return nil, fmt.Errorf("external cluster: %w", err)
	}
	defer os.Remove(in.Name())
	if err := writeFeatureTSV(in, ids, rows); err != nil {
		in.Close()
		return nil, fmt.Errorf("external cluster: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("external cluster: %w", err)
	}

	out, err := os.CreateTemp("", "binner-cluster-out-*.tsv")
	if err != nil {
		return nil, fmt.Errorf("external cluster: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	c := external.Clusterer{
		Cmd:            cmdName,
		Input:          in.Name(),
		Output:         outPath,
		MinClusterSize: p.MinClusterSize,
		MinSamples:     p.MinSamples,
	}
	cmd, err := c.BuildCommand()
	if err != nil {
		return nil, fmt.Errorf("external cluster: %w", err)
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("external cluster: running %s: %w", cmdName, err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("external cluster: %w", err)
	}
	defer f.Close()

	byID := make(map[string][3]float64, len(ids))
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != 4 {
			return nil, fmt.Errorf("external cluster: malformed output row %q", sc.Text())
		}
		label, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("external cluster: %w", err)
		}
		prob, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("external cluster: %w", err)
		}
		outlier, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("external cluster: %w", err)
		}
		byID[fields[0]] = [3]float64{label, prob, outlier}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("external cluster: %w", err)
	}

	res := &cluster.Result{
		Label:        make([]int, len(ids)),
		Probability:  make([]float64, len(ids)),
		OutlierScore: make([]float64, len(ids)),
	}
	for i, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("external cluster: output missing id %q", id)
		}
		res.Label[i] = int(v[0])
		res.Probability[i] = v[1]
		res.OutlierScore[i] = v[2]
	}
	return res, nil
}

func writeFeatureTSV(f *os.File, ids []string, rows [][]float64) error {
	w := bufio.NewWriter(f)
	for i, id := range ids {
		if _, err := w.WriteString(id); err != nil {
			return err
		}
		for _, v := range rows[i] {
			if _, err := fmt.Fprintf(w, "\t%v", v); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readFloatTSV(path string, ids []string, width int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	byID := make(map[string][]float64, len(ids))
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != width+1 {
			return nil, fmt.Errorf("malformed row %q: want %d columns", sc.Text(), width+1)
		}
		row := make([]float64, width)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		byID[fields[0]] = row
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	out := make([][]float64, len(ids))
	for i, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("output missing id %q", id)
		}
		out[i] = row
	}
	return out, nil
}
