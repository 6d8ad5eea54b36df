// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// binner bins metagenomic contigs into putative genomes from their
// tetranucleotide frequency and coverage profiles, optionally anchored by a
// collaborator-supplied set of trusted (anchor, contig) pairs.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/kortschak/binner/internal/anchorclust"
	"github.com/kortschak/binner/internal/config"
	"github.com/kortschak/binner/internal/diagnostics"
	"github.com/kortschak/binner/internal/pipeline"
	"github.com/kortschak/binner/internal/seqio"
	"github.com/kortschak/binner/internal/store"
)

func main() {
	contigsPath := flag.String("contigs", "", "specify subcontig FASTA file (required)")
	coveragePath := flag.String("coverage", "", "specify coverage table file (required)")
	anchorsPath := flag.String("anchors", "", "specify anchor table file (optional: omitting it skips anchored recruitment)")
	out := flag.String("out", "", "specify output table prefix, e.g. out/mygenome (required)")
	configPath := flag.String("config", "", "specify YAML configuration file (optional, overrides defaults)")
	preset := flag.String("preset", "", "specify a named parameter preset (very_relaxed, relaxed, strict, very_strict)")
	windowSize := flag.Int("window-size", 0, "override window_size (0 keeps config/default)")
	overlap := flag.Int("overlap", -1, "override overlap (-1 keeps config/default)")
	seed := flag.Uint64("seed", 0, "override random_seed (0 keeps config/default)")
	checkpoint := flag.String("checkpoint", "", "specify a checkpoint database path to resume per-anchor recruitment across runs (optional)")
	verbose := flag.Bool("verbose", false, "specify verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:
  $ %[1]s -contigs <subcontigs.fa> -coverage <coverage.tsv> [-anchors <anchors.tsv>] -out <prefix> 2>out.log

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if *contigsPath == "" || *coveragePath == "" || *out == "" {
		flag.Usage()
		os.Exit(2)
	}

	var logger io.WriteCloser
	if *verbose {
		logger = logCapture()
		defer logger.Close()
		log.SetOutput(logger)
	}

	log.Println(os.Args)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if *preset != "" {
		if err := cfg.ApplyPreset(*preset); err != nil {
			log.Fatal(err)
		}
	}
	if *windowSize > 0 {
		cfg.WindowSize = *windowSize
	}
	if *overlap >= 0 {
		cfg.Overlap = *overlap
	}
	if *seed > 0 {
		cfg.RandomSeed = *seed
	}
	if err := cfg.Validate(); err != nil {
		log.Print(err)
		os.Exit(2)
	}

	contigsFile, err := os.Open(*contigsPath)
	if err != nil {
		log.Fatal(err)
	}
	defer contigsFile.Close()
	contigs, err := seqio.ReadContigs(contigsFile)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}

	coverageFile, err := os.Open(*coveragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer coverageFile.Close()
	covTable, err := seqio.ReadCoverage(coverageFile)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}

	var anchors []anchorclust.Anchor
	if *anchorsPath != "" {
		anchorsFile, err := os.Open(*anchorsPath)
		if err != nil {
			log.Fatal(err)
		}
		rows, err := seqio.ReadAnchors(anchorsFile)
		anchorsFile.Close()
		if err != nil {
			log.Print(err)
			os.Exit(1)
		}
		anchors = make([]anchorclust.Anchor, len(rows))
		for i, r := range rows {
			anchors[i] = anchorclust.Anchor{AnchorID: r.AnchorID, ContigID: r.ContigID}
		}
	}

	log.Printf("tiling %d contigs", len(contigs))
	coord := pipeline.NewCoordinator()
	if *checkpoint != "" {
		cache, err := openCache(*checkpoint)
		if err != nil {
			log.Fatal(err)
		}
		defer cache.Close()
		coord.Cache = cache
	}
	result, err := coord.Run(pipeline.Input{
		Contigs:  contigs,
		Coverage: covTable,
		Anchors:  anchors,
		Config:   cfg,
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := writeOutputs(*out, result, &coord.Ledger); err != nil {
		log.Fatal(err)
	}
}

// openCache opens an existing checkpoint database at path, creating one if
// none exists yet.
func openCache(path string) (*store.Cache, error) {
	if _, err := os.Stat(path); err == nil {
		return store.Open(path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return store.Create(path)
}

// logCapture returns an io.WriteCloser that pipes writes to the default log
// logger, mirroring the teacher's cmd/ins verbose-logging helper.
func logCapture() io.WriteCloser {
	r, w := io.Pipe()
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if len(bytes.TrimSpace(sc.Bytes())) == 0 {
				continue
			}
			log.Printf("\t%s", sc.Bytes())
		}
		err := sc.Err()
		if err != nil && err != io.EOF {
			_ = w.CloseWithError(err)
		}
	}()
	return w
}

// writeOutputs writes the five §6 output tables and the diagnostics table
// under the prefix path.
func writeOutputs(prefix string, out *pipeline.Output, ledger *diagnostics.Ledger) error {
	if err := writeDenovoTable(prefix+".denovo_clusters.tsv", out.DenovoClusters); err != nil {
		return err
	}
	if err := writeDenovoTable(prefix+".denovo_noise.tsv", out.DenovoNoise); err != nil {
		return err
	}
	if err := writeLabelTable(prefix+".hdbscan_clusters.tsv", out.HDBSCANClusters); err != nil {
		return err
	}
	if err := writeLabelTable(prefix+".ocsvm_clusters.tsv", out.OCSVMClusters); err != nil {
		return err
	}
	if err := writeLabelTable(prefix+".inter_clusters.tsv", out.InterClusters); err != nil {
		return err
	}
	f, err := os.Create(prefix + ".diagnostics.tsv")
	if err != nil {
		return err
	}
	defer f.Close()
	return ledger.WriteTSV(f)
}

func writeDenovoTable(path string, rows []pipeline.DenovoRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "subcontig_id\tlabel\tprobability\toutlier_score\tcontig_id\tbest_label")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\n",
			r.SubcontigID, r.Label, formatFloat(r.Probability), formatFloat(r.OutlierScore), r.ContigID, r.BestLabel)
	}
	return w.Flush()
}

func writeLabelTable(path string, rows []pipeline.LabelRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "best_label\tcontig_id")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r.BestLabel, r.ContigID)
	}
	return w.Flush()
}

func formatFloat(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
