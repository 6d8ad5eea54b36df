// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/kortschak/binner/internal/anchorclust"
	"github.com/kortschak/binner/internal/cluster"
	"github.com/kortschak/binner/internal/config"
	"github.com/kortschak/binner/internal/coverage"
	"github.com/kortschak/binner/internal/denoise"
	"github.com/kortschak/binner/internal/diagnostics"
	"github.com/kortschak/binner/internal/embed"
	"github.com/kortschak/binner/internal/ensemble"
	"github.com/kortschak/binner/internal/reconcile"
	"github.com/kortschak/binner/internal/recruit"
	"github.com/kortschak/binner/internal/registry"
	"github.com/kortschak/binner/internal/store"
	"github.com/kortschak/binner/internal/subcontig"
	"github.com/kortschak/binner/internal/tetra"
)

// Input is everything the coordinator needs from the §6 external
// collaborators, already parsed by internal/seqio.
type Input struct {
	Contigs  []subcontig.Contig
	Coverage *coverage.Table
	Anchors  []anchorclust.Anchor // may be empty: 4.G-4.J are then skipped
	Config   config.Config
}

// DenovoRow is one row of the denovo_clusters/denovo_noise tables.
type DenovoRow struct {
	SubcontigID  string
	Label        int
	Probability  float64
	OutlierScore float64
	ContigID     string
	BestLabel    int
}

// LabelRow is one row of the hdbscan_clusters/ocsvm_clusters/inter_clusters
// tables: a best_label paired with a contig id. In every table best_label is
// the owning anchor id; integer cluster labels are not written.
type LabelRow struct {
	BestLabel string
	ContigID  string
}

// Output holds the five §6 output tables.
type Output struct {
	DenovoClusters  []DenovoRow
	DenovoNoise     []DenovoRow
	HDBSCANClusters []LabelRow
	OCSVMClusters   []LabelRow
	InterClusters   []LabelRow
}

// Coordinator runs the end-to-end pipeline and accumulates per-anchor
// diagnostics (spec.md §7).
type Coordinator struct {
	Pool   *Pool
	Ledger diagnostics.Ledger

	// Cache, if non-nil, checkpoints each anchor's 4.I ensemble result so a
	// rerun over the same anchor set can skip recruitment entirely for
	// anchors already committed.
	Cache *store.Cache
}

// NewCoordinator returns a Coordinator whose worker pool is sized to the
// host's available parallelism, matching the teacher's preference for
// runtime.GOMAXPROCS-scaled concurrency over a hardcoded constant.
func NewCoordinator() *Coordinator {
	return &Coordinator{Pool: NewPool(runtime.GOMAXPROCS(0))}
}

// Run executes every stage of spec.md §4 in dependency order, joining at
// each stage boundary (§5), and returns the five output tables.
func (c *Coordinator) Run(in Input) (*Output, error) {
	cfg := in.Config
	if err := cfg.Validate(); err != nil {
		return nil, &StageError{Stage: "config", Cause: err}
	}

	windows, err := c.buildSubcontigs(in.Contigs, subcontig.Params{WindowSize: cfg.WindowSize, Overlap: cfg.Overlap})
	if err != nil {
		return nil, &StageError{Stage: "subcontig", Cause: err}
	}

	subs := make([]registry.Subcontig, len(windows))
	seqByID := make(map[string]string, len(windows))
	for i, w := range windows {
		subs[i] = registry.Subcontig{ID: w.ID, ContigID: w.ContigID, Ordinal: w.Ordinal, Start: w.Start, End: w.End, Length: w.End - w.Start}
		seqByID[w.ID] = w.Sequence
	}
	universe := registry.NewUniverse(subs)
	ids := universe.IDs()

	seqs := make([]string, len(ids))
	for i, id := range ids {
		seqs[i] = seqByID[id]
	}
	tnf, err := tetra.Build(seqs)
	if err != nil {
		return nil, &StageError{Stage: "tetra", Cause: err}
	}

	covRows, _, err := coverage.Join(ids, in.Coverage)
	if err != nil {
		return nil, &StageError{Stage: "coverage", Cause: err}
	}

	features := make([][]float64, len(ids))
	for i := range ids {
		row := make([]float64, 0, tetra.NumFeatures+len(covRows[i]))
		row = append(row, tnf[i][:]...)
		row = append(row, covRows[i]...)
		features[i] = row
	}

	embParams := embed.DefaultParams()
	embParams.Components = cfg.EmbeddingDim
	embParams.Seed = cfg.RandomSeed
	var embedding [][]float64
	if cfg.ExternalEmbedCmd != "" {
		embedding, err = runExternalEmbed(cfg.ExternalEmbedCmd, ids, features, embParams)
	} else {
		embedding, err = embed.Embed(features, embParams)
	}
	if err != nil {
		return nil, &StageError{Stage: "embed", Cause: err}
	}

	contigIDOf := func(id string) string {
		s, _ := universe.Lookup(id)
		return s.ContigID
	}

	denovoParams := cluster.Params{MinClusterSize: cfg.DenovoMinClusterSize, MinSamples: cfg.DenovoMinSamples}
	var denovo *cluster.Result
	if cfg.ExternalClusterCmd != "" {
		denovo, err = runExternalCluster(cfg.ExternalClusterCmd, ids, embedding, denovoParams)
	} else {
		denovo, err = cluster.Run(embedding, denovoParams)
	}
	if err != nil {
		return nil, &StageError{Stage: "cluster:denovo", Cause: err}
	}
	denovoByContig := groupByContig(ids, contigIDOf, denovo)
	denovoContigs := denoise.Run(denovoByContig, denoise.Params{
		StrongProbability: cfg.DenoiseStrongProbability,
		StrongOutlier:     cfg.DenoiseStrongOutlier,
		NoiseRatio:        cfg.DenoiseNoiseRatio,
		LinkMinor:         cfg.DenoiseLinkMinor,
	})
	bestLabelOf := make(map[string]int, len(denovoContigs))
	for _, r := range denovoContigs {
		bestLabelOf[r.ContigID] = r.BestLabel
	}

	out := &Output{}
	for i, id := range ids {
		row := DenovoRow{
			SubcontigID:  id,
			Label:        denovo.Label[i],
			Probability:  denovo.Probability[i],
			OutlierScore: denovo.OutlierScore[i],
			ContigID:     contigIDOf(id),
			BestLabel:    bestLabelOf[contigIDOf(id)],
		}
		if row.BestLabel == -1 {
			out.DenovoNoise = append(out.DenovoNoise, row)
		} else {
			out.DenovoClusters = append(out.DenovoClusters, row)
		}
	}

	if len(in.Anchors) == 0 {
		// spec.md §4.J failure semantics: no anchors means 4.G-4.J are
		// skipped entirely.
		return out, nil
	}

	anchorParams := cluster.Params{MinClusterSize: cfg.AnchorMinClusterSize, MinSamples: cfg.AnchorMinSamples}
	var anchored *cluster.Result
	if cfg.ExternalClusterCmd != "" {
		anchored, err = runExternalCluster(cfg.ExternalClusterCmd, ids, embedding, anchorParams)
	} else {
		anchored, err = cluster.Run(embedding, anchorParams)
	}
	if err != nil {
		return nil, &StageError{Stage: "cluster:anchored", Cause: err}
	}
	anchoredByContig := groupByContig(ids, contigIDOf, anchored)
	anchoredContigs := denoise.Run(anchoredByContig, denoise.Params{
		StrongProbability: cfg.DenoiseStrongProbability,
		StrongOutlier:     cfg.DenoiseStrongOutlier,
		NoiseRatio:        cfg.DenoiseNoiseRatio,
		LinkMinor:         cfg.DenoiseLinkMinor,
	})

	contigLabels := make([]anchorclust.ContigLabel, len(anchoredContigs))
	for i, r := range anchoredContigs {
		contigLabels[i] = anchorclust.ContigLabel{ContigID: r.ContigID, BestLabel: r.BestLabel}
	}
	memberships := anchorclust.Assign(in.Anchors, contigLabels)
	for _, m := range memberships {
		out.HDBSCANClusters = append(out.HDBSCANClusters, LabelRow{BestLabel: m.AnchorID, ContigID: m.ContigID})
	}

	anchorContigs := make(map[string][]string)
	anchorContigSet := make(map[string]map[string]bool)
	for _, a := range in.Anchors {
		anchorContigs[a.AnchorID] = append(anchorContigs[a.AnchorID], a.ContigID)
		if anchorContigSet[a.AnchorID] == nil {
			anchorContigSet[a.AnchorID] = make(map[string]bool)
		}
		anchorContigSet[a.AnchorID][a.ContigID] = true
	}
	anchoredClusterContigs := make(map[string][]string)
	for _, m := range memberships {
		anchoredClusterContigs[m.AnchorID] = append(anchoredClusterContigs[m.AnchorID], m.ContigID)
	}

	subcontigRow := make(map[string][]float64, len(ids))
	subcontigContig := make(map[string]string, len(ids))
	for i, id := range ids {
		subcontigRow[id] = features[i]
		subcontigContig[id] = contigIDOf(id)
	}

	anchorIDs := make([]string, 0, len(anchorContigs))
	for a := range anchorContigs {
		anchorIDs = append(anchorIDs, a)
	}
	sort.Strings(anchorIDs)

	ensembleContigs := make(map[string][]string, len(anchorIDs))
	tasks := make([]Task, len(anchorIDs))
	results := make([][]ensemble.Row, len(anchorIDs))
	for i, anchorID := range anchorIDs {
		i, anchorID := i, anchorID
		tasks[i] = func() error {
			rows, err := c.recruitAnchor(anchorID, anchorContigSet[anchorID], ids, subcontigRow, subcontigContig, cfg)
			if err != nil {
				c.Ledger.AnchorFailed(anchorID, "recruit", err)
				return nil
			}
			results[i] = rows
			return nil
		}
	}
	c.Pool.RunAll(tasks)
	for i, anchorID := range anchorIDs {
		for _, r := range results[i] {
			out.OCSVMClusters = append(out.OCSVMClusters, LabelRow{BestLabel: r.AnchorID, ContigID: r.ContigID})
			ensembleContigs[anchorID] = append(ensembleContigs[anchorID], r.ContigID)
		}
	}

	for _, anchorID := range anchorIDs {
		rows := reconcile.Reconcile(anchorID, anchorContigs[anchorID], anchoredClusterContigs[anchorID], ensembleContigs[anchorID])
		for _, r := range rows {
			out.InterClusters = append(out.InterClusters, LabelRow{BestLabel: r.BestLabel, ContigID: r.ContigID})
		}
		c.Ledger.Passed(anchorID, "reconcile")
	}

	return out, nil
}

// buildSubcontigs tiles every contig, one task per contig (spec.md §5: "4.A
// per contig" is a candidate parallel stage), joining before returning.
func (c *Coordinator) buildSubcontigs(contigs []subcontig.Contig, p subcontig.Params) ([]subcontig.Window, error) {
	results := make([][]subcontig.Window, len(contigs))
	tasks := make([]Task, len(contigs))
	for i, contig := range contigs {
		i, contig := i, contig
		tasks[i] = func() error {
			ws, err := subcontig.Build(contig.ID, contig.Sequence, p)
			if err != nil {
				return fmt.Errorf("contig %q: %w", contig.ID, err)
			}
			results[i] = ws
			return nil
		}
	}
	for _, err := range c.Pool.RunAll(tasks) {
		if err != nil {
			return nil, err
		}
	}
	var all []subcontig.Window
	for _, ws := range results {
		all = append(all, ws...)
	}
	return all, nil
}

// groupByContig reshapes a flat cluster.Result, aligned to ids, into the
// per-contig rows denoise.Run expects.
func groupByContig(ids []string, contigIDOf func(string) string, res *cluster.Result) map[string][]denoise.SubcontigLabel {
	out := make(map[string][]denoise.SubcontigLabel)
	for i, id := range ids {
		c := contigIDOf(id)
		out[c] = append(out[c], denoise.SubcontigLabel{
			ContigID:     c,
			Label:        res.Label[i],
			Probability:  res.Probability[i],
			OutlierScore: res.OutlierScore[i],
		})
	}
	return out
}

// recruitAnchor runs the three 4.H recruiters and the 4.I ensemble combiner
// for a single anchor. A recruiter that fails to fit is recorded in the
// ledger and excluded from the ensemble; the remaining recruiters still
// run, per spec.md §4.H/§7's per-anchor-per-recruiter isolation.
func (c *Coordinator) recruitAnchor(anchorID string, trustedContigs map[string]bool, ids []string, rowOf map[string][]float64, contigOf map[string]string, cfg config.Config) ([]ensemble.Row, error) {
	if c.Cache != nil {
		var cached []ensemble.Row
		ok, err := c.Cache.Get("ensemble", anchorID, &cached)
		if err != nil {
			return nil, fmt.Errorf("recruit: reading checkpoint for anchor %s: %w", anchorID, err)
		}
		if ok {
			c.Ledger.Passed(anchorID, "ensemble")
			return cached, nil
		}
	}

	var anchorRows [][]float64
	var candidates []recruit.Candidate
	for _, id := range ids {
		contigID := contigOf[id]
		if trustedContigs[contigID] {
			anchorRows = append(anchorRows, rowOf[id])
		} else {
			candidates = append(candidates, recruit.Candidate{SubcontigID: id, ContigID: contigID, Features: rowOf[id]})
		}
	}
	if len(anchorRows) < 2 {
		return nil, fmt.Errorf("recruit: anchor %s has fewer than 2 trusted subcontigs", anchorID)
	}

	candidates = c.kmeansPrefilter(anchorRows, candidates)

	var recruiterRows []ensemble.RecruiterRows
	for _, kind := range []recruit.Kind{recruit.GMM, recruit.SVM, recruit.ISO} {
		rows, err := runRecruiter(kind, anchorRows, candidates, cfg)
		if err != nil {
			c.Ledger.RecruiterFailed(anchorID, string(kind), err)
			continue
		}
		recruiterRows = append(recruiterRows, ensemble.RecruiterRows{Kind: kind, Rows: rows})
	}
	if len(recruiterRows) == 0 {
		return nil, nil
	}
	c.Ledger.Passed(anchorID, "ensemble")
	rows := ensemble.Combine(anchorID, recruiterRows, cfg.EnsembleAcceptThreshold)
	if c.Cache != nil {
		if err := c.Cache.Put("ensemble", anchorID, rows); err != nil {
			return nil, fmt.Errorf("recruit: writing checkpoint for anchor %s: %w", anchorID, err)
		}
	}
	return rows, nil
}

// kmeansPrefilter discards candidates whose contig fails the k-means
// anchor-containing-cluster test (spec.md §4.H preprocessing). It is a
// best-effort narrowing: a fit failure leaves candidates untouched rather
// than aborting the anchor.
func (c *Coordinator) kmeansPrefilter(anchorRows [][]float64, candidates []recruit.Candidate) []recruit.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	all := make([][]float64, 0, len(anchorRows)+len(candidates))
	all = append(all, anchorRows...)
	anchorIdx := make([]int, len(anchorRows))
	for i := range anchorRows {
		anchorIdx[i] = i
	}
	for _, cand := range candidates {
		all = append(all, cand.Features)
	}
	res := recruit.FitKMeans(all, recruit.DefaultKMeansParams())
	anchorClusters := recruit.AnchorContainingClusters(res.Labels, anchorIdx)
	candidateLabels := res.Labels[len(anchorRows):]
	keep := recruit.FilterContigs(candidates, candidateLabels, anchorClusters, 0.95)
	var out []recruit.Candidate
	for _, cand := range candidates {
		if keep[cand.ContigID] {
			out = append(out, cand)
		}
	}
	return out
}

func runRecruiter(kind recruit.Kind, anchorRows [][]float64, candidates []recruit.Candidate, cfg config.Config) ([]recruit.ScaledRow, error) {
	var recruited map[string]bool
	var err error
	switch kind {
	case recruit.GMM:
		recruited, err = recruit.RecruitGMM(anchorRows, candidates, recruit.DefaultGMMParams())
	case recruit.SVM:
		p := recruit.DefaultOCSVMParams()
		p.Nu = cfg.OCSVMNu
		p.Gamma = cfg.OCSVMGamma
		recruited, err = recruit.RecruitOCSVM(anchorRows, candidates, p)
	case recruit.ISO:
		recruited, err = recruit.RecruitIsolationForest(anchorRows, candidates, recruit.DefaultIsoForestParams())
	default:
		return nil, fmt.Errorf("recruit: unknown recruiter kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	contigPs := recruit.AggregateContigs(candidates, recruited)
	return recruit.Scale(contigPs, kind), nil
}
