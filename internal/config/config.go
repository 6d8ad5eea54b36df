// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the pipeline's parameters: CLI/file defaults, the
// named presets of spec.md §6, and validation of parameter ranges.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of recognized pipeline parameters.
type Config struct {
	WindowSize int `yaml:"window_size"`
	Overlap    int `yaml:"overlap"`

	EmbeddingMetric string `yaml:"embedding_metric"`
	EmbeddingDim    int    `yaml:"embedding_dim"`
	RandomSeed      uint64 `yaml:"random_seed"`

	DenovoMinClusterSize int `yaml:"denovo_min_cluster_size"`
	DenovoMinSamples     int `yaml:"denovo_min_samples"`

	AnchorMinClusterSize int `yaml:"anchor_min_cluster_size"`
	AnchorMinSamples     int `yaml:"anchor_min_samples"`

	OCSVMNu    float64 `yaml:"ocsvm_nu"`
	OCSVMGamma float64 `yaml:"ocsvm_gamma"`

	// RecruiterThresholds is parsed and validated but not consulted: the
	// recruiters use the fixed thresholds in recruit.ThresholdWeight.
	RecruiterThresholds struct {
		GMM float64 `yaml:"gmm"`
		SVM float64 `yaml:"svm"`
		ISO float64 `yaml:"iso"`
	} `yaml:"recruiter_thresholds"`

	EnsembleAcceptThreshold float64 `yaml:"ensemble_accept_threshold"`

	DenoiseStrongProbability float64 `yaml:"denoise_strong_probability"`
	DenoiseStrongOutlier     float64 `yaml:"denoise_strong_outlier"`
	DenoiseNoiseRatio        float64 `yaml:"denoise_noise_ratio"`
	DenoiseLinkMinor         float64 `yaml:"denoise_link_minor"`

	// OCSVMThetaStrict is parsed but not consulted: every recruiter,
	// including the one-class SVM, accepts a contig only when p > theta,
	// strictly.
	OCSVMThetaStrict bool `yaml:"ocsvm_theta_strict"`

	// ExternalEmbedCmd and ExternalClusterCmd name an external collaborator
	// binary to delegate the 4.D embedding or 4.E/4.G clustering stage to,
	// in place of the built-in implementation. Empty keeps the built-in
	// implementation.
	ExternalEmbedCmd   string `yaml:"external_embed_cmd"`
	ExternalClusterCmd string `yaml:"external_cluster_cmd"`
}

// Default returns spec.md §6's default parameters.
func Default() Config {
	c := Config{
		WindowSize: 10000,
		Overlap:    2000,

		EmbeddingMetric: "manhattan",
		EmbeddingDim:    2,
		RandomSeed:      42,

		DenovoMinClusterSize: 75,
		DenovoMinSamples:     10,

		AnchorMinClusterSize: 125,
		AnchorMinSamples:     10,

		OCSVMNu:    0.9,
		OCSVMGamma: 1e-4,

		EnsembleAcceptThreshold: 0.10,

		DenoiseStrongProbability: 0.95,
		DenoiseStrongOutlier:     0.05,
		DenoiseNoiseRatio:        0.51,
		DenoiseLinkMinor:         0.49,

		OCSVMThetaStrict: true,
	}
	c.RecruiterThresholds.GMM = 0.50
	c.RecruiterThresholds.SVM = 0.00
	c.RecruiterThresholds.ISO = 0.74
	return c
}

// Preset names, matching the upstream collaborator's named parameter
// bundles (spec.md §6, §9 original_source supplement).
const (
	Default_    = "default"
	VeryRelaxed = "very_relaxed"
	Relaxed     = "relaxed"
	Strict      = "strict"
	VeryStrict  = "very_strict"
)

// clustParams is (min_cluster_size, min_samples, anchor_min_cluster_size,
// anchor_min_samples, ocsvm_nu, ocsvm_gamma) per preset, grounded on
// original_source/src/saber/utilities.py:set_clust_params.
var clustParams = map[string][6]float64{
	Default_:    {75.0, 10.0, 125.0, 10.0, 0.3, 0.1},
	Strict:      {75.0, 10.0, 125.0, 10.0, 0.3, 0.1},
	VeryRelaxed: {50.0, 5.0, 75.0, 10.0, 0.7, 10.0},
	Relaxed:     {50.0, 10.0, 75.0, 10.0, 0.7, 10.0},
	VeryStrict:  {75.0, 10.0, 125.0, 5.0, 0.3, 0.1},
}

// ApplyPreset overrides the clustering and recruiter parameters of c with
// the named preset's values, leaving every other field untouched.
func (c *Config) ApplyPreset(name string) error {
	p, ok := clustParams[name]
	if !ok {
		return fmt.Errorf("config: unknown preset %q", name)
	}
	c.DenovoMinClusterSize = int(p[0])
	c.DenovoMinSamples = int(p[1])
	c.AnchorMinClusterSize = int(p[2])
	c.AnchorMinSamples = int(p[3])
	c.OCSVMNu = p[4]
	c.OCSVMGamma = p[5]
	return nil
}

// Load reads a YAML configuration file and merges it over a Default
// configuration; fields absent from the file keep their default value.
func Load(path string) (Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return c, nil
}

// Validate reports whether c's parameters are within the ranges spec.md §7
// treats as a bad-parameter-range fatal error.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("config: window_size must be positive, got %d", c.WindowSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.WindowSize {
		return fmt.Errorf("config: overlap must be in [0, window_size), got %d", c.Overlap)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("config: embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.DenovoMinClusterSize <= 0 || c.DenovoMinSamples <= 0 {
		return fmt.Errorf("config: denovo cluster parameters must be positive")
	}
	if c.AnchorMinClusterSize <= 0 || c.AnchorMinSamples <= 0 {
		return fmt.Errorf("config: anchor cluster parameters must be positive")
	}
	if c.OCSVMNu <= 0 || c.OCSVMNu > 1 {
		return fmt.Errorf("config: ocsvm_nu must be in (0, 1], got %v", c.OCSVMNu)
	}
	if c.OCSVMGamma <= 0 {
		return fmt.Errorf("config: ocsvm_gamma must be positive, got %v", c.OCSVMGamma)
	}
	if c.EnsembleAcceptThreshold < 0 || c.EnsembleAcceptThreshold > 1 {
		return fmt.Errorf("config: ensemble_accept_threshold must be in [0,1], got %v", c.EnsembleAcceptThreshold)
	}
	return nil
}
