// Package config loads probe settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/probe"
)

// #region types

// Config is the file and environment view of a probe deployment. Keys absent
// from the file keep their defaults.
type Config struct {
	DB        string `yaml:"db"`
	ModelAddr string `yaml:"model_addr"`

	MinEditDistance int           `yaml:"min_edit_distance"`
	MinLength       int           `yaml:"min_length"`
	MaxLength       int           `yaml:"max_length"`
	Epsilon         float64       `yaml:"epsilon"`
	Timeout         time.Duration `yaml:"timeout"`
	Seed            int64         `yaml:"seed"`

	CharDeletion      bool `yaml:"char_deletion"`
	OracleCacheSize   int  `yaml:"oracle_cache_size"`
	ProposalCacheSize int  `yaml:"proposal_cache_size"`

	RelaxStep      float64 `yaml:"relax_step"`
	MaxRelaxations int     `yaml:"max_relaxations"`
	RequireGoal    bool    `yaml:"require_goal"`

	Search    SearchConfig    `yaml:"search"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// SearchConfig mirrors the swarm settings.
type SearchConfig struct {
	PopSize        int `yaml:"pop_size"`
	MaxIters       int `yaml:"max_iters"`
	MaxTurnRetries int `yaml:"max_turn_retries"`
	Concurrency    int `yaml:"concurrency"`
}

// BootstrapConfig mirrors the paraphrase bootstrap settings.
type BootstrapConfig struct {
	NumReturnSequences  int     `yaml:"num_return_sequences"`
	Temperature         float64 `yaml:"temperature"`
	TopK                int     `yaml:"top_k"`
	TopP                float64 `yaml:"top_p"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ThresholdAttempts   int     `yaml:"threshold_attempts"`
}

// #endregion types

// #region defaults

// Default returns the settings used when no file is given.
func Default() Config {
	p := probe.DefaultConfig()
	return Config{
		DB:                "probe_runs.db",
		ModelAddr:         "localhost:50051",
		MinEditDistance:   p.MinEditDistance,
		MinLength:         p.MinLength,
		MaxLength:         p.MaxLength,
		Epsilon:           p.Epsilon,
		CharDeletion:      p.CharDeletion,
		OracleCacheSize:   p.OracleCacheSize,
		ProposalCacheSize: p.ProposalCacheSize,
		RelaxStep:         p.RelaxStep,
		MaxRelaxations:    p.MaxRelaxations,
		RequireGoal:       p.Eval.RequireGoal,
		Search: SearchConfig{
			PopSize:        p.Search.PopSize,
			MaxIters:       p.Search.MaxIters,
			MaxTurnRetries: p.Search.MaxTurnRetries,
			Concurrency:    p.Search.Concurrency,
		},
		Bootstrap: BootstrapConfig{
			NumReturnSequences:  p.Bootstrap.NumReturnSequences,
			Temperature:         p.Bootstrap.Temperature,
			TopK:                p.Bootstrap.TopK,
			TopP:                p.Bootstrap.TopP,
			SimilarityThreshold: p.Bootstrap.SimilarityThreshold,
			ThresholdAttempts:   p.Bootstrap.ThresholdAttempts,
		},
	}
}

// #endregion defaults

// #region load

// Load reads path over the defaults, then applies PROBE_DB, MODEL_ADDR and
// PROBE_SEED from the environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.DB = envOr("PROBE_DB", cfg.DB)
	cfg.ModelAddr = envOr("MODEL_ADDR", cfg.ModelAddr)
	if v := envOr("PROBE_SEED", ""); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PROBE_SEED: %w", err)
		}
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	var errs []error
	if c.MinLength > c.MaxLength {
		errs = append(errs, fmt.Errorf("min_length %d exceeds max_length %d", c.MinLength, c.MaxLength))
	}
	if c.Epsilon <= 0 || c.Epsilon >= 1 {
		errs = append(errs, fmt.Errorf("epsilon %g must be in (0, 1)", c.Epsilon))
	}
	if c.Search.PopSize < 1 || c.Search.MaxIters < 0 {
		errs = append(errs, fmt.Errorf("search needs pop_size >= 1 and max_iters >= 0"))
	}
	if c.Bootstrap.ThresholdAttempts < 0 {
		errs = append(errs, fmt.Errorf("threshold_attempts %d is negative", c.Bootstrap.ThresholdAttempts))
	}
	return errors.Join(errs...)
}

// #endregion load

// #region probe-config

// Probe converts the settings into a run configuration.
func (c Config) Probe() probe.Config {
	p := probe.DefaultConfig()
	p.MinEditDistance = c.MinEditDistance
	p.MinLength = c.MinLength
	p.MaxLength = c.MaxLength
	p.Epsilon = c.Epsilon
	p.Timeout = c.Timeout
	p.CharDeletion = c.CharDeletion
	p.OracleCacheSize = c.OracleCacheSize
	p.ProposalCacheSize = c.ProposalCacheSize
	p.RelaxStep = c.RelaxStep
	p.MaxRelaxations = c.MaxRelaxations
	p.Eval.RequireGoal = c.RequireGoal

	p.Search.PopSize = c.Search.PopSize
	p.Search.MaxIters = c.Search.MaxIters
	p.Search.MaxTurnRetries = c.Search.MaxTurnRetries
	p.Search.Concurrency = c.Search.Concurrency
	p.Search.Seed = c.Seed

	p.Bootstrap.NumReturnSequences = c.Bootstrap.NumReturnSequences
	p.Bootstrap.Temperature = c.Bootstrap.Temperature
	p.Bootstrap.TopK = c.Bootstrap.TopK
	p.Bootstrap.TopP = c.Bootstrap.TopP
	p.Bootstrap.SimilarityThreshold = c.Bootstrap.SimilarityThreshold
	p.Bootstrap.ThresholdAttempts = c.Bootstrap.ThresholdAttempts
	return p
}

// #endregion probe-config

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
