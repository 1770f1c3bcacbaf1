// Package config loads and validates the operator config file: aggregation
// thresholds, the collector's pairs and per-source settings, and the
// ambient metrics/log surfaces.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/priceagg/engine/internal/aggregate"
	"github.com/priceagg/engine/internal/collector"
	"github.com/priceagg/engine/internal/obs"
)

// AggregationConfig is the aggregation: section of the config file.
type AggregationConfig struct {
	ZScoreThreshold float64            `yaml:"z_score_threshold"`
	IQRMultiplier   float64            `yaml:"iqr_multiplier"`
	MinDataPoints   int                `yaml:"min_data_points"`
	MaxAgeMs        int64              `yaml:"max_age_ms"`
	MinVolume       float64            `yaml:"min_volume"`
	MaxHistorySize  int                `yaml:"max_history_size"`
	SourceWeights   map[string]float64 `yaml:"source_weights"`
	ForceAlgorithm  string             `yaml:"force_algorithm"`
	// VWAPWindowMs and TWAPWindowMs are the default per-query look-back
	// windows the query facade applies when a caller doesn't specify one,
	// distinct from MaxAgeMs which bounds store retention.
	VWAPWindowMs int64 `yaml:"vwap_window_ms"`
	TWAPWindowMs int64 `yaml:"twap_window_ms"`
}

// SourceConfig is one entry of collector.sources in the config file.
type SourceConfig struct {
	Enabled     bool  `yaml:"enabled"`
	RPS         float64 `yaml:"rps"`
	Burst       int   `yaml:"burst"`
	DailyBudget int64 `yaml:"daily_budget"`
}

// TokenMapping maps a canonical pair to each venue's own symbol spelling.
type TokenMapping map[string]string

// CollectorConfig is the collector: section of the config file.
type CollectorConfig struct {
	CollectIntervalMs int64                   `yaml:"collect_interval_ms"`
	RequestTimeoutMs  int64                   `yaml:"request_timeout_ms"`
	RetryAttempts     int                     `yaml:"retry_attempts"`
	MaxInFlight       int                     `yaml:"max_in_flight"`
	Pairs             []string                `yaml:"pairs"`
	Sources           map[string]SourceConfig `yaml:"sources"`
	TokenMappings     map[string]TokenMapping `yaml:"token_mappings"`
}

// MetricsConfig is the metrics: section of the config file.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig is the log: section of the config file.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the root of the operator config file.
type Config struct {
	Aggregation AggregationConfig `yaml:"aggregation"`
	Collector   CollectorConfig   `yaml:"collector"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// Default returns a Config matching the defaults documented in the
// operator config surface, with a single synthetic source enabled so the
// binary runs out of the box before any venue credentials are configured.
func Default() Config {
	return Config{
		Aggregation: AggregationConfig{
			ZScoreThreshold: 2.5,
			IQRMultiplier:   1.5,
			MinDataPoints:   3,
			MaxAgeMs:        300000,
			MinVolume:       0.01,
			MaxHistorySize:  1000,
			SourceWeights:   obs.DefaultSourceWeights(),
			VWAPWindowMs:    3600000,
			TWAPWindowMs:    3600000,
		},
		Collector: CollectorConfig{
			CollectIntervalMs: 30000,
			RequestTimeoutMs:  10000,
			RetryAttempts:     3,
			MaxInFlight:       64,
			Pairs:             []string{"SOL/USDC"},
			Sources: map[string]SourceConfig{
				"mock": {Enabled: true, RPS: 1000, Burst: 100, DailyBudget: 0},
			},
		},
		Metrics: MetricsConfig{ListenAddr: ":9090"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads and parses a YAML config file, applies defaults for any
// unset-but-required numeric field, and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &aggregate.Error{Kind: aggregate.KindConfigError, Err: err}
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, &aggregate.Error{Kind: aggregate.KindConfigError, Err: fmt.Errorf("parsing %s: %w", path, err)}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for internally-inconsistent or out-of-range
// values that would otherwise surface as a confusing failure deep inside
// the engine or scheduler.
func (c Config) Validate() error {
	if c.Aggregation.ZScoreThreshold <= 0 {
		return configErr("aggregation.z_score_threshold must be positive")
	}
	if c.Aggregation.IQRMultiplier <= 0 {
		return configErr("aggregation.iqr_multiplier must be positive")
	}
	if c.Aggregation.MinDataPoints < 1 {
		return configErr("aggregation.min_data_points must be at least 1")
	}
	if c.Aggregation.ForceAlgorithm != "" {
		switch aggregate.Algorithm(c.Aggregation.ForceAlgorithm) {
		case aggregate.AlgoVWAP, aggregate.AlgoTWAP, aggregate.AlgoWeighted:
		default:
			return configErr(fmt.Sprintf("aggregation.force_algorithm %q is not a recognized algorithm", c.Aggregation.ForceAlgorithm))
		}
	}

	if c.Collector.CollectIntervalMs <= 0 {
		return configErr("collector.collect_interval_ms must be positive")
	}
	if c.Collector.RequestTimeoutMs <= 0 {
		return configErr("collector.request_timeout_ms must be positive")
	}
	if c.Collector.RetryAttempts < 1 {
		return configErr("collector.retry_attempts must be at least 1")
	}
	if c.Collector.MaxInFlight < 1 {
		return configErr("collector.max_in_flight must be at least 1")
	}
	if len(c.Collector.Pairs) == 0 {
		return configErr("collector.pairs must not be empty")
	}
	for name, sc := range c.Collector.Sources {
		if sc.Enabled && sc.RPS <= 0 {
			return configErr(fmt.Sprintf("collector.sources.%s.rps must be positive when enabled", name))
		}
	}

	return nil
}

func configErr(msg string) error {
	return &aggregate.Error{Kind: aggregate.KindConfigError, Err: fmt.Errorf("%s", msg)}
}

// AggregateConfig converts the config file's aggregation section into the
// engine's runtime Config.
func (c Config) AggregateConfig() aggregate.Config {
	return aggregate.Config{
		ZScoreThreshold: c.Aggregation.ZScoreThreshold,
		IQRMultiplier:   c.Aggregation.IQRMultiplier,
		MinDataPoints:   c.Aggregation.MinDataPoints,
		MaxAge:          time.Duration(c.Aggregation.MaxAgeMs) * time.Millisecond,
		MinVolume:       c.Aggregation.MinVolume,
		SourceWeights:   c.Aggregation.SourceWeights,
		VWAPWindow:      time.Duration(c.Aggregation.VWAPWindowMs) * time.Millisecond,
		TWAPWindow:      time.Duration(c.Aggregation.TWAPWindowMs) * time.Millisecond,
		ForceAlgorithm:  aggregate.Algorithm(c.Aggregation.ForceAlgorithm),
	}
}

// CollectorRuntimeConfig converts the config file's collector section into the
// scheduler's runtime Config.
func (c Config) CollectorRuntimeConfig() collector.Config {
	return collector.Config{
		CollectInterval: time.Duration(c.Collector.CollectIntervalMs) * time.Millisecond,
		RequestTimeout:  time.Duration(c.Collector.RequestTimeoutMs) * time.Millisecond,
		RetryAttempts:   c.Collector.RetryAttempts,
		MaxInFlight:     c.Collector.MaxInFlight,
		Pairs:           c.Collector.Pairs,
		Backoff:         collector.DefaultBackoff(),
	}
}

// EnabledSources returns the names of sources marked enabled in the config.
func (c Config) EnabledSources() []string {
	var names []string
	for name, sc := range c.Collector.Sources {
		if sc.Enabled {
			names = append(names, name)
		}
	}
	return names
}
