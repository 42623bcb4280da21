// Package config provides unified configuration loading for driftline.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config contains all driftline settings.
type Config struct {
	// Corpus selects where the entity snapshots live.
	Corpus CorpusConfig `json:"corpus" yaml:"corpus"`

	// Detection overrides the tension-scanner thresholds.
	Detection DetectionConfig `json:"detection" yaml:"detection"`

	// Propagation bounds the score-adjustment engine.
	Propagation PropagationConfig `json:"propagation" yaml:"propagation"`

	// Backup configures archive retention.
	Backup BackupConfig `json:"backup" yaml:"backup"`

	// Logging configures operational and run-trace output.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// CorpusConfig selects the snapshot backend.
type CorpusConfig struct {
	// Store is "file" (JSON documents in a directory) or "sqlite".
	Store string `json:"store" yaml:"store"`

	// Path is the corpus directory for the file store, or the database
	// file for sqlite.
	Path string `json:"path" yaml:"path"`
}

// DetectionConfig overrides the scanner thresholds. Zero values fall
// back to the detector defaults; the field names mirror the detector's
// own config.
type DetectionConfig struct {
	TopNarrativeMinAvgOpportunity  float64 `json:"top_narrative_min_avg_opportunity" yaml:"top_narrative_min_avg_opportunity"`
	TopNarrativeMaxClosedFraction  float64 `json:"top_narrative_max_closed_fraction" yaml:"top_narrative_max_closed_fraction"`
	WeakNarrativeMaxAvgOpportunity float64 `json:"weak_narrative_max_avg_opportunity" yaml:"weak_narrative_max_avg_opportunity"`
	NarrativeMinModels             int     `json:"narrative_min_models" yaml:"narrative_min_models"`
	ArchitectureGapSpread          float64 `json:"architecture_gap_spread" yaml:"architecture_gap_spread"`
	TransformationOpportunityGap   float64 `json:"transformation_opportunity_gap" yaml:"transformation_opportunity_gap"`
	ForceMinModels                 int     `json:"force_min_models" yaml:"force_min_models"`
	ForceLargeSample               int     `json:"force_large_sample" yaml:"force_large_sample"`
	ForceDeviationSmall            float64 `json:"force_deviation_small" yaml:"force_deviation_small"`
	ForceDeviationLarge            float64 `json:"force_deviation_large" yaml:"force_deviation_large"`
	RoleParadoxGap                 float64 `json:"role_paradox_gap" yaml:"role_paradox_gap"`
	RoleNeededMin                  int     `json:"role_needed_min" yaml:"role_needed_min"`
	RoleWorksMin                   int     `json:"role_works_min" yaml:"role_works_min"`
	CollisionMaxStdDev             float64 `json:"collision_max_stddev" yaml:"collision_max_stddev"`
	CollisionMinModels             int     `json:"collision_min_models" yaml:"collision_min_models"`
	AuditMinNarratives             int     `json:"audit_min_narratives" yaml:"audit_min_narratives"`
}

// DampingConfig overrides the per-rule damping factors. Zero values
// fall back to the rule defaults; set values must sit in (0, 1).
type DampingConfig struct {
	PhaseTiming        float64 `json:"phase_timing" yaml:"phase_timing"`
	EvidenceStrength   float64 `json:"evidence_strength" yaml:"evidence_strength"`
	MoatChallenge      float64 `json:"moat_challenge" yaml:"moat_challenge"`
	ArchitectureSpread float64 `json:"architecture_spread" yaml:"architecture_spread"`
}

// BackupConfig configures archive retention under <corpus>/backups/.
type BackupConfig struct {
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig selects which archives survive pruning. Set policies
// combine as a union: an archive any policy wants is kept.
type RetentionConfig struct {
	// MaxCount keeps the N most recent archives.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps archives newer than this ("720h", "30d", "2w").
	MaxAge string `json:"max_age" yaml:"max_age"`

	// MaxTotalSize keeps archives until the total exceeds this
	// ("500MB", "1GB").
	MaxTotalSize string `json:"max_total_size" yaml:"max_total_size"`
}

// PropagationConfig bounds the propagation engine. Zero values fall
// back to the engine defaults.
type PropagationConfig struct {
	// MaxIterations is the iteration budget per run.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// ConvergenceThreshold stops iteration once the largest single
	// adjustment falls below it.
	ConvergenceThreshold float64 `json:"convergence_threshold" yaml:"convergence_threshold"`

	// AxisCap bounds the total absolute adjustment per entity axis per run.
	AxisCap float64 `json:"axis_cap" yaml:"axis_cap"`

	// CompositeIterationCap bounds how far a composite may move in one
	// iteration before the capping pass corrects it.
	CompositeIterationCap float64 `json:"composite_iteration_cap" yaml:"composite_iteration_cap"`

	// Damping overrides the per-rule damping factors.
	Damping DampingConfig `json:"damping" yaml:"damping"`
}

// LoggingConfig configures driftline's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables run tracing to <corpus>/trace.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Store: "file",
			// Path is resolved against the corpus directory by Load.
		},
		Propagation: PropagationConfig{
			MaxIterations:         3,
			ConvergenceThreshold:  0.5,
			AxisCap:               3.0,
			CompositeIterationCap: 6.0,
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{
				MaxCount: 10,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration for the given corpus directory.
// Order: defaults -> <dir>/driftline.yaml -> environment variables.
func Load(dir string) (*Config, error) {
	config := Default()

	path := filepath.Join(dir, "driftline.yaml")
	if _, err := os.Stat(path); err == nil {
		fileConfig, loadErr := LoadFromFile(path)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	if config.Corpus.Path == "" {
		config.Corpus.Path = dir
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validStores := map[string]bool{"file": true, "sqlite": true}
	if !validStores[c.Corpus.Store] {
		return fmt.Errorf("invalid store: %s (valid: file, sqlite)", c.Corpus.Store)
	}

	if c.Propagation.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative, got %d", c.Propagation.MaxIterations)
	}
	if c.Propagation.ConvergenceThreshold < 0 {
		return fmt.Errorf("convergence_threshold must be non-negative, got %f", c.Propagation.ConvergenceThreshold)
	}
	if c.Propagation.AxisCap < 0 {
		return fmt.Errorf("axis_cap must be non-negative, got %f", c.Propagation.AxisCap)
	}
	if c.Propagation.CompositeIterationCap < 0 {
		return fmt.Errorf("composite_iteration_cap must be non-negative, got %f", c.Propagation.CompositeIterationCap)
	}

	for _, d := range []struct {
		rule  string
		value float64
	}{
		{"phase_timing", c.Propagation.Damping.PhaseTiming},
		{"evidence_strength", c.Propagation.Damping.EvidenceStrength},
		{"moat_challenge", c.Propagation.Damping.MoatChallenge},
		{"architecture_spread", c.Propagation.Damping.ArchitectureSpread},
	} {
		if d.value != 0 && (d.value < 0 || d.value >= 1) {
			return fmt.Errorf("damping for %s must be in (0, 1), got %g", d.rule, d.value)
		}
	}

	if f := c.Detection.TopNarrativeMaxClosedFraction; f < 0 || f > 1 {
		return fmt.Errorf("top_narrative_max_closed_fraction must be in [0, 1], got %g", f)
	}
	for _, n := range []struct {
		name  string
		value int
	}{
		{"narrative_min_models", c.Detection.NarrativeMinModels},
		{"force_min_models", c.Detection.ForceMinModels},
		{"collision_min_models", c.Detection.CollisionMinModels},
		{"audit_min_narratives", c.Detection.AuditMinNarratives},
	} {
		if n.value < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", n.name, n.value)
		}
	}

	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("retention max_count must be non-negative, got %d", c.Backup.Retention.MaxCount)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DRIFTLINE_STORE"); v != "" {
		config.Corpus.Store = v
	}
	if v := os.Getenv("DRIFTLINE_CORPUS"); v != "" {
		config.Corpus.Path = v
	}

	if v := os.Getenv("DRIFTLINE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Propagation.MaxIterations = n
		}
	}
	if v := os.Getenv("DRIFTLINE_CONVERGENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Propagation.ConvergenceThreshold = f
		}
	}
	if v := os.Getenv("DRIFTLINE_AXIS_CAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Propagation.AxisCap = f
		}
	}

	if v := os.Getenv("DRIFTLINE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
