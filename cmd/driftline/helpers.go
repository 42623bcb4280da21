package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/backup"
	"github.com/driftlab/driftline/internal/config"
	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/detect"
	"github.com/driftlab/driftline/internal/logging"
	"github.com/driftlab/driftline/internal/propagate"
)

// openStore loads configuration for the corpus directory and opens the
// configured backend. The caller owns the store and must Close it.
func openStore(cmd *cobra.Command) (corpus.Store, *config.Config, error) {
	dir, _ := cmd.Flags().GetString("corpus")

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if storeFlag, _ := cmd.Flags().GetString("store"); storeFlag != "" {
		cfg.Corpus.Store = storeFlag
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	var s corpus.Store
	switch cfg.Corpus.Store {
	case "sqlite":
		s, err = corpus.NewSQLiteStore(cfg.Corpus.Path)
	default:
		s, err = corpus.NewFileStore(cfg.Corpus.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s store: %w", cfg.Corpus.Store, err)
	}
	return s, cfg, nil
}

// loadCorpus opens the store and loads a validated corpus. A shape
// violation surfaces here and aborts the command.
func loadCorpus(cmd *cobra.Command) (corpus.Store, *config.Config, *corpus.Corpus, error) {
	s, cfg, err := openStore(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := s.Load(context.Background())
	if err != nil {
		s.Close()
		return nil, nil, nil, fmt.Errorf("loading corpus: %w", err)
	}
	// Dangling links degrade scanner coverage but are not fatal.
	for _, w := range corpus.CheckReferences(c) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return s, cfg, c, nil
}

// newLoggers builds the stderr logger and the optional run-trace
// logger from the resolved config. The run logger is nil at info level
// and nil-safe either way.
func newLoggers(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, *logging.RunLogger) {
	dir, _ := cmd.Flags().GetString("corpus")
	return logging.NewLogger(cfg.Logging.Level, os.Stderr), logging.NewRunLogger(dir, cfg.Logging.Level)
}

// resolveCycleID returns the --cycle flag value or a fresh UUID.
func resolveCycleID(cmd *cobra.Command) string {
	if id, _ := cmd.Flags().GetString("cycle"); id != "" {
		return id
	}
	return uuid.New().String()
}

// propagationConfig maps the config file settings onto the engine
// config, falling back to engine defaults for unset values.
func propagationConfig(cfg *config.Config) propagate.Config {
	pc := propagate.DefaultConfig()
	if cfg.Propagation.MaxIterations > 0 {
		pc.MaxIterations = cfg.Propagation.MaxIterations
	}
	if cfg.Propagation.ConvergenceThreshold > 0 {
		pc.ConvergenceThreshold = cfg.Propagation.ConvergenceThreshold
	}
	if cfg.Propagation.AxisCap > 0 {
		pc.AxisCap = cfg.Propagation.AxisCap
	}
	if cfg.Propagation.CompositeIterationCap > 0 {
		pc.CompositeIterationCap = cfg.Propagation.CompositeIterationCap
	}
	d := cfg.Propagation.Damping
	if d.PhaseTiming > 0 {
		pc.Dampings.PhaseTiming = d.PhaseTiming
	}
	if d.EvidenceStrength > 0 {
		pc.Dampings.EvidenceStrength = d.EvidenceStrength
	}
	if d.MoatChallenge > 0 {
		pc.Dampings.MoatChallenge = d.MoatChallenge
	}
	if d.ArchitectureSpread > 0 {
		pc.Dampings.ArchitectureSpread = d.ArchitectureSpread
	}
	return pc
}

// detectionConfig maps the config file settings onto the detector
// thresholds, falling back to detector defaults for unset values.
func detectionConfig(cfg *config.Config) detect.Config {
	dc := detect.DefaultConfig()
	d := cfg.Detection
	if d.TopNarrativeMinAvgOpportunity > 0 {
		dc.TopNarrativeMinAvgOpportunity = d.TopNarrativeMinAvgOpportunity
	}
	if d.TopNarrativeMaxClosedFraction > 0 {
		dc.TopNarrativeMaxClosedFraction = d.TopNarrativeMaxClosedFraction
	}
	if d.WeakNarrativeMaxAvgOpportunity > 0 {
		dc.WeakNarrativeMaxAvgOpportunity = d.WeakNarrativeMaxAvgOpportunity
	}
	if d.NarrativeMinModels > 0 {
		dc.NarrativeMinModels = d.NarrativeMinModels
	}
	if d.ArchitectureGapSpread > 0 {
		dc.ArchitectureGapSpread = d.ArchitectureGapSpread
	}
	if d.TransformationOpportunityGap > 0 {
		dc.TransformationOpportunityGap = d.TransformationOpportunityGap
	}
	if d.ForceMinModels > 0 {
		dc.ForceMinModels = d.ForceMinModels
	}
	if d.ForceLargeSample > 0 {
		dc.ForceLargeSample = d.ForceLargeSample
	}
	if d.ForceDeviationSmall > 0 {
		dc.ForceDeviationSmall = d.ForceDeviationSmall
	}
	if d.ForceDeviationLarge > 0 {
		dc.ForceDeviationLarge = d.ForceDeviationLarge
	}
	if d.RoleParadoxGap > 0 {
		dc.RoleParadoxGap = d.RoleParadoxGap
	}
	if d.RoleNeededMin > 0 {
		dc.RoleNeededMin = d.RoleNeededMin
	}
	if d.RoleWorksMin > 0 {
		dc.RoleWorksMin = d.RoleWorksMin
	}
	if d.CollisionMaxStdDev > 0 {
		dc.CollisionMaxStdDev = d.CollisionMaxStdDev
	}
	if d.CollisionMinModels > 0 {
		dc.CollisionMinModels = d.CollisionMinModels
	}
	if d.AuditMinNarratives > 0 {
		dc.AuditMinNarratives = d.AuditMinNarratives
	}
	return dc
}

// corpusSummary carries entity counts and category histograms for
// cheap inspection of a cycle without opening the corpus.
type corpusSummary struct {
	Models     int            `json:"models"`
	Narratives int            `json:"narratives"`
	Collisions int            `json:"collisions"`

	OpportunityCategories map[string]int `json:"opportunity_categories,omitempty"`
	ReturnCategories      map[string]int `json:"return_categories,omitempty"`
	NarrativeCategories   map[string]int `json:"narrative_categories,omitempty"`
}

func summarizeCorpus(c *corpus.Corpus) corpusSummary {
	s := corpusSummary{
		Models:     len(c.Models),
		Narratives: len(c.Narratives),
		Collisions: len(c.Collisions),

		OpportunityCategories: make(map[string]int),
		ReturnCategories:      make(map[string]int),
		NarrativeCategories:   make(map[string]int),
	}
	for _, m := range c.Models {
		s.OpportunityCategories[m.Opportunity.Category]++
		s.ReturnCategories[m.Return.Category]++
	}
	for _, n := range c.Narratives {
		s.NarrativeCategories[n.Scores.Category]++
	}
	return s
}

// archiveCorpus writes a pre-mutation archive under <corpus>/backups/
// and prunes per the configured retention. Taken before every run that
// will overwrite scores.
func archiveCorpus(cmd *cobra.Command, cfg *config.Config, c *corpus.Corpus, cycleID string) error {
	dir, _ := cmd.Flags().GetString("corpus")
	backupDir := filepath.Join(dir, "backups")
	if _, err := backup.Backup(c, cycleID, backup.ArchivePath(backupDir)); err != nil {
		return fmt.Errorf("archiving corpus: %w", err)
	}
	policy, err := buildRetentionPolicy(cfg.Backup.Retention)
	if err != nil {
		return fmt.Errorf("invalid retention config: %w", err)
	}
	if _, err := backup.Prune(backupDir, policy); err != nil {
		return fmt.Errorf("pruning archives: %w", err)
	}
	return nil
}

// saveReport persists one run document under the store's reports area.
func saveReport(s corpus.Store, kind, cycleID string, doc any) error {
	r := corpus.Report{
		Kind:      kind,
		CycleID:   cycleID,
		CreatedAt: time.Now().UTC(),
		Document:  doc,
	}
	if err := s.SaveReport(context.Background(), r); err != nil {
		return fmt.Errorf("saving %s report: %w", kind, err)
	}
	return nil
}
