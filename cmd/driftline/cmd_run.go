package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/audit"
	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/detect"
	"github.com/driftlab/driftline/internal/propagate"
	"github.com/driftlab/driftline/internal/requirements"
)

// cycleResult bundles the four documents of one full analysis cycle.
type cycleResult struct {
	CycleID      string                `json:"cycle_id"`
	Corpus       corpusSummary         `json:"corpus"`
	Detection    detect.Report         `json:"detection"`
	Requirements requirements.Document `json:"requirements"`
	Propagation  *propagate.Log        `json:"propagation"`
	Audit        audit.Report          `json:"audit"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full analysis cycle",
		Long: `Execute the full pipeline under a single cycle id:

  detect -> requirements -> propagate -> audit

Each stage writes its own report. Propagation runs after detection so
the detection report reflects the corpus as it was loaded. With
--dry-run the propagation stage computes but does not persist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			s, cfg, c, err := loadCorpus(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			logger, runLog := newLoggers(cmd, cfg)
			defer runLog.Close()

			cycleID := resolveCycleID(cmd)
			logger.Info("starting cycle", "cycle", cycleID, "models", len(c.Models),
				"narratives", len(c.Narratives), "collisions", len(c.Collisions))
			runLog.CycleStart(cycleID, len(c.Models), len(c.Narratives), len(c.Collisions))

			detection := detect.New(detectionConfig(cfg)).Run(c, cycleID)
			if err := saveReport(s, corpus.ReportDetection, cycleID, detection); err != nil {
				return err
			}

			reqs := requirements.Generate(detection.Tensions, cycleID)
			if err := saveReport(s, corpus.ReportRequirements, cycleID, reqs); err != nil {
				return err
			}

			engine, err := propagate.New(propagationConfig(cfg))
			if err != nil {
				return fmt.Errorf("building engine: %w", err)
			}
			if !dryRun {
				if err := archiveCorpus(cmd, cfg, c, cycleID); err != nil {
					return err
				}
			}
			propLog := engine.Run(c, cycleID, dryRun)
			if err := saveReport(s, corpus.ReportPropagation, cycleID, propLog); err != nil {
				return err
			}
			if !dryRun {
				if err := s.Save(context.Background(), c); err != nil {
					return fmt.Errorf("saving corpus: %w", err)
				}
			}

			auditRep := audit.Run(c, cycleID)
			if err := saveReport(s, corpus.ReportAudit, cycleID, auditRep); err != nil {
				return err
			}

			runLog.CycleComplete(cycleID, detection.Summary.Total, reqs.Summary.Total,
				len(propLog.Changes), len(auditRep.Violations))

			result := cycleResult{
				CycleID:      cycleID,
				Corpus:       summarizeCorpus(c),
				Detection:    detection,
				Requirements: reqs,
				Propagation:  propLog,
				Audit:        auditRep,
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			fmt.Printf("Cycle %s complete:\n", cycleID)
			fmt.Printf("  corpus:       %d models, %d narratives, %d collisions\n",
				result.Corpus.Models, result.Corpus.Narratives, result.Corpus.Collisions)
			fmt.Printf("  tensions:     %d (%s)\n", detection.Summary.Total, detection.Summary.Status)
			fmt.Printf("  requirements: %d\n", reqs.Summary.Total)
			fmt.Printf("  propagation:  %s, %d changes across %d entities\n",
				propLog.State, len(propLog.Changes), propLog.EntitiesChanged)
			if auditRep.Clean {
				fmt.Printf("  audit:        clean (%d entities)\n", auditRep.Entities)
			} else {
				fmt.Printf("  audit:        %d violations\n", len(auditRep.Violations))
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Compute propagation without modifying the corpus")
	cmd.Flags().String("cycle", "", "Cycle id (default: generated UUID)")

	return cmd
}
