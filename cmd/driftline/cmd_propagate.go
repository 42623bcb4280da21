package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/propagate"
)

func newPropagateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Apply bounded score propagation",
		Long: `Run the propagation rules over the corpus and apply their bounded,
damped adjustments. The propagation log is written every run, even
when no rule fires.

With --dry-run the log shows what would change but the corpus is
left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			s, cfg, c, err := loadCorpus(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			logger, runLog := newLoggers(cmd, cfg)
			defer runLog.Close()

			engine, err := propagate.New(propagationConfig(cfg))
			if err != nil {
				return fmt.Errorf("building engine: %w", err)
			}

			cycleID := resolveCycleID(cmd)
			if !dryRun {
				if err := archiveCorpus(cmd, cfg, c, cycleID); err != nil {
					return err
				}
			}
			log := engine.Run(c, cycleID, dryRun)

			logger.Debug("propagation complete", "cycle", cycleID,
				"state", log.State, "iterations", log.Iterations, "changes", len(log.Changes))
			for _, ch := range log.Changes {
				runLog.Adjustment(cycleID, ch.Iteration, ch.Rule, ch.EntityID, ch.Axis, ch.Delta, ch.Clipped)
			}

			if err := saveReport(s, corpus.ReportPropagation, cycleID, log); err != nil {
				return err
			}
			if !dryRun {
				if err := s.Save(context.Background(), c); err != nil {
					return fmt.Errorf("saving corpus: %w", err)
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(log)
			}

			mode := ""
			if dryRun {
				mode = " (dry run)"
			}
			fmt.Printf("Cycle %s%s: %s after %d iterations, %d changes across %d entities\n",
				cycleID, mode, log.State, log.Iterations, len(log.Changes), log.EntitiesChanged)
			for _, a := range log.Advisories {
				fmt.Printf("  advisory: %s %s (%d models, avg transformation %.1f)\n",
					a.Force, a.Signal, a.Models, a.AvgT)
			}
			for _, bc := range log.BeforeAfter {
				fmt.Printf("  %s %s %s: %.2f -> %.2f\n",
					bc.EntityKind, bc.EntityID, bc.System, bc.Before, bc.After)
			}
			if len(log.BoundViolations) > 0 {
				fmt.Printf("  WARNING: %d bound violations after run\n", len(log.BoundViolations))
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Compute adjustments without modifying the corpus")
	cmd.Flags().String("cycle", "", "Cycle id (default: generated UUID)")

	return cmd
}
