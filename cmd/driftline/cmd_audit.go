package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/audit"
	"github.com/driftlab/driftline/internal/corpus"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the corpus for scoring invariant violations",
		Long: `Verify every stored axis is in range and every stored composite
and category matches recomputation. The corpus is never modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, c, err := loadCorpus(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			logger, runLog := newLoggers(cmd, cfg)
			defer runLog.Close()

			cycleID := resolveCycleID(cmd)
			rep := audit.Run(c, cycleID)

			logger.Debug("audit complete", "cycle", cycleID,
				"entities", rep.Entities, "violations", len(rep.Violations))
			runLog.Audit(cycleID, rep.Entities, len(rep.Violations))

			if err := saveReport(s, corpus.ReportAudit, cycleID, rep); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(rep)
			}

			if rep.Clean {
				fmt.Printf("Cycle %s: %d entities, no violations\n", cycleID, rep.Entities)
				return nil
			}
			fmt.Printf("Cycle %s: %d entities, %d violations\n", cycleID, rep.Entities, len(rep.Violations))
			for _, v := range rep.Violations {
				fmt.Printf("  %s\n", v)
			}
			return nil
		},
	}

	cmd.Flags().String("cycle", "", "Cycle id (default: generated UUID)")

	return cmd
}
