package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/detect"
)

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Scan the corpus for tensions",
		Long: `Run every tension scanner and the self-fulfillment audit over the
corpus and write a detection report.

The corpus is never modified. Repeated runs over the same corpus
produce byte-identical tension lists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, c, err := loadCorpus(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			logger, runLog := newLoggers(cmd, cfg)
			defer runLog.Close()

			cycleID := resolveCycleID(cmd)
			rep := detect.New(detectionConfig(cfg)).Run(c, cycleID)

			logger.Debug("detection complete", "cycle", cycleID, "tensions", rep.Summary.Total)
			runLog.Detection(cycleID, rep.Summary.Total, rep.Summary.Status)

			if err := saveReport(s, corpus.ReportDetection, cycleID, rep); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(rep)
			}

			fmt.Printf("Cycle %s: %d tensions (%s)\n", cycleID, rep.Summary.Total, rep.Summary.Status)
			if rep.Summary.Total == 0 {
				return nil
			}
			fmt.Println()
			for _, t := range rep.Tensions {
				fmt.Printf("  [%s/%s] %s\n", t.Kind, t.Severity, t.Question)
				fmt.Printf("    magnitude %.2f, entities %v\n", t.Magnitude, t.Entities)
			}
			return nil
		},
	}

	cmd.Flags().String("cycle", "", "Cycle id (default: generated UUID)")

	return cmd
}
