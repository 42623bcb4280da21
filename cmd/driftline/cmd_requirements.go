package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/detect"
	"github.com/driftlab/driftline/internal/requirements"
)

func newRequirementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "Generate evidence requirements from detected tensions",
		Long: `Run detection and translate every tension into a falsifiable
evidence requirement. Identical tensions produce identical
requirement ids, so repeated runs are idempotent.`,
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
			doc := requirements.Generate(rep.Tensions, cycleID)

			logger.Debug("requirements generated", "cycle", cycleID,
				"tensions", rep.Summary.Total, "requirements", doc.Summary.Total)
			runLog.Requirements(cycleID, rep.Summary.Total, doc.Summary.Total)

			if err := saveReport(s, corpus.ReportRequirements, cycleID, doc); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(doc)
			}

			fmt.Printf("Cycle %s: %d requirements from %d tensions\n",
				cycleID, doc.Summary.Total, rep.Summary.Total)
			if doc.Summary.Total == 0 {
				return nil
			}
			fmt.Println()
			for _, r := range doc.Requirements {
				fmt.Printf("  %s [%s]\n", r.ID, r.Priority)
				fmt.Printf("    %s\n", r.Question)
				if r.EntityCount > len(r.Entities) {
					fmt.Printf("    entities: %v (+%d more)\n", r.Entities, r.EntityCount-len(r.Entities))
				} else {
					fmt.Printf("    entities: %v\n", r.Entities)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("cycle", "", "Cycle id (default: generated UUID)")

	return cmd
}
