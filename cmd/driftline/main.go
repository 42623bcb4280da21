package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "driftline",
		Short: "Driftline - tension detection over scored entity corpora",
		Long: `driftline runs heuristic analysis cycles over a corpus of scored
transformation models, narratives, and force collisions.

A cycle scans for internal tensions, turns them into evidence
requirements, applies bounded score propagation, and audits the
corpus for invariant violations.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for pipeline consumption)")
	rootCmd.PersistentFlags().String("corpus", ".driftline", "Corpus directory")
	rootCmd.PersistentFlags().String("store", "", "Store backend (file, sqlite); overrides config")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity (info, debug, trace); overrides config")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newDetectCmd(),
		newRequirementsCmd(),
		newPropagateCmd(),
		newAuditCmd(),
		newRunCmd(),
		newBackupCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("driftline version %s\n", version)
			}
		},
	}
}
