package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/corpus"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a corpus directory",
		Long: `Create an empty corpus directory with a manifest, empty entity
snapshots, and a reports subdirectory.

With --store sqlite, a database file is created inside the directory
instead of JSON snapshots.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("corpus")
			storeKind, _ := cmd.Flags().GetString("store")
			if storeKind == "" {
				storeKind = "file"
			}

			switch storeKind {
			case "file":
				if err := corpus.Init(dir); err != nil {
					return fmt.Errorf("initializing corpus: %w", err)
				}
			case "sqlite":
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("creating corpus dir: %w", err)
				}
				dbPath := filepath.Join(dir, "corpus.db")
				s, err := corpus.NewSQLiteStore(dbPath)
				if err != nil {
					return fmt.Errorf("initializing database: %w", err)
				}
				if err := s.Close(); err != nil {
					return fmt.Errorf("closing database: %w", err)
				}
				// Record the backend choice so later commands pick it up.
				configPath := filepath.Join(dir, "driftline.yaml")
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					content := fmt.Sprintf("corpus:\n  store: sqlite\n  path: %s\n", dbPath)
					if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
						return fmt.Errorf("writing driftline.yaml: %w", err)
					}
				}
			default:
				return fmt.Errorf("invalid store: %s (valid: file, sqlite)", storeKind)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status": "initialized",
					"path":   dir,
				})
			} else {
				fmt.Printf("Initialized corpus in %s\n", dir)
			}
			return nil
		},
	}

	return cmd
}
