package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/backup"
	"github.com/driftlab/driftline/internal/config"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the corpus",
		Long: `Write a checksummed, compressed archive of the current corpus under
<corpus>/backups/ and prune old archives per the configured retention
(backup.retention in driftline.yaml; --keep overrides the count).

Propagation takes the same archive automatically before a mutating
run; this command exists for archiving on demand.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, c, err := loadCorpus(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			retention := cfg.Backup.Retention
			if cmd.Flags().Changed("keep") {
				retention.MaxCount, _ = cmd.Flags().GetInt("keep")
			}
			policy, err := buildRetentionPolicy(retention)
			if err != nil {
				return fmt.Errorf("invalid retention config: %w", err)
			}

			dir, _ := cmd.Flags().GetString("corpus")
			backupDir := filepath.Join(dir, "backups")
			path := backup.ArchivePath(backupDir)

			header, err := backup.Backup(c, "", path)
			if err != nil {
				return fmt.Errorf("archiving corpus: %w", err)
			}
			deleted, err := backup.Prune(backupDir, policy)
			if err != nil {
				return fmt.Errorf("pruning archives: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"path":   path,
					"header": header,
					"pruned": len(deleted),
				})
			}
			fmt.Printf("Archived %d models, %d narratives, %d collisions to %s\n",
				header.Models, header.Narratives, header.Collisions, path)
			if len(deleted) > 0 {
				fmt.Printf("Pruned %d old archives\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().Int("keep", 10, "Number of archives to retain (overrides config)")
	cmd.AddCommand(newBackupListCmd(), newBackupRestoreCmd(), newBackupVerifyCmd())

	return cmd
}

// buildRetentionPolicy constructs the pruning policy from config. Set
// policies union together; with nothing set, the last ten archives are
// kept.
func buildRetentionPolicy(cfg config.RetentionConfig) (backup.RetentionPolicy, error) {
	var policies []backup.RetentionPolicy

	if cfg.MaxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: cfg.MaxCount})
	}
	if cfg.MaxAge != "" {
		d, err := backup.ParseDuration(cfg.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("retention max_age: %w", err)
		}
		policies = append(policies, &backup.AgePolicy{MaxAge: d})
	}
	if cfg.MaxTotalSize != "" {
		size, err := backup.ParseSize(cfg.MaxTotalSize)
		if err != nil {
			return nil, fmt.Errorf("retention max_total_size: %w", err)
		}
		policies = append(policies, &backup.SizePolicy{MaxTotalBytes: size})
	}

	switch len(policies) {
	case 0:
		return &backup.CountPolicy{MaxCount: 10}, nil
	case 1:
		return policies[0], nil
	default:
		return &backup.CompositePolicy{Policies: policies}, nil
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive>",
		Short: "Verify an archive's integrity",
		Long: `Check the archive's SHA-256 checksum against its header without
restoring anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, err := backup.ReadHeader(args[0])
			if err != nil {
				return fmt.Errorf("reading archive header: %w", err)
			}

			verifyErr := backup.VerifyChecksum(args[0])

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				out := map[string]any{
					"file":   args[0],
					"header": header,
					"valid":  verifyErr == nil,
				}
				if verifyErr != nil {
					out["error"] = verifyErr.Error()
				}
				if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
					return err
				}
				if verifyErr != nil {
					return fmt.Errorf("checksum verification failed")
				}
				return nil
			}

			if verifyErr != nil {
				fmt.Printf("FAILED: %v\n", verifyErr)
				return fmt.Errorf("checksum verification failed")
			}
			fmt.Printf("OK: checksum verified (%d models, %d narratives, %d collisions)\n",
				header.Models, header.Narratives, header.Collisions)
			return nil
		},
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List corpus archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("corpus")
			archives, err := backup.List(filepath.Join(dir, "backups"))
			if err != nil {
				return fmt.Errorf("listing archives: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(archives)
			}
			if len(archives) == 0 {
				fmt.Println("No archives found.")
				return nil
			}
			for _, a := range archives {
				fmt.Printf("%s  %d bytes  %s\n",
					filepath.Base(a.Path), a.Size, a.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore the corpus from an archive",
		Long: `Verify the archive checksum, rebuild a validated corpus from it, and
overwrite the store's snapshots.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := backup.Restore(args[0])
			if err != nil {
				return fmt.Errorf("restoring archive: %w", err)
			}

			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Save(cmd.Context(), c); err != nil {
				return fmt.Errorf("saving restored corpus: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"status":     "restored",
					"models":     len(c.Models),
					"narratives": len(c.Narratives),
					"collisions": len(c.Collisions),
				})
			}
			fmt.Printf("Restored %d models, %d narratives, %d collisions from %s\n",
				len(c.Models), len(c.Narratives), len(c.Collisions), args[0])
			return nil
		},
	}
}
