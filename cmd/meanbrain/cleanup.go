package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/checkpoint"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

var (
	cleanupSaves  bool
	cleanupDryRun bool
	cleanupForce  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old runs from the ledger and remove leftover checkpoints",
	Long: `Delete finished runs older than ledger.retention_days from the run
ledger. Runs still marked running are kept.

With --saves, also remove the _WARPsave checkpoint files nonlinear
alignment leaves behind. They are what an interrupted run resumes from,
so this is refused while the latest run is unfinished unless --force
is given.

Examples:
  meanbrain cleanup
  meanbrain cleanup --saves --dry-run`,
	RunE: runCleanup,
}

func init() {
	outDirFlag(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupSaves, "saves", false, "Also remove _WARPsave checkpoint files")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Remove checkpoints even if a run is unfinished")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadRawConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openLedger(cfg)
	if err != nil {
		return err
	}

	unfinished := false
	if db != nil {
		defer db.Close()
		if latest, err := db.LatestRun(); err == nil && latest != nil {
			unfinished = latest.Status == models.RunStatusRunning
		}
		if !cleanupDryRun {
			n, err := db.PurgeOldRuns(cfg.RetentionPeriod())
			if err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("Purged %d runs older than %d days", n, cfg.Ledger.RetentionDays), colorOK)
		}
	}

	if !cleanupSaves {
		return nil
	}
	if unfinished && !cleanupForce {
		return fmt.Errorf("latest run is unfinished; its checkpoints are needed to resume (use --force to remove them anyway)")
	}

	fs := afero.NewOsFs()
	files, err := checkpointFiles(fs, cfg.OutDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if cleanupDryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "would remove %s\n", f)
			continue
		}
		if err := fs.Remove(f); err != nil {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	if !cleanupDryRun {
		printStatus("✓", fmt.Sprintf("Removed %d checkpoint files", len(files)), colorOK)
	}
	return nil
}

// checkpointFiles lists every file of every saved warp under root.
func checkpointFiles(fs afero.Fs, root string) ([]string, error) {
	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.Contains(info.Name(), checkpoint.MarkerTag) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}
