package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/state"
	"github.com/ShayCichocki/meanbrain/internal/tui"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

var (
	statusAll     bool
	statusAbandon bool
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show the progress of a run",
	Long: `Show per-phase task counts of a run from the ledger in
<out_dir>/.meanbrain. Without a run ID the latest run is shown.

Examples:
  meanbrain status                   # latest run
  meanbrain status --all             # every recorded run
  meanbrain status 3f2b... --abandon # give up on an interrupted run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	outDirFlag(statusCmd)
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "List every recorded run")
	statusCmd.Flags().BoolVar(&statusAbandon, "abandon", false, "Mark the run abandoned so it is no longer offered for resume")
}

// openLedger opens an existing ledger. It returns nil without error when
// no run has been recorded yet.
func openLedger(cfg *config.Config) (*state.DB, error) {
	path := cfg.LedgerPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	db, err := state.OpenWithDriver(cfg.Ledger.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return db, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadRawConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if db == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded in %s. Run 'meanbrain run' to start.\n", cfg.OutDir)
		return nil
	}
	defer db.Close()

	if statusAll {
		runs, err := db.ListRuns("")
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	}

	var run *models.Run
	if len(args) > 0 {
		run, err = db.GetRun(args[0])
	} else {
		run, err = db.LatestRun()
	}
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	if statusAbandon {
		rm := state.NewRecoveryManager(db, afero.NewOsFs())
		if err := rm.Abandon(run.ID); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Run %s abandoned", run.ID), colorOK)
		return nil
	}

	tasks, err := db.ListTasks(run.ID, "")
	if err != nil {
		return err
	}
	printRunStatus(cmd.OutOrStdout(), run, tasks)
	return nil
}

func printRuns(w io.Writer, runs []*models.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-9s  started %s  updated %s  %s\n",
			r.ID, r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.UpdatedAt.Local().Format("2006-01-02 15:04"),
			r.OutDir)
	}
}

// printRunStatus writes the run header, one line per phase, and the
// failed tasks.
func printRunStatus(w io.Writer, run *models.Run, tasks []*models.Task) {
	fmt.Fprintf(w, "Run:     %s\n", run.ID)
	fmt.Fprintf(w, "Status:  %s\n", run.Status)
	fmt.Fprintf(w, "Output:  %s\n", run.OutDir)
	fmt.Fprintf(w, "Started: %s (%s ago)\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		time.Since(run.StartedAt).Round(time.Second))
	if run.Status == models.RunStatusRunning {
		fmt.Fprintf(w, "Last activity: %s\n", run.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)

	tracker := tui.NewTracker(tasks)
	for _, t := range tasks {
		tracker.Set(t.ID, t.Status)
	}
	for _, p := range tracker.Phases() {
		fmt.Fprintf(w, "  %-10s %3d/%-3d done", p.Phase, p.Done, p.Total)
		var extra []string
		if p.Running > 0 {
			extra = append(extra, fmt.Sprintf("%d running", p.Running))
		}
		if p.Failed > 0 {
			extra = append(extra, fmt.Sprintf("%d failed", p.Failed))
		}
		if p.Blocked > 0 {
			extra = append(extra, fmt.Sprintf("%d blocked", p.Blocked))
		}
		if len(extra) > 0 {
			fmt.Fprintf(w, "  (%s)", strings.Join(extra, ", "))
		}
		fmt.Fprintln(w)
	}
	c := tracker.Counts()
	fmt.Fprintf(w, "\n  %d/%d tasks done\n", c.Done, c.Total)

	for _, t := range tasks {
		if t.Status == models.TaskStatusFailed {
			fmt.Fprintf(w, "  ✗ %s: %s\n", t.ID, firstLine(t.Error))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
