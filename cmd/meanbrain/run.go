package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/exec"
	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
	"github.com/ShayCichocki/meanbrain/internal/pipeline"
	"github.com/ShayCichocki/meanbrain/internal/state"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

var (
	runResume string
	runTUI    bool
	runDebug  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the group template",
	Long: `Run the template pipeline over the configured datasets.

Tasks run concurrently up to --max-workers. Progress is recorded in the
run ledger under <out_dir>/.meanbrain so an interrupted run can be
continued with --resume; finished tasks whose outputs are still on disk
are not run again.

While a run is going, 'meanbrain signal pause|resume|stop' (or the p, r
and s keys with --tui) holds back new tasks, lets them start again, or
ends the run once running tasks finish.

Examples:
  meanbrain run --dsets 'data/sub*+orig.HEAD' --init-base MNI152_2009_template.nii.gz
  meanbrain run --tui --max-workers 4
  meanbrain run --resume 3f2b...      # continue an interrupted run
  meanbrain run --dry-run             # same as 'meanbrain plan'`,
	RunE: runRun,
}

func init() {
	pipelineFlags(runCmd)
	runCmd.Flags().StringVar(&runResume, "resume", "", "Continue the interrupted run with this ID")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the interactive progress view")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Write a debug log to <out_dir>/.meanbrain/logs/debug.log")
}

func runRun(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	cfg, err := loadConfig(cmd, fs)
	if err != nil {
		return err
	}
	if runResume != "" {
		cfg.Execution.OKToExist = true
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Execution.DryRun {
		plan, order, err := dryRunPlan(ctx, cfg, fs)
		if err != nil {
			return err
		}
		printPlan(cmd.OutOrStdout(), plan, order)
		return nil
	}

	if err := checkAFNI(); err != nil {
		return err
	}

	logger := setupDebug(cfg, debugEnabled(runDebug))
	defer logger.Close()

	runner := exec.NewRunner()
	runner.Threads = exec.ThreadsPerTask(cfg.Workers())
	plan, err := buildPlan(cfg, fs, runner)
	if err != nil {
		return err
	}

	db, err := state.OpenWithDriver(cfg.Ledger.Driver, cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}

	runID, done, err := startRun(db, fs, cfg, plan)
	if err != nil {
		return err
	}

	recorder := state.NewLedgerRecorder(db, runID)
	if err := recorder.RecordAll(plan.Tasks()); err != nil {
		return fmt.Errorf("record tasks: %w", err)
	}

	emitter := orchestrator.NewEventEmitter(len(plan.Tasks()) * 4)
	pause := orchestrator.NewPauseController()
	sigDir := orchestrator.SignalDir(cfg.StateDir())
	watcher, err := orchestrator.NewSignalWatcher(sigDir, pause, emitter)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	executor := orchestrator.NewExecutor(plan,
		orchestrator.WithMaxWorkers(cfg.Workers()),
		orchestrator.WithFailFast(cfg.Execution.FailFast),
		orchestrator.WithEmitter(emitter),
		orchestrator.WithPauseController(pause),
		orchestrator.WithRecorder(recorder),
		orchestrator.WithDone(done),
		orchestrator.WithLogger(logger),
	)

	printStatus("▶", fmt.Sprintf("Run %s: %d tasks over %d subjects, %d workers",
		runID, len(plan.Tasks()), len(plan.Subjects()), executor.MaxWorkers()), colorInfo)

	var summary *orchestrator.Summary
	var runErr error
	if runTUI {
		summary, runErr = runWithTUI(ctx, executor, emitter, cfg.OutDir, plan.Tasks(), signalControls{dir: sigDir})
	} else {
		summary, runErr = runHeadless(ctx, cmd, executor, emitter)
	}

	status := finalStatus(summary, runErr)
	if err := recorder.Finish(status); err != nil {
		printStatus("!", fmt.Sprintf("Could not update run status: %v", err), colorWarn)
	}
	return report(plan, runID, summary, runErr)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// startRun either resumes runResume or registers a new run in the
// ledger. It returns the run ID and the tasks already done.
func startRun(db *state.DB, fs afero.Fs, cfg *config.Config, plan *pipeline.Plan) (string, []string, error) {
	rm := state.NewRecoveryManager(db, fs)

	if runResume != "" {
		st, err := rm.Resume(runResume)
		if err != nil {
			return "", nil, fmt.Errorf("resume run: %w", err)
		}
		plan.Restore(st.Done)
		printStatus("↻", fmt.Sprintf("Resuming run %s: %d tasks done, %d reset, %d with missing outputs",
			st.Run.ID, len(st.Done), st.Reset, st.Missing), colorInfo)
		return st.Run.ID, st.DoneIDs(), nil
	}

	interrupted, err := rm.CheckForInterrupted()
	if err != nil {
		return "", nil, fmt.Errorf("check for interrupted runs: %w", err)
	}
	for _, ir := range interrupted {
		printStatus("!", fmt.Sprintf("Interrupted run %s (%d done, last activity %s); continue it with --resume %s",
			ir.RunID, ir.Done, ir.LastActivity.Local().Format("2006-01-02 15:04"), ir.RunID), colorWarn)
	}

	settings, err := yaml.Marshal(cfg)
	if err != nil {
		return "", nil, fmt.Errorf("encode configuration: %w", err)
	}
	run := &models.Run{OutDir: cfg.OutDir, Config: string(settings)}
	if err := db.CreateRun(run); err != nil {
		return "", nil, fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil, nil
}

// runHeadless prints events as status lines while the executor runs.
func runHeadless(ctx context.Context, cmd *cobra.Command, executor *orchestrator.Executor, emitter *orchestrator.EventEmitter) (*orchestrator.Summary, error) {
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printEvents(cmd.OutOrStdout(), emitter.Events())
	}()

	summary, err := executor.Run(ctx)
	emitter.Close()
	<-printed
	return summary, err
}

// finalStatus maps the outcome onto the ledger. Stopped and interrupted
// runs stay running so they show up for --resume.
func finalStatus(summary *orchestrator.Summary, err error) models.RunStatus {
	switch {
	case err == nil && summary != nil && summary.OK():
		return models.RunStatusCompleted
	case errors.Is(err, orchestrator.ErrStopped), errors.Is(err, context.Canceled):
		return models.RunStatusRunning
	default:
		return models.RunStatusFailed
	}
}

func report(plan *pipeline.Plan, runID string, summary *orchestrator.Summary, runErr error) error {
	if summary == nil {
		return runErr
	}
	if summary.DroppedEvents > 0 {
		printStatus("!", fmt.Sprintf("%d progress events were dropped", summary.DroppedEvents), colorWarn)
	}
	for _, id := range summary.Failed {
		printStatus("✗", fmt.Sprintf("%s: %v", id, summary.Errors[id]), colorFail)
	}

	switch {
	case runErr == nil && summary.OK():
		printStatus("✓", summary.String(), colorOK)
		out := plan.Outputs()
		if !out.Template.IsZero() {
			printStatus("✓", "Template: "+out.Template.Input(), colorOK)
		}
		return nil
	case errors.Is(runErr, orchestrator.ErrStopped), errors.Is(runErr, context.Canceled):
		printStatus("■", summary.String(), colorWarn)
		printStatus("↻", fmt.Sprintf("Continue with: meanbrain run --resume %s", runID), colorInfo)
		return runErr
	default:
		printStatus("✗", summary.String(), colorFail)
		if runErr == nil {
			runErr = fmt.Errorf("run incomplete: %s", summary.String())
		}
		return runErr
	}
}
