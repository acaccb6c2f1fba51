package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
)

var signalCmd = &cobra.Command{
	Use:   "signal pause|resume|stop",
	Short: "Pause, resume or stop a running run",
	Long: `Control a run going in another terminal through its signal files in
<out_dir>/.meanbrain/signals.

  pause   running tasks finish; no new ones start
  resume  start tasks again
  stop    end the run once running tasks finish; continue it later
          with 'meanbrain run --resume <run-id>'`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"pause", "resume", "stop"},
	RunE:      runSignal,
}

func init() {
	outDirFlag(signalCmd)
}

func runSignal(cmd *cobra.Command, args []string) error {
	cfg, err := loadRawConfig(cmd)
	if err != nil {
		return err
	}
	controls := signalControls{dir: orchestrator.SignalDir(cfg.StateDir())}

	switch args[0] {
	case "pause":
		err = controls.Pause()
	case "resume":
		err = controls.Resume()
	case "stop":
		err = controls.Stop()
	default:
		return fmt.Errorf("unknown signal %q (want pause, resume or stop)", args[0])
	}
	if err != nil {
		return fmt.Errorf("signal %s: %w", args[0], err)
	}
	printStatus("✓", fmt.Sprintf("Sent %s to %s", args[0], cfg.OutDir), colorOK)
	return nil
}
