package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/exec"
	"github.com/ShayCichocki/meanbrain/internal/pipeline"
)

var planOutput string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the commands a run would execute",
	Long: `Build the task graph as a dry run and print every task's commands in
dependency order. Nothing is executed and no input needs to exist yet;
existing outputs and checkpoints are still taken into account.

With --output, the plan (tasks, dependencies, levels and final outputs)
is written as YAML instead.`,
	RunE: runPlan,
}

func init() {
	pipelineFlags(planCmd)
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "Write the plan as YAML to this file (- for stdout)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	cfg, err := loadConfig(cmd, fs)
	if err != nil {
		return err
	}
	cfg.Execution.DryRun = true

	plan, order, err := dryRunPlan(cmd.Context(), cfg, fs)
	if err != nil {
		return err
	}

	switch planOutput {
	case "":
		printPlan(cmd.OutOrStdout(), plan, order)
		return nil
	case "-":
		return plan.WriteYAML(cmd.OutOrStdout())
	default:
		f, err := os.Create(planOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", planOutput, err)
		}
		defer f.Close()
		if err := plan.WriteYAML(f); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Wrote plan of %d tasks to %s", len(plan.Tasks()), planOutput), colorOK)
		return nil
	}
}

// dryRunPlan builds the plan over a recording runner and runs every task,
// which fills in each task's command text.
func dryRunPlan(ctx context.Context, cfg *config.Config, fs afero.Fs) (*pipeline.Plan, []string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	plan, err := buildPlan(cfg, fs, exec.NewRecorder())
	if err != nil {
		return nil, nil, err
	}
	order, err := plan.RunSequential(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("dry run: %w", err)
	}
	return plan, order, nil
}

// printPlan writes the tasks and their commands in dependency order.
func printPlan(w io.Writer, plan *pipeline.Plan, order []string) {
	for _, id := range order {
		t := plan.Task(id)
		fmt.Fprintf(w, "# %s: %s\n", t.ID, t.Title)
		if t.Command == "" {
			fmt.Fprintln(w, "#   (nothing to run)")
			continue
		}
		fmt.Fprintln(w, t.Command)
	}
	out := plan.Outputs()
	fmt.Fprintf(w, "\n# %d tasks, template: %s\n", len(order), out.Template.Input())
}
