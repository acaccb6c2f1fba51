package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/aggregate"
	"github.com/ShayCichocki/meanbrain/internal/checkpoint"
	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/exec"
	"github.com/ShayCichocki/meanbrain/internal/graph"
	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
	"github.com/ShayCichocki/meanbrain/internal/pipeline"
	"github.com/ShayCichocki/meanbrain/internal/stages"
)

// debugEnabled reports whether debug logging was asked for by flag or
// MEANBRAIN_DEBUG.
func debugEnabled(flag bool) bool {
	return flag || os.Getenv("MEANBRAIN_DEBUG") != ""
}

// setupDebug opens the run's debug log and routes every package's debug
// hook to it. The returned logger is a no-op when debugging is off.
func setupDebug(cfg *config.Config, enabled bool) *orchestrator.DebugLogger {
	if !enabled {
		return orchestrator.NopLogger()
	}
	logger := orchestrator.NewDebugLoggerForDir(cfg.StateDir())
	orchestrator.SetLogger(logger)
	graph.SetDebugLog(logger.Log)
	stages.SetDebugLog(logger.Log)
	checkpoint.SetDebugLog(logger.Log)
	return logger
}

// buildPlan stages the inputs and builds the task graph. With a dry run
// configuration nothing is copied and runner should be a recorder.
func buildPlan(cfg *config.Config, fs afero.Fs, runner exec.CommandRunner) (*pipeline.Plan, error) {
	pc := cfg.Pipeline()
	in, err := planInputs(cfg, fs)
	if err != nil {
		return nil, err
	}
	pc.OutDir = in.OutDir

	s := stages.New(runner, fs, stages.OptionsFrom(pc))
	b := pipeline.NewBuilder(pc, s, aggregate.New(s))
	plan, err := b.Build(in)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	return plan, nil
}

func planInputs(cfg *config.Config, fs afero.Fs) (pipeline.Inputs, error) {
	var in pipeline.Inputs
	subjects, err := pipeline.StageInputs(fs, cfg.Inputs.Dsets, cfg.OutDir, cfg.Execution.DryRun)
	if err != nil {
		return in, err
	}
	in.Subjects = subjects
	if in.OutDir, err = filepath.Abs(cfg.OutDir); err != nil {
		return in, fmt.Errorf("resolve output directory: %w", err)
	}

	if in.Base, err = pipeline.ParseOptional("inputs.init_base", cfg.Inputs.InitBase); err != nil {
		return in, err
	}
	if in.ResizeBase, err = pipeline.ParseOptional("inputs.resize_base", cfg.Inputs.ResizeBase); err != nil {
		return in, err
	}
	if in.Warps, err = pipeline.ParseAll("inputs.warpsets", cfg.Inputs.Warpsets); err != nil {
		return in, err
	}
	return in, nil
}

// afniPrograms are the AFNI programs a run calls.
var afniPrograms = []string{
	"3dcopy", "3dAttribute", "@Align_Centers", "3dSkullStrip", "3dUnifize",
	"3dAllineate", "3dQwarp", "3dNwarpCat", "3dMean", "3dTstat", "3dBrickStat",
	"3dAutomask", "3dmask_tool", "3dresample", "3dZeropad", "3danisosmooth", "@auto_tlrc",
}

// checkAFNI returns an error naming the first AFNI program not in PATH.
func checkAFNI() error {
	if missing := exec.LookPath(afniPrograms...); missing != "" {
		return fmt.Errorf("%s not found in PATH\n\n"+
			"meanbrain runs AFNI programs. Install AFNI and add its binary\n"+
			"directory to PATH: https://afni.nimh.nih.gov/", missing)
	}
	return nil
}
