package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/checkpoint"
	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

func TestBindFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	pipelineFlags(cmd)
	if err := cmd.Flags().Parse([]string{"--no-strip", "--max-workers", "3", "--typical-level", "2"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	v := config.New()
	bindFlags(cmd, v)

	if v.GetBool("stages.skullstrip") {
		t.Error("--no-strip should turn stages.skullstrip off")
	}
	if !v.GetBool("stages.center") {
		t.Error("unset --no-center should leave stages.center on")
	}
	if got := v.GetInt("execution.max_workers"); got != 3 {
		t.Errorf("execution.max_workers = %d, want 3", got)
	}
	if got := v.GetInt("levels.typical_level"); got != 2 {
		t.Errorf("levels.typical_level = %d, want 2", got)
	}
	if got := v.GetInt("levels.upsample_level"); got != -1 {
		t.Errorf("unset levels.upsample_level = %d, want default -1", got)
	}
}

func TestFlagKeysAreConfigKeys(t *testing.T) {
	for flag, key := range flagKeys {
		if err := checkKey(key); err != nil {
			t.Errorf("flag --%s maps to %q: %v", flag, key, err)
		}
	}
}

func TestExpandGlobs(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"sub02+orig.HEAD", "sub01+orig.HEAD", "sub01+orig.BRIK"} {
		if err := afero.WriteFile(fs, "/data/"+name, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := expandGlobs(fs, []string{"/data/sub*+orig.HEAD", "/other/plain.nii.gz"})
	if err != nil {
		t.Fatalf("expandGlobs() error = %v", err)
	}
	want := []string{"/data/sub01+orig.HEAD", "/data/sub02+orig.HEAD", "/other/plain.nii.gz"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expandGlobs() = %v, want %v", got, want)
	}

	_, err = expandGlobs(fs, []string{"/data/missing*"})
	var cerr *config.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("unmatched pattern error = %v, want ConfigurationError", err)
	}
}

func TestDryRunPlan(t *testing.T) {
	cfg := config.Default()
	cfg.OutDir = "/out"
	cfg.Inputs.Dsets = []string{"/data/sub01+orig.HEAD", "/data/sub02+orig.HEAD"}
	cfg.Inputs.InitBase = "/templates/MNI_base+tlrc.HEAD"
	cfg.Execution.DryRun = true

	fs := afero.NewMemMapFs()
	plan, order, err := dryRunPlan(context.Background(), cfg, fs)
	if err != nil {
		t.Fatalf("dryRunPlan() error = %v", err)
	}
	if len(order) != len(plan.Tasks()) {
		t.Fatalf("order has %d tasks, plan has %d", len(order), len(plan.Tasks()))
	}
	for _, task := range plan.Tasks() {
		if task.Status != models.TaskStatusDone {
			t.Errorf("task %s status = %s after dry run", task.ID, task.Status)
		}
	}

	var buf bytes.Buffer
	printPlan(&buf, plan, order)
	out := buf.String()
	for _, id := range order {
		if !strings.Contains(out, "# "+id+": ") {
			t.Errorf("plan output is missing task %s", id)
		}
	}
	if !strings.Contains(out, fmt.Sprintf("# %d tasks, template: ", len(order))) {
		t.Errorf("plan output is missing the summary line:\n%s", out)
	}
}

func TestFinalStatus(t *testing.T) {
	ok := &orchestrator.Summary{Done: []string{"a"}}
	failed := &orchestrator.Summary{Failed: []string{"a"}}

	tests := []struct {
		name    string
		summary *orchestrator.Summary
		err     error
		want    models.RunStatus
	}{
		{"all done", ok, nil, models.RunStatusCompleted},
		{"task failed", failed, fmt.Errorf("%w: a", orchestrator.ErrTasksFailed), models.RunStatusFailed},
		{"stopped", ok, orchestrator.ErrStopped, models.RunStatusRunning},
		{"interrupted", ok, context.Canceled, models.RunStatusRunning},
		{"no summary", nil, errors.New("build dependency graph"), models.RunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := finalStatus(tt.summary, tt.err); got != tt.want {
				t.Errorf("finalStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrintCheckpoints(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/out/nl"
	for _, name := range []string{
		"sub01_nl0_Lev2.0145x0173x0149_WARPsave+tlrc.HEAD",
		"sub01_nl0_Lev4.0081x0097x0085_WARPsave+tlrc.HEAD",
		"sub02_nl0_Lev1.0193x0229x0197_WARPsave+tlrc.HEAD",
	} {
		if err := afero.WriteFile(fs, filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := printCheckpoints(&buf, checkpoint.NewScanner(fs), []string{dir})
	if err != nil {
		t.Fatalf("printCheckpoints() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("printCheckpoints() found %d, want 2", n)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasPrefix(lines[0], "/out/nl/sub01_nl0: level 4 done, resumes at level 5") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "/out/nl/sub02_nl0: level 1 done, resumes at level 2") {
		t.Errorf("line 1 = %q", lines[1])
	}

	files, err := checkpointFiles(fs, "/out")
	if err != nil {
		t.Fatalf("checkpointFiles() error = %v", err)
	}
	if len(files) != 3 {
		t.Errorf("checkpointFiles() = %v, want 3 files", files)
	}
}

func TestWriteProjectConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := writeProjectConfig(&buf, "subjects.yaml"); err != nil {
		t.Fatalf("writeProjectConfig() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), config.ProjectFileName)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Inputs.Manifest != "subjects.yaml" {
		t.Errorf("inputs.manifest = %q, want subjects.yaml", cfg.Inputs.Manifest)
	}
	def := config.Default()
	if cfg.OutDir != def.OutDir || cfg.Ledger.Driver != def.Ledger.Driver || !cfg.Stages.Nonlinear {
		t.Errorf("template does not carry the defaults: %+v", cfg)
	}
}

func TestSetConfigValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := setConfigValue(path, "execution.max_workers", "8"); err != nil {
		t.Fatalf("setConfigValue() error = %v", err)
	}
	if err := setConfigValue(path, "stages.anisosmooth", "true"); err != nil {
		t.Fatalf("setConfigValue() error = %v", err)
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Execution.MaxWorkers != 8 || !cfg.Stages.AnisoSmooth {
		t.Errorf("got max_workers %d anisosmooth %v", cfg.Execution.MaxWorkers, cfg.Stages.AnisoSmooth)
	}

	if err := setConfigValue(path, "no.such.key", "1"); err == nil {
		t.Error("setConfigValue() accepted an unknown key")
	}
}

func TestSignalControls(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "signals")
	c := signalControls{dir: dir}

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, orchestrator.SignalPause)); err != nil {
		t.Errorf("pause file missing: %v", err)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, orchestrator.SignalPause)); !os.IsNotExist(err) {
		t.Errorf("pause file still present after Resume: %v", err)
	}
	if err := c.Resume(); err != nil {
		t.Errorf("second Resume() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, orchestrator.SignalStop)); err != nil {
		t.Errorf("stop file missing: %v", err)
	}
}
