package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/manifest"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"dsets":            "inputs.dsets",
	"manifest":         "inputs.manifest",
	"init-base":        "inputs.init_base",
	"resize-base":      "inputs.resize_base",
	"warpsets":         "inputs.warpsets",
	"out-dir":          "out_dir",
	"ok-to-exist":      "execution.ok_to_exist",
	"overwrite":        "execution.overwrite",
	"keep-rm-files":    "execution.keep_rm_files",
	"dry-run":          "execution.dry_run",
	"max-workers":      "execution.max_workers",
	"fail-fast":        "execution.fail_fast",
	"prep-only":        "stages.prep_only",
	"no-center":        "stages.center",
	"no-strip":         "stages.skullstrip",
	"automask":         "stages.automask",
	"no-unifize":       "stages.unifize",
	"anisosmooth":      "stages.anisosmooth",
	"unifize-template": "stages.unifize_template",
	"no-rigid":         "stages.rigid",
	"no-affine":        "stages.affine",
	"no-nonlinear":     "stages.nonlinear",
	"rigid-only":       "stages.rigid_only",
	"affine-only":      "stages.affine_only",
	"nl-only":          "stages.nl_only",
	"nl-level-only":    "levels.nl_level_only",
	"upsample-level":   "levels.upsample_level",
	"typical-level":    "levels.typical_level",
	"aniso-iters":      "levels.aniso_iters",
	"ledger-driver":    "ledger.driver",
}

// outDirFlag adds only --out-dir, for commands that read an existing run.
func outDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("out-dir", "", "Output directory of the run")
}

// pipelineFlags adds every pipeline setting as a flag.
func pipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("dsets", nil, "Input datasets (globs allowed)")
	f.String("manifest", "", "YAML subject manifest merged into the inputs")
	f.String("init-base", "", "Initial base dataset")
	f.String("resize-base", "", "Fixed dataset level templates are resized onto")
	f.StringSlice("warpsets", nil, "Starting warps, one per dataset, for a partial nonlinear run")
	outDirFlag(cmd)

	f.Bool("ok-to-exist", false, "Reuse existing outputs")
	f.Bool("overwrite", false, "Rerun stages over existing outputs")
	f.Bool("keep-rm-files", false, "Keep intermediate files")
	f.Bool("dry-run", false, "Plan only; print the commands without running them")
	f.Int("max-workers", 0, "Concurrent tasks (0 = one per CPU)")
	f.Bool("fail-fast", false, "Stop the whole run at the first failed task")

	f.Bool("prep-only", false, "Only center, skull strip and unifize")
	f.Bool("no-center", false, "Skip center alignment")
	f.Bool("no-strip", false, "Skip skull stripping")
	f.Bool("automask", false, "Mask brains with 3dAutomask instead of skull stripping")
	f.Bool("no-unifize", false, "Skip intensity unifizing")
	f.Bool("anisosmooth", false, "Anisotropically smooth level templates")
	f.Bool("unifize-template", false, "Unifize level templates")
	f.Bool("no-rigid", false, "Skip rigid alignment")
	f.Bool("no-affine", false, "Skip affine (and rigid) alignment")
	f.Bool("no-nonlinear", false, "Skip nonlinear alignment")
	f.Bool("rigid-only", false, "Stop after the rigid mean")
	f.Bool("affine-only", false, "Stop after the affine mean")
	f.Bool("nl-only", false, "Only nonlinear alignment of already aligned datasets")
	f.Int("nl-level-only", -1, "Start nonlinear alignment at this level (0-4)")
	f.Int("upsample-level", -1, "Upsample to the input resolution at this level (0-4)")
	f.Int("typical-level", -1, "Replace the target with the typical subject at this level (0-4)")
	f.Int("aniso-iters", 3, "Anisotropic smoothing iterations")
	f.String("ledger-driver", "", "Ledger SQL driver: sqlite or sqlite3")
}

// bindFlags binds the flags set on cmd to v. Negated flags (no-*) are bound
// as their positive key.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if strings.HasPrefix(f.Name, "no-") {
			on, _ := cmd.Flags().GetBool(f.Name)
			v.Set(key, !on)
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			fmt.Fprintf(os.Stderr, "warning: bind --%s: %v\n", f.Name, err)
		}
	})
}

// loadConfig loads, merges the manifest into, and validates the
// configuration for cmd.
func loadConfig(cmd *cobra.Command, fs afero.Fs) (*config.Config, error) {
	cfg, err := loadRawConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := manifest.LoadInto(fs, cfg); err != nil {
		return nil, err
	}
	if cfg.Inputs.Dsets, err = expandGlobs(fs, cfg.Inputs.Dsets); err != nil {
		return nil, err
	}
	if cfg.Inputs.Warpsets, err = expandGlobs(fs, cfg.Inputs.Warpsets); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadRawConfig loads the configuration without validating it, for
// commands that only need the output directory or ledger settings.
func loadRawConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	bindFlags(cmd, v)
	return config.LoadViper(v)
}

// expandGlobs expands shell patterns among paths. A pattern matching
// nothing is an error; plain paths pass through.
func expandGlobs(fs afero.Fs, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if !strings.ContainsAny(p, "*?[") {
			out = append(out, p)
			continue
		}
		matches, err := afero.Glob(fs, p)
		if err != nil {
			return nil, config.Errorf("inputs", "bad pattern %q: %v", p, err)
		}
		if len(matches) == 0 {
			return nil, config.Errorf("inputs", "pattern %q matches no datasets", p)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}
