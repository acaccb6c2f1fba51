package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/manifest"
)

var (
	initForce      bool
	initManifest   string
	initSkipAFNI   bool
	initDsetsGlobs []string
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create a project configuration",
	Long: `Write a commented .meanbrain.yaml into a directory (default: the
current one) and check that AFNI is installed.

With --manifest, the datasets given by --dsets are also written to a
subject manifest that the project configuration points at. Per-subject
warps can then be added to the manifest by hand.

Examples:
  meanbrain init
  meanbrain init study1 --manifest subjects.yaml --dsets 'data/sub*+orig.HEAD'
  meanbrain init --force     # overwrite an existing .meanbrain.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initManifest, "manifest", "", "Also write a subject manifest with this name")
	initCmd.Flags().StringSliceVar(&initDsetsGlobs, "dsets", nil, "Datasets for the manifest (globs allowed)")
	initCmd.Flags().BoolVar(&initSkipAFNI, "skip-afni-check", false, "Skip the AFNI installation check")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}
	fmt.Printf("Initializing meanbrain in %s...\n\n", absPath)

	if !initSkipAFNI {
		if err := checkAFNI(); err != nil {
			printStatus("⚠", "AFNI not found (plan still works; run needs it)", color.FgYellow)
		} else {
			printStatus("✓", "AFNI found", color.FgGreen)
		}
	}

	manifestName := ""
	if initManifest != "" {
		dsets, err := expandGlobs(fs, initDsetsGlobs)
		if err != nil {
			return err
		}
		if len(dsets) == 0 {
			return fmt.Errorf("--manifest needs datasets; pass them with --dsets")
		}
		manifestName = initManifest
		path := filepath.Join(absPath, initManifest)
		if err := writeNew(fs, path, func(w io.Writer) error {
			return manifestFor(dsets).Write(w)
		}); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Wrote %s with %d subjects", initManifest, len(dsets)), color.FgGreen)
	}

	path := filepath.Join(absPath, config.ProjectFileName)
	if err := writeNew(fs, path, func(w io.Writer) error {
		return writeProjectConfig(w, manifestName)
	}); err != nil {
		return err
	}
	printStatus("✓", "Created "+config.ProjectFileName, color.FgGreen)

	fmt.Printf("\n%s Initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit " + config.ProjectFileName + " to name the datasets and base")
	fmt.Println("  2. Check the commands:  meanbrain plan")
	fmt.Println("  3. Build the template:  meanbrain run --tui")
	return nil
}

// writeNew creates path with fn unless it exists and --force is not set.
func writeNew(fs afero.Fs, path string, fn func(io.Writer) error) error {
	if _, err := fs.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// manifestFor lists dsets as manifest subjects, paths made absolute.
func manifestFor(dsets []string) *manifest.Manifest {
	m := &manifest.Manifest{}
	for _, d := range dsets {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		m.Subjects = append(m.Subjects, manifest.Subject{Dset: d})
	}
	return m
}

// writeProjectConfig writes the commented project configuration. A
// non-empty manifestName is set as inputs.manifest.
func writeProjectConfig(w io.Writer, manifestName string) error {
	d := config.Default()
	manifestLine := `  # manifest: subjects.yaml`
	dsetsLine := `  dsets: []            # e.g. ["data/sub*+orig.HEAD"]`
	if manifestName != "" {
		manifestLine = fmt.Sprintf("  manifest: %s", manifestName)
	}
	_, err := fmt.Fprintf(w, `# meanbrain project configuration
# Flags and MEANBRAIN_* environment variables override these settings.

out_dir: %s

inputs:
%s
%s
  init_base: ""         # e.g. MNI152_2009_template.nii.gz
  # resize_base: ""     # defaults to the affine mean
  # warpsets: []        # starting warps for a partial nonlinear run

stages:
  center: %t
  skullstrip: %t
  automask: false       # 3dAutomask instead of 3dSkullStrip
  unifize: %t
  rigid: %t
  affine: %t
  nonlinear: %t
  anisosmooth: false
  unifize_template: false

levels:
  # nl_level_only: -1   # start nonlinear alignment at this level (0-4)
  # upsample_level: -1  # upsample to input resolution at this level
  # typical_level: -1   # switch to the typical subject at this level
  aniso_iters: %d

execution:
  ok_to_exist: false
  max_workers: 0        # 0 = one per CPU
  fail_fast: false

ledger:
  driver: %s            # sqlite (pure Go) or sqlite3 (cgo)
  retention_days: %d
`, d.OutDir, dsetsLine, manifestLine,
		d.Stages.Center, d.Stages.SkullStrip, d.Stages.Unifize,
		d.Stages.Rigid, d.Stages.Affine, d.Stages.Nonlinear,
		d.Levels.AnisoIters, d.Ledger.Driver, d.Ledger.RetentionDays)
	return err
}
