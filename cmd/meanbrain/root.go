package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meanbrain",
	Short: "Iterative group template construction over AFNI",
	Long: `meanbrain builds a group template from a set of anatomical datasets.

Each subject is prepared (centered, skull stripped, unifized), aligned
rigidly and affinely to an evolving group mean, then warped nonlinearly
to the mean over five levels of decreasing patch size. Subjects run in
parallel; each level's mean waits for every subject of that level.

Settings come from ~/.config/meanbrain/config.yaml, a project
.meanbrain.yaml, MEANBRAIN_* environment variables and flags, in
increasing precedence.

Examples:
  meanbrain init
  meanbrain plan --dsets 'data/sub*+orig.HEAD' --init-base MNI152_2009_template.nii.gz
  meanbrain run --tui
  meanbrain status`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(versionCmd)
}
