package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/exec"
	"github.com/ShayCichocki/meanbrain/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the meanbrain and AFNI versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "meanbrain version %s\n", version.Get())
		afni, err := version.AFNI(cmdContext(cmd), exec.NewRunner())
		if err != nil {
			afni = fmt.Sprintf("unknown (%v)", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "AFNI version %s\n", afni)
	},
}
