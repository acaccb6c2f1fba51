package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/meanbrain/internal/checkpoint"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints [dir...]",
	Short: "List saved nonlinear warp checkpoints",
	Long: `List the intermediate warps an interrupted nonlinear alignment left
behind, with the level the alignment will restart from.

Without arguments every directory under the output directory is scanned.`,
	RunE: runCheckpoints,
}

func init() {
	outDirFlag(checkpointsCmd)
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	dirs := args
	if len(dirs) == 0 {
		cfg, err := loadRawConfig(cmd)
		if err != nil {
			return err
		}
		if dirs, err = subdirs(fs, cfg.OutDir); err != nil {
			return err
		}
	}
	n, err := printCheckpoints(cmd.OutOrStdout(), checkpoint.NewScanner(fs), dirs)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints found.")
	}
	return nil
}

// subdirs lists root and every directory below it.
func subdirs(fs afero.Fs, root string) ([]string, error) {
	var dirs []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return dirs, nil
}

// printCheckpoints writes one line per output prefix with saved warps and
// returns how many it found.
func printCheckpoints(w io.Writer, s *checkpoint.Scanner, dirs []string) (int, error) {
	n := 0
	for _, dir := range dirs {
		markers, err := s.ScanDir(dir)
		if err != nil {
			return n, err
		}
		bases := make([]string, 0, len(markers))
		for b := range markers {
			bases = append(bases, b)
		}
		sort.Strings(bases)
		for _, b := range bases {
			m := markers[b]
			fmt.Fprintf(w, "%s: level %d done, resumes at level %d (%s)\n",
				filepath.Join(dir, b), m.Level, m.ResumeLevel(), m.Warp.Name())
			n++
		}
	}
	return n, nil
}
