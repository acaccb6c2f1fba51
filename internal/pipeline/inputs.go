package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/dataset"
)

// InputDir is the directory under the output directory that holds the
// copied inputs and every per-subject artifact.
const InputDir = "input_data"

// StageInputs copies the datasets at paths into <outDir>/input_data and
// returns their handles there. Datasets already present are not copied
// again. A dry run copies nothing and does not require the sources.
func StageInputs(fs afero.Fs, paths []string, outDir string, dryRun bool) ([]dataset.Handle, error) {
	if len(paths) == 0 {
		return nil, config.Errorf("inputs.dsets", "no input datasets")
	}
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory %s: %w", outDir, err)
	}
	dir := filepath.Join(abs, InputDir)

	handles := make([]dataset.Handle, 0, len(paths))
	names := make(map[string]string)
	keys := make(map[string]string)
	for _, p := range paths {
		h, err := dataset.Parse(p)
		if err != nil {
			return nil, config.Errorf("inputs.dsets", "%v", err)
		}
		if prev, dup := names[h.Name()]; dup {
			return nil, config.Errorf("inputs.dsets", "file name %s is used by both %s and %s", h.Name(), prev, p)
		}
		if prev, dup := keys[h.Base]; dup {
			return nil, config.Errorf("inputs.dsets", "subject %s is named by both %s and %s", h.Base, prev, p)
		}
		names[h.Name()] = p
		keys[h.Base] = p
		handles = append(handles, h)
	}

	if !dryRun {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	out := make([]dataset.Handle, 0, len(handles))
	for _, h := range handles {
		dst := h.WithDir(dir)
		switch {
		case dst.Exists(fs):
		case dryRun:
		case !h.Exists(fs):
			return nil, config.Errorf("inputs.dsets", "dataset %s not found", h.Input())
		default:
			if _, err := h.CopyTo(fs, dir); err != nil {
				return nil, fmt.Errorf("stage %s: %w", h.Input(), err)
			}
		}
		out = append(out, dst)
	}
	return out, nil
}

// ParseOptional parses path as a dataset, returning the zero handle for an
// empty path. field names the setting in errors.
func ParseOptional(field, path string) (dataset.Handle, error) {
	if path == "" {
		return dataset.Handle{}, nil
	}
	h, err := dataset.Parse(path)
	if err != nil {
		return dataset.Handle{}, config.Errorf(field, "%v", err)
	}
	return h, nil
}

// ParseAll parses every path as a dataset.
func ParseAll(field string, paths []string) ([]dataset.Handle, error) {
	out := make([]dataset.Handle, 0, len(paths))
	for _, p := range paths {
		h, err := dataset.Parse(p)
		if err != nil {
			return nil, config.Errorf(field, "%v", err)
		}
		out = append(out, h)
	}
	return out, nil
}
