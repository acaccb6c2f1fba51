// Package manifest loads subject lists from YAML:
//
//	base: templates/MNI152_2009_template.nii.gz
//	subjects:
//	  - dset: sub01/anat+orig
//	    warp: sub01/anat_nl2_WARP+tlrc
//	  - dset: sub02/anat+orig
//	    warp: sub02/anat_nl2_WARP+tlrc
//
// Relative paths resolve against the manifest's directory.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/meanbrain/internal/config"
)

// Subject is one input dataset and its optional starting warp.
type Subject struct {
	Dset string `yaml:"dset"`
	Warp string `yaml:"warp,omitempty"`
}

// Manifest is a subject list with optional bases.
type Manifest struct {
	Base       string    `yaml:"base,omitempty"`
	ResizeBase string    `yaml:"resize_base,omitempty"`
	Subjects   []Subject `yaml:"subjects"`
}

// Load reads and checks the manifest at path.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, config.Errorf("inputs.manifest", "read %s: %v", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.resolve(filepath.Dir(path))
	return m, nil
}

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, config.Errorf("inputs.manifest", "parse: %v", err)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) check() error {
	if len(m.Subjects) == 0 {
		return config.Errorf("inputs.manifest", "no subjects listed")
	}
	withWarp := 0
	for i, s := range m.Subjects {
		if strings.TrimSpace(s.Dset) == "" {
			return config.Errorf("inputs.manifest", "subject %d has no dset", i+1)
		}
		if s.Warp != "" {
			withWarp++
		}
	}
	if withWarp > 0 && withWarp != len(m.Subjects) {
		return config.Errorf("inputs.manifest", "%d of %d subjects have a warp; give every subject one or none", withWarp, len(m.Subjects))
	}
	return nil
}

func (m *Manifest) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	m.Base = abs(m.Base)
	m.ResizeBase = abs(m.ResizeBase)
	for i := range m.Subjects {
		m.Subjects[i].Dset = abs(m.Subjects[i].Dset)
		m.Subjects[i].Warp = abs(m.Subjects[i].Warp)
	}
}

// Dsets returns the subject datasets in order.
func (m *Manifest) Dsets() []string {
	out := make([]string, len(m.Subjects))
	for i, s := range m.Subjects {
		out[i] = s.Dset
	}
	return out
}

// Warps returns the subject warps in order, or nil when none are given.
func (m *Manifest) Warps() []string {
	if len(m.Subjects) == 0 || m.Subjects[0].Warp == "" {
		return nil
	}
	out := make([]string, len(m.Subjects))
	for i, s := range m.Subjects {
		out[i] = s.Warp
	}
	return out
}

// Apply merges the manifest into cfg. Subjects are appended after any
// datasets already configured; bases fill in only when cfg has none.
func (m *Manifest) Apply(cfg *config.Config) error {
	warps := m.Warps()
	if len(cfg.Inputs.Dsets) > 0 && (len(warps) > 0) != (len(cfg.Inputs.Warpsets) > 0) {
		return config.Errorf("inputs.manifest", "manifest and configured datasets disagree on warps")
	}
	cfg.Inputs.Dsets = append(cfg.Inputs.Dsets, m.Dsets()...)
	cfg.Inputs.Warpsets = append(cfg.Inputs.Warpsets, warps...)
	if cfg.Inputs.InitBase == "" {
		cfg.Inputs.InitBase = m.Base
	}
	if cfg.Inputs.ResizeBase == "" {
		cfg.Inputs.ResizeBase = m.ResizeBase
	}
	return nil
}

// LoadInto loads cfg.Inputs.Manifest, when set, and merges it into cfg.
func LoadInto(fs afero.Fs, cfg *config.Config) error {
	if cfg.Inputs.Manifest == "" {
		return nil
	}
	m, err := Load(fs, cfg.Inputs.Manifest)
	if err != nil {
		return err
	}
	if err := m.Apply(cfg); err != nil {
		return err
	}
	log.Printf("[manifest] %s: %d subjects", cfg.Inputs.Manifest, len(m.Subjects))
	return nil
}

// Write encodes m as YAML.
func (m *Manifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}
