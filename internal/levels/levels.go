// Package levels holds the fixed parameter table for the five nonlinear
// refinement levels and derives the per-run level sequence.
package levels

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// None marks an unset level selector.
const None = -1

// Level is the fixed parameter set for one nonlinear level.
type Level struct {
	// Index is the level number, 0 through 4.
	Index int
	// QwarpOpts are the blur and patch options passed to 3dQwarp.
	QwarpOpts []string
	// Inilev is the patch level 3dQwarp starts at when no checkpoint exists.
	Inilev int
	// Suffix names the level's aligned outputs, e.g. "_nl0".
	Suffix string
	// IniWarpLevel is the level whose warp seeds this one by naming
	// convention when no warp is supplied, or None.
	IniWarpLevel int
}

var table = [models.NumNonlinearLevels]Level{
	{Index: 0, QwarpOpts: strings.Fields("-blur 0 9 -minpatch 101 -lite"), Inilev: 0, Suffix: "_nl0", IniWarpLevel: None},
	{Index: 1, QwarpOpts: strings.Fields("-blur 1 6 -minpatch 49 -lite"), Inilev: 2, Suffix: "_nl1", IniWarpLevel: 0},
	{Index: 2, QwarpOpts: strings.Fields("-blur 0 4 -minpatch 23 -lite"), Inilev: 5, Suffix: "_nl2", IniWarpLevel: 1},
	{Index: 3, QwarpOpts: strings.Fields("-blur 0 -2 -minpatch 13 -lite"), Inilev: 7, Suffix: "_nl3", IniWarpLevel: 2},
	{Index: 4, QwarpOpts: strings.Fields("-blur 0 -2 -minpatch 9 -lite"), Inilev: 9, Suffix: "_nl4", IniWarpLevel: 3},
}

// Get returns the parameters for level k.
func Get(k int) (Level, error) {
	if k < 0 || k >= len(table) {
		return Level{}, fmt.Errorf("nonlinear level %d out of range 0-%d", k, len(table)-1)
	}
	l := table[k]
	l.QwarpOpts = append([]string(nil), l.QwarpOpts...)
	return l, nil
}

// All returns the full table in order.
func All() []Level {
	out := make([]Level, 0, len(table))
	for k := range table {
		l, _ := Get(k)
		out = append(out, l)
	}
	return out
}

// Phase returns the pipeline phase of the level.
func (l Level) Phase() models.Phase {
	return models.NonlinearPhase(l.Index)
}

// TemplatePrefix is the file name prefix of the level's mean template.
// Rigid and affine means use tp0_ and tp1_.
func (l Level) TemplatePrefix() string {
	return fmt.Sprintf("tp%d_", l.Index+2)
}

// WarpSuffix names the level's warp relative to the source dataset.
func (l Level) WarpSuffix() string {
	return l.Suffix + "_WARP"
}

// Step is one entry of a run's level sequence.
type Step struct {
	Level
	// Upsample is set on the level that upsamples the target, resize base,
	// subjects and warps before aligning.
	Upsample bool
	// FindTypical is set on the level whose target is replaced by the
	// typical subject.
	FindTypical bool
}

// Sequence returns the levels from start through 4, flagging the upsample
// and typical-subject levels. Selectors equal to None are ignored.
func Sequence(start, upsample, typical int) ([]Step, error) {
	if start == None {
		start = 0
	}
	if err := CheckSelector("start level", start, false); err != nil {
		return nil, err
	}
	if err := CheckSelector("upsample level", upsample, true); err != nil {
		return nil, err
	}
	if err := CheckSelector("typical level", typical, true); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(table)-start)
	for k := start; k < len(table); k++ {
		l, _ := Get(k)
		steps = append(steps, Step{
			Level:       l,
			Upsample:    k == upsample,
			FindTypical: k == typical,
		})
	}
	return steps, nil
}

// CheckSelector validates a level selector value.
func CheckSelector(name string, v int, allowNone bool) error {
	if allowNone && v == None {
		return nil
	}
	if v < 0 || v >= len(table) {
		return fmt.Errorf("%s must be a number from 0 to %d, got %d", name, len(table)-1, v)
	}
	return nil
}
