package config

import (
	"errors"
	"strings"

	"github.com/ShayCichocki/meanbrain/internal/levels"
)

// Validate checks the configuration and returns every problem found,
// joined. Each is a *ConfigurationError.
func (c *Config) Validate() error {
	var errs []error
	add := func(e *ConfigurationError) { errs = append(errs, e) }

	if len(c.Inputs.Dsets) == 0 {
		add(Errorf("inputs.dsets", "must list the input datasets"))
	}
	if strings.TrimSpace(c.Inputs.InitBase) == "" {
		add(Errorf("inputs.init_base", "must name an initial base dataset"))
	}
	if n := len(c.Inputs.Warpsets); n > 0 && n != len(c.Inputs.Dsets) {
		add(Errorf("inputs.warpsets", "got %d warps for %d datasets", n, len(c.Inputs.Dsets)))
	}
	if strings.TrimSpace(c.OutDir) == "" {
		add(Errorf("out_dir", "must not be empty"))
	}

	if err := levels.CheckSelector("nl_level_only", c.Levels.NLLevelOnly, true); err != nil {
		add(Errorf("levels.nl_level_only", "%v", err))
	}
	if err := levels.CheckSelector("upsample_level", c.Levels.UpsampleLevel, true); err != nil {
		add(Errorf("levels.upsample_level", "%v", err))
	}
	if err := levels.CheckSelector("typical_level", c.Levels.TypicalLevel, true); err != nil {
		add(Errorf("levels.typical_level", "%v", err))
	}
	if c.Levels.TypicalLevel != levels.None && c.Levels.TypicalLevel == c.StartLevel() && len(c.Inputs.Warpsets) == 0 {
		add(Errorf("levels.typical_level", "level %d has no warps to measure; supply warpsets or pick a later level", c.Levels.TypicalLevel))
	}
	if c.Levels.AnisoIters < 0 || (c.Stages.AnisoSmooth && c.Levels.AnisoIters == 0) {
		add(Errorf("levels.aniso_iters", "must be a positive number of iterations, got %d", c.Levels.AnisoIters))
	}

	only := 0
	for _, on := range []bool{c.Stages.PrepOnly, c.Stages.RigidOnly, c.Stages.AffineOnly, c.Stages.NLOnly} {
		if on {
			only++
		}
	}
	if only > 1 {
		add(Errorf("stages", "prep_only, rigid_only, affine_only and nl_only are mutually exclusive"))
	}
	if c.Stages.RigidOnly && !c.Stages.Rigid {
		add(Errorf("stages.rigid_only", "rigid alignment is disabled"))
	}

	if c.Execution.MaxWorkers < 0 {
		add(Errorf("execution.max_workers", "must not be negative, got %d", c.Execution.MaxWorkers))
	}
	switch c.Ledger.Driver {
	case "sqlite", "sqlite3":
	default:
		add(Errorf("ledger.driver", "unknown driver %q, want sqlite or sqlite3", c.Ledger.Driver))
	}

	return errors.Join(errs...)
}
