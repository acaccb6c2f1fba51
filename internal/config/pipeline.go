package config

// Pipeline is the immutable subset of the configuration consumed by the
// graph builder and the stage functions. It is built once per run.
type Pipeline struct {
	OutDir string

	Center          bool
	SkullStrip      bool
	Automask        bool
	Unifize         bool
	Rigid           bool
	Affine          bool
	Nonlinear       bool
	AnisoSmooth     bool
	UnifizeTemplate bool

	PrepOnly   bool
	RigidOnly  bool
	AffineOnly bool
	NLOnly     bool

	NLLevelOnly   int
	UpsampleLevel int
	TypicalLevel  int
	AnisoIters    int

	OKToExist bool
	Overwrite bool
	KeepTemp  bool
	DryRun    bool
}

// Pipeline returns the pipeline view of c.
func (c *Config) Pipeline() Pipeline {
	return Pipeline{
		OutDir:          c.OutDir,
		Center:          c.Stages.Center,
		SkullStrip:      c.Stages.SkullStrip,
		Automask:        c.Stages.Automask,
		Unifize:         c.Stages.Unifize,
		Rigid:           c.Stages.Rigid,
		Affine:          c.Stages.Affine,
		Nonlinear:       c.Stages.Nonlinear,
		AnisoSmooth:     c.Stages.AnisoSmooth,
		UnifizeTemplate: c.Stages.UnifizeTemplate,
		PrepOnly:        c.Stages.PrepOnly,
		RigidOnly:       c.Stages.RigidOnly,
		AffineOnly:      c.Stages.AffineOnly,
		NLOnly:          c.Stages.NLOnly,
		NLLevelOnly:     c.Levels.NLLevelOnly,
		UpsampleLevel:   c.Levels.UpsampleLevel,
		TypicalLevel:    c.Levels.TypicalLevel,
		AnisoIters:      c.Levels.AnisoIters,
		OKToExist:       c.Execution.OKToExist,
		Overwrite:       c.Execution.Overwrite,
		KeepTemp:        c.Execution.KeepRmFiles,
		DryRun:          c.Execution.DryRun,
	}
}

// StartLevel is the first nonlinear level the pipeline runs.
func (p Pipeline) StartLevel() int {
	if p.NLLevelOnly < 0 {
		return 0
	}
	return p.NLLevelOnly
}
