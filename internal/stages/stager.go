// Package stages wraps each AFNI processing step as a function from input
// datasets to output datasets. Every stage derives its output name, skips
// or refuses existing outputs, runs its commands through an
// exec.CommandRunner and checks that the output appeared.
package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/checkpoint"
	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/exec"
)

var debugLog = func(format string, args ...interface{}) {}

// SetDebugLog sets the debug logging function for the package.
func SetDebugLog(fn func(format string, args ...interface{})) {
	if fn == nil {
		fn = func(string, ...interface{}) {}
	}
	debugLog = fn
}

// Options controls how stages treat existing outputs and which optional
// steps run.
type Options struct {
	// OKToExist returns existing outputs without running anything.
	OKToExist bool
	// Rewrite reruns stages over existing outputs, passing -overwrite.
	Rewrite bool
	// DryRun skips output verification. The runner is expected to record
	// instead of execute.
	DryRun bool
	// KeepTemp keeps intermediate files such as _WARPsave checkpoints.
	KeepTemp bool

	Center      bool
	SkullStrip  bool
	Unifize     bool
	AnisoSmooth bool
	AnisoIters  int
}

// OptionsFrom derives stage options from the pipeline configuration.
func OptionsFrom(p config.Pipeline) Options {
	return Options{
		OKToExist:   p.OKToExist,
		Rewrite:     p.Overwrite,
		DryRun:      p.DryRun,
		KeepTemp:    p.KeepTemp,
		Center:      p.Center,
		SkullStrip:  p.SkullStrip,
		Unifize:     p.Unifize,
		AnisoSmooth: p.AnisoSmooth,
		AnisoIters:  p.AnisoIters,
	}
}

// Result is the outcome of one stage.
type Result struct {
	// Output is the primary dataset produced.
	Output dataset.Handle
	// Warp is the warp produced by nonlinear alignment, zero otherwise.
	Warp dataset.Handle
	// Command is the command text run, or that would have run.
	Command string
	// Skipped is set when nothing ran because the output already existed
	// or the stage is disabled.
	Skipped bool
}

// Stager runs stages.
type Stager struct {
	runner  exec.CommandRunner
	fs      afero.Fs
	scanner *checkpoint.Scanner
	opts    Options
	probes  *cache.Cache
}

// New creates a Stager. fs is used for existence checks and checkpoint
// scans and must view the same files the runner's commands write.
func New(runner exec.CommandRunner, fs afero.Fs, opts Options) *Stager {
	return &Stager{
		runner:  runner,
		fs:      fs,
		scanner: checkpoint.NewScanner(fs),
		opts:    opts,
		probes:  cache.New(cache.NoExpiration, 0),
	}
}

// Options returns the stager's options.
func (s *Stager) Options() Options {
	return s.opts
}

// Fs returns the filesystem the stager checks outputs on.
func (s *Stager) Fs() afero.Fs {
	return s.fs
}

// Overwrite returns the -overwrite flag when rewriting, nil otherwise.
func (s *Stager) Overwrite() []string {
	if s.opts.Rewrite {
		return []string{"-overwrite"}
	}
	return nil
}

// Cmd builds an AFNI command, inserting -overwrite right after the
// program name when rewriting.
func (s *Stager) Cmd(name string, args ...string) exec.Command {
	return exec.Cmd(name, append(s.Overwrite(), args...)...)
}

// Skip reports whether the stage producing out can be skipped. It returns
// an *ExistsError when out exists and may not be replaced.
func (s *Stager) Skip(stage string, out dataset.Handle) (bool, error) {
	if !out.Exists(s.fs) {
		return false, nil
	}
	if s.opts.OKToExist {
		debugLog("[stages] %s: %s exists, skipping", stage, out.Input())
		return true, nil
	}
	if s.opts.Rewrite {
		return false, nil
	}
	return false, &ExistsError{Stage: stage, Output: out.Input()}
}

// Run is the common path of every stage: skip existing outputs, run the
// script in order, then verify out exists.
func (s *Stager) Run(ctx context.Context, stage string, out dataset.Handle, script exec.Script) (Result, error) {
	res := Result{Output: out, Command: script.String()}

	skip, err := s.Skip(stage, out)
	if err != nil {
		return res, err
	}
	if skip {
		res.Skipped = true
		return res, nil
	}

	if err := s.Exec(ctx, stage, out, script); err != nil {
		return res, err
	}
	if err := s.Verify(stage, out, script); err != nil {
		return res, err
	}
	return res, nil
}

// Exec runs each command of script in order, stopping at the first
// failure.
func (s *Stager) Exec(ctx context.Context, stage string, out dataset.Handle, script exec.Script) error {
	for _, c := range script {
		debugLog("[stages] %s: %s", stage, c.String())
		output, err := c.Run(ctx, s.runner)
		if err != nil {
			return &AlignmentError{
				Stage:   stage,
				Output:  out.Input(),
				Command: script.String(),
				Err:     fmt.Errorf("%s: %w%s", c.Line(), err, tail(output)),
			}
		}
	}
	return nil
}

// Verify checks that out exists after script ran. Dry runs always pass.
func (s *Stager) Verify(stage string, out dataset.Handle, script exec.Script) error {
	if s.opts.DryRun || out.Exists(s.fs) {
		return nil
	}
	return &AlignmentError{
		Stage:   stage,
		Output:  out.Input(),
		Command: script.String(),
		Err:     ErrNoOutput,
	}
}

// Probe runs a command whose standard output is the result, such as
// 3dAttribute. Results are memoized per command text. In a dry run, empty
// output is replaced by defaultText.
func (s *Stager) Probe(ctx context.Context, c exec.Command, defaultText string) (string, error) {
	key := c.String()
	if v, ok := s.probes.Get(key); ok {
		return v.(string), nil
	}

	output, err := c.Run(ctx, s.runner)
	if err != nil {
		return "", fmt.Errorf("%s: %w%s", c.Line(), err, tail(output))
	}
	text := strings.TrimSpace(string(output))
	if text == "" {
		if !s.opts.DryRun {
			return "", fmt.Errorf("%s: no output", c.Line())
		}
		text = defaultText
	}
	s.probes.Set(key, text, cache.NoExpiration)
	return text, nil
}

// tail returns the last lines of command output for error messages.
func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return "\n" + strings.Join(lines, "\n")
}
