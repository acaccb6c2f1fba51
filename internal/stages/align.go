package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/ShayCichocki/meanbrain/internal/checkpoint"
	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/exec"
	"github.com/ShayCichocki/meanbrain/internal/levels"
)

func autoTLRCArgs(base, input, suffix string, extra ...string) []string {
	args := []string{"-base", base, "-input", input, "-no_ss"}
	args = append(args, extra...)
	return append(args, "-suffix", suffix, "-pad_input", "15", "-OK_maxite", "-maxite", "50")
}

func checkAFNI(stage string, d, base dataset.Handle) error {
	if d.IsNIFTI() || base.IsNIFTI() {
		return &FormatMismatchError{Stage: stage, Input: d.Input(), Base: base.Input()}
	}
	return nil
}

// absBase returns base with an absolute directory, since @auto_tlrc runs
// inside the output directory.
func absBase(base dataset.Handle) (dataset.Handle, error) {
	if filepath.IsAbs(base.Dir) {
		return base, nil
	}
	return base.Abs()
}

// RigidAlign aligns d to base with @auto_tlrc and applies only the rigid
// component of the fit, on base's grid. @auto_tlrc only finds inputs in
// the current directory, so the commands run in the output directory.
func (s *Stager) RigidAlign(ctx context.Context, d, base dataset.Handle) (Result, error) {
	const stage = "rigid_align"
	if err := checkAFNI(stage, d, base); err != nil {
		return Result{}, err
	}
	b, err := absBase(base)
	if err != nil {
		return Result{}, err
	}
	out := RigidOutput(d, base)
	dir := out.Dir

	// The affine result of @auto_tlrc takes the rigid output's name and
	// must go before 3dAllineate writes it.
	rmAffine := fmt.Sprintf("rm -f %s.HEAD %s.BRIK* %s.nii*",
		shellquote.Join(out.Name()), shellquote.Join(out.Name()), shellquote.Join(out.Name()))

	return s.Run(ctx, stage, out, exec.Script{
		s.Cmd("@auto_tlrc", autoTLRCArgs(b.Input(), d.Name(), SuffixRigid, "-rigid_equiv")...).In(dir),
		exec.ShellCmd(rmAffine).In(dir),
		s.Cmd("3dAllineate",
			"-1Dmatrix_apply", out.Base+".Xat.rigid.1D",
			"-master", b.Input(),
			"-prefix", out.Base,
			"-input", d.Name()).In(dir),
	})
}

// AffineAlign aligns d to base with a 12-parameter affine fit, leaving the
// matrix in <out>.Xaff12.1D.
func (s *Stager) AffineAlign(ctx context.Context, d, base dataset.Handle, suffix string) (Result, error) {
	const stage = "affine_align"
	if err := checkAFNI(stage, d, base); err != nil {
		return Result{}, err
	}
	b, err := absBase(base)
	if err != nil {
		return Result{}, err
	}
	out := AffineOutput(d, base, suffix)
	return s.Run(ctx, stage, out, exec.Script{
		s.Cmd("@auto_tlrc", autoTLRCArgs(b.Input(), d.Name(), suffix, "-onewarp")...).In(out.Dir),
	})
}

// NLAlign warps d onto base with the parameters of level l.
//
// The initial warp is chosen in order: the highest _WARPsave checkpoint
// left by an interrupted run of this same alignment (which also moves
// -inilev past the saved level), then iniwarp, then the warp of the
// level's conventional predecessor.
func (s *Stager) NLAlign(ctx context.Context, d, base, iniwarp dataset.Handle, l levels.Level) (Result, error) {
	const stage = "nl_align"
	brain, warp := NLOutputs(d, base, l)

	skip, err := s.Skip(stage, brain)
	if err != nil {
		return Result{Output: brain, Warp: warp}, err
	}

	inilev := l.Inilev
	marker, found, err := s.scanner.Scan(brain)
	if err != nil {
		return Result{Output: brain, Warp: warp}, err
	}
	switch {
	case found:
		iniwarp = marker.Warp
		inilev = marker.ResumeLevel()
		debugLog("[stages] %s: resuming %s at patch level %d", stage, brain.Base, inilev)
	case iniwarp.IsZero() && l.IniWarpLevel != levels.None:
		iniwarp = ConventionalWarp(d, l.IniWarpLevel, brain.Space)
	}

	args := []string{
		"-base", base.Input(),
		"-source", d.Input(),
		"-prefix", brain.Prefix(),
		"-inilev", strconv.Itoa(inilev),
	}
	args = append(args, l.QwarpOpts...)
	args = append(args, "-saveall")
	if !iniwarp.IsZero() {
		args = append(args, "-iniwarp", iniwarp.Input())
	}
	script := exec.Script{s.Cmd("3dQwarp", args...)}

	var cleanup exec.Script
	if !s.opts.KeepTemp {
		cleanup = exec.Script{exec.ShellCmd(
			"rm -f " + shellquote.Join(brain.Prefix()) + "*" + checkpoint.MarkerTag + brain.Space + ".*")}
	}

	res := Result{
		Output:  brain,
		Warp:    warp,
		Command: append(append(exec.Script{}, script...), cleanup...).String(),
	}
	if skip {
		res.Skipped = true
		return res, nil
	}
	if err := s.Exec(ctx, stage, brain, script); err != nil {
		return res, err
	}
	if err := s.Verify(stage, brain, script); err != nil {
		return res, err
	}
	// Checkpoints go only once the final warp is known to exist.
	if err := s.Exec(ctx, stage, brain, cleanup); err != nil {
		return res, err
	}
	return res, nil
}

// ResizeWarp concatenates the resize affine of the level template rsz onto
// warp. 3dNwarpCat applies -warp1 last, so the nonlinear warp goes in
// -warp2.
func (s *Stager) ResizeWarp(ctx context.Context, warp, rsz dataset.Handle) (Result, error) {
	out := ResizeWarpOutput(warp)
	return s.Run(ctx, "resize_warp", out, exec.Script{
		s.Cmd("3dNwarpCat", "-prefix", out.Prefix(), "-warp2", warp.Input(), "-warp1", AffineMatrix(rsz)),
	})
}
