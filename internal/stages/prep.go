package stages

import (
	"context"

	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/exec"
)

// ToAFNI copies a NIFTI dataset to an AFNI +orig dataset beside it. AFNI
// datasets are returned unchanged.
func (s *Stager) ToAFNI(ctx context.Context, d dataset.Handle) (Result, error) {
	if !d.IsNIFTI() {
		return Result{Output: d, Skipped: true}, nil
	}
	out := ToAFNIOutput(d)
	return s.Run(ctx, "to_afni", out, exec.Script{
		s.Cmd("3dcopy", d.Input(), out.Prefix()),
	})
}

// AlignCenters copies d to its _ac output and, when centering is enabled,
// shifts the copy's center onto base's.
func (s *Stager) AlignCenters(ctx context.Context, d, base dataset.Handle) (Result, error) {
	out := d.AFNIOutput(SuffixAlignCenters, "")
	script := exec.Script{s.Cmd("3dcopy", d.Input(), out.Prefix())}
	if s.opts.Center {
		script = append(script, exec.Cmd("@Align_Centers", "-base", base.Input(), "-dset", out.Input(), "-no_cp"))
	}
	return s.Run(ctx, "align_centers", out, script)
}

// Automask masks d with a dilated automatic brain mask.
func (s *Stager) Automask(ctx context.Context, d dataset.Handle) (Result, error) {
	out := d.AFNIOutput(SuffixAutomask, "")
	return s.Run(ctx, "automask", out, exec.Script{
		s.Cmd("3dAutomask", "-dilate", "3", "-apply_prefix", out.Prefix(), d.Input()),
	})
}

// SkullStrip removes non-brain tissue from d.
func (s *Stager) SkullStrip(ctx context.Context, d dataset.Handle) (Result, error) {
	if !s.opts.SkullStrip {
		return Result{Output: d, Skipped: true}, nil
	}
	out := d.AFNIOutput(SuffixSkullStrip, "")
	return s.Run(ctx, "skullstrip", out, exec.Script{
		s.Cmd("3dSkullStrip", "-prefix", out.Prefix(), "-input", d.Input(), "-push_to_edge"),
	})
}

// Unifize bias-corrects d, naming the output with suffix.
func (s *Stager) Unifize(ctx context.Context, d dataset.Handle, suffix string) (Result, error) {
	out := d.AFNIOutput(suffix, "")
	return s.Run(ctx, "unifize", out, exec.Script{
		s.Cmd("3dUnifize", "-gm", "-clfrac", "0.4", "-Urad", "30", "-prefix", out.Prefix(), "-input", d.Input()),
	})
}

// CopyDataset copies src to dst.
func (s *Stager) CopyDataset(ctx context.Context, src, dst dataset.Handle) (Result, error) {
	return s.Run(ctx, "copy", dst, exec.Script{
		s.Cmd("3dcopy", src.Input(), dst.Prefix()),
	})
}
