package stages

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/exec"
)

// deltaDefault stands in for 3dAttribute output in dry runs.
const deltaDefault = "1 0 -1"

// MinDim returns the smallest voxel dimension of d. A zero dimension is
// reported as 1.
func (s *Stager) MinDim(ctx context.Context, d dataset.Handle) (float64, error) {
	text, err := s.Probe(ctx, exec.Cmd("3dAttribute", "DELTA", d.Input()), deltaDefault)
	if err != nil {
		return 0, err
	}
	return minAbs(text)
}

func minAbs(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no voxel dimensions in %q", text)
	}
	lo := math.Inf(1)
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, fmt.Errorf("voxel dimension %q: %w", f, err)
		}
		lo = math.Min(lo, math.Abs(v))
	}
	if lo == 0 {
		lo = 1
	}
	return lo, nil
}

// Upsample resamples d to half its smallest voxel size in every direction.
func (s *Stager) Upsample(ctx context.Context, d dataset.Handle, suffix string) (Result, error) {
	out := d.AFNIOutput(suffix, "")
	skip, err := s.Skip("upsample", out)
	if err != nil || skip {
		return Result{Output: out, Skipped: skip}, err
	}

	m, err := s.MinDim(ctx, d)
	if err != nil {
		return Result{Output: out}, &AlignmentError{Stage: "upsample", Output: out.Input(), Err: err}
	}
	dxyz := strconv.FormatFloat(m/2, 'g', -1, 64)
	return s.Run(ctx, "upsample", out, exec.Script{
		s.Cmd("3dresample", "-dxyz", dxyz, dxyz, dxyz, "-prefix", out.Prefix(), "-input", d.Input()),
	})
}

// Resample puts d on master's grid.
func (s *Stager) Resample(ctx context.Context, d, master dataset.Handle, suffix string) (Result, error) {
	out := d.AFNIOutput(suffix, "")
	return s.Run(ctx, "resample", out, exec.Script{
		s.Cmd("3dresample", "-master", master.Input(), "-prefix", out.Prefix(), "-input", d.Input()),
	})
}

// AnisoSmooth smooths d with edge-preserving anisotropic diffusion, masked
// by d itself.
func (s *Stager) AnisoSmooth(ctx context.Context, d dataset.Handle, iters int) (Result, error) {
	if iters < 1 {
		return Result{Output: d}, fmt.Errorf("anisotropic smoothing needs at least one iteration, got %d", iters)
	}
	out := d.AFNIOutput(SuffixAniso, "")
	return s.Run(ctx, "aniso_smooth", out, exec.Script{
		s.Cmd("3danisosmooth", "-3D", "-iters", strconv.Itoa(iters), "-noneg",
			"-prefix", out.Prefix(), "-mask", d.Input(), d.Input()),
	})
}
