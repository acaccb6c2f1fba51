package stages

import (
	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/levels"
)

// Output name suffixes.
const (
	SuffixAlignCenters = "_ac"
	SuffixAutomask     = "_am"
	SuffixSkullStrip   = "_ns"
	SuffixUnifize      = "_un"
	SuffixRigid        = "_4rigid"
	SuffixAffine       = "_affx"
	SuffixResize       = "_rsz"
	SuffixAniso        = "_as"
	SuffixUpsample     = "_us"
	SuffixWarp         = "_WARP"
)

// TypicalBase is the base name of the typical subject copy in the output
// directory.
const TypicalBase = "typical_subject_nl"

// ToAFNIOutput names the AFNI copy of a NIFTI dataset.
func ToAFNIOutput(d dataset.Handle) dataset.Handle {
	return d.AFNIOutput("", dataset.SpaceOrig)
}

// AlignedSpace is the space of datasets aligned to base.
func AlignedSpace(base dataset.Handle) string {
	if base.Space == "" {
		return dataset.SpaceOrig
	}
	return base.Space
}

// RigidOutput names the rigid alignment of d to base.
func RigidOutput(d, base dataset.Handle) dataset.Handle {
	return d.AFNIOutput(SuffixRigid, AlignedSpace(base))
}

// AffineOutput names the affine alignment of d to base.
func AffineOutput(d, base dataset.Handle, suffix string) dataset.Handle {
	return d.AFNIOutput(suffix, AlignedSpace(base))
}

// AffineMatrix is the 12-parameter matrix @auto_tlrc leaves beside an
// affine output.
func AffineMatrix(out dataset.Handle) string {
	return out.Prefix() + ".Xaff12.1D"
}

// NLOutputs names the brain and warp of the nonlinear alignment of d to
// base at level l.
func NLOutputs(d, base dataset.Handle, l levels.Level) (brain, warp dataset.Handle) {
	space := base.Space
	if space == "" {
		space = d.Space
	}
	brain = d.AFNIOutput(l.Suffix, space)
	return brain, brain.WithSuffix(SuffixWarp)
}

// ConventionalWarp is the warp of d at level k named by convention, used
// to seed a level when no warp was supplied.
func ConventionalWarp(d dataset.Handle, k int, space string) dataset.Handle {
	l, _ := levels.Get(k)
	return d.AFNIOutput(l.WarpSuffix(), space)
}

// ResizeWarpOutput names the resized copy of warp.
func ResizeWarpOutput(warp dataset.Handle) dataset.Handle {
	return warp.AFNIOutput(SuffixResize, "")
}

// MeanOutputs names the mean and standard deviation datasets computed from
// a group whose first member is first.
func MeanOutputs(first dataset.Handle, preprefix, suffix string) (mean, stdev dataset.Handle) {
	space := first.Space
	if space == "" {
		space = dataset.SpaceOrig
	}
	mean = dataset.New(first.Dir, preprefix+"mean"+suffix, space)
	stdev = dataset.New(first.Dir, preprefix+"stdev"+suffix, space)
	return mean, stdev
}

// TypicalOutput names the typical subject copy in outDir.
func TypicalOutput(outDir, space string) dataset.Handle {
	return dataset.New(outDir, TypicalBase, space)
}
