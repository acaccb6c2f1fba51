// Package aggregate combines per-subject results: group mean and standard
// deviation templates, deformation distances, and the choice of a typical
// subject.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/exec"
	"github.com/ShayCichocki/meanbrain/internal/stages"
)

// Aggregator runs group computations through a Stager, so they share its
// ok-to-exist, overwrite and dry-run handling.
type Aggregator struct {
	stager *stages.Stager
}

// New creates an Aggregator.
func New(s *stages.Stager) *Aggregator {
	return &Aggregator{stager: s}
}

// MeanResult names the datasets written by ComputeMean.
type MeanResult struct {
	Mean    dataset.Handle
	Stdev   dataset.Handle
	Command string
	Skipped bool
}

// ComputeMean averages handles into <preprefix>mean<suffix> beside the
// first handle, with the standard deviation in <preprefix>stdev<suffix>.
// The inputs are listed one by one, so earlier means and stdevs written
// to the same directory never join the average.
func (a *Aggregator) ComputeMean(ctx context.Context, handles []dataset.Handle, suffix, preprefix string) (MeanResult, error) {
	if len(handles) == 0 {
		return MeanResult{}, config.Errorf("mean", "no datasets to average for %smean%s", preprefix, suffix)
	}
	mean, stdev := stages.MeanOutputs(handles[0], preprefix, suffix)

	inputs := make([]string, len(handles))
	for i, h := range handles {
		inputs[i] = h.Input()
	}
	s := a.stager
	script := exec.Script{
		s.Cmd("3dMean", append([]string{"-prefix", mean.Prefix()}, inputs...)...),
		s.Cmd("3dMean", append([]string{"-stdev", "-prefix", stdev.Prefix()}, inputs...)...),
	}
	res, err := s.Run(ctx, "mean", mean, script)
	return MeanResult{Mean: mean, Stdev: stdev, Command: res.Command, Skipped: res.Skipped}, err
}

// Distance is the mean deformation distance of one subject's warp.
type Distance struct {
	Subject string
	Brain   dataset.Handle
	Warp    dataset.Handle
	Value   float64
}

// SelectTypical returns the subject with the smallest distance. Ties go to
// the entry listed first.
func SelectTypical(ds []Distance) (Distance, error) {
	if len(ds) == 0 {
		return Distance{}, config.Errorf("typical_level", "no deformation distances to choose a typical subject from")
	}
	sorted := append([]Distance(nil), ds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value < sorted[j].Value
	})
	return sorted[0], nil
}

// brickStatDefault stands in for 3dBrickStat output in dry runs.
const brickStatDefault = "1 0 -1"

// DistanceResult is the outcome of DeformationDistance.
type DistanceResult struct {
	Value   float64
	Command string
}

// DeformationDistance measures how far warp moves brain: the mean, over
// the hole-filled brain mask, of the voxelwise length of the inverse warp.
func (a *Aggregator) DeformationDistance(ctx context.Context, brain, warp dataset.Handle) (DistanceResult, error) {
	s := a.stager
	inv := warp.AFNIOutput("_inv", "")
	filled := brain.AFNIOutput("_filled", "")
	zp := warp.AFNIOutput("_inv_zp", "")
	defdist := brain.AFNIOutput("_defdist", "")

	steps := []struct {
		stage string
		out   dataset.Handle
		cmd   exec.Command
	}{
		{"inverse_warp", inv, s.Cmd("3dNwarpCat", "-warp1", "INV("+warp.Input()+")", "-prefix", inv.Prefix())},
		{"fill_holes", filled, s.Cmd("3dmask_tool", "-fill_holes", "-prefix", filled.Prefix(), "-inputs", brain.Input())},
		{"zeropad", zp, s.Cmd("3dZeropad", "-master", filled.Input(), "-prefix", zp.Prefix(), inv.Input())},
		{"deformation_distance", defdist, s.Cmd("3dTstat", "-mask", filled.Input(), "-l2norm", "-prefix", defdist.Prefix(), zp.Input())},
	}

	var text []string
	for _, st := range steps {
		res, err := s.Run(ctx, st.stage, st.out, exec.Script{st.cmd})
		text = append(text, res.Command)
		if err != nil {
			return DistanceResult{Command: strings.Join(text, "; ")}, err
		}
	}

	probe := exec.Cmd("3dBrickStat", "-mask", filled.Input(), "-mean", defdist.Input())
	text = append(text, probe.String())
	res := DistanceResult{Command: strings.Join(text, "; ")}

	out, err := s.Probe(ctx, probe, brickStatDefault)
	if err != nil {
		return res, &stages.AlignmentError{Stage: "deformation_distance", Output: defdist.Input(), Command: res.Command, Err: err}
	}
	fields := strings.Fields(out)
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return res, fmt.Errorf("parse deformation distance of %s: %w", brain.Base, err)
	}
	res.Value = v
	return res, nil
}

// CopyTypical copies the typical subject's brain into outDir as
// typical_subject_nl.
func (a *Aggregator) CopyTypical(ctx context.Context, winner Distance, outDir string) (stages.Result, error) {
	dst := stages.TypicalOutput(outDir, winner.Brain.Space)
	res, err := a.stager.CopyDataset(ctx, winner.Brain, dst)
	if err != nil {
		return res, err
	}
	log.Printf("[aggregate] typical subject is %s with distance %g", winner.Subject, winner.Value)
	return res, nil
}
