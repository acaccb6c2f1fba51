package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is a stage of the rigid, affine, nonlinear refinement sequence.
type Phase string

const (
	// PhasePrep covers center alignment, skull stripping and unifizing.
	PhasePrep Phase = "prep"
	// PhaseRigid is the rigid alignment and rigid mean.
	PhaseRigid Phase = "rigid"
	// PhaseAffine is the affine alignment and affine mean.
	PhaseAffine Phase = "affine"
)

// NumNonlinearLevels is the number of nonlinear refinement levels.
const NumNonlinearLevels = 5

// NonlinearPhase returns the phase for nonlinear level k.
func NonlinearPhase(k int) Phase {
	return Phase("nl" + strconv.Itoa(k))
}

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	switch p {
	case PhasePrep, PhaseRigid, PhaseAffine:
		return true
	}
	_, ok := p.Level()
	return ok
}

// Level returns the nonlinear level index of the phase.
func (p Phase) Level() (int, bool) {
	s, ok := strings.CutPrefix(string(p), "nl")
	if !ok {
		return 0, false
	}
	k, err := strconv.Atoi(s)
	if err != nil || k < 0 || k >= NumNonlinearLevels {
		return 0, false
	}
	return k, true
}

// Order returns the position of the phase in the pipeline sequence:
// prep=-3, rigid=-2, affine=-1, nonlinear k=k.
func (p Phase) Order() int {
	switch p {
	case PhasePrep:
		return -3
	case PhaseRigid:
		return -2
	case PhaseAffine:
		return -1
	}
	if k, ok := p.Level(); ok {
		return k
	}
	return 1 << 10
}

// ParsePhase parses a phase name.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid phase %q: must be prep, rigid, affine or nl0-nl4", s)
	}
	return p, nil
}
