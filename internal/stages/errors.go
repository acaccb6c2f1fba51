package stages

import (
	"errors"
	"fmt"
)

// ErrNoOutput is wrapped by AlignmentError when a command exited cleanly
// but its expected output dataset is missing.
var ErrNoOutput = errors.New("expected output was not created")

// AlignmentError reports a stage whose commands failed or did not produce
// their output. Command holds the full command text for reproduction.
type AlignmentError struct {
	Stage   string
	Output  string
	Command string
	Err     error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s: could not produce %s using %q: %v", e.Stage, e.Output, e.Command, e.Err)
}

func (e *AlignmentError) Unwrap() error {
	return e.Err
}

// FormatMismatchError reports a NIFTI dataset given to a stage that only
// accepts AFNI HEAD/BRIK datasets.
type FormatMismatchError struct {
	Stage string
	Input string
	Base  string
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("%s requires AFNI datasets, got input %s and base %s; convert NIFTI inputs first", e.Stage, e.Input, e.Base)
}

// ExistsError reports an output that is already on disk when neither
// ok-to-exist nor overwrite is set.
type ExistsError struct {
	Stage  string
	Output string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%s: output %s already exists (use ok_to_exist or overwrite)", e.Stage, e.Output)
}
