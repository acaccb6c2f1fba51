package orchestrator

import (
	"fmt"
	"sort"
	"time"
)

// Summary is the outcome of a run.
type Summary struct {
	// Done lists tasks that completed, including ones done before the run.
	Done []string
	// Failed lists tasks that ran and failed.
	Failed []string
	// Blocked lists tasks skipped because a dependency failed.
	Blocked []string
	// Pending lists tasks never started, after a stop or fail-fast cancel.
	Pending []string
	// Errors maps failed task IDs to their errors.
	Errors map[string]error
	// Duration is the wall time of the run.
	Duration time.Duration
	// Paused is the part of Duration spent paused.
	Paused time.Duration
	// DroppedEvents counts events lost to a full event buffer.
	DroppedEvents uint64
}

// OK reports whether every task completed.
func (s *Summary) OK() bool {
	return len(s.Failed) == 0 && len(s.Blocked) == 0 && len(s.Pending) == 0
}

// String returns a one-line count of the outcome.
func (s *Summary) String() string {
	out := fmt.Sprintf("%d done, %d failed, %d blocked, %d pending in %s",
		len(s.Done), len(s.Failed), len(s.Blocked), len(s.Pending), s.Duration.Round(time.Second))
	if s.Paused >= time.Second {
		out += fmt.Sprintf(" (%s paused)", s.Paused.Round(time.Second))
	}
	return out
}

func (s *Summary) sort() {
	sort.Strings(s.Done)
	sort.Strings(s.Failed)
	sort.Strings(s.Blocked)
	sort.Strings(s.Pending)
}
