package state

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// InterruptedRun describes a run left in the running state, which means
// the process driving it died or was killed.
type InterruptedRun struct {
	RunID        string
	OutDir       string
	StartedAt    time.Time
	LastActivity time.Time
	Done         int
	InProgress   int
}

// ResumeState is what a resumed run may skip.
type ResumeState struct {
	Run *models.Run
	// Done are the finished tasks whose outputs are still on disk.
	Done []*models.Task
	// Reset counts tasks that were in progress and are pending again.
	Reset int
	// Missing counts done tasks whose output has disappeared.
	Missing int
}

// DoneIDs returns the IDs of Done.
func (s *ResumeState) DoneIDs() []string {
	ids := make([]string, len(s.Done))
	for i, t := range s.Done {
		ids[i] = t.ID
	}
	return ids
}

// RecoveryManager handles detection and recovery of interrupted runs.
type RecoveryManager struct {
	db *DB
	fs afero.Fs
}

// NewRecoveryManager creates a RecoveryManager checking task outputs on fs.
func NewRecoveryManager(db *DB, fs afero.Fs) *RecoveryManager {
	return &RecoveryManager{db: db, fs: fs}
}

// CheckForInterrupted returns every run still marked running.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedRun, error) {
	runs, err := rm.db.ListRuns(models.RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var out []InterruptedRun
	for _, r := range runs {
		tasks, err := rm.db.ListTasks(r.ID, "")
		if err != nil {
			return nil, fmt.Errorf("list tasks of %s: %w", r.ID, err)
		}
		ir := InterruptedRun{
			RunID:        r.ID,
			OutDir:       r.OutDir,
			StartedAt:    r.StartedAt,
			LastActivity: r.UpdatedAt,
		}
		for _, t := range tasks {
			switch t.Status {
			case models.TaskStatusDone:
				ir.Done++
			case models.TaskStatusInProgress:
				ir.InProgress++
			}
		}
		out = append(out, ir)
	}
	return out, nil
}

// Resume prepares runID for another execution. Tasks caught in progress go
// back to pending, and the run is marked running again. Done tasks count
// only while their output dataset still exists; a task without an output
// (a distance computation) carries its recorded value instead.
func (rm *RecoveryManager) Resume(runID string) (*ResumeState, error) {
	run, err := rm.db.GetRun(runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	tasks, err := rm.db.ListTasks(runID, "")
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	st := &ResumeState{Run: run}
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusInProgress:
			t.Status = models.TaskStatusPending
			t.StartedAt = nil
			if err := rm.db.UpsertTask(runID, t); err != nil {
				return nil, fmt.Errorf("reset task %s: %w", t.ID, err)
			}
			st.Reset++
		case models.TaskStatusDone:
			if !rm.outputExists(t) {
				log.Printf("[state] output of %s is gone, it will run again: %s", t.ID, t.Output)
				st.Missing++
				continue
			}
			st.Done = append(st.Done, t)
		}
	}

	if err := rm.db.UpdateRunStatus(runID, models.RunStatusRunning); err != nil {
		return nil, err
	}
	run.Status = models.RunStatusRunning

	log.Printf("[state] run %s resumed: %d done, %d reset, %d missing", runID, len(st.Done), st.Reset, st.Missing)
	return st, nil
}

func (rm *RecoveryManager) outputExists(t *models.Task) bool {
	if t.Output == "" {
		return true
	}
	h, err := dataset.Parse(t.Output)
	if err != nil {
		_, err := rm.fs.Stat(t.Output)
		return err == nil
	}
	return h.Exists(rm.fs)
}

// Abandon marks an interrupted run abandoned so it no longer shows up as
// interrupted. Its outputs are left alone.
func (rm *RecoveryManager) Abandon(runID string) error {
	if err := rm.db.UpdateRunStatus(runID, models.RunStatusAbandoned); err != nil {
		return err
	}
	log.Printf("[state] run %s abandoned", runID)
	return nil
}
