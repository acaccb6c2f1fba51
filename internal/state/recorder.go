package state

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// LedgerRecorder writes task transitions of one run to the ledger.
type LedgerRecorder struct {
	db    *DB
	runID string
}

// NewLedgerRecorder returns a recorder for runID.
func NewLedgerRecorder(db *DB, runID string) *LedgerRecorder {
	return &LedgerRecorder{db: db, runID: runID}
}

// RunID returns the run being recorded.
func (r *LedgerRecorder) RunID() string {
	return r.runID
}

// RecordTask stores the task's current state.
func (r *LedgerRecorder) RecordTask(t *models.Task) error {
	return r.db.UpsertTask(r.runID, t)
}

// RecordAll stores every task, used once before a run starts so the
// ledger knows the full plan.
func (r *LedgerRecorder) RecordAll(tasks []*models.Task) error {
	return r.db.Transaction(func(tx *sql.Tx) error {
		for _, t := range tasks {
			if _, err := tx.Exec(upsertTaskSQL, taskArgs(r.runID, t)...); err != nil {
				return fmt.Errorf("record task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// Finish sets the run's final status.
func (r *LedgerRecorder) Finish(status models.RunStatus) error {
	return r.db.UpdateRunStatus(r.runID, status)
}
