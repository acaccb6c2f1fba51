package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// RunStore handles run-related persistence operations.
type RunStore interface {
	CreateRun(r *models.Run) error
	GetRun(id string) (*models.Run, error)
	ListRuns(status models.RunStatus) ([]*models.Run, error)
	LatestRun() (*models.Run, error)
	UpdateRunStatus(id string, status models.RunStatus) error
	PurgeOldRuns(maxAge time.Duration) (int64, error)
}

// TaskStore handles task-related persistence operations.
type TaskStore interface {
	UpsertTask(runID string, t *models.Task) error
	ListTasks(runID string, status models.TaskStatus) ([]*models.Task, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Ledger composes the run ledger's stores.
type Ledger interface {
	io.Closer
	Migrator
	RunStore
	TaskStore
}

var (
	_ Ledger    = (*DB)(nil)
	_ RunStore  = (*DB)(nil)
	_ TaskStore = (*DB)(nil)
)
