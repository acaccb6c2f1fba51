package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// ErrRunNotFound is returned when a run ID has no ledger row.
var ErrRunNotFound = errors.New("run not found")

// CreateRun inserts a new running run. An empty ID gets a fresh UUID.
func (db *DB) CreateRun(r *models.Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now()
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = models.RunStatusRunning
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, out_dir, status, config, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.OutDir, string(r.Status), r.Config,
		formatTime(r.StartedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(id string) (*models.Run, error) {
	row := db.QueryRow(`
		SELECT id, out_dir, status, config, started_at, updated_at
		FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs, newest first. An empty status lists all.
func (db *DB) ListRuns(status models.RunStatus) ([]*models.Run, error) {
	query := `SELECT id, out_dir, status, config, started_at, updated_at FROM runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY started_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run, or nil if the ledger
// is empty.
func (db *DB) LatestRun() (*models.Run, error) {
	runs, err := db.ListRuns("")
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// UpdateRunStatus sets a run's status and bumps updated_at.
func (db *DB) UpdateRunStatus(id string, status models.RunStatus) error {
	res, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// PurgeOldRuns deletes finished runs (and their tasks) whose last update
// is older than maxAge. Running runs are never purged.
func (db *DB) PurgeOldRuns(maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))
	var n int64
	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM tasks WHERE run_id IN
			(SELECT id FROM runs WHERE status != ? AND updated_at < ?)`,
			string(models.RunStatusRunning), cutoff)
		if err != nil {
			return fmt.Errorf("purge tasks: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM runs WHERE status != ? AND updated_at < ?`,
			string(models.RunStatusRunning), cutoff)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

const upsertTaskSQL = `
	INSERT INTO tasks (run_id, id, kind, phase, subject, level, status,
		output, command, value, error, started_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, id) DO UPDATE SET
		status = excluded.status,
		output = excluded.output,
		command = excluded.command,
		value = excluded.value,
		error = excluded.error,
		started_at = excluded.started_at,
		completed_at = excluded.completed_at`

func taskArgs(runID string, t *models.Task) []any {
	return []any{
		runID, t.ID, string(t.Kind), string(t.Phase), t.Subject, t.Level,
		string(t.Status), t.Output, t.Command, t.Value, t.Error,
		formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt),
	}
}

// UpsertTask writes the task's current state under runID.
func (db *DB) UpsertTask(runID string, t *models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(upsertTaskSQL, taskArgs(runID, t)...); err != nil {
			return fmt.Errorf("upsert task %s: %w", t.ID, err)
		}
		if _, err := tx.Exec(`UPDATE runs SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), runID); err != nil {
			return fmt.Errorf("touch run: %w", err)
		}
		return nil
	})
}

// ListTasks returns the recorded tasks of a run. An empty status lists all.
func (db *DB) ListTasks(runID string, status models.TaskStatus) ([]*models.Task, error) {
	query := `
		SELECT id, kind, phase, subject, level, status, output, command,
			value, error, started_at, completed_at
		FROM tasks WHERE run_id = ?`
	args := []any{runID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var (
			t                            models.Task
			kind, phase, st              string
			subject, output, cmd, errMsg sql.NullString
			started, completed           sql.NullString
		)
		if err := rows.Scan(&t.ID, &kind, &phase, &subject, &t.Level, &st,
			&output, &cmd, &t.Value, &errMsg, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Kind = models.TaskKind(kind)
		t.Phase = models.Phase(phase)
		t.Status = models.TaskStatus(st)
		t.Subject = subject.String
		t.Output = output.String
		t.Command = cmd.String
		t.Error = errMsg.String
		t.StartedAt = parseNullableTime(started)
		t.CompletedAt = parseNullableTime(completed)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		r                models.Run
		status           string
		cfg              sql.NullString
		started, updated string
	)
	if err := s.Scan(&r.ID, &r.OutDir, &status, &cfg, &started, &updated); err != nil {
		return nil, err
	}
	r.Status = models.RunStatus(status)
	r.Config = cfg.String

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &r, nil
}
