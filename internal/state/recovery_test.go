package state

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

var _ orchestrator.RunRecorder = (*LedgerRecorder)(nil)

func recordTasks(t *testing.T, rec *LedgerRecorder, tasks ...*models.Task) {
	t.Helper()
	if err := rec.RecordAll(tasks); err != nil {
		t.Fatalf("RecordAll failed: %v", err)
	}
}

func TestCheckForInterrupted(t *testing.T) {
	db := setupTestDB(t)
	live := createRun(t, db, "/out")
	done := createRun(t, db, "/other")
	if err := db.UpdateRunStatus(done.ID, models.RunStatusCompleted); err != nil {
		t.Fatal(err)
	}
	recordTasks(t, NewLedgerRecorder(db, live.ID),
		&models.Task{ID: "a", Kind: models.KindToAFNI, Phase: models.PhasePrep, Status: models.TaskStatusDone},
		&models.Task{ID: "b", Kind: models.KindUnifize, Phase: models.PhasePrep, Status: models.TaskStatusInProgress},
		&models.Task{ID: "c", Kind: models.KindMean, Phase: models.PhaseRigid, Status: models.TaskStatusPending},
	)

	rm := NewRecoveryManager(db, afero.NewMemMapFs())
	runs, err := rm.CheckForInterrupted()
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("interrupted runs = %d, want 1", len(runs))
	}
	ir := runs[0]
	if ir.RunID != live.ID || ir.OutDir != "/out" {
		t.Errorf("interrupted = %+v", ir)
	}
	if ir.Done != 1 || ir.InProgress != 1 {
		t.Errorf("done/in progress = %d/%d, want 1/1", ir.Done, ir.InProgress)
	}
}

func TestResume(t *testing.T) {
	db := setupTestDB(t)
	fs := afero.NewMemMapFs()
	run := createRun(t, db, "/out")
	if err := db.UpdateRunStatus(run.ID, models.RunStatusFailed); err != nil {
		t.Fatal(err)
	}
	afero.WriteFile(fs, "/out/input_data/sub01_rigid+tlrc.HEAD", []byte("x"), 0644)

	recordTasks(t, NewLedgerRecorder(db, run.ID),
		&models.Task{ID: "rigid/sub01/align", Kind: models.KindRigidAlign, Phase: models.PhaseRigid,
			Status: models.TaskStatusDone, Output: "/out/input_data/sub01_rigid+tlrc"},
		&models.Task{ID: "rigid/sub02/align", Kind: models.KindRigidAlign, Phase: models.PhaseRigid,
			Status: models.TaskStatusDone, Output: "/out/input_data/sub02_rigid+tlrc"},
		&models.Task{ID: "nl0/sub01/distance", Kind: models.KindDistance, Phase: models.NonlinearPhase(0),
			Status: models.TaskStatusDone, Value: 0.7},
		&models.Task{ID: "rigid/mean", Kind: models.KindMean, Phase: models.PhaseRigid,
			Status: models.TaskStatusInProgress},
	)

	rm := NewRecoveryManager(db, fs)
	st, err := rm.Resume(run.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	ids := st.DoneIDs()
	if len(ids) != 2 || ids[0] != "nl0/sub01/distance" || ids[1] != "rigid/sub01/align" {
		t.Errorf("DoneIDs = %v", ids)
	}
	if st.Reset != 1 || st.Missing != 1 {
		t.Errorf("reset/missing = %d/%d, want 1/1", st.Reset, st.Missing)
	}
	if st.Done[0].Value != 0.7 {
		t.Errorf("distance value = %v, want 0.7", st.Done[0].Value)
	}

	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunStatusRunning {
		t.Errorf("run status = %s, want running", got.Status)
	}
	pending, err := db.ListTasks(run.ID, models.TaskStatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "rigid/mean" {
		t.Errorf("pending after resume = %v", pending)
	}
}

func TestResume_UnknownRun(t *testing.T) {
	rm := NewRecoveryManager(setupTestDB(t), afero.NewMemMapFs())
	if _, err := rm.Resume("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Resume error = %v, want ErrRunNotFound", err)
	}
}

func TestAbandon(t *testing.T) {
	db := setupTestDB(t)
	run := createRun(t, db, "/out")
	rm := NewRecoveryManager(db, afero.NewMemMapFs())

	if err := rm.Abandon(run.ID); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}
	runs, err := rm.CheckForInterrupted()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("interrupted runs after abandon = %d, want 0", len(runs))
	}
}

func TestLedgerRecorder_Finish(t *testing.T) {
	db := setupTestDB(t)
	run := createRun(t, db, "/out")
	rec := NewLedgerRecorder(db, run.ID)
	if rec.RunID() != run.ID {
		t.Errorf("RunID = %s", rec.RunID())
	}

	task := &models.Task{ID: "affine/mean", Kind: models.KindMean, Phase: models.PhaseAffine, Status: models.TaskStatusFailed, Error: "3dMean failed"}
	if err := rec.RecordTask(task); err != nil {
		t.Fatalf("RecordTask failed: %v", err)
	}
	if err := rec.Finish(models.RunStatusFailed); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	failed, err := db.ListTasks(run.ID, models.TaskStatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Error != "3dMean failed" {
		t.Errorf("failed tasks = %+v", failed)
	}
	got, _ := db.GetRun(run.ID)
	if got.Status != models.RunStatusFailed {
		t.Errorf("run status = %s, want failed", got.Status)
	}
}
