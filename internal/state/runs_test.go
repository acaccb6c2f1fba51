package state

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

func createRun(t *testing.T, db *DB, outDir string) *models.Run {
	t.Helper()
	r := &models.Run{OutDir: outDir, Config: "max_workers: 2\n"}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return r
}

func TestCreateRun_AssignsID(t *testing.T) {
	db := setupTestDB(t)
	r := createRun(t, db, "/out")

	if r.ID == "" {
		t.Fatal("expected generated run ID")
	}
	got, err := db.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.OutDir != "/out" || got.Status != models.RunStatusRunning {
		t.Errorf("GetRun = %+v", got)
	}
	if got.Config != r.Config {
		t.Errorf("Config = %q, want %q", got.Config, r.Config)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetRun("nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun error = %v, want ErrRunNotFound", err)
	}
	if err := db.UpdateRunStatus("nope", models.RunStatusFailed); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("UpdateRunStatus error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		r := &models.Run{ID: id, OutDir: "/out", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.CreateRun(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpdateRunStatus("b", models.RunStatusCompleted); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListRuns("")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[2] != "a" {
		t.Errorf("ListRuns order = %v, want [c b a]", ids)
	}

	running, err := db.ListRuns(models.RunStatusRunning)
	if err != nil {
		t.Fatal(err)
	}
	if len(running) != 2 {
		t.Errorf("running runs = %d, want 2", len(running))
	}

	latest, err := db.LatestRun()
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "c" {
		t.Errorf("LatestRun = %s, want c", latest.ID)
	}
}

func TestLatestRun_Empty(t *testing.T) {
	db := setupTestDB(t)
	r, err := db.LatestRun()
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Errorf("LatestRun = %+v, want nil", r)
	}
}

func TestUpsertTask(t *testing.T) {
	db := setupTestDB(t)
	r := createRun(t, db, "/out")

	task := &models.Task{
		ID:      "nl0/sub01/align",
		Kind:    models.KindNLAlign,
		Phase:   models.NonlinearPhase(0),
		Subject: "sub01",
		Level:   0,
		Status:  models.TaskStatusInProgress,
	}
	now := time.Now()
	task.StartedAt = &now
	if err := db.UpsertTask(r.ID, task); err != nil {
		t.Fatalf("UpsertTask failed: %v", err)
	}

	task.Status = models.TaskStatusDone
	task.Output = "/out/input_data/sub01_nl0+tlrc"
	task.Command = "auto_warp.py -base base+tlrc -input sub01+tlrc"
	done := now.Add(time.Minute)
	task.CompletedAt = &done
	if err := db.UpsertTask(r.ID, task); err != nil {
		t.Fatalf("second UpsertTask failed: %v", err)
	}

	tasks, err := db.ListTasks(r.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("ListTasks = %d tasks, want 1", len(tasks))
	}
	got := tasks[0]
	if got.Status != models.TaskStatusDone || got.Output != task.Output || got.Command != task.Command {
		t.Errorf("task = %+v", got)
	}
	if got.Phase != models.NonlinearPhase(0) || got.Kind != models.KindNLAlign {
		t.Errorf("phase/kind = %s/%s", got.Phase, got.Kind)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("expected timestamps")
	}
	if !got.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, done)
	}

	pending, err := db.ListTasks(r.ID, models.TaskStatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending tasks = %d, want 0", len(pending))
	}
}

func TestUpsertTask_UnknownRun(t *testing.T) {
	db := setupTestDB(t)
	err := db.UpsertTask("missing", &models.Task{ID: "x", Kind: models.KindMean, Phase: models.PhaseRigid})
	if err == nil {
		t.Error("expected foreign key error for unknown run")
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	old := createRun(t, db, "/old")
	live := createRun(t, db, "/live")
	fresh := createRun(t, db, "/fresh")

	task := &models.Task{ID: "rigid/mean", Kind: models.KindMean, Phase: models.PhaseRigid, Status: models.TaskStatusDone}
	if err := db.UpsertTask(old.ID, task); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateRunStatus(old.ID, models.RunStatusCompleted); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateRunStatus(fresh.ID, models.RunStatusFailed); err != nil {
		t.Fatal(err)
	}
	stale := formatTime(time.Now().Add(-48 * time.Hour))
	for _, id := range []string{old.ID, live.ID} {
		if _, err := db.Exec("UPDATE runs SET updated_at = ? WHERE id = ?", stale, id); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}
	if _, err := db.GetRun(old.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("old run still present: %v", err)
	}
	for _, id := range []string{live.ID, fresh.ID} {
		if _, err := db.GetRun(id); err != nil {
			t.Errorf("run %s purged: %v", id, err)
		}
	}
	tasks, err := db.ListTasks(old.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks of purged run = %d, want 0", len(tasks))
	}
}
