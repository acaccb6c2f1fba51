package exec

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestThreadsPerTask(t *testing.T) {
	cpus := runtime.NumCPU()
	tests := []struct {
		workers int
		want    int
	}{
		{0, cpus},
		{1, cpus},
		{cpus, 1},
		{cpus * 4, 1},
	}
	for _, tt := range tests {
		if got := ThreadsPerTask(tt.workers); got != tt.want {
			t.Errorf("ThreadsPerTask(%d) = %d, want %d", tt.workers, got, tt.want)
		}
	}
}

func TestExecRunner_SetsThreads(t *testing.T) {
	r := NewRunner()
	r.Threads = 3
	r.Env = []string{"MEANBRAIN_TEST=x"}

	out, err := r.RunShell(context.Background(), "", `echo "$OMP_NUM_THREADS $MEANBRAIN_TEST"`)
	if err != nil {
		t.Fatalf("RunShell() error = %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "3 x" {
		t.Errorf("environment = %q, want %q", got, "3 x")
	}
}

func TestExecRunner_WorkDirAndExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a+orig.HEAD"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	r := NewRunner()

	out, err := r.Run(context.Background(), dir, "ls")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(string(out), "a+orig.HEAD") {
		t.Errorf("ls in work dir = %q", out)
	}
	if !r.Exists(context.Background(), dir, "a+orig.HEAD") {
		t.Error("Exists() = false for a file relative to the work dir")
	}
	if r.Exists(context.Background(), dir, "b+orig.HEAD") {
		t.Error("Exists() = true for a missing file")
	}
}

func TestExecRunner_Cancel(t *testing.T) {
	r := NewRunner()
	r.GracePeriod = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := r.RunShell(ctx, "", "sleep 30"); err == nil {
		t.Fatal("RunShell() error = nil after cancel")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancelled command took %s to return", elapsed)
	}
}

func TestLookPath(t *testing.T) {
	if missing := LookPath("sh"); missing != "" {
		t.Errorf("LookPath(sh) = %q, want empty", missing)
	}
	if missing := LookPath("sh", "no-such-program-xyz"); missing != "no-such-program-xyz" {
		t.Errorf("LookPath() = %q, want no-such-program-xyz", missing)
	}
}
