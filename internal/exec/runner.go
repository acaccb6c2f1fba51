package exec

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long a cancelled program has to exit after
// SIGTERM before it is killed.
const DefaultGracePeriod = 10 * time.Second

// ExecRunner runs programs as child processes.
type ExecRunner struct {
	// Threads, when positive, sets OMP_NUM_THREADS for every program so
	// concurrent AFNI programs do not each claim every CPU.
	Threads int
	// Env, when non-nil, is appended to the inherited environment.
	Env []string
	// GracePeriod bounds the wait between SIGTERM and SIGKILL on cancel.
	GracePeriod time.Duration
}

// NewRunner creates an ExecRunner with the default grace period.
func NewRunner() *ExecRunner {
	return &ExecRunner{GracePeriod: DefaultGracePeriod}
}

// ThreadsPerTask splits the CPUs between workers concurrent tasks, at
// least one thread each.
func ThreadsPerTask(workers int) int {
	if workers < 1 {
		workers = 1
	}
	n := runtime.NumCPU() / workers
	if n < 1 {
		return 1
	}
	return n
}

// Run executes a command and returns combined stdout/stderr output. A
// cancelled ctx sends SIGTERM first so AFNI programs can clean up.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	if env := r.environ(); env != nil {
		cmd.Env = append(cmd.Environ(), env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.GracePeriod
	return cmd.CombinedOutput()
}

func (r *ExecRunner) environ() []string {
	var env []string
	if r.Threads > 0 {
		env = append(env, "OMP_NUM_THREADS="+strconv.Itoa(r.Threads))
	}
	return append(env, r.Env...)
}

// RunShell executes a shell command through "sh -c".
func (r *ExecRunner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	return r.Run(ctx, workDir, "sh", "-c", command)
}

// Exists checks if a file exists at path, relative to workDir if not
// absolute.
func (r *ExecRunner) Exists(ctx context.Context, workDir string, path string) bool {
	if workDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// LookPath reports the first of names not found in PATH, or "" if all are.
func LookPath(names ...string) string {
	for _, n := range names {
		if _, err := exec.LookPath(n); err != nil {
			return n
		}
	}
	return ""
}

var _ CommandRunner = (*ExecRunner)(nil)
