package exec

import (
	"context"
	"sync"
)

// Call is one command captured by a Recorder.
type Call struct {
	// TaskID is the graph task that issued the call, if tagged.
	TaskID string
	Command
}

// Recorder is a CommandRunner that records commands instead of running
// them. It backs dry runs, where the plan's command text is wanted without
// touching any dataset, and it is the fake runner in tests.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	outputs  map[string]string
	failures map[string]error

	// OnRun, if set, is invoked for every recorded call before it returns.
	// Tests use it to materialize the outputs a real tool would write.
	OnRun func(Call) error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		outputs:  make(map[string]string),
		failures: make(map[string]error),
	}
}

// SetOutput makes every call to program name return text.
func (r *Recorder) SetOutput(name, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[name] = text
}

// FailOn makes every call to program name return err.
func (r *Recorder) FailOn(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[name] = err
}

// Run records the command.
func (r *Recorder) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	call := Call{
		TaskID:  TaskIDFromContext(ctx),
		Command: Command{Dir: workDir, Name: name, Args: append([]string(nil), args...)},
	}
	return r.record(call, name)
}

// RunShell records the shell command line.
func (r *Recorder) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	call := Call{
		TaskID:  TaskIDFromContext(ctx),
		Command: Command{Dir: workDir, Name: command, Shell: true},
	}
	return r.record(call, "sh")
}

func (r *Recorder) record(call Call, program string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	out := r.outputs[program]
	failure := r.failures[program]
	hook := r.OnRun
	r.mu.Unlock()

	if failure != nil {
		return []byte(out), failure
	}
	if hook != nil {
		if err := hook(call); err != nil {
			return []byte(out), err
		}
	}
	return []byte(out), nil
}

// Exists always reports false; a Recorder never creates files.
func (r *Recorder) Exists(ctx context.Context, workDir string, path string) bool {
	return false
}

// Calls returns a copy of all recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor returns the calls tagged with taskID.
func (r *Recorder) CallsFor(taskID string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many calls ran program name.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if !c.Shell && c.Name == name {
			n++
		}
	}
	return n
}

// Reset drops all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

var _ CommandRunner = (*Recorder)(nil)
