package orchestrator

import (
	"context"
	"errors"
	"log"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// ErrTasksFailed is returned by Run when at least one task failed.
var ErrTasksFailed = errors.New("tasks failed")

// Workload is a set of tasks the executor can run. Run must be safe for
// concurrent use with distinct IDs.
type Workload interface {
	Tasks() []*models.Task
	Run(ctx context.Context, id string) error
}

// RunRecorder persists task transitions.
type RunRecorder interface {
	RecordTask(task *models.Task) error
}

// Executor runs a Workload's task graph.
type Executor struct {
	work       Workload
	maxWorkers int
	failFast   bool
	emitter    *EventEmitter
	pause      *PauseController
	recorder   RunRecorder
	done       map[string]bool
	logger     *DebugLogger
}

// NewExecutor creates an Executor for work.
func NewExecutor(work Workload, opts ...Option) *Executor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.pause == nil {
		o.pause = NewPauseController()
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	done := make(map[string]bool, len(o.done))
	for _, id := range o.done {
		done[id] = true
	}
	return &Executor{
		work:       work,
		maxWorkers: o.maxWorkers,
		failFast:   o.failFast,
		emitter:    o.emitter,
		pause:      o.pause,
		recorder:   o.recorder,
		done:       done,
		logger:     o.logger,
	}
}

// PauseController returns the executor's pause controller.
func (e *Executor) PauseController() *PauseController {
	return e.pause
}

// MaxWorkers returns the concurrency limit.
func (e *Executor) MaxWorkers() int {
	return e.maxWorkers
}

func (e *Executor) emit(ev Event) {
	e.emitter.Emit(ev)
}

func (e *Executor) record(task *models.Task) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordTask(task); err != nil {
		log.Printf("[orchestrator] warning: failed to record task %s: %v", task.ID, err)
	}
}
