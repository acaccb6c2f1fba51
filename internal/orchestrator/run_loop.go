package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/meanbrain/internal/graph"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// completion is the result of one task sent back to the run loop.
type completion struct {
	taskID   string
	err      error
	duration time.Duration
}

// Run executes every task in dependency order and returns the outcome.
// The error is ErrStopped after a stop, the context error after a
// cancel, and wraps ErrTasksFailed when any task failed.
func (e *Executor) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	tasks := e.work.Tasks()

	for _, t := range tasks {
		if e.done[t.ID] {
			t.Status = models.TaskStatusDone
		} else if t.Status == "" || t.Status == models.TaskStatusInProgress {
			t.Status = models.TaskStatusPending
		}
	}

	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}
	for _, t := range tasks {
		if t.Status == models.TaskStatusDone {
			g.MarkComplete(t.ID)
		}
	}

	if e.logger != nil {
		SetLogger(e.logger)
	}
	e.logger.Log("[run] starting %d tasks (%d already done), max workers %d, fail fast %v",
		len(tasks), len(e.done), e.maxWorkers, e.failFast)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := NewScheduler(g, e.maxWorkers)
	completions := make(chan completion, len(tasks)+1)
	summary := &Summary{Errors: make(map[string]error)}
	inflight := 0
	var runErr error
	launching := true

	for {
		if launching {
			if err := e.pause.WaitIfPaused(runCtx); err != nil {
				runErr = err
				launching = false
			} else if runCtx.Err() != nil {
				launching = false
			}
		}

		if launching {
			for _, task := range sched.Schedule() {
				e.launch(runCtx, sched, task, completions)
				inflight++
			}
		}

		if inflight == 0 {
			break
		}

		var c completion
		select {
		case c = <-completions:
		case <-e.stopWatch(runCtx):
			continue
		}
		inflight--
		task := g.GetTask(c.taskID)
		now := time.Now()
		task.CompletedAt = &now

		if c.err == nil {
			task.Status = models.TaskStatusDone
			task.Error = ""
			sched.OnComplete(task.ID, true)
			e.record(task)
			ev := taskEvent(EventTaskCompleted, task)
			ev.Duration = c.duration
			e.emit(ev)
			e.logger.Log("[run] %s done in %s", task.ID, c.duration)
			continue
		}

		task.Status = models.TaskStatusFailed
		task.Error = c.err.Error()
		summary.Errors[task.ID] = c.err
		e.record(task)
		ev := taskEvent(EventTaskFailed, task)
		ev.Error = c.err
		ev.Duration = c.duration
		e.emit(ev)
		log.Printf("[orchestrator] task %s failed: %v", task.ID, c.err)

		if e.failFast {
			// Unstarted tasks stay pending.
			sched.Release(task.ID)
			if launching {
				launching = false
				runErr = fmt.Errorf("task %s: %w", task.ID, c.err)
				cancel()
			}
			continue
		}
		for _, id := range sched.OnComplete(task.ID, false) {
			blocked := g.GetTask(id)
			e.record(blocked)
			bev := taskEvent(EventTaskBlocked, blocked)
			bev.Message = blocked.Error
			e.emit(bev)
		}
	}

	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusDone:
			summary.Done = append(summary.Done, t.ID)
		case models.TaskStatusFailed:
			summary.Failed = append(summary.Failed, t.ID)
		case models.TaskStatusBlocked:
			summary.Blocked = append(summary.Blocked, t.ID)
		default:
			summary.Pending = append(summary.Pending, t.ID)
		}
	}
	summary.sort()
	summary.Duration = time.Since(start)
	summary.Paused = e.pause.PausedFor()
	summary.DroppedEvents = e.emitter.DroppedCount()

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if runErr == nil && len(summary.Failed) > 0 {
		runErr = fmt.Errorf("%w: %s", ErrTasksFailed, strings.Join(summary.Failed, ", "))
	}

	e.emit(Event{
		Type:      EventRunDone,
		Message:   summary.String(),
		Error:     runErr,
		Timestamp: time.Now(),
		Duration:  summary.Duration,
		Total:     len(tasks),
	})
	e.logger.Log("[run] finished: %s", summary.String())
	return summary, runErr
}

// stopWatch returns a channel that closes when the run context ends, so a
// stop or cancel is noticed while waiting on running tasks. After the
// context ends it returns nil, which blocks forever in a select.
func (e *Executor) stopWatch(ctx context.Context) <-chan struct{} {
	if ctx.Err() != nil {
		return nil
	}
	return ctx.Done()
}

// launch starts task in its own goroutine.
func (e *Executor) launch(ctx context.Context, sched *Scheduler, task *models.Task, completions chan<- completion) {
	now := time.Now()
	task.Status = models.TaskStatusInProgress
	task.StartedAt = &now
	sched.OnStart(task.ID)
	e.record(task)
	e.emit(taskEvent(EventTaskStarted, task))
	e.logger.Log("[run] launching %s", task.ID)

	id := task.ID
	go func() {
		started := time.Now()
		err := e.work.Run(ctx, id)
		completions <- completion{taskID: id, err: err, duration: time.Since(started)}
	}()
}
