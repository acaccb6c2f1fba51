package orchestrator

import (
	"time"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// EventType represents the type of executor event.
type EventType string

const (
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskBlocked indicates a task will not run because a dependency failed.
	EventTaskBlocked EventType = "task_blocked"
	// EventRunPaused indicates new launches are on hold.
	EventRunPaused EventType = "run_paused"
	// EventRunResumed indicates launches continue after a pause.
	EventRunResumed EventType = "run_resumed"
	// EventRunDone indicates the run is over.
	EventRunDone EventType = "run_done"
)

// Event is emitted by the executor. Events feed the progress view and
// the headless status printer.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is the title of the related task, if applicable.
	TaskTitle string
	// Phase is the pipeline phase of the task.
	Phase models.Phase
	// Subject is the subject key of the task, empty for group tasks.
	Subject string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the task run time, or the run time for run_done.
	Duration time.Duration
	// Total is the number of tasks in the run.
	Total int
}

func taskEvent(t EventType, task *models.Task) Event {
	return Event{
		Type:      t,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Phase:     task.Phase,
		Subject:   task.Subject,
		Timestamp: time.Now(),
	}
}
