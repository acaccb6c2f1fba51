package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is running.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusBlocked indicates an upstream task failed, so this one will not run.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusDone indicates the task completed successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether a task in this status will not change again
// during the current run.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed || s == TaskStatusBlocked
}

// TaskKind names the operation a task performs.
type TaskKind string

const (
	KindToAFNI         TaskKind = "to_afni"
	KindAlignCenters   TaskKind = "align_centers"
	KindSkullStrip     TaskKind = "skullstrip"
	KindAutomask       TaskKind = "automask"
	KindUnifize        TaskKind = "unifize"
	KindRigidAlign     TaskKind = "rigid_align"
	KindAffineAlign    TaskKind = "affine_align"
	KindMean           TaskKind = "mean"
	KindNLAlign        TaskKind = "nl_align"
	KindResizeTemplate TaskKind = "resize_template"
	KindResizeWarp     TaskKind = "resize_warp"
	KindAnisoSmooth    TaskKind = "aniso_smooth"
	KindUpsample       TaskKind = "upsample"
	KindResample       TaskKind = "resample"
	KindDistance       TaskKind = "deformation_distance"
	KindSelectTypical  TaskKind = "select_typical"
)

// Task is one node of the template pipeline graph.
type Task struct {
	// ID is the unique, human-readable identifier, e.g. "nl2/sub01/align".
	ID string `json:"id" yaml:"id"`
	// Title is a short description for status displays.
	Title string `json:"title" yaml:"title"`
	// Kind is the operation performed.
	Kind TaskKind `json:"kind" yaml:"kind"`
	// Phase is the pipeline phase the task belongs to.
	Phase Phase `json:"phase" yaml:"phase"`
	// Subject is the subject key, empty for group tasks such as means.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	// Level is the nonlinear level index, or -1 outside the nonlinear phases.
	Level int `json:"level" yaml:"level"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status"`
	// Output is the input-style name of the primary artifact the task produces.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	// Command is the command text executed (or planned) for the task.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	// Value holds a scalar result, such as a deformation distance.
	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// CreatedAt is when the task was added to the graph.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	// StartedAt is when the task began executing.
	StartedAt *time.Time `json:"started_at,omitempty" yaml:"-"`
	// CompletedAt is when the task finished, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"-"`
}

// IsGroup reports whether the task operates on the whole subject set.
func (t *Task) IsGroup() bool {
	return t.Subject == ""
}

// RunStatus represents the state of one pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusAbandoned RunStatus = "abandoned"
)

// Run is the persisted record of one pipeline execution.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// OutDir is the output directory the run writes into.
	OutDir string `json:"out_dir"`
	// Status is the current state of the run.
	Status RunStatus `json:"status"`
	// Config is the serialized effective configuration.
	Config string `json:"config,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// UpdatedAt is when the run record last changed.
	UpdatedAt time.Time `json:"updated_at"`
}
