package tui

import (
	"sort"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// PhaseProgress counts task outcomes of one phase.
type PhaseProgress struct {
	Phase   models.Phase
	Total   int
	Running int
	Done    int
	Failed  int
	Blocked int
}

// Finished is the number of tasks that will not run again.
func (p PhaseProgress) Finished() int {
	return p.Done + p.Failed + p.Blocked
}

// Fraction is the finished share of the phase, 0 for an empty phase.
func (p PhaseProgress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Finished()) / float64(p.Total)
}

// Counts are run-wide task counters.
type Counts struct {
	Total   int
	Running int
	Done    int
	Failed  int
	Blocked int
}

// Tracker folds task events into per-phase counters.
type Tracker struct {
	phases map[models.Phase]*PhaseProgress
	status map[string]models.TaskStatus
	phase  map[string]models.Phase
}

// NewTracker starts tracking tasks. Tasks already done count as done.
func NewTracker(tasks []*models.Task) *Tracker {
	t := &Tracker{
		phases: make(map[models.Phase]*PhaseProgress),
		status: make(map[string]models.TaskStatus),
		phase:  make(map[string]models.Phase),
	}
	for _, task := range tasks {
		p := t.progress(task.Phase)
		p.Total++
		t.phase[task.ID] = task.Phase
		st := models.TaskStatusPending
		if task.Status == models.TaskStatusDone {
			st = models.TaskStatusDone
			p.Done++
		}
		t.status[task.ID] = st
	}
	return t
}

func (t *Tracker) progress(phase models.Phase) *PhaseProgress {
	p, ok := t.phases[phase]
	if !ok {
		p = &PhaseProgress{Phase: phase}
		t.phases[phase] = p
	}
	return p
}

// Set moves a task to status. Unknown tasks are ignored.
func (t *Tracker) Set(id string, status models.TaskStatus) {
	prev, ok := t.status[id]
	if !ok || prev == status {
		return
	}
	p := t.progress(t.phase[id])
	adjust(p, prev, -1)
	adjust(p, status, 1)
	t.status[id] = status
}

func adjust(p *PhaseProgress, st models.TaskStatus, d int) {
	switch st {
	case models.TaskStatusInProgress:
		p.Running += d
	case models.TaskStatusDone:
		p.Done += d
	case models.TaskStatusFailed:
		p.Failed += d
	case models.TaskStatusBlocked:
		p.Blocked += d
	}
}

// Phases returns the tracked phases in pipeline order.
func (t *Tracker) Phases() []PhaseProgress {
	out := make([]PhaseProgress, 0, len(t.phases))
	for _, p := range t.phases {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Phase.Order() < out[j].Phase.Order()
	})
	return out
}

// Counts sums the phases.
func (t *Tracker) Counts() Counts {
	var c Counts
	for _, p := range t.phases {
		c.Total += p.Total
		c.Running += p.Running
		c.Done += p.Done
		c.Failed += p.Failed
		c.Blocked += p.Blocked
	}
	return c
}
