package orchestrator

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/meanbrain/internal/graph"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// Scheduler hands out ready tasks up to the worker limit.
type Scheduler struct {
	// graph is the dependency graph of tasks.
	graph *graph.DependencyGraph
	// running holds the IDs of launched, unfinished tasks.
	running map[string]bool
	// maxWorkers is the maximum number of concurrent tasks allowed.
	maxWorkers int
	// mu protects all mutable fields.
	mu sync.RWMutex
}

// NewScheduler creates a new Scheduler over g. A limit below 1 means 1.
func NewScheduler(g *graph.DependencyGraph, maxWorkers int) *Scheduler {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Scheduler{
		graph:      g,
		running:    make(map[string]bool),
		maxWorkers: maxWorkers,
	}
}

// Schedule returns the tasks to launch now: ready tasks not already
// running, earliest phase first, at most the number of free slots.
func (s *Scheduler) Schedule() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := s.maxWorkers - len(s.running)
	if slots <= 0 {
		debugLog("[scheduler] no available slots: maxWorkers=%d, running=%d", s.maxWorkers, len(s.running))
		return nil
	}

	readyIDs := s.graph.GetReady()
	var candidates []*models.Task
	for _, id := range readyIDs {
		if s.running[id] {
			continue
		}
		if task := s.graph.GetTask(id); task != nil {
			candidates = append(candidates, task)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Finishing earlier phases first keeps the level barriers moving.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Phase.Order() < candidates[j].Phase.Order()
	})

	if len(candidates) > slots {
		candidates = candidates[:slots]
	}
	debugLog("[scheduler] scheduled %d of %d ready tasks (%d running)", len(candidates), len(readyIDs), len(s.running))
	return candidates
}

// OnStart records that a task was launched.
func (s *Scheduler) OnStart(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[taskID] = true
}

// OnComplete handles the end of a task. A success marks the task complete
// in the graph, unblocking its dependents. A failure marks every pending
// transitive dependent blocked and returns their IDs.
func (s *Scheduler) OnComplete(taskID string, success bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, taskID)

	if success {
		s.graph.MarkComplete(taskID)
		return nil
	}
	return s.markDependentsBlocked(taskID)
}

// Release forgets a running task without completing it or blocking its
// dependents.
func (s *Scheduler) Release(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, taskID)
}

// RunningCount returns the number of launched, unfinished tasks.
func (s *Scheduler) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running)
}

func (s *Scheduler) markDependentsBlocked(failedTaskID string) []string {
	var blocked []string
	for _, depID := range s.graph.TransitiveDependents(failedTaskID) {
		task := s.graph.GetTask(depID)
		if task == nil || task.Status.Terminal() || task.Status == models.TaskStatusInProgress {
			continue
		}
		task.Status = models.TaskStatusBlocked
		task.Error = "dependency failed: " + failedTaskID
		blocked = append(blocked, depID)
		debugLog("[scheduler] marked task %s as blocked (depends on failed task %s)", depID, failedTaskID)
	}
	return blocked
}
