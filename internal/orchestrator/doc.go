// Package orchestrator executes a task graph.
//
// The Executor launches every task whose dependencies completed, up to a
// worker limit, and records each transition:
//   - Scheduling: the Scheduler picks ready tasks, earlier phases first
//   - Failure handling: a failed task blocks its transitive dependents and
//     leaves independent subjects running, unless fail-fast is set
//   - Control: a PauseController, driven by signal files through a
//     SignalWatcher, holds back new launches or stops the run
//
// Example usage:
//
//	exe := orchestrator.NewExecutor(plan,
//		orchestrator.WithMaxWorkers(4),
//		orchestrator.WithEmitter(orchestrator.NewEventEmitter(256)))
//	summary, err := exe.Run(ctx)
package orchestrator
