package orchestrator

import "runtime"

// Option configures an Executor. Use With* functions to create Options.
type Option func(*executorOptions)

type executorOptions struct {
	maxWorkers int
	failFast   bool
	emitter    *EventEmitter
	pause      *PauseController
	recorder   RunRecorder
	done       []string
	logger     *DebugLogger
}

func defaultOptions() *executorOptions {
	return &executorOptions{maxWorkers: runtime.NumCPU()}
}

// WithMaxWorkers sets the maximum number of concurrent tasks.
func WithMaxWorkers(n int) Option {
	return func(o *executorOptions) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithFailFast stops the whole run at the first failure.
func WithFailFast(b bool) Option {
	return func(o *executorOptions) { o.failFast = b }
}

// WithEmitter sets the event emitter.
func WithEmitter(e *EventEmitter) Option {
	return func(o *executorOptions) { o.emitter = e }
}

// WithPauseController sets the pause controller.
func WithPauseController(p *PauseController) Option {
	return func(o *executorOptions) { o.pause = p }
}

// WithRecorder sets the ledger that records task transitions.
func WithRecorder(r RunRecorder) Option {
	return func(o *executorOptions) { o.recorder = r }
}

// WithDone marks tasks as already completed, for resumed runs.
func WithDone(ids []string) Option {
	return func(o *executorOptions) { o.done = append(o.done, ids...) }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *executorOptions) { o.logger = l }
}
