package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrStopped is returned when a run was stopped before every task ran.
var ErrStopped = errors.New("run stopped")

// PauseController gates task launches. Pausing holds back new tasks
// while running ones finish; stopping ends the run for good. It also
// keeps the total time spent paused.
type PauseController struct {
	mu   sync.Mutex
	cond *sync.Cond

	paused   bool
	stopped  bool
	pausedAt time.Time
	held     time.Duration

	now func() time.Time
}

// NewPauseController creates a running controller.
func NewPauseController() *PauseController {
	p := &PauseController{now: time.Now}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pause holds back new launches. It reports whether the state changed.
func (p *PauseController) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return false
	}
	p.paused = true
	p.pausedAt = p.now()
	log.Printf("[orchestrator] paused: running tasks finish, no new ones start")
	return true
}

// Resume lets launches continue. It reports whether the state changed.
func (p *PauseController) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false
	}
	p.release()
	log.Printf("[orchestrator] resumed")
	p.cond.Broadcast()
	return true
}

// Stop ends the run once running tasks finish. It unblocks WaitIfPaused.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.paused {
		p.release()
	}
	p.stopped = true
	log.Printf("[orchestrator] stopping: running tasks finish, then the run ends")
	p.cond.Broadcast()
}

// release clears the pause and adds its length to the total. Callers
// hold mu.
func (p *PauseController) release() {
	p.paused = false
	p.held += p.now().Sub(p.pausedAt)
	p.pausedAt = time.Time{}
}

// IsPaused reports whether launches are held back.
func (p *PauseController) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// IsStopped reports whether the run was stopped.
func (p *PauseController) IsStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// PausedFor is the total time spent paused, including a pause still in
// effect.
func (p *PauseController) PausedFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.held
	if p.paused {
		d += p.now().Sub(p.pausedAt)
	}
	return d
}

// WaitIfPaused blocks while paused. It returns ErrStopped once stopped,
// or the context error if ctx ends first.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused && !p.stopped {
		// Wake the wait loop when ctx ends.
		stopWake := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		defer stopWake()

		for p.paused && !p.stopped {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.cond.Wait()
		}
	}
	if p.stopped {
		return ErrStopped
	}
	return nil
}
