package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPauseController_WaitIfPaused(t *testing.T) {
	p := NewPauseController()
	if err := p.WaitIfPaused(context.Background()); err != nil {
		t.Fatalf("WaitIfPaused() on a running controller = %v", err)
	}

	if !p.Pause() || p.Pause() {
		t.Error("Pause() should report a change only once")
	}

	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitIfPaused() returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	p.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitIfPaused() after resume = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused() did not return after resume")
	}
}

func TestPauseController_StopUnblocks(t *testing.T) {
	p := NewPauseController()
	p.Pause()
	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(context.Background()) }()

	p.Stop()
	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("WaitIfPaused() = %v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop() did not unblock WaitIfPaused()")
	}
	if !p.IsStopped() {
		t.Error("IsStopped() = false after Stop()")
	}
}

func TestPauseController_ContextCancel(t *testing.T) {
	p := NewPauseController()
	p.Pause()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.WaitIfPaused(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("WaitIfPaused() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock WaitIfPaused()")
	}
}

func TestPauseController_PausedFor(t *testing.T) {
	p := NewPauseController()
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	p.Pause()
	clock = clock.Add(2 * time.Minute)
	if got := p.PausedFor(); got != 2*time.Minute {
		t.Errorf("PausedFor() during pause = %s, want 2m", got)
	}
	p.Resume()
	clock = clock.Add(time.Hour)

	p.Pause()
	clock = clock.Add(30 * time.Second)
	p.Stop()
	clock = clock.Add(time.Hour)

	if got := p.PausedFor(); got != 2*time.Minute+30*time.Second {
		t.Errorf("PausedFor() = %s, want 2m30s", got)
	}
	if p.IsPaused() {
		t.Error("IsPaused() = true after Stop()")
	}
	if p.Pause() {
		t.Error("Pause() after Stop() should not change state")
	}
}
