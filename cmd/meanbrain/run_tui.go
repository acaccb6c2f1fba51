package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
	"github.com/ShayCichocki/meanbrain/internal/tui"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// signalControls drive a run through its signal files, so the TUI keys
// and 'meanbrain signal' take the same path.
type signalControls struct {
	dir string
}

func (c signalControls) Pause() error {
	return orchestrator.WriteSignal(c.dir, orchestrator.SignalPause)
}

func (c signalControls) Resume() error {
	return orchestrator.ClearSignal(c.dir, orchestrator.SignalPause)
}

func (c signalControls) Stop() error {
	return orchestrator.WriteSignal(c.dir, orchestrator.SignalStop)
}

type runResult struct {
	summary *orchestrator.Summary
	err     error
}

// runWithTUI runs the executor behind the interactive progress view.
// Quitting the view before the run ends cancels the run.
func runWithTUI(ctx context.Context, executor *orchestrator.Executor, emitter *orchestrator.EventEmitter,
	outDir string, tasks []*models.Task, controls tui.Controls) (summary *orchestrator.Summary, retErr error) {
	// Log output corrupts the display
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in progress view: %v", r)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program, _ := tui.NewProgram(outDir, tasks, controls)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		tui.Forward(ctx, program, emitter.Events())
	}()

	runDone := make(chan runResult, 1)
	go func() {
		s, err := executor.Run(ctx)
		emitter.Close()
		<-forwarded
		program.Send(tui.DoneMsg{Summary: s, Err: err})
		runDone <- runResult{summary: s, err: err}
	}()

	_, tuiErr := program.Run()
	// The view is gone; end the run if it is still going.
	cancel()
	res := <-runDone
	if tuiErr != nil && res.err == nil {
		return res.summary, fmt.Errorf("progress view: %w", tuiErr)
	}
	return res.summary, res.err
}
