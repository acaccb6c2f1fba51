package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
)

const (
	colorOK   = color.FgGreen
	colorFail = color.FgRed
	colorWarn = color.FgYellow
	colorInfo = color.FgCyan
)

func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// printEvents writes executor events as status lines until events closes.
func printEvents(w io.Writer, events <-chan orchestrator.Event) {
	ok := color.New(colorOK).SprintFunc()
	fail := color.New(colorFail).SprintFunc()
	warn := color.New(colorWarn).SprintFunc()
	info := color.New(colorInfo).SprintFunc()

	for ev := range events {
		switch ev.Type {
		case orchestrator.EventTaskStarted:
			fmt.Fprintf(w, "%s %s\n", info("▶"), ev.TaskID)
		case orchestrator.EventTaskCompleted:
			fmt.Fprintf(w, "%s %s (%s)\n", ok("✓"), ev.TaskID, ev.Duration.Round(time.Second))
		case orchestrator.EventTaskFailed:
			fmt.Fprintf(w, "%s %s: %v\n", fail("✗"), ev.TaskID, ev.Error)
		case orchestrator.EventTaskBlocked:
			fmt.Fprintf(w, "%s %s: %s\n", warn("⊘"), ev.TaskID, ev.Message)
		case orchestrator.EventRunPaused:
			fmt.Fprintf(w, "%s paused: running tasks finish, no new ones start\n", warn("⏸"))
		case orchestrator.EventRunResumed:
			fmt.Fprintf(w, "%s resumed\n", info("▶"))
		case orchestrator.EventRunDone:
			fmt.Fprintf(w, "%s %s in %s\n", info("■"), ev.Message, ev.Duration.Round(time.Second))
		}
	}
}
