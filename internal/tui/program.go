package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// NewProgram creates a bubbletea program for the progress view.
func NewProgram(outDir string, tasks []*models.Task, controls Controls) (*tea.Program, *App) {
	app := NewApp(outDir, tasks, controls)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}

// Sender is the part of tea.Program Forward needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward relays events to the program until events closes or ctx ends.
func Forward(ctx context.Context, p Sender, events <-chan orchestrator.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Send(EventMsg{Event: ev})
		}
	}
}
