package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/meanbrain/internal/orchestrator"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

const (
	maxFailures = 5
	maxLogLines = 500
)

// EventMsg wraps an executor event.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg signals the run has returned.
type DoneMsg struct {
	Summary *orchestrator.Summary
	Err     error
}

// Controls act on the running executor.
type Controls interface {
	Pause() error
	Resume() error
	Stop() error
}

// Failure is a failed task shown under the progress bars.
type Failure struct {
	TaskID string
	Error  string
	At     time.Time
}

// App is the bubbletea model of the progress view.
type App struct {
	tracker  *Tracker
	controls Controls
	keys     keyMap

	header  *Header
	footer  *Footer
	spinner spinner.Model
	bar     progress.Model
	log     viewport.Model

	lines    []string
	failures []Failure
	started  time.Time
	width    int
	height   int
	paused   bool
	done     bool
	quitting bool
	err      error

	labelStyle   lipgloss.Style
	logTimeStyle lipgloss.Style
	errorStyle   lipgloss.Style
	sectionStyle lipgloss.Style
}

// NewApp creates the view for tasks. controls may be nil, which disables
// the pause, resume and stop keys.
func NewApp(outDir string, tasks []*models.Task, controls Controls) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		tracker:  NewTracker(tasks),
		controls: controls,
		keys:     defaultKeys(),
		header:   NewHeader(outDir),
		footer:   NewFooter(),
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		log:      viewport.New(80, 8),
		started:  time.Now(),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(8),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		sectionStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			a.quitting = true
			return a, tea.Quit
		case key.Matches(msg, a.keys.Pause):
			a.control("pause", Controls.Pause)
		case key.Matches(msg, a.keys.Resume):
			a.control("resume", Controls.Resume)
		case key.Matches(msg, a.keys.Stop):
			a.control("stop", Controls.Stop)
		default:
			var cmd tea.Cmd
			a.log, cmd = a.log.Update(msg)
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.header.SetWidth(msg.Width)
		a.footer.SetWidth(msg.Width)
		a.log.Width = msg.Width
		a.log.Height = a.logHeight()
		a.refreshLog()

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.handleEvent(msg.Event)

	case DoneMsg:
		a.done = true
		a.err = msg.Err
		switch {
		case msg.Err != nil:
			a.footer.SetRunDone(false, msg.Err.Error())
		case msg.Summary != nil && !msg.Summary.OK():
			a.footer.SetRunDone(false, msg.Summary.String())
		default:
			a.footer.SetRunDone(true, "template complete")
		}
	}

	return a, nil
}

func (a *App) control(name string, fn func(Controls) error) {
	if a.controls == nil || a.done {
		return
	}
	if err := fn(a.controls); err != nil {
		a.appendLog(time.Now(), a.errorStyle.Render(fmt.Sprintf("%s failed: %v", name, err)))
		return
	}
	a.footer.SetMessage(name + " requested")
}

func (a *App) handleEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventTaskStarted:
		a.tracker.Set(ev.TaskID, models.TaskStatusInProgress)
		a.appendLog(ev.Timestamp, "start "+ev.TaskID)
	case orchestrator.EventTaskCompleted:
		a.tracker.Set(ev.TaskID, models.TaskStatusDone)
		a.appendLog(ev.Timestamp, fmt.Sprintf("done  %s (%s)", ev.TaskID, ev.Duration.Round(time.Second)))
	case orchestrator.EventTaskFailed:
		a.tracker.Set(ev.TaskID, models.TaskStatusFailed)
		msg := ev.Message
		if ev.Error != nil {
			msg = ev.Error.Error()
		}
		a.failures = append(a.failures, Failure{TaskID: ev.TaskID, Error: msg, At: ev.Timestamp})
		if len(a.failures) > maxFailures {
			a.failures = a.failures[len(a.failures)-maxFailures:]
		}
		a.appendLog(ev.Timestamp, a.errorStyle.Render("fail  "+ev.TaskID))
	case orchestrator.EventTaskBlocked:
		a.tracker.Set(ev.TaskID, models.TaskStatusBlocked)
	case orchestrator.EventRunPaused:
		a.paused = true
		a.header.SetPaused(true)
		a.appendLog(ev.Timestamp, "paused")
	case orchestrator.EventRunResumed:
		a.paused = false
		a.header.SetPaused(false)
		a.appendLog(ev.Timestamp, "resumed")
	case orchestrator.EventRunDone:
		a.appendLog(ev.Timestamp, ev.Message)
	}
	a.footer.SetCounts(a.tracker.Counts())
}

func (a *App) appendLog(at time.Time, line string) {
	if at.IsZero() {
		at = time.Now()
	}
	a.lines = append(a.lines, a.logTimeStyle.Render(at.Format("15:04:05"))+" "+line)
	if len(a.lines) > maxLogLines {
		a.lines = a.lines[len(a.lines)-maxLogLines:]
	}
	a.refreshLog()
}

func (a *App) refreshLog() {
	follow := a.log.AtBottom()
	a.log.SetContent(strings.Join(a.lines, "\n"))
	if follow {
		a.log.GotoBottom()
	}
}

func (a *App) logHeight() int {
	h := a.height - a.header.Height() - len(a.tracker.Phases()) - maxFailures - 6
	if h < 3 {
		h = 3
	}
	return h
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Progress view closed.\n"
	}

	var b strings.Builder
	elapsed := time.Since(a.started).Round(time.Second).String()
	b.WriteString(a.header.View(a.spinner.View(), elapsed))
	b.WriteString("\n")

	for _, p := range a.tracker.Phases() {
		b.WriteString(a.labelStyle.Render(string(p.Phase)))
		b.WriteString(a.bar.ViewAs(p.Fraction()))
		b.WriteString(fmt.Sprintf("  %d/%d", p.Finished(), p.Total))
		if p.Running > 0 {
			b.WriteString(fmt.Sprintf("  %d running", p.Running))
		}
		if p.Failed > 0 {
			b.WriteString(a.errorStyle.Render(fmt.Sprintf("  %d failed", p.Failed)))
		}
		b.WriteString("\n")
	}

	if len(a.failures) > 0 {
		b.WriteString("\n")
		b.WriteString(a.sectionStyle.Render("Failures"))
		b.WriteString("\n")
		for _, f := range a.failures {
			line := fmt.Sprintf("  %s %s: %s", f.At.Format("15:04:05"), f.TaskID, firstLine(f.Error))
			b.WriteString(a.errorStyle.Render(truncate(line, a.width)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(a.sectionStyle.Render("Activity"))
	b.WriteString("\n")
	b.WriteString(a.log.View())
	b.WriteString("\n")
	b.WriteString(a.footer.View())
	b.WriteString("\n")
	return b.String()
}

// Quitting reports whether the user closed the view.
func (a *App) Quitting() bool {
	return a.quitting
}

// Done reports whether the run has returned.
func (a *App) Done() bool {
	return a.done
}

// Tracker exposes the phase counters.
func (a *App) Tracker() *Tracker {
	return a.tracker
}

// Failures returns the most recent failures, oldest first.
func (a *App) Failures() []Failure {
	return a.failures
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, width int) string {
	if width <= 3 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
