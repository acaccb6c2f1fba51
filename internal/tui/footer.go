package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Footer renders the counters and keyboard hints.
type Footer struct {
	message string
	success bool
	runDone bool
	width   int
	counts  Counts

	// Styles
	successStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	blockedStyle   lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		blockedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string) {
	f.message = message
}

// SetRunDone marks the run as over.
func (f *Footer) SetRunDone(success bool, message string) {
	f.runDone = true
	f.success = success
	f.message = message
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// SetCounts updates the task counters.
func (f *Footer) SetCounts(c Counts) {
	f.counts = c
}

// View renders the footer.
func (f *Footer) View() string {
	c := f.counts
	left := fmt.Sprintf("✓%d/%d", c.Done, c.Total)
	if c.Running > 0 {
		left += fmt.Sprintf(" ⏳%d", c.Running)
	}
	if c.Failed > 0 {
		left += f.errorStyle.Render(fmt.Sprintf(" ✗%d", c.Failed))
	}
	if c.Blocked > 0 {
		left += f.blockedStyle.Render(fmt.Sprintf(" ⊘%d", c.Blocked))
	}

	if f.runDone {
		if f.success {
			left = f.successStyle.Render("✓ "+f.message) + " " + left
		} else {
			left = f.errorStyle.Render("✗ "+f.message) + " " + left
		}
	} else if f.message != "" {
		left += " " + f.hintStyle.Render(f.message)
	}

	sep := f.separatorStyle.Render(" │ ")
	return left + sep + f.keyboardHints()
}

func (f *Footer) keyboardHints() string {
	if f.runDone {
		return f.hintStyle.Render("q exit")
	}
	return f.hintStyle.Render("p pause │ r resume │ s stop │ ↑/↓ log │ q quit")
}
