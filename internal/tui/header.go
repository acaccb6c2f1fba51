package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Header renders the title bar.
type Header struct {
	width  int
	outDir string
	paused bool
}

// NewHeader creates a new Header.
func NewHeader(outDir string) *Header {
	return &Header{
		width:  80,
		outDir: outDir,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetPaused toggles the paused badge.
func (h *Header) SetPaused(paused bool) {
	h.paused = paused
}

// View renders the header.
func (h *Header) View(spinner string, elapsed string) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("meanbrain")

	sub := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true).
		Render(h.outDir)

	state := spinner + " running " + elapsed
	if h.paused {
		state = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true).
			Render("PAUSED") + " " + elapsed
	}

	line := fmt.Sprintf("%s  %s  %s", title, sub, state)
	return lipgloss.NewStyle().
		Width(h.width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("238")).
		Render(line)
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2 // title + border
}
