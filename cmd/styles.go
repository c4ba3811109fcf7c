package cmd

import "github.com/charmbracelet/lipgloss"

// ── Styles ────────────

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boldStyle = lipgloss.NewStyle().Bold(true)
)

// check prefixes s with a green tick.
func check(s string) string { return okStyle.Render("✓") + " " + s }

// cross prefixes s with a red cross.
func cross(s string) string { return errStyle.Render("✗") + " " + s }
