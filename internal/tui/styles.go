package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout
	Container lipgloss.Style
	Divider   lipgloss.Style
	Title     lipgloss.Style
	Footer    lipgloss.Style

	// Header
	Session lipgloss.Style
	Step    lipgloss.Style
	Detail  lipgloss.Style

	// Log lines
	Time  lipgloss.Style
	Dim   lipgloss.Style
	Good  lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style

	// Status colors
	StatusIdle       lipgloss.Style
	StatusConnecting lipgloss.Style
	StatusWorking    lipgloss.Style
	StatusCompleted  lipgloss.Style
	StatusError      lipgloss.Style

	Spinner lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),
	Divider: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	Footer:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

	Session: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	Step:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
	Detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),

	Time:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Good:  lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	Error: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),

	StatusIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	StatusConnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	StatusWorking:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82")),
	StatusCompleted:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
	StatusError:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),

	Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
}
