// Package ui provides the visual styling for the agentsuite CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Semantic colors
	ColorPrimary = lipgloss.Color("#8BC34A") // Lime green
	ColorAccent  = lipgloss.Color("#2196F3") // Blue
	ColorMuted   = lipgloss.Color("#6c7a89")
	ColorError   = lipgloss.Color("#e53935")
	ColorWarning = lipgloss.Color("#FFC107")
	ColorBorder  = lipgloss.Color("#2a3850")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	PhaseCompletedStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary)

	PhaseFailedStyle = lipgloss.NewStyle().
				Foreground(ColorError)

	PhaseSkippedStyle = lipgloss.NewStyle().
				Foreground(ColorWarning)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(ColorBorder)

	DetailBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
)

// StatusStyle picks the style for a phase status string.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return PhaseCompletedStyle
	case "failed":
		return PhaseFailedStyle
	default:
		return PhaseSkippedStyle
	}
}
