package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattmezza/alertdesk/internal/console"
)

var (
	colorPrimary = lipgloss.Color("#00ffff")
	colorSuccess = lipgloss.Color("#00ff00")
	colorError   = lipgloss.Color("#ff0000")
	colorMuted   = lipgloss.Color("#666666")
	colorBorder  = lipgloss.Color("#3d5a80")
)

type styles struct {
	Title    lipgloss.Style
	Tag      lipgloss.Style
	Selected lipgloss.Style
	On       lipgloss.Style
	Off      lipgloss.Style
	Action   lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Label    lipgloss.Style
	Dialog   lipgloss.Style
	Footer   lipgloss.Style
}

func newStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1),

		Tag: lipgloss.NewStyle().
			Background(lipgloss.Color(console.TagColor)).
			Foreground(lipgloss.Color("#000000")).
			Padding(0, 1),

		Selected: lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true),

		On:  lipgloss.NewStyle().Foreground(colorSuccess),
		Off: lipgloss.NewStyle().Foreground(colorMuted),

		Action: lipgloss.NewStyle().
			Foreground(colorPrimary),

		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Success: lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),

		Label: lipgloss.NewStyle().
			Width(10).
			Foreground(colorMuted),

		Dialog: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2),

		Footer: lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1),
	}
}
