package tui

import "github.com/charmbracelet/lipgloss"

var (
	dimColor     = lipgloss.Color("242")
	accentColor  = lipgloss.Color("39")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	dangerColor  = lipgloss.Color("196")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	okBadgeStyle = badgeStyle.
			Foreground(lipgloss.Color("16")).
			Background(successColor)

	failBadgeStyle = badgeStyle.
			Foreground(lipgloss.Color("255")).
			Background(dangerColor)

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("224")).
			Background(lipgloss.Color("52")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))

	paneTitleStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Bold(true)

	userRoleStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	assistantRoleStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Bold(true)

	systemRoleStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	boldStyle = lipgloss.NewStyle().Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	linkStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor)
)
