package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#0E7490") // teal
	accentColor  = lipgloss.Color("#F59E0B")
	mutedColor   = lipgloss.Color("#6C7086")
	borderColor  = lipgloss.Color("#45475A")
	errorColor   = lipgloss.Color("#EF4444")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	loadingStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	focusedPaneStyle = paneStyle.
				BorderForeground(primaryColor)

	resultStyle = lipgloss.NewStyle().PaddingLeft(1)

	dateStyle = lipgloss.NewStyle().Foreground(mutedColor)

	emptyStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)
