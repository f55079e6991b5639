package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("196")
	colorAmber  = lipgloss.Color("208")
	colorGreen  = lipgloss.Color("42")
	colorBlue   = lipgloss.Color("33")
	colorGray   = lipgloss.Color("241")
	colorDim    = lipgloss.Color("239")
	colorWhite  = lipgloss.Color("255")
	colorYellow = lipgloss.Color("220")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	timerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	badgeBase = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	committedStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	liveStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(colorGray).
				Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

func badgeStyle(color lipgloss.Color) lipgloss.Style {
	return badgeBase.Foreground(lipgloss.Color("0")).Background(color)
}
