package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy   = lipgloss.Color("17")
	ColorBlue   = lipgloss.Color("39")
	ColorOrange = lipgloss.Color("208")
	ColorRed    = lipgloss.Color("196")
	ColorGray   = lipgloss.Color("244")
	ColorWhite  = lipgloss.Color("15")

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	chartTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorNavy).
			Padding(0, 1)

	tpsStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorOrange)

	rankStyle = lipgloss.NewStyle().
			Foreground(ColorBlue)

	countStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorNavy).
			Background(ColorOrange).
			Padding(0, 1)

	barStyle = lipgloss.NewStyle().
			Foreground(ColorOrange).
			Background(ColorOrange)

	patternHotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	patternWarmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	patternTailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	emptyBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")).
			Background(lipgloss.Color("236"))
)
