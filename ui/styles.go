package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#626262"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F55081"}

	// Borders
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(highlight)

	// Text
	titleStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1)

	passStyle = lipgloss.NewStyle().Foreground(special)
	failStyle = lipgloss.NewStyle().Foreground(warning)
)

// projectPalette maps the engine's project color names to ANSI colors.
var projectPalette = map[string]lipgloss.Color{
	"blue":    lipgloss.Color("4"),
	"yellow":  lipgloss.Color("3"),
	"cyan":    lipgloss.Color("6"),
	"green":   lipgloss.Color("2"),
	"magenta": lipgloss.Color("5"),
}

func projectStyle(color string) lipgloss.Style {
	c, ok := projectPalette[color]
	if !ok {
		return statusStyle
	}
	return lipgloss.NewStyle().Foreground(c)
}
