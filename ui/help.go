package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHelp() string {
	title := titleStyle.Render("KEYS")
	helpView := m.help.FullHelpView(m.keys.FullHelp())
	legend := statusStyle.Render("✓ passed  ✗ failed  ↓ skipped  ✎ todo  ⏳ running")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		paneStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s", title, helpView, legend)),
	)
}
