package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jesspatton/lazyexplorer/engine"
	"github.com/jesspatton/lazyexplorer/task"
)

func (m Model) renderExplorer(paneWidth, paneHeight int) string {
	var explorerView strings.Builder

	explorerView.WriteString(titleStyle.Render("TESTS") + m.renderBadges() + "\n\n")

	// Title(2), plus the search box when open.
	treeHeight := paneHeight - 2
	if m.searchMode {
		treeHeight -= 3 // 1 line text + 2 lines border
	}

	rows := m.engine.Rows()
	switch {
	case len(rows) == 0 && m.engine.Index().Len() == 0:
		if m.engine.Running() {
			explorerView.WriteString("Collecting...")
		} else {
			explorerView.WriteString("No test files.")
		}
	case len(rows) == 0:
		explorerView.WriteString(statusStyle.Render("Nothing matches the current filter."))
	default:
		start, end := visibleRange(m.cursor, len(rows), treeHeight)
		lineStyle := lipgloss.NewStyle().MaxWidth(paneWidth - 2)
		for i := start; i < end; i++ {
			explorerView.WriteString(lineStyle.Render(m.renderNode(rows[i], i)) + "\n")
		}
	}

	// Fill remaining space to push search bar to bottom
	currentView := explorerView.String()
	currentHeight := lipgloss.Height(currentView)
	if currentHeight < paneHeight-3 && m.searchMode {
		currentView += strings.Repeat("\n", paneHeight-3-currentHeight)
	}

	if m.searchMode {
		searchStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Width(paneWidth - 4) // Account for border width

		searchContent := m.searchInput.View()
		if !m.searchFocus {
			c := m.engine.CollectTestsTotal(m.engine.Filter().Search)
			hints := fmt.Sprintf("%d tests • %d failed • esc: clear", c.Total, c.Failed)
			hintsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

			availableWidth := paneWidth - 6 // -4 for outer margin, -2 for border
			contentWidth := lipgloss.Width(searchContent)
			hintsWidth := lipgloss.Width(hints)

			if contentWidth+hintsWidth+1 < availableWidth {
				padding := strings.Repeat(" ", availableWidth-contentWidth-hintsWidth)
				searchContent += padding + hintsStyle.Render(hints)
			}
		}
		currentView += searchStyle.Render(searchContent)
	}

	explorerStyle := paneStyle
	if m.activePane == PaneExplorer {
		explorerStyle = activePaneStyle
	}

	return explorerStyle.
		Width(paneWidth).
		Height(paneHeight).
		Render(currentView)
}

// renderBadges lists the active status filters next to the pane title.
func (m Model) renderBadges() string {
	f := m.engine.Filter()
	var badges []string
	if f.Failed {
		badges = append(badges, failStyle.Render("failed"))
	}
	if f.Success {
		badges = append(badges, passStyle.Render("passed"))
	}
	if f.Skipped {
		badges = append(badges, statusStyle.Render("skipped"))
	}
	if f.OnlyTests {
		badges = append(badges, statusStyle.Render("tests only"))
	}
	if len(badges) == 0 {
		return ""
	}
	return " " + strings.Join(badges, " ")
}

func (m Model) renderNode(n *engine.Node, index int) string {
	cursor := " "
	if m.cursor == index {
		cursor = ">"
	}

	indent := ""
	if !m.engine.Filter().OnlyTests {
		indent = strings.Repeat("  ", n.Indent)
	}

	icon := stateIcon(n, m.engine.Running())
	switch n.State {
	case task.StateFail:
		icon = failStyle.Render(icon)
	case task.StatePass:
		icon = passStyle.Render(icon)
	}

	name := n.Name
	if m.searchMode {
		name = highlightMatches(name, m.searchInput.Value(), matchStyle)
	}
	if n.Type == task.TypeFile && n.ProjectName != "" {
		badge := projectStyle(n.ProjectNameColor).Render("[" + n.ProjectName + "]")
		name = badge + " " + name
	}

	line := fmt.Sprintf("%s %s%s %s %s", cursor, indent, treeMarker(n, m.engine.IsOpen(n)), icon, name)
	if d := formatDuration(n.Duration); d != "" {
		line += " " + statusStyle.Render(d)
	}

	if m.cursor == index {
		return lipgloss.NewStyle().Foreground(highlight).Render(line)
	}
	return line
}

// renderHeader shows the run summary, narrowed to the visible files when a
// filter is active.
func (m Model) renderHeader() string {
	s := m.engine.Summary()
	line := summaryLine(s)
	if m.engine.Filter().Active() {
		line = summaryLine(m.engine.FilteredSummary()) + statusStyle.Render(fmt.Sprintf("of %d tests", s.Tests))
	}
	style := passStyle
	switch {
	case m.engine.Running():
		style = titleStyle
	case s.TestsFailed > 0 || s.UnhandledErrors > 0:
		style = failStyle
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(style.Render(line))
}

func (m Model) renderFooter() string {
	status := "idle"
	switch {
	case m.engine.Running():
		status = fmt.Sprintf("running • %d pending", m.engine.Pending())
	case m.runner == nil:
		status = "replay"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, statusStyle.Render(status), m.help.View(m.keys))
}
