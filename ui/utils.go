package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jesspatton/lazyexplorer/engine"
	"github.com/jesspatton/lazyexplorer/task"
)

var matchStyle = lipgloss.NewStyle().Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))

// visibleRange returns the window of rows to render so that cursor stays
// roughly centered in a pane of the given height.
func visibleRange(cursor, total, height int) (int, int) {
	if height <= 0 {
		return 0, 0
	}
	if total <= height {
		return 0, total
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start > total-height {
		start = total - height
	}
	return start, start + height
}

// clampWidth bounds an explorer width so both panes keep a usable size
// in a window total columns wide.
func clampWidth(w, total int) int {
	if w > total-minExplorerWidth {
		w = total - minExplorerWidth
	}
	if w < minExplorerWidth {
		w = minExplorerWidth
	}
	return w
}

// highlightMatches wraps every case-insensitive occurrence of query in
// name with style.
func highlightMatches(name, query string, style lipgloss.Style) string {
	if query == "" {
		return name
	}
	lowerName := strings.ToLower(name)
	lowerQuery := strings.ToLower(query)
	// Offsets are only valid when lowering kept the byte length.
	if len(lowerName) != len(name) || !strings.Contains(lowerName, lowerQuery) {
		return name
	}

	var sb strings.Builder
	lastIdx := 0
	for {
		idx := strings.Index(lowerName[lastIdx:], lowerQuery)
		if idx == -1 {
			sb.WriteString(name[lastIdx:])
			break
		}
		idx += lastIdx
		sb.WriteString(name[lastIdx:idx])
		sb.WriteString(style.Render(name[idx : idx+len(lowerQuery)]))
		lastIdx = idx + len(lowerQuery)
	}
	return sb.String()
}

// stateIcon picks the glyph shown before a row. running reports whether a
// run is in progress, which turns result-less nodes into spinners.
func stateIcon(n *engine.Node, running bool) string {
	switch {
	case n.State == task.StateFail:
		return "✗"
	case n.State == task.StatePass:
		return "✓"
	case n.Mode == task.ModeTodo || n.State == task.StateTodo:
		return "✎"
	case n.Mode.Ignored() || n.State == task.StateSkip:
		return "↓"
	case n.State == task.StateRun || running:
		return "⏳"
	}
	return "·"
}

// treeMarker is the disclosure glyph for expandable rows.
func treeMarker(n *engine.Node, open bool) string {
	if !n.Expandable {
		return " "
	}
	if open {
		return "▾"
	}
	return "▸"
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return ""
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// summaryLine renders the run counters as plain text.
func summaryLine(s engine.Summary) string {
	var parts []string
	if s.TestsFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.TestsFailed))
	}
	if s.TestsSuccess > 0 {
		parts = append(parts, fmt.Sprintf("%d passed", s.TestsSuccess))
	}
	if s.TestsIgnore > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.TestsIgnore))
	}
	if s.TestsRunning > 0 {
		parts = append(parts, fmt.Sprintf("%d running", s.TestsRunning))
	}
	if len(parts) == 0 {
		parts = append(parts, "no tests")
	}

	line := fmt.Sprintf("Tests %s (%d) • Files %d", strings.Join(parts, " | "), s.Tests, s.Files)
	if s.Time > 0 {
		line += fmt.Sprintf(" • %s", s.Time.Round(time.Millisecond))
	}
	if s.FailedSnapshot {
		line += " • snapshot mismatch"
	}
	if s.UnhandledErrors > 0 {
		line += fmt.Sprintf(" • %d unhandled", s.UnhandledErrors)
	}
	return line
}

// taskDetails describes the raw task behind a row: its errors, its
// annotations and the console output of its file.
func taskDetails(store *task.Store, id string) []string {
	t, ok := store.Lookup(id)
	if !ok {
		return nil
	}
	info := t.Info()

	var lines []string
	title := info.Name
	if t.Type() != task.TypeFile {
		title = store.FullName(t)
	}
	lines = append(lines, title)
	if f, ok := t.(*task.File); ok {
		lines = append(lines, f.Filepath)
	}
	if info.Result != nil {
		lines = append(lines, fmt.Sprintf("state: %s", stateLabel(info.Result.State)))
		for _, e := range info.Result.Errors {
			lines = append(lines, "", fmt.Sprintf("%s: %s", errorName(e), e.Message))
			if e.Stack != "" {
				lines = append(lines, strings.Split(strings.TrimRight(e.Stack, "\n"), "\n")...)
			}
		}
	}
	if test, ok := t.(*task.Test); ok {
		for _, a := range test.Annotations {
			lines = append(lines, fmt.Sprintf("[%s] %s", a.Type, a.Message))
		}
	}

	logs := store.Logs(info.FileID)
	if len(logs) > 0 {
		lines = append(lines, "", "console:")
		for _, l := range logs {
			if t.Type() == task.TypeTest && l.TaskID != id {
				continue
			}
			lines = append(lines, strings.TrimRight(l.Content, "\n"))
		}
	}
	return lines
}

func stateLabel(s task.State) string {
	if s == task.StateNone {
		return "pending"
	}
	return string(s)
}

func errorName(e task.ErrorInfo) string {
	if e.Name == "" {
		return "Error"
	}
	return e.Name
}
