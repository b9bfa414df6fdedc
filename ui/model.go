package ui

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jesspatton/lazyexplorer/analysis"
	"github.com/jesspatton/lazyexplorer/engine"
	"github.com/jesspatton/lazyexplorer/filesystem"
	"github.com/jesspatton/lazyexplorer/prefs"
	"github.com/jesspatton/lazyexplorer/report"
	"github.com/jesspatton/lazyexplorer/runner"
	"github.com/jesspatton/lazyexplorer/task"
)

// Pane represents a distinct section of the UI.
type Pane int

const (
	// PaneExplorer is the test tree pane.
	PaneExplorer Pane = iota
	// PaneOutput is the details and runner output pane.
	PaneOutput
)

const (
	maxOutputLines   = 2000
	minExplorerWidth = 24
	widthStep        = 4
)

// Options wires a Model to its collaborators.
type Options struct {
	Root   string
	Store  *task.Store
	Engine *engine.Engine
	// Runner executes tests. Nil for a read-only replay, in which case
	// Events must carry the report stream.
	Runner *runner.Runner
	Events <-chan any
	// Watch reruns tests when files under Root change.
	Watch  bool
	Prefs  *prefs.File
	Logger *slog.Logger
}

// Model represents the application state for the Bubbletea program.
type Model struct {
	// UI State
	activePane    Pane
	width         int
	height        int
	ready         bool
	showHelp      bool
	cursor        int
	selected      string
	explorerWidth int
	viewport      viewport.Model

	// Search State
	searchMode  bool
	searchFocus bool
	searchInput textinput.Model

	// Components
	keys KeyMap
	help help.Model

	// Data / Dependencies
	rootPath string
	store    *task.Store
	engine   *engine.Engine
	runner   *runner.Runner
	events   <-chan any
	watch    bool
	watcher  *filesystem.Watcher
	graph    *analysis.Graph
	prefs    *prefs.File
	logger   *slog.Logger

	// Application State
	output []string
	// pendingRuns counts runs requested but not yet started by the runner.
	// Runner events that arrive meanwhile belong to a superseded run.
	pendingRuns int
}

// Messages

// eventMsg carries one item from the report stream or the runner.
type eventMsg struct{ event any }

// streamClosedMsg reports that the event source has no more items.
type streamClosedMsg struct{}

// discoveredMsg carries the test files found under the root.
type discoveredMsg struct {
	paths []string
	err   error
}

// changedMsg carries the test files git reports as modified.
type changedMsg struct {
	paths []string
	err   error
}

// watcherStartedMsg carries the running watcher and the import graph
// built alongside it.
type watcherStartedMsg struct {
	watcher *filesystem.Watcher
	graph   *analysis.Graph
	err     error
}

// watchMsg carries a batch of changed paths from the file watcher.
type watchMsg []string

// runErrMsg reports that a run could not be started.
type runErrMsg struct{ err error }

// NewModel creates and initializes a new Model.
func NewModel(opts Options) Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#A0A0A0"})
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B0B0B0", Dark: "#808080"})
	h.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#606060"})
	h.Styles.FullKey = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#A0A0A0"})
	h.Styles.FullDesc = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B0B0B0", Dark: "#808080"})
	h.Styles.FullSeparator = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#606060"})
	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.Prompt = "/"
	ti.CharLimit = 156
	ti.Width = 20

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	events := opts.Events
	if opts.Runner != nil {
		events = opts.Runner.Updates
	}

	m := Model{
		activePane:  PaneExplorer,
		rootPath:    opts.Root,
		store:       opts.Store,
		engine:      opts.Engine,
		runner:      opts.Runner,
		events:      events,
		watch:       opts.Watch,
		prefs:       opts.Prefs,
		logger:      logger,
		keys:        NewKeyMap(),
		help:        h,
		searchInput: ti,
	}
	if opts.Prefs != nil {
		m.explorerWidth = opts.Prefs.Prefs().ExplorerWidth
	}
	if search := opts.Engine.Filter().Search; search != "" {
		m.searchMode = true
		m.searchInput.SetValue(search)
	}
	m.syncCursor()
	return m
}

// Init initializes the Bubbletea program.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvent}
	if m.runner != nil {
		cmds = append(cmds, m.discover)
		if m.watch {
			cmds = append(cmds, m.startWatcher)
		}
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searchMode && m.searchFocus {
			cmd = m.updateSearch(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.watcher != nil {
				m.watcher.Close()
			}
			if m.runner != nil {
				if err := m.runner.Close(); err != nil {
					m.logger.Warn("closing runner", "error", err)
				}
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			if m.activePane == PaneExplorer {
				m.activePane = PaneOutput
			} else {
				m.activePane = PaneExplorer
			}
			return m, nil
		case key.Matches(msg, m.keys.Wider):
			m.resizeExplorer(widthStep)
			return m, nil
		case key.Matches(msg, m.keys.Narrower):
			m.resizeExplorer(-widthStep)
			return m, nil
		}

		if m.activePane == PaneOutput {
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		cmd = m.updateExplorer(msg)
		m.syncCursor()
		m.refreshOutput(false)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case eventMsg:
		cmds = append(cmds, m.waitForEvent, m.handleEvent(msg.event))
		m.syncCursor()
		m.refreshOutput(true)
		return m, tea.Batch(cmds...)

	case streamClosedMsg:
		if m.engine.Running() {
			m.engine.EndRun()
		}
		m.syncCursor()
		m.refreshOutput(false)
		return m, nil

	case discoveredMsg:
		if msg.err != nil {
			m.appendOutput(fmt.Sprintf("Error: %v", msg.err))
			m.refreshOutput(true)
			return m, nil
		}
		m.store.CollectPaths(msg.paths)
		m.engine.LoadFiles(m.store.Files(), true)
		m.syncCursor()
		return m, m.run(msg.paths...)

	case changedMsg:
		if msg.err != nil {
			m.appendOutput(fmt.Sprintf("Error: %v", msg.err))
			m.refreshOutput(true)
			return m, nil
		}
		if len(msg.paths) == 0 {
			m.appendOutput("No changed test files.")
			m.refreshOutput(true)
			return m, nil
		}
		return m, m.run(msg.paths...)

	case watcherStartedMsg:
		if msg.err != nil {
			m.logger.Warn("file watcher unavailable", "error", msg.err)
			return m, nil
		}
		m.watcher = msg.watcher
		m.graph = msg.graph
		return m, m.waitForWatcherEvents

	case watchMsg:
		cmds = append(cmds, m.waitForWatcherEvents)
		cmds = append(cmds, m.run(m.affectedPaths(msg)...))
		return m, tea.Batch(cmds...)

	case runErrMsg:
		if m.pendingRuns > 0 {
			m.pendingRuns--
		}
		if m.engine.Running() {
			m.engine.EndRun()
		}
		m.appendOutput(fmt.Sprintf("Error: %v", msg.err))
		m.syncCursor()
		m.refreshOutput(true)
		return m, nil
	}

	// Scheduler ticks and cursor blinks.
	cmds = append(cmds, m.engine.Update(msg))
	if m.searchMode {
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.syncCursor()
	return m, tea.Batch(cmds...)
}

// handleEvent applies a runner or report stream item.
func (m *Model) handleEvent(event any) tea.Cmd {
	if started, ok := event.(runner.RunStarted); ok {
		if m.pendingRuns > 0 {
			m.pendingRuns--
		}
		m.logger.Debug("runner started run", "run", started.Run, "pending", m.pendingRuns)
		return nil
	}
	if m.pendingRuns > 0 {
		m.logger.Debug("dropping event of superseded run", "event", fmt.Sprintf("%T", event))
		return nil
	}

	switch ev := event.(type) {
	case runner.OutputUpdate:
		m.appendOutput(string(ev))
		return nil
	case report.Output:
		m.appendOutput(ev.Line)
		return nil
	case runner.StatusUpdate:
		if m.engine.Running() {
			m.engine.EndRun()
		}
		if ev.Err == nil {
			m.appendOutput("PASS")
		} else {
			m.appendOutput(fmt.Sprintf("FAIL: %v", ev.Err))
		}
		return nil
	}

	if missing := report.Apply(m.store, event); len(missing) > 0 {
		m.logger.Debug("event for unknown tasks", "tasks", missing)
	}
	return m.engine.Update(event)
}

func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ExitSearch):
		m.clearSearch()
		m.refreshOutput(false)
		return nil
	case msg.Type == tea.KeyEnter:
		m.searchFocus = false
		m.searchInput.Blur()
		if m.searchInput.Value() == "" {
			m.searchMode = false
		}
		return nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() != m.engine.Filter().Search {
		m.engine.SetSearch(m.searchInput.Value())
		m.cursor = 0
		m.selected = ""
		m.syncCursor()
		m.refreshOutput(false)
	}
	return cmd
}

func (m *Model) clearSearch() {
	m.searchMode = false
	m.searchFocus = false
	m.searchInput.Blur()
	m.searchInput.Reset()
	if m.engine.Filter().Search != "" {
		m.engine.SetSearch("")
	}
	m.syncCursor()
}

func (m *Model) updateExplorer(msg tea.KeyMsg) tea.Cmd {
	rows := m.engine.Rows()
	var node *engine.Node
	if m.cursor < len(rows) {
		node = rows[m.cursor]
	}

	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchFocus = true
		m.searchInput.Focus()
		return textinput.Blink
	case key.Matches(msg, m.keys.ExitSearch):
		if m.searchMode {
			m.clearSearch()
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.moveTo(m.cursor - 1)
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(rows)-1 {
			m.moveTo(m.cursor + 1)
		}
	case key.Matches(msg, m.keys.Expand):
		if node != nil && node.Expandable {
			m.engine.ExpandNode(node.ID)
		}
	case key.Matches(msg, m.keys.Collapse):
		if node == nil {
			break
		}
		if m.engine.IsOpen(node) {
			m.engine.CollapseNode(node.ID)
			break
		}
		m.selectParent(node)
	case key.Matches(msg, m.keys.Enter):
		if node == nil {
			break
		}
		if node.Type == task.TypeTest {
			return m.runNode(node)
		}
		if m.engine.IsOpen(node) {
			m.engine.CollapseNode(node.ID)
		} else {
			m.engine.ExpandNode(node.ID)
		}
	case key.Matches(msg, m.keys.ExpandAll):
		m.engine.ExpandAllNodes()
	case key.Matches(msg, m.keys.CollapseAll):
		m.engine.CollapseAllNodes()
	case key.Matches(msg, m.keys.Failed):
		m.engine.ToggleFailed()
	case key.Matches(msg, m.keys.Success):
		m.engine.ToggleSuccess()
	case key.Matches(msg, m.keys.Skipped):
		m.engine.ToggleSkipped()
	case key.Matches(msg, m.keys.OnlyTests):
		m.engine.ToggleOnlyTests()
	case key.Matches(msg, m.keys.Rerun):
		if node != nil {
			return m.runNode(node)
		}
	case key.Matches(msg, m.keys.RerunAll):
		if paths := m.loadedPaths(); len(paths) > 0 {
			return m.run(paths...)
		}
		return m.discover
	case key.Matches(msg, m.keys.RerunFailed):
		failed := m.store.FailedFiles()
		if len(failed) == 0 {
			m.appendOutput("No failed files.")
			return nil
		}
		return m.run(failed...)
	case key.Matches(msg, m.keys.RerunChanged):
		return m.changedFiles
	}
	return nil
}

func (m *Model) moveTo(i int) {
	rows := m.engine.Rows()
	if i < 0 || i >= len(rows) {
		return
	}
	m.cursor = i
	m.selected = rows[i].ID
}

// selectParent moves the cursor to the row of n's parent, if visible.
func (m *Model) selectParent(n *engine.Node) {
	for i, row := range m.engine.Rows() {
		if row.ID == n.ParentID {
			m.moveTo(i)
			return
		}
	}
}

// syncCursor keeps the cursor on the selected node while rows shift
// underneath it.
func (m *Model) syncCursor() {
	rows := m.engine.Rows()
	if len(rows) == 0 {
		m.cursor = 0
		return
	}
	for i, row := range rows {
		if row.ID == m.selected {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	m.selected = rows[m.cursor].ID
}

// runNode reruns the file of n, narrowed to n's full name for suites and
// tests.
func (m *Model) runNode(n *engine.Node) tea.Cmd {
	if m.runner == nil {
		return nil
	}
	f, ok := m.store.File(n.FileID)
	if !ok {
		return nil
	}
	if n.Type == task.TypeFile {
		return m.run(f.Filepath)
	}
	t, ok := m.store.Lookup(n.ID)
	if !ok {
		return nil
	}
	m.appendOutput(fmt.Sprintf("Running %s...", m.store.FullName(t)))
	m.pendingRuns++
	r, path, name := m.runner, f.Filepath, m.store.FullName(t)
	return tea.Batch(m.engine.StartRun(), func() tea.Msg {
		if err := r.RerunTask(path, name); err != nil {
			return runErrMsg{err}
		}
		return nil
	})
}

// run starts a runner process for paths and opens a new run in the engine.
func (m *Model) run(paths ...string) tea.Cmd {
	if m.runner == nil || len(paths) == 0 {
		return nil
	}
	if len(paths) == 1 {
		m.appendOutput(fmt.Sprintf("Running %s...", paths[0]))
	} else {
		m.appendOutput(fmt.Sprintf("Running %d files...", len(paths)))
	}
	m.pendingRuns++
	r := m.runner
	return tea.Batch(m.engine.StartRun(), func() tea.Msg {
		if err := r.Rerun(paths...); err != nil {
			return runErrMsg{err}
		}
		return nil
	})
}

// affectedPaths returns the test files to rerun after paths changed. A
// source change reruns the tests importing it when the graph is available,
// and everything loaded otherwise.
func (m Model) affectedPaths(paths []string) []string {
	var result []string
	seen := make(map[string]bool)
	add := func(files ...string) {
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
			}
		}
	}

	for _, path := range paths {
		change := filesystem.Classify(path)
		if m.graph != nil && change != filesystem.ChangeNone {
			m.graph.Update(path)
		}
		switch change {
		case filesystem.ChangeTest:
			if _, err := os.Stat(path); err == nil {
				add(path)
			}
		case filesystem.ChangeSource:
			if m.graph == nil || filesystem.IsConfigFile(path) {
				add(m.loadedPaths()...)
				continue
			}
			affected := m.graph.AffectedTests(path)
			m.logger.Debug("source changed", "path", path, "tests", len(affected))
			add(affected...)
		}
	}
	return result
}

func (m Model) loadedPaths() []string {
	files := m.store.Files()
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Filepath)
	}
	return paths
}

func (m *Model) appendOutput(line string) {
	m.output = append(m.output, line)
	if len(m.output) > maxOutputLines {
		m.output = m.output[len(m.output)-maxOutputLines:]
	}
}

// refreshOutput renders the selected node's details above the runner
// output. follow scrolls to the bottom when the view was already there.
func (m *Model) refreshOutput(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()

	var b strings.Builder
	if m.selected != "" {
		if details := taskDetails(m.store, m.selected); len(details) > 0 {
			b.WriteString(strings.Join(details, "\n"))
			b.WriteString("\n\n")
		}
	}
	for _, e := range m.store.Errors() {
		b.WriteString(fmt.Sprintf("Unhandled %s: %s\n", errorName(e), e.Message))
	}
	b.WriteString(strings.Join(m.output, "\n"))

	m.viewport.SetContent(m.wrapOutput(m.viewport.Width, b.String()))
	if follow && atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) wrapOutput(width int, content string) string {
	if width <= 0 {
		return content
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}

// explorerOuterWidth is the explorer pane width including its border.
func (m Model) explorerOuterWidth() int {
	w := m.explorerWidth
	if w == 0 {
		w = m.width / 2
	}
	return clampWidth(w, m.width)
}

func (m *Model) resizeExplorer(delta int) {
	if m.width == 0 {
		return
	}
	m.explorerWidth = clampWidth(m.explorerOuterWidth()+delta, m.width)
	m.layout()
	if m.prefs != nil {
		if err := m.prefs.SaveExplorerWidth(m.explorerWidth); err != nil {
			m.logger.Warn("saving explorer width", "error", err)
		}
	}
}

// layout sizes the output viewport to the current window.
func (m *Model) layout() {
	// Border(2) + Padding(2)
	outputWidth := m.width - m.explorerOuterWidth() - 4
	// Header(1) + Footer(1) + Border(2) + Title(2)
	viewportHeight := m.height - 6
	if outputWidth < 0 {
		outputWidth = 0
	}
	if viewportHeight < 0 {
		viewportHeight = 0
	}

	if !m.ready {
		m.viewport = viewport.New(outputWidth, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = outputWidth
		m.viewport.Height = viewportHeight
	}
	m.refreshOutput(false)
}

// View renders the UI based on the current state.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	if m.width == 0 {
		return "Loading..."
	}

	explorerWidth := m.explorerOuterWidth()
	paneHeight := m.height - 4

	header := m.renderHeader()
	explorerRender := m.renderExplorer(explorerWidth-2, paneHeight)

	var outputView strings.Builder
	outputView.WriteString(titleStyle.Render("OUTPUT") + "\n\n")
	if !m.ready {
		outputView.WriteString("Initializing...")
	} else {
		outputView.WriteString(m.viewport.View())
	}

	outputStyle := paneStyle
	if m.activePane == PaneOutput {
		outputStyle = activePaneStyle
	}
	outputRender := outputStyle.
		Width(m.width - explorerWidth - 2).
		Height(paneHeight).
		Render(outputView.String())

	panes := lipgloss.JoinHorizontal(lipgloss.Top, explorerRender, outputRender)
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, panes, footer)
}

// Commands

func (m Model) waitForEvent() tea.Msg {
	if m.events == nil {
		return nil
	}
	ev, ok := <-m.events
	if !ok {
		return streamClosedMsg{}
	}
	return eventMsg{event: ev}
}

func (m Model) discover() tea.Msg {
	paths, err := filesystem.DiscoverTestFiles(m.rootPath)
	return discoveredMsg{paths: paths, err: err}
}

func (m Model) changedFiles() tea.Msg {
	paths, err := filesystem.ChangedTestFiles(m.rootPath)
	return changedMsg{paths: paths, err: err}
}

func (m Model) startWatcher() tea.Msg {
	w, err := filesystem.NewWatcher(m.rootPath, m.logger)
	if err != nil {
		return watcherStartedMsg{err: err}
	}
	graph := analysis.NewGraph(m.logger)
	if err := graph.Build(m.rootPath); err != nil {
		m.logger.Warn("import graph unavailable, source changes rerun every file", "error", err)
		graph = nil
	}
	return watcherStartedMsg{watcher: w, graph: graph}
}

func (m Model) waitForWatcherEvents() tea.Msg {
	if m.watcher == nil {
		return nil
	}
	batch, ok := <-m.watcher.Events
	if !ok {
		return nil
	}
	return watchMsg(batch)
}
