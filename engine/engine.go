package engine

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jesspatton/lazyexplorer/report"
	"github.com/jesspatton/lazyexplorer/task"
)

// Options configures an Engine.
type Options struct {
	// MaxRate caps drains per second during a run.
	MaxRate int
	// FallbackDelay is the grace period before a run without incremental
	// updates falls back to a full pass.
	FallbackDelay time.Duration
	// Expanded, Collapsed and Filter seed the persisted state. Collapsed
	// lists files the user closed; every other file starts open.
	Expanded  []string
	Collapsed []string
	Filter    FilterState
	Persister Persister
	Logger    *slog.Logger
}

// Engine owns the explorer index and everything derived from it. All
// methods must be called from the program's update loop.
type Engine struct {
	source     Source
	index      *Index
	expand     *ExpandState
	filter     FilterState
	reconciler *Reconciler
	scheduler  *Scheduler

	view     View
	summary  Summary
	filtered Summary

	unhandled  int
	fullPasses int
	drains     int

	persister Persister
	logger    *slog.Logger
}

// New creates an Engine reading raw results from source.
func New(source Source, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	persister := opts.Persister
	if persister == nil {
		persister = nopPersister{}
	}
	e := &Engine{
		source:    source,
		index:     newIndex(),
		expand:    NewExpandState(opts.Expanded, opts.Collapsed),
		filter:    opts.Filter,
		persister: persister,
		logger:    logger,
	}
	e.reconciler = &Reconciler{
		index:  e.index,
		source: source,
		logger: logger,
		seed: func(id string, typ task.Type) bool {
			if e.filter.ExpandAll != nil {
				return *e.filter.ExpandAll
			}
			if e.expand.Has(id) {
				return true
			}
			return typ == task.TypeFile && !e.expand.Collapsed(id)
		},
		open: func(n *Node) bool {
			return n == e.index.root || isOpen(n, e.filter)
		},
	}
	e.scheduler = newScheduler(opts.MaxRate, opts.FallbackDelay, e, logger)
	return e
}

// Update applies a transport event or a scheduler tick. Transport events
// must already have been applied to the source.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	if cmd, ok := e.scheduler.Update(msg); ok {
		return cmd
	}

	switch msg := msg.(type) {
	case report.PathsCollected:
		cmd := e.ensureRunning()
		e.LoadFiles(e.source.Files(), true)
		return cmd

	case report.Collected:
		cmd := e.ensureRunning()
		e.LoadFiles(msg.Files, false)
		return cmd

	case report.TaskUpdate:
		cmds := []tea.Cmd{e.ensureRunning()}
		for _, entry := range msg.Entries {
			t, ok := e.source.Lookup(entry.ID)
			if !ok {
				e.logger.Debug("update for unknown task", "task", entry.ID)
				continue
			}
			cmds = append(cmds, e.scheduler.Enqueue(t.Info().FileID, entry.ID))
		}
		return tea.Batch(cmds...)

	case report.Finished:
		e.unhandled = len(msg.Errors)
		e.EndRun()
		return nil
	}
	return nil
}

func (e *Engine) ensureRunning() tea.Cmd {
	if e.scheduler.Running() {
		return nil
	}
	return e.StartRun()
}

// LoadFiles reconciles files deeply. With replaceAll set, the loaded file
// set becomes exactly files, sorted by path and project.
func (e *Engine) LoadFiles(files []*task.File, replaceAll bool) {
	e.reconciler.Full(files, replaceAll)
	e.recompute()
}

// StartRun marks a run as in progress. The returned command must be run
// by the program to arm the fallback timer.
func (e *Engine) StartRun() tea.Cmd {
	e.logger.Info("run started")
	e.unhandled = 0
	return e.scheduler.StartRun()
}

// EndRun stops incremental drains and converges the index on the source
// with one full pass.
func (e *Engine) EndRun() {
	e.scheduler.EndRun()
	e.logger.Info("run finished",
		"files", e.summary.Files,
		"tests", e.summary.Tests,
		"failed", e.summary.TestsFailed,
	)
}

func (e *Engine) fullPass() {
	e.reconciler.Full(e.source.Files(), true)
	e.recompute()
	e.fullPasses++
	e.logger.Debug("full pass", "nodes", e.index.Len())
}

func (e *Engine) targetedPass(pending PendingSet) {
	n := e.reconciler.Targeted(pending)
	e.recompute()
	e.drains++
	e.logger.Debug("drain", "files", len(pending), "tasks", n)
}

func (e *Engine) recompute() {
	e.view = ComputeVisible(e.index, e.filter)
	e.summary = Aggregate(e.index, e.source, nil)
	e.summary.UnhandledErrors = e.unhandled
	e.filtered = Aggregate(e.index, e.source, &e.view)
}

// ExpandNode opens a file or suite, attaching its current children.
func (e *Engine) ExpandNode(id string) {
	n, ok := e.index.Get(id)
	if !ok || !n.Expandable || n == e.index.root {
		return
	}
	e.syncExpandAll()
	n.Expanded = true
	e.expand.add(id)
	e.reconciler.Pull(id)
	e.saveExpanded()
	e.FilterNodes()
}

// CollapseNode closes a file or suite and forgets the expansion of every
// node below it.
func (e *Engine) CollapseNode(id string) {
	n, ok := e.index.Get(id)
	if !ok || !n.Expandable || n == e.index.root {
		return
	}
	e.syncExpandAll()
	n.Expanded = false
	if n.Type == task.TypeFile {
		e.expand.collapseFile(id)
	} else {
		e.expand.remove(id)
	}
	e.index.Walk(n, func(child *Node) bool {
		child.Expanded = false
		e.expand.remove(child.ID)
		return true
	})
	if raw, ok := e.source.Lookup(id); ok {
		task.Walk(raw, func(t task.Task) bool {
			e.expand.remove(t.Info().ID)
			return true
		})
	}
	e.saveExpanded()
	e.FilterNodes()
}

// syncExpandAll hands control back to per-node flags after a forced
// expand or collapse, keeping what is currently shown.
func (e *Engine) syncExpandAll() {
	if e.filter.ExpandAll == nil {
		return
	}
	open := *e.filter.ExpandAll
	e.filter.ExpandAll = nil
	e.saveFilter()
	if !open {
		// Files loaded while everything was forced closed stay closed.
		for _, f := range e.index.Files() {
			if !f.Expanded {
				e.expand.collapseFile(f.ID)
			}
		}
		return
	}
	e.index.Walk(e.index.root, func(n *Node) bool {
		if n.Expandable {
			n.Expanded = true
			e.expand.add(n.ID)
		}
		return true
	})
}

// ExpandAllNodes forces every node open.
func (e *Engine) ExpandAllNodes() {
	for _, f := range e.index.Files() {
		e.reconciler.Pull(f.ID)
	}
	e.index.Walk(e.index.root, func(n *Node) bool {
		if n.Expandable {
			n.Expanded = true
			e.expand.add(n.ID)
		}
		return true
	})
	open := true
	e.filter.ExpandAll = &open
	e.saveExpanded()
	e.saveFilter()
	e.FilterNodes()
}

// CollapseAllNodes forces every node closed and clears the expanded set.
func (e *Engine) CollapseAllNodes() {
	e.index.Walk(e.index.root, func(n *Node) bool {
		n.Expanded = false
		return true
	})
	e.expand.clear()
	for _, f := range e.index.Files() {
		e.expand.collapseFile(f.ID)
	}
	closed := false
	e.filter.ExpandAll = &closed
	e.saveExpanded()
	e.saveFilter()
	e.FilterNodes()
}

// FilterNodes recomputes the visible rows and summaries with the current
// filter.
func (e *Engine) FilterNodes() {
	e.recompute()
}

// SetFilter replaces the filter and recomputes the view.
func (e *Engine) SetFilter(filter FilterState) {
	e.filter = filter
	e.saveFilter()
	e.FilterNodes()
}

// SetSearch replaces the search text.
func (e *Engine) SetSearch(search string) {
	f := e.filter
	f.Search = search
	e.SetFilter(f)
}

// ToggleFailed flips the failed predicate.
func (e *Engine) ToggleFailed() {
	f := e.filter
	f.Failed = !f.Failed
	e.SetFilter(f)
}

// ToggleSuccess flips the success predicate.
func (e *Engine) ToggleSuccess() {
	f := e.filter
	f.Success = !f.Success
	e.SetFilter(f)
}

// ToggleSkipped flips the skipped predicate.
func (e *Engine) ToggleSkipped() {
	f := e.filter
	f.Skipped = !f.Skipped
	e.SetFilter(f)
}

// ToggleOnlyTests flips between the tree and the flat test list.
func (e *Engine) ToggleOnlyTests() {
	f := e.filter
	f.OnlyTests = !f.OnlyTests
	e.SetFilter(f)
}

// CollectTestsTotal returns badge counts for the tests matching search,
// ignoring status predicates and expansion.
func (e *Engine) CollectTestsTotal(search string) TestCounts {
	view := ComputeVisible(e.index, FilterState{Search: search, OnlyTests: true})
	return CollectTestsTotal(view.Tests)
}

// Reset drops every node except the root and stops the scheduler.
func (e *Engine) Reset() {
	e.scheduler.reset()
	e.index.reset()
	e.view = View{}
	e.summary = Summary{}
	e.filtered = Summary{}
	e.unhandled = 0
}

func (e *Engine) saveExpanded() {
	if err := e.persister.SaveExpanded(e.expand.IDs(), e.expand.CollapsedIDs()); err != nil {
		e.logger.Warn("saving expanded nodes", "error", err)
	}
}

func (e *Engine) saveFilter() {
	if err := e.persister.SaveFilter(e.filter); err != nil {
		e.logger.Warn("saving filter", "error", err)
	}
}

// Accessors

func (e *Engine) Index() *Index                { return e.index }
func (e *Engine) Rows() []*Node                { return e.view.Rows }
func (e *Engine) View() View                   { return e.view }
func (e *Engine) Summary() Summary             { return e.summary }
func (e *Engine) FilteredSummary() Summary     { return e.filtered }
func (e *Engine) Filter() FilterState          { return e.filter }
func (e *Engine) Expanded() []string           { return e.expand.IDs() }
func (e *Engine) Collapsed() []string          { return e.expand.CollapsedIDs() }
func (e *Engine) Running() bool                { return e.scheduler.Running() }
func (e *Engine) Pending() int                 { return e.scheduler.Pending() }
func (e *Engine) Node(id string) (*Node, bool) { return e.index.Get(id) }

// IsOpen reports whether n currently shows its children.
func (e *Engine) IsOpen(n *Node) bool {
	return isOpen(n, e.filter)
}

// Stats reports how many full passes and drains have run.
func (e *Engine) Stats() (fullPasses, drains int) {
	return e.fullPasses, e.drains
}
