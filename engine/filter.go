package engine

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jesspatton/lazyexplorer/task"
)

// View is the result of a filter pass.
type View struct {
	// Rows is the ordered list of nodes to render.
	Rows []*Node
	// Files holds every file that matches or contains a match, whether or
	// not it is rendered.
	Files []*Node
	// Tests holds every matching test, whether or not it is rendered.
	Tests []*Node
}

// ComputeVisible derives the rows to render for filter.
//
// Without a predicate, expansion alone decides which children appear. With
// a predicate, a node is kept when it matches or has a matching descendant,
// and the ancestor chain of every node matching on its own name and status
// is shown even under collapsed parents. Descendants of a node whose name
// matches the search inherit the search match but still follow expansion.
//
// With OnlyTests set, the rows are the matching tests in tree order with no
// ancestors. A test counts as matching when its own name or the name of a
// suite or file above it contains the search, so searching for a suite name
// lists every test in that suite.
func ComputeVisible(ix *Index, filter FilterState) View {
	p := &filterPass{
		index:   ix,
		filter:  filter,
		active:  filter.Active(),
		keep:    make(map[string]bool),
		reveal:  make(map[string]bool),
		matched: make(map[string]bool),
	}
	if filter.Search != "" {
		p.fold = cases.Fold()
		p.query = p.fold.String(filter.Search)
	}
	for _, file := range ix.Files() {
		p.mark(file, false)
	}

	var view View
	for _, file := range ix.Files() {
		if p.active && !p.keep[file.ID] {
			continue
		}
		view.Files = append(view.Files, file)
	}
	ix.Walk(ix.root, func(n *Node) bool {
		if n.Type == task.TypeTest && p.matched[n.ID] {
			view.Tests = append(view.Tests, n)
		}
		return true
	})

	if filter.OnlyTests {
		view.Rows = view.Tests
		return view
	}
	p.emit(ix.root, &view.Rows)
	return view
}

type filterPass struct {
	index  *Index
	filter FilterState
	active bool
	fold   cases.Caser
	query  string

	keep    map[string]bool
	reveal  map[string]bool
	matched map[string]bool
}

// mark records, bottom-up, which nodes match and which contain matches.
func (p *filterPass) mark(n *Node, inherited bool) (keep, reveal bool) {
	own := p.nameMatches(n)
	status := statusMatches(n, p.filter)
	matched := (p.query == "" || own || inherited) && status
	keep = matched
	reveal = (p.query == "" || own) && status
	for _, id := range n.children.ids {
		child, ok := p.index.nodes[id]
		if !ok {
			continue
		}
		k, r := p.mark(child, inherited || (own && p.query != ""))
		keep = keep || k
		reveal = reveal || r
	}
	p.matched[n.ID] = matched
	p.keep[n.ID] = keep
	p.reveal[n.ID] = reveal
	return keep, reveal
}

func (p *filterPass) nameMatches(n *Node) bool {
	if p.query == "" {
		return true
	}
	return strings.Contains(p.fold.String(n.Name), p.query)
}

func statusMatches(n *Node, f FilterState) bool {
	if !f.statusActive() {
		return true
	}
	switch {
	case f.Failed && n.State == task.StateFail:
		return true
	case f.Success && n.State == task.StatePass:
		return true
	case f.Skipped && n.Mode.Ignored():
		return true
	}
	return false
}

// emit appends n's visible descendants in child order.
func (p *filterPass) emit(n *Node, rows *[]*Node) {
	for _, id := range n.children.ids {
		child, ok := p.index.nodes[id]
		if !ok || !p.visible(n, child) {
			continue
		}
		*rows = append(*rows, child)
		p.emit(child, rows)
	}
}

func (p *filterPass) visible(parent, child *Node) bool {
	if parent == p.index.root {
		return !p.active || p.keep[child.ID]
	}
	open := isOpen(parent, p.filter)
	if !p.active {
		return open
	}
	return p.keep[child.ID] && (p.reveal[child.ID] || open)
}

// isOpen reports whether n shows its children under filter.
func isOpen(n *Node, filter FilterState) bool {
	if !n.Expandable {
		return false
	}
	if filter.ExpandAll != nil {
		return *filter.ExpandAll
	}
	return n.Expanded
}
