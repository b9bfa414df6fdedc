// Package analysis tracks the relative imports between source files so
// that watch mode can rerun only the tests a change reaches.
package analysis

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jesspatton/lazyexplorer/filesystem"
)

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Graph is the import graph of a project.
type Graph struct {
	mu sync.RWMutex
	// forward: file -> files it imports
	forward map[string]set
	// reverse: file -> files that import it
	reverse map[string]set
	// pending: import key -> files importing a path that does not exist yet
	pending map[string]set
	// unresolved: file -> its pending import keys
	unresolved map[string][]string

	logger *slog.Logger
}

// NewGraph creates an empty graph.
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Graph{
		forward:    make(map[string]set),
		reverse:    make(map[string]set),
		pending:    make(map[string]set),
		unresolved: make(map[string][]string),
		logger:     logger,
	}
}

// Build parses every source file under root.
func (g *Graph) Build(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	ignorer := filesystem.NewIgnorer(abs)

	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for f := range filesystem.StreamFiles(abs) {
		if !filesystem.IsSourceFile(f.Filename) || ignorer.ShouldIgnore(f.Location, abs) {
			continue
		}
		g.add(f.Location)
		count++
	}
	g.logger.Debug("import graph built", "files", count, "pending", len(g.pending))
	return nil
}

// Update re-parses path after it changed. A path that no longer exists is
// removed and its importers wait for it to reappear.
func (g *Graph) Update(path string) {
	if !filesystem.IsSourceFile(path) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.unlink(path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		key := importKey(path)
		for importer := range g.reverse[path] {
			delete(g.forward[importer], path)
			g.addPending(key, importer)
		}
		delete(g.reverse, path)
		return
	}
	g.add(path)
	g.link(path)
}

// Dependents returns every file that imports path, directly or
// transitively, sorted.
func (g *Graph) Dependents(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := set{path: {}}
	queue := []string{path}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dep := range g.reverse[current] {
			if _, ok := visited[dep]; ok {
				continue
			}
			visited[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	delete(visited, path)
	return visited.sorted()
}

// AffectedTests returns the test files a change to path can reach: path
// itself when it is a test, and every test that depends on it.
func (g *Graph) AffectedTests(path string) []string {
	var tests []string
	if filesystem.IsTestFile(path) {
		tests = append(tests, path)
	}
	for _, dep := range g.Dependents(path) {
		if filesystem.IsTestFile(dep) {
			tests = append(tests, dep)
		}
	}
	return tests
}

// Internal helpers. Callers hold g.mu.

// add parses path and records its outgoing edges.
func (g *Graph) add(path string) {
	imports, err := ParseImports(path)
	if err != nil {
		g.logger.Debug("skipping unreadable source", "path", path, "error", err)
		return
	}
	deps := make(set, len(imports.Resolved))
	for _, dep := range imports.Resolved {
		deps[dep] = struct{}{}
		g.addReverse(dep, path)
	}
	g.forward[path] = deps
	for _, key := range imports.Unresolved {
		g.addPending(key, path)
	}
}

// unlink drops the outgoing edges of path.
func (g *Graph) unlink(path string) {
	for dep := range g.forward[path] {
		delete(g.reverse[dep], path)
	}
	delete(g.forward, path)
	for _, key := range g.unresolved[path] {
		delete(g.pending[key], path)
		if len(g.pending[key]) == 0 {
			delete(g.pending, key)
		}
	}
	delete(g.unresolved, path)
}

// link resolves pending imports that path satisfies.
func (g *Graph) link(path string) {
	key := importKey(path)
	importers, ok := g.pending[key]
	if !ok {
		return
	}
	for importer := range importers {
		if g.forward[importer] == nil {
			g.forward[importer] = make(set)
		}
		g.forward[importer][path] = struct{}{}
		g.addReverse(path, importer)
		g.unresolved[importer] = remove(g.unresolved[importer], key)
	}
	delete(g.pending, key)
}

func (g *Graph) addReverse(dependency, dependent string) {
	if g.reverse[dependency] == nil {
		g.reverse[dependency] = make(set)
	}
	g.reverse[dependency][dependent] = struct{}{}
}

func (g *Graph) addPending(key, dependent string) {
	if g.pending[key] == nil {
		g.pending[key] = make(set)
	}
	g.pending[key][dependent] = struct{}{}
	if !contains(g.unresolved[dependent], key) {
		g.unresolved[dependent] = append(g.unresolved[dependent], key)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
