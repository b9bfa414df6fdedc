package engine

import (
	"log/slog"
	"sort"

	"github.com/jesspatton/lazyexplorer/task"
)

// Source is the read side of the raw result tree.
type Source interface {
	Lookup(id string) (task.Task, bool)
	File(id string) (*task.File, bool)
	Files() []*task.File
}

// PendingSet maps a file id to the task ids that changed since the last
// drain.
type PendingSet map[string]map[string]struct{}

// Add records id as changed under fileID.
func (p PendingSet) Add(fileID, id string) {
	ids, ok := p[fileID]
	if !ok {
		ids = make(map[string]struct{})
		p[fileID] = ids
	}
	ids[id] = struct{}{}
}

// Len returns the number of changed task ids across all files.
func (p PendingSet) Len() int {
	n := 0
	for _, ids := range p {
		n += len(ids)
	}
	return n
}

// Reconciler merges the raw result tree into the index.
type Reconciler struct {
	index  *Index
	source Source
	logger *slog.Logger

	// seed reports whether a node seen for the first time starts expanded.
	seed func(id string, typ task.Type) bool
	// open reports whether a node currently shows its children.
	open func(n *Node) bool
}

// UpsertFile creates or updates the node for f. With deep set, every
// descendant is reconciled and children no longer reported are dropped.
func (r *Reconciler) UpsertFile(f *task.File, deep bool) *Node {
	id := f.Common.ID
	n, ok := r.index.nodes[id]
	if !ok {
		n = &Node{
			ID:         id,
			ParentID:   RootID,
			FileID:     id,
			Type:       task.TypeFile,
			Indent:     0,
			Expandable: true,
			Expanded:   r.seed(id, task.TypeFile),
		}
		r.index.nodes[id] = n
		r.index.root.children.add(id)
	}
	n.Name = f.Common.Name
	n.Mode = f.Common.Mode
	n.State = task.StateOf(f)
	n.Duration = roundDuration(f.Common.Result)
	n.Filepath = f.Filepath
	n.ProjectName = f.ProjectName
	n.ProjectNameColor = projectNameColor(f.ProjectName)
	n.CollectDuration = f.CollectDuration
	n.SetupDuration = f.SetupDuration
	n.EnvironmentLoad = f.EnvironmentLoad
	n.PrepareDuration = f.PrepareDuration

	if deep {
		r.syncChildren(n, f.Tasks)
	}
	return n
}

// UpsertTask creates or updates the node for t below parentID and attaches
// it to the parent if it is not attached yet. It returns nil when the
// parent is not in the index.
func (r *Reconciler) UpsertTask(parentID string, t task.Task, recurse bool) *Node {
	parent, ok := r.index.nodes[parentID]
	if !ok {
		r.logger.Debug("skipping task with unknown parent", "task", t.Info().ID, "parent", parentID)
		return nil
	}
	info := t.Info()
	n, ok := r.index.nodes[info.ID]
	if !ok {
		n = &Node{
			ID:         info.ID,
			ParentID:   parentID,
			FileID:     parent.FileID,
			Type:       t.Type(),
			Indent:     parent.Indent + 1,
			Expandable: t.Type() != task.TypeTest,
		}
		if n.Expandable {
			n.Expanded = r.seed(info.ID, t.Type())
		}
		r.index.nodes[info.ID] = n
	} else if n.ParentID != parentID {
		if old, ok := r.index.nodes[n.ParentID]; ok {
			old.children.remove(n.ID)
		}
		n.ParentID = parentID
		n.FileID = parent.FileID
		n.Indent = parent.Indent + 1
	}
	parent.children.add(info.ID)

	n.Name = info.Name
	n.Mode = info.Mode
	n.State = task.StateOf(t)
	n.Duration = roundDuration(info.Result)

	if recurse && n.Expandable {
		r.syncChildren(n, task.Children(t))
	}
	return n
}

// syncChildren reconciles children below n and drops attached children
// that are no longer reported.
func (r *Reconciler) syncChildren(n *Node, children []task.Task) {
	seen := make(map[string]struct{}, len(children))
	for _, child := range children {
		seen[child.Info().ID] = struct{}{}
		r.UpsertTask(n.ID, child, true)
	}
	for _, id := range append([]string(nil), n.children.ids...) {
		if _, ok := seen[id]; !ok {
			r.index.remove(id)
		}
	}
}

// Full reconciles every given file deeply. With replaceAll set, files not
// in the list are dropped and the root is re-sorted by path and project.
func (r *Reconciler) Full(files []*task.File, replaceAll bool) {
	for _, f := range files {
		r.UpsertFile(f, true)
	}
	if !replaceAll {
		return
	}
	sorted := append([]*task.File(nil), files...)
	task.SortFiles(sorted)
	keep := make(map[string]struct{}, len(sorted))
	ids := make([]string, 0, len(sorted))
	for _, f := range sorted {
		keep[f.Common.ID] = struct{}{}
		ids = append(ids, f.Common.ID)
	}
	for _, id := range append([]string(nil), r.index.root.children.ids...) {
		if _, ok := keep[id]; !ok {
			r.index.remove(id)
		}
	}
	r.index.root.children.replace(ids)
}

// Targeted reconciles only the pending tasks and their ancestor chains.
// Tasks seen for the first time below a collapsed parent are left
// unattached until the parent is expanded. It returns the number of tasks
// reconciled.
func (r *Reconciler) Targeted(pending PendingSet) int {
	fileIDs := make([]string, 0, len(pending))
	for id := range pending {
		fileIDs = append(fileIDs, id)
	}
	sort.Strings(fileIDs)

	count := 0
	for _, fileID := range fileIDs {
		f, ok := r.source.File(fileID)
		if !ok {
			r.logger.Debug("pending file not in source", "file", fileID)
			continue
		}
		fileNode := r.UpsertFile(f, false)
		count++

		needed := r.withAncestors(pending[fileID])
		var visit func(parent *Node, t task.Task)
		visit = func(parent *Node, t task.Task) {
			id := t.Info().ID
			if _, ok := needed[id]; !ok {
				return
			}
			if _, known := r.index.nodes[id]; !known && !r.open(parent) {
				return
			}
			n := r.UpsertTask(parent.ID, t, false)
			if n == nil {
				return
			}
			count++
			for _, child := range task.Children(t) {
				visit(n, child)
			}
		}
		for _, child := range f.Tasks {
			visit(fileNode, child)
		}
	}
	return count
}

// withAncestors expands ids with every ancestor id found in the source.
func (r *Reconciler) withAncestors(ids map[string]struct{}) map[string]struct{} {
	needed := make(map[string]struct{}, len(ids))
	for id := range ids {
		for cur := id; cur != ""; {
			if _, ok := needed[cur]; ok {
				break
			}
			t, ok := r.source.Lookup(cur)
			if !ok {
				break
			}
			needed[cur] = struct{}{}
			cur = t.Info().ParentID
		}
	}
	return needed
}

// Pull attaches the current children of id from the source, recursively.
// It is used when a node is expanded.
func (r *Reconciler) Pull(id string) {
	n, ok := r.index.nodes[id]
	if !ok || !n.Expandable || n == r.index.root {
		return
	}
	t, ok := r.source.Lookup(id)
	if !ok {
		return
	}
	r.syncChildren(n, task.Children(t))
}
