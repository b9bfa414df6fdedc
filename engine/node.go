package engine

import (
	"math"

	"github.com/jesspatton/lazyexplorer/task"
)

// RootID is the id of the permanent sentinel node holding the files.
const RootID = "root"

// Node is the explorer's own record of a file, suite or test. Nodes are
// updated in place, so a pointer held by a caller stays valid across runs
// for as long as the file remains loaded.
type Node struct {
	ID       string
	ParentID string
	FileID   string
	Type     task.Type
	Name     string
	Mode     task.Mode
	State    task.State
	// Duration in whole milliseconds. Nil while the task is running.
	Duration *int64
	Indent   int

	Expandable bool
	Expanded   bool

	// File only.
	Filepath         string
	ProjectName      string
	ProjectNameColor string
	CollectDuration  float64
	SetupDuration    float64
	EnvironmentLoad  float64
	PrepareDuration  float64

	children childSet
}

// Children returns the child ids in first-seen order.
func (n *Node) Children() []string {
	return n.children.ids
}

// HasChild reports whether id is attached below n.
func (n *Node) HasChild(id string) bool {
	return n.children.has(id)
}

// childSet is an insertion-ordered set of node ids.
type childSet struct {
	ids   []string
	index map[string]struct{}
}

func (c *childSet) has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// add appends id unless it is already present.
func (c *childSet) add(id string) bool {
	if c.index == nil {
		c.index = make(map[string]struct{})
	}
	if _, ok := c.index[id]; ok {
		return false
	}
	c.index[id] = struct{}{}
	c.ids = append(c.ids, id)
	return true
}

func (c *childSet) remove(id string) {
	if !c.has(id) {
		return
	}
	delete(c.index, id)
	for i, existing := range c.ids {
		if existing == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			return
		}
	}
}

// replace swaps the contents for ids, dropping duplicates.
func (c *childSet) replace(ids []string) {
	c.ids = nil
	c.index = nil
	for _, id := range ids {
		c.add(id)
	}
}

var projectColors = []string{"blue", "yellow", "cyan", "green", "magenta"}

// projectNameColor picks a stable palette entry for a project name.
func projectNameColor(name string) string {
	if name == "" {
		return ""
	}
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	return projectColors[sum%len(projectColors)]
}

// roundDuration converts a reported duration to whole milliseconds.
func roundDuration(r *task.Result) *int64 {
	if r == nil || r.Duration == nil {
		return nil
	}
	ms := int64(math.Round(math.Max(*r.Duration, 0)))
	return &ms
}
