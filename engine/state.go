package engine

import "sort"

// FilterState is the persisted search and status filter.
type FilterState struct {
	Search    string `yaml:"search"`
	Failed    bool   `yaml:"failed"`
	Success   bool   `yaml:"success"`
	Skipped   bool   `yaml:"skipped"`
	OnlyTests bool   `yaml:"onlyTests"`
	// ExpandAll forces every node open (true) or closed (false). Nil
	// defers to each node's own Expanded flag.
	ExpandAll *bool `yaml:"expandAll"`
}

// statusActive reports whether any status predicate is set.
func (f FilterState) statusActive() bool {
	return f.Failed || f.Success || f.Skipped
}

// Active reports whether any predicate narrows the tree.
func (f FilterState) Active() bool {
	return f.Search != "" || f.statusActive()
}

// ExpandState is the persisted set of expanded node ids. Files are open
// unless the user collapsed them, so collapsed file ids are kept as well.
type ExpandState struct {
	ids       map[string]struct{}
	collapsed map[string]struct{}
}

// NewExpandState seeds the sets from persisted ids.
func NewExpandState(expanded, collapsed []string) *ExpandState {
	s := &ExpandState{
		ids:       make(map[string]struct{}, len(expanded)),
		collapsed: make(map[string]struct{}, len(collapsed)),
	}
	for _, id := range expanded {
		s.ids[id] = struct{}{}
	}
	for _, id := range collapsed {
		s.collapsed[id] = struct{}{}
	}
	return s
}

// Has reports whether id is expanded.
func (s *ExpandState) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Collapsed reports whether the file id was explicitly collapsed.
func (s *ExpandState) Collapsed(id string) bool {
	_, ok := s.collapsed[id]
	return ok
}

func (s *ExpandState) add(id string) {
	s.ids[id] = struct{}{}
	delete(s.collapsed, id)
}

func (s *ExpandState) remove(id string) {
	delete(s.ids, id)
}

// collapseFile removes id from the expanded set and remembers the collapse.
func (s *ExpandState) collapseFile(id string) {
	delete(s.ids, id)
	s.collapsed[id] = struct{}{}
}

func (s *ExpandState) clear() {
	s.ids = make(map[string]struct{})
	s.collapsed = make(map[string]struct{})
}

// IDs returns a sorted snapshot of the expanded ids.
func (s *ExpandState) IDs() []string {
	return sortedKeys(s.ids)
}

// CollapsedIDs returns a sorted snapshot of the collapsed file ids.
func (s *ExpandState) CollapsedIDs() []string {
	return sortedKeys(s.collapsed)
}

func sortedKeys(m map[string]struct{}) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Persister stores the expanded set and filter between sessions.
type Persister interface {
	SaveExpanded(expanded, collapsed []string) error
	SaveFilter(filter FilterState) error
}

type nopPersister struct{}

func (nopPersister) SaveExpanded(_, _ []string) error { return nil }
func (nopPersister) SaveFilter(FilterState) error      { return nil }
