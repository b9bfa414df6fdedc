package task

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// ConsoleLog is one line of user console output captured during a run.
type ConsoleLog struct {
	TaskID  string
	Type    string // "stdout" or "stderr"
	Content string
	Time    int64
}

// UpdateEntry carries a result change for a single task id.
type UpdateEntry struct {
	ID     string
	Result *Result
	Meta   map[string]any
}

// Store is the authoritative result tree as reported by the runner. It is
// mutated only by incoming events; readers treat it as read-only.
type Store struct {
	files   map[string]*File
	idMap   map[string]Task
	logs    map[string][]ConsoleLog
	errors  []ErrorInfo
	project string
}

// NewStore creates an empty Store. project is used when synthesizing
// placeholder files for collected paths.
func NewStore(project string) *Store {
	return &Store{
		files:   make(map[string]*File),
		idMap:   make(map[string]Task),
		logs:    make(map[string][]ConsoleLog),
		project: project,
	}
}

// FileID returns the stable id used for a placeholder file.
func FileID(path, project string) string {
	sum := blake3.Sum256([]byte(path + project))
	return hex.EncodeToString(sum[:5])
}

// CollectPaths creates placeholder files for paths that are not known yet.
// It returns the files in the order given.
func (s *Store) CollectPaths(paths []string) []*File {
	files := make([]*File, 0, len(paths))
	for _, path := range paths {
		id := FileID(path, s.project)
		if existing, ok := s.files[id]; ok {
			files = append(files, existing)
			continue
		}
		f := &File{
			Common: Info{
				ID:     id,
				Name:   path,
				Mode:   ModeRun,
				FileID: id,
			},
			Filepath:    path,
			ProjectName: s.project,
		}
		s.files[id] = f
		s.idMap[id] = f
		files = append(files, f)
	}
	return files
}

// Collect merges files into the store. A file whose id is already present
// replaces the previous content; its old descendants are dropped from the
// id lookup.
func (s *Store) Collect(files []*File) {
	for _, f := range files {
		if old, ok := s.files[f.Common.ID]; ok {
			Walk(old, func(t Task) bool {
				delete(s.idMap, t.Info().ID)
				return true
			})
		}
		s.files[f.Common.ID] = f
		Walk(f, func(t Task) bool {
			s.idMap[t.Info().ID] = t
			return true
		})
	}
}

// Update applies result changes. Entries naming unknown ids are skipped and
// returned so the caller can log them.
func (s *Store) Update(entries []UpdateEntry) (missing []string) {
	for _, e := range entries {
		t, ok := s.idMap[e.ID]
		if !ok {
			missing = append(missing, e.ID)
			continue
		}
		info := t.Info()
		info.Result = e.Result
		if e.Meta != nil {
			info.Meta = e.Meta
		}
	}
	return missing
}

// Annotate attaches an annotation to a test. It reports false when the id
// is unknown or does not name a test.
func (s *Store) Annotate(taskID string, a Annotation) bool {
	test, ok := s.idMap[taskID].(*Test)
	if !ok {
		return false
	}
	test.Annotations = append(test.Annotations, a)
	return true
}

// AddLog buffers a console line under the file owning its task. Lines
// without a known task are kept under the empty key.
func (s *Store) AddLog(entry ConsoleLog) {
	key := ""
	if t, ok := s.idMap[entry.TaskID]; ok {
		key = t.Info().FileID
	}
	s.logs[key] = append(s.logs[key], entry)
}

// Logs returns console output buffered for a file id.
func (s *Store) Logs(fileID string) []ConsoleLog {
	return s.logs[fileID]
}

// SetErrors records unhandled errors reported at the end of a run.
func (s *Store) SetErrors(errs []ErrorInfo) {
	s.errors = errs
}

// Errors returns the unhandled errors of the last run.
func (s *Store) Errors() []ErrorInfo {
	return s.errors
}

// Lookup returns the task with the given id.
func (s *Store) Lookup(id string) (Task, bool) {
	t, ok := s.idMap[id]
	return t, ok
}

// File returns the file with the given id.
func (s *Store) File(id string) (*File, bool) {
	f, ok := s.files[id]
	return f, ok
}

// Files returns every known file sorted by path, then project name.
func (s *Store) Files() []*File {
	files := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	SortFiles(files)
	return files
}

// SortFiles orders files by path, then project name.
func SortFiles(files []*File) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Filepath != files[j].Filepath {
			return files[i].Filepath < files[j].Filepath
		}
		return files[i].ProjectName < files[j].ProjectName
	})
}

// FailedFiles returns the paths of files whose last result failed.
func (s *Store) FailedFiles() []string {
	var paths []string
	for _, f := range s.Files() {
		if StateOf(f) == StateFail {
			paths = append(paths, f.Filepath)
		}
	}
	return paths
}

// FullName returns the space-joined names of t's suites and t itself,
// excluding the file.
func (s *Store) FullName(t Task) string {
	var parts []string
	for cur := t; cur != nil; {
		if cur.Type() == TypeFile {
			break
		}
		parts = append([]string{cur.Info().Name}, parts...)
		parent, ok := s.idMap[cur.Info().ParentID]
		if !ok {
			break
		}
		cur = parent
	}
	return strings.Join(parts, " ")
}

// Reset drops every file, log and error.
func (s *Store) Reset() {
	s.files = make(map[string]*File)
	s.idMap = make(map[string]Task)
	s.logs = make(map[string][]ConsoleLog)
	s.errors = nil
}
