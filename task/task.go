package task

// Type discriminates the three kinds of task reported by the runner.
type Type string

const (
	TypeFile  Type = "file"
	TypeSuite Type = "suite"
	TypeTest  Type = "test"
)

// Mode is the run mode the runner assigned to a task.
type Mode string

const (
	ModeRun  Mode = "run"
	ModeSkip Mode = "skip"
	ModeTodo Mode = "todo"
	ModeOnly Mode = "only"
)

// Ignored reports whether the mode excludes the task from execution.
func (m Mode) Ignored() bool {
	return m == ModeSkip || m == ModeTodo
}

// State is the outcome of a task. The empty state means the task has not
// reported a result yet.
type State string

const (
	StateNone State = ""
	StateRun  State = "run"
	StatePass State = "pass"
	StateFail State = "fail"
	StateSkip State = "skip"
	StateTodo State = "todo"
)

// ErrorInfo is a serialized error attached to a failed result.
type ErrorInfo struct {
	Name    string
	Message string
	Stack   string
}

// Result is the last reported outcome of a task.
type Result struct {
	State State
	// Duration in milliseconds. Nil while the task is still running.
	Duration *float64
	Errors   []ErrorInfo
}

// Info holds the fields shared by every task variant.
type Info struct {
	ID       string
	Name     string
	Mode     Mode
	Result   *Result
	FileID   string
	ParentID string
	Meta     map[string]any
}

// Task is one of *File, *Suite or *Test.
type Task interface {
	Info() *Info
	Type() Type
}

// File is the root of a file-scoped result tree.
type File struct {
	Common          Info
	Filepath        string
	ProjectName     string
	CollectDuration float64
	SetupDuration   float64
	EnvironmentLoad float64
	PrepareDuration float64
	Tasks           []Task
}

func (f *File) Info() *Info { return &f.Common }
func (f *File) Type() Type  { return TypeFile }

// Suite groups tests and nested suites.
type Suite struct {
	Common Info
	Tasks  []Task
}

func (s *Suite) Info() *Info { return &s.Common }
func (s *Suite) Type() Type  { return TypeSuite }

// Test is a leaf task.
type Test struct {
	Common      Info
	Annotations []Annotation
}

func (t *Test) Info() *Info { return &t.Common }
func (t *Test) Type() Type  { return TypeTest }

// Annotation is a message attached to a test while it runs.
type Annotation struct {
	Type    string
	Message string
}

// Children returns the ordered child tasks of a file or suite, and nil for
// a test.
func Children(t Task) []Task {
	switch v := t.(type) {
	case *File:
		return v.Tasks
	case *Suite:
		return v.Tasks
	default:
		return nil
	}
}

// StateOf returns the reported state of t, or StateNone when no result
// has arrived.
func StateOf(t Task) State {
	if r := t.Info().Result; r != nil {
		return r.State
	}
	return StateNone
}

// Walk visits t and its descendants depth-first in reported order. It stops
// descending below a task when fn returns false.
func Walk(t Task, fn func(Task) bool) {
	if !fn(t) {
		return
	}
	for _, child := range Children(t) {
		Walk(child, fn)
	}
}

// Tests returns the leaf tests below t in reported order.
func Tests(t Task) []*Test {
	var tests []*Test
	Walk(t, func(t Task) bool {
		if test, ok := t.(*Test); ok {
			tests = append(tests, test)
		}
		return true
	})
	return tests
}
