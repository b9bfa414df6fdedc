package task

import (
	"reflect"
	"testing"
)

func sampleFile() *File {
	f := &File{
		Common:   Info{ID: "f1", Name: "a.test.ts", FileID: "f1"},
		Filepath: "/p/a.test.ts",
	}
	test := &Test{Common: Info{ID: "t1", Name: "adds", FileID: "f1", ParentID: "s1"}}
	s := &Suite{Common: Info{ID: "s1", Name: "math", FileID: "f1", ParentID: "f1"}, Tasks: []Task{test}}
	f.Tasks = []Task{s}
	return f
}

func TestCollectPaths(t *testing.T) {
	s := NewStore("web")
	files := s.CollectPaths([]string{"/p/b.test.ts", "/p/a.test.ts"})
	if len(files) != 2 {
		t.Fatalf("expected 2 placeholders, got %d", len(files))
	}
	if files[0].Common.ID != FileID("/p/b.test.ts", "web") {
		t.Errorf("placeholder id = %q", files[0].Common.ID)
	}
	if files[0].Common.Mode != ModeRun || files[0].Common.Result != nil {
		t.Errorf("placeholder should be runnable with no result: %+v", files[0].Common)
	}

	again := s.CollectPaths([]string{"/p/a.test.ts"})
	if again[0] != files[1] {
		t.Error("collecting a known path should return the existing file")
	}

	sorted := s.Files()
	if sorted[0].Filepath != "/p/a.test.ts" || sorted[1].Filepath != "/p/b.test.ts" {
		t.Errorf("Files() not sorted by path: %s, %s", sorted[0].Filepath, sorted[1].Filepath)
	}
}

func TestFileIDStable(t *testing.T) {
	if FileID("/a", "x") != FileID("/a", "x") {
		t.Error("FileID must be deterministic")
	}
	if FileID("/a", "x") == FileID("/a", "y") {
		t.Error("project name must change the id")
	}
	if len(FileID("/a", "")) != 10 {
		t.Errorf("unexpected id length %d", len(FileID("/a", "")))
	}
}

func TestCollectReplaces(t *testing.T) {
	s := NewStore("")
	s.Collect([]*File{sampleFile()})
	if _, ok := s.Lookup("t1"); !ok {
		t.Fatal("t1 should be indexed")
	}

	replacement := &File{Common: Info{ID: "f1", Name: "a.test.ts"}, Filepath: "/p/a.test.ts"}
	replacement.Tasks = []Task{&Test{Common: Info{ID: "t2", Name: "other", FileID: "f1", ParentID: "f1"}}}
	s.Collect([]*File{replacement})

	if _, ok := s.Lookup("t1"); ok {
		t.Error("t1 should be dropped with the old content")
	}
	if _, ok := s.Lookup("t2"); !ok {
		t.Error("t2 should be indexed")
	}
	if f, _ := s.File("f1"); f != replacement {
		t.Error("file should be replaced")
	}
}

func TestUpdate(t *testing.T) {
	s := NewStore("")
	s.Collect([]*File{sampleFile()})

	d := 4.0
	missing := s.Update([]UpdateEntry{
		{ID: "t1", Result: &Result{State: StateFail, Duration: &d}, Meta: map[string]any{"k": "v"}},
		{ID: "nope"},
	})
	if !reflect.DeepEqual(missing, []string{"nope"}) {
		t.Errorf("missing = %v", missing)
	}
	t1, _ := s.Lookup("t1")
	if StateOf(t1) != StateFail || t1.Info().Meta["k"] != "v" {
		t.Errorf("update not applied: %+v", t1.Info())
	}

	if got := s.FailedFiles(); len(got) != 0 {
		t.Errorf("file has no failed result yet, got %v", got)
	}
	s.Update([]UpdateEntry{{ID: "f1", Result: &Result{State: StateFail}}})
	if got := s.FailedFiles(); !reflect.DeepEqual(got, []string{"/p/a.test.ts"}) {
		t.Errorf("FailedFiles = %v", got)
	}
}

func TestFullName(t *testing.T) {
	s := NewStore("")
	s.Collect([]*File{sampleFile()})
	t1, _ := s.Lookup("t1")
	if got := s.FullName(t1); got != "math adds" {
		t.Errorf("FullName = %q", got)
	}
}

func TestLogsAndReset(t *testing.T) {
	s := NewStore("")
	s.Collect([]*File{sampleFile()})
	s.AddLog(ConsoleLog{TaskID: "t1", Content: "a"})
	s.AddLog(ConsoleLog{TaskID: "unknown", Content: "b"})

	if len(s.Logs("f1")) != 1 || len(s.Logs("")) != 1 {
		t.Errorf("logs not keyed by file: %v / %v", s.Logs("f1"), s.Logs(""))
	}

	s.SetErrors([]ErrorInfo{{Message: "x"}})
	s.Reset()
	if len(s.Files()) != 0 || len(s.Errors()) != 0 || len(s.Logs("f1")) != 0 {
		t.Error("Reset should drop everything")
	}
}

func TestWalkAndTests(t *testing.T) {
	f := sampleFile()
	var ids []string
	Walk(f, func(t Task) bool {
		ids = append(ids, t.Info().ID)
		return t.Type() != TypeSuite
	})
	if !reflect.DeepEqual(ids, []string{"f1", "s1"}) {
		t.Errorf("Walk should stop below a suite when fn returns false, got %v", ids)
	}
	if tests := Tests(f); len(tests) != 1 || tests[0].Common.ID != "t1" {
		t.Errorf("Tests = %v", tests)
	}
	if ModeRun.Ignored() || !ModeTodo.Ignored() {
		t.Error("Ignored mismatch")
	}
}
