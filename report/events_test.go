package report

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jesspatton/lazyexplorer/task"
)

func TestApply(t *testing.T) {
	store := task.NewStore("")
	file := &task.File{
		Common:   task.Info{ID: "f1", Name: "a.test.ts"},
		Filepath: "/p/a.test.ts",
	}
	file.Tasks = []task.Task{&task.Test{Common: task.Info{ID: "t1", Name: "adds", FileID: "f1", ParentID: "f1"}}}

	Apply(store, Collected{Files: []*task.File{file}})
	t1, ok := store.Lookup("t1")
	if !ok {
		t.Fatal("collected test should be indexed")
	}

	missing := Apply(store, TaskUpdate{Entries: []task.UpdateEntry{
		{ID: "t1", Result: &task.Result{State: task.StatePass}},
		{ID: "ghost", Result: &task.Result{State: task.StateFail}},
	}})
	if len(missing) != 1 || missing[0] != "ghost" {
		t.Errorf("expected ghost to be reported missing, got %v", missing)
	}
	if task.StateOf(t1) != task.StatePass {
		t.Errorf("update not applied")
	}

	if missing := Apply(store, Annotate{TaskID: "nope", Annotation: task.Annotation{Message: "x"}}); len(missing) != 1 {
		t.Errorf("annotating an unknown task should report it, got %v", missing)
	}
	Apply(store, Annotate{TaskID: "t1", Annotation: task.Annotation{Type: "notice", Message: "slow"}})
	if got := t1.(*task.Test).Annotations; len(got) != 1 {
		t.Errorf("expected annotation, got %v", got)
	}

	Apply(store, ConsoleLog{Entry: task.ConsoleLog{TaskID: "t1", Content: "hello"}})
	if logs := store.Logs("f1"); len(logs) != 1 {
		t.Errorf("expected one log for file, got %v", logs)
	}

	Apply(store, Finished{Errors: []task.ErrorInfo{{Message: "unhandled"}}})
	if len(store.Errors()) != 1 {
		t.Errorf("expected unhandled error to be recorded")
	}

	if missing := Apply(store, Output{Line: "noise"}); missing != nil {
		t.Errorf("output should not touch the store, got %v", missing)
	}
}

func TestFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte(`{"event":"pathsCollected","paths":["/a"]}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan any, 10)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, FormatJSON, out, slog.New(slog.DiscardHandler))
	}()

	select {
	case ev := <-out:
		if _, ok := ev.(PathsCollected); !ok {
			t.Fatalf("expected PathsCollected, got %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for existing event")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"event":"finished"}` + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case ev := <-out:
		if _, ok := ev.(Finished); !ok {
			t.Fatalf("expected Finished, got %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for appended event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Follow returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not stop after cancel")
	}
}
