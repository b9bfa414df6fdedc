// Package report decodes the event stream a test runner's reporter writes
// and applies it to the raw result store.
package report

import (
	"github.com/jesspatton/lazyexplorer/task"
)

// PathsCollected lists the test files the runner is about to collect.
type PathsCollected struct {
	Paths []string
}

// Collected carries files whose task trees were collected or re-collected.
type Collected struct {
	Files []*task.File
}

// TaskUpdate carries result changes for individual tasks.
type TaskUpdate struct {
	Entries []task.UpdateEntry
}

// Finished ends a run. Files, when present, hold the final trees.
type Finished struct {
	Files  []*task.File
	Errors []task.ErrorInfo
}

// ConsoleLog is a line of user console output.
type ConsoleLog struct {
	Entry task.ConsoleLog
}

// Annotate attaches an annotation to a running test.
type Annotate struct {
	TaskID     string
	Annotation task.Annotation
}

// Output is a line on the reporter stream that is not an event, usually
// plain runner output.
type Output struct {
	Line string
}

// Apply applies a decoded event to store. It returns the ids of updated
// or annotated tasks the store does not know.
func Apply(store *task.Store, event any) (missing []string) {
	switch ev := event.(type) {
	case PathsCollected:
		store.CollectPaths(ev.Paths)
	case Collected:
		store.Collect(ev.Files)
	case TaskUpdate:
		return store.Update(ev.Entries)
	case Finished:
		if len(ev.Files) > 0 {
			store.Collect(ev.Files)
		}
		store.SetErrors(ev.Errors)
	case ConsoleLog:
		store.AddLog(ev.Entry)
	case Annotate:
		if !store.Annotate(ev.TaskID, ev.Annotation) {
			return []string{ev.TaskID}
		}
	}
	return nil
}
