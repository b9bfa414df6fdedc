package engine

import (
	"math"
	"regexp"
	"time"

	"github.com/jesspatton/lazyexplorer/task"
)

var snapshotMismatch = regexp.MustCompile(`Snapshot .* mismatched`)

// Summary holds the counters rendered by the dashboard and progress bar.
// Every file and test lands in exactly one of failed, success, ignore or
// running.
type Summary struct {
	Files        int
	FilesFailed  int
	FilesSuccess int
	FilesIgnore  int
	FilesRunning int
	FilesSkipped int
	FilesTodo    int

	Tests        int
	TestsFailed  int
	TestsSuccess int
	TestsIgnore  int
	TestsRunning int
	TestsSkipped int
	TestsTodo    int

	Time            time.Duration
	FailedSnapshot  bool
	UnhandledErrors int
}

// Finished reports whether nothing is still running.
func (s Summary) Finished() bool {
	return s.FilesRunning == 0 && s.TestsRunning == 0
}

type outcome int

const (
	outcomeRunning outcome = iota
	outcomeFailed
	outcomeSuccess
	outcomeSkipped
	outcomeTodo
)

func classify(state task.State, mode task.Mode) outcome {
	switch {
	case state == task.StateFail:
		return outcomeFailed
	case state == task.StatePass:
		return outcomeSuccess
	case mode == task.ModeSkip || state == task.StateSkip:
		return outcomeSkipped
	case mode == task.ModeTodo || state == task.StateTodo:
		return outcomeTodo
	default:
		return outcomeRunning
	}
}

func (s *Summary) addFile(n *Node) {
	s.Files++
	switch classify(n.State, n.Mode) {
	case outcomeFailed:
		s.FilesFailed++
	case outcomeSuccess:
		s.FilesSuccess++
	case outcomeSkipped:
		s.FilesSkipped++
		s.FilesIgnore++
	case outcomeTodo:
		s.FilesTodo++
		s.FilesIgnore++
	default:
		s.FilesRunning++
	}

	var ms float64
	for _, part := range []float64{n.CollectDuration, n.SetupDuration, n.EnvironmentLoad, n.PrepareDuration} {
		ms += math.Max(part, 0)
	}
	if n.Duration != nil && *n.Duration > 0 {
		ms += float64(*n.Duration)
	}
	s.Time += time.Duration(ms * float64(time.Millisecond))
}

func (s *Summary) addTest(state task.State, mode task.Mode, result *task.Result) {
	s.Tests++
	switch classify(state, mode) {
	case outcomeFailed:
		s.TestsFailed++
		if result != nil && !s.FailedSnapshot {
			for _, e := range result.Errors {
				if snapshotMismatch.MatchString(e.Message) {
					s.FailedSnapshot = true
					break
				}
			}
		}
	case outcomeSuccess:
		s.TestsSuccess++
	case outcomeSkipped:
		s.TestsSkipped++
		s.TestsIgnore++
	case outcomeTodo:
		s.TestsTodo++
		s.TestsIgnore++
	default:
		s.TestsRunning++
	}
}

// Aggregate counts outcomes. With a nil view it covers every loaded file
// and every test the source reports for those files, attached or not. With
// a view it covers only the view's files and tests.
func Aggregate(ix *Index, src Source, view *View) Summary {
	var s Summary
	if view != nil {
		for _, f := range view.Files {
			s.addFile(f)
		}
		for _, t := range view.Tests {
			var result *task.Result
			if raw, ok := src.Lookup(t.ID); ok {
				result = raw.Info().Result
			}
			s.addTest(t.State, t.Mode, result)
		}
		return s
	}

	for _, f := range ix.Files() {
		s.addFile(f)
		raw, ok := src.File(f.ID)
		if !ok {
			ix.Walk(f, func(n *Node) bool {
				if n.Type == task.TypeTest {
					s.addTest(n.State, n.Mode, nil)
				}
				return true
			})
			continue
		}
		for _, t := range task.Tests(raw) {
			s.addTest(task.StateOf(t), t.Common.Mode, t.Common.Result)
		}
	}
	return s
}

// TestCounts are badge counters for a candidate set of tests.
type TestCounts struct {
	Total   int
	Failed  int
	Success int
	Skipped int
	Running int
}

// CollectTestsTotal counts outcomes over tests without touching any
// visible state. Todo tests count as skipped.
func CollectTestsTotal(tests []*Node) TestCounts {
	var c TestCounts
	for _, t := range tests {
		c.Total++
		switch classify(t.State, t.Mode) {
		case outcomeFailed:
			c.Failed++
		case outcomeSuccess:
			c.Success++
		case outcomeSkipped, outcomeTodo:
			c.Skipped++
		default:
			c.Running++
		}
	}
	return c
}
