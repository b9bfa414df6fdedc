package runner

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jesspatton/lazyexplorer/report"
)

// TestJob represents a test execution job.
type TestJob struct {
	Command string
	Args    []string
	Root    string
	Format  report.Format
}

// PrepareJob prepares a run of one or more test files. The execution root,
// config and overrides are resolved from the first path; every path is
// passed relative to that root.
func PrepareJob(paths ...string) (*TestJob, error) {
	return prepare(paths, "", false)
}

// PrepareTaskJob prepares a run of the tasks in path whose full name
// matches name.
func PrepareTaskJob(path, name string) (*TestJob, error) {
	return prepare([]string{path}, "^"+regexp.QuoteMeta(name)+"$", true)
}

func prepare(paths []string, name string, single bool) (*TestJob, error) {
	if len(paths) == 0 {
		return nil, errors.New("no test paths to run")
	}
	execRoot, err := GetExecutionRoot(paths[0])
	if err != nil {
		return nil, err
	}

	// An unreadable config still yields usable defaults.
	config, _ := LoadConfig(execRoot)

	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(execRoot, p)
		if err != nil {
			r = p
		}
		rel = append(rel, r)
	}

	commandTemplate := config.Command
	matchPath := filepath.ToSlash(rel[0])
	for _, override := range config.Overrides {
		if matchPattern(override.Pattern, matchPath) {
			commandTemplate = override.Command
			break
		}
	}
	if single {
		commandTemplate = config.taskTemplate(commandTemplate)
	}

	cmd, args := BuildCommandString(commandTemplate, rel, name)

	return &TestJob{
		Command: cmd,
		Args:    args,
		Root:    execRoot,
		Format:  config.StreamFormat(),
	}, nil
}

func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "**")
		return strings.HasPrefix(path, prefix)
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	return matched
}
