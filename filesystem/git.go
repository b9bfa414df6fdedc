package filesystem

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GetChangedFiles returns a list of absolute paths of files that have been modified
// or added according to git.
func GetChangedFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	var files []string
	for _, line := range strings.Split(string(output), "\n") {
		// "XY path" or "R  old -> new"
		if len(line) < 4 {
			continue
		}
		relPath := line[3:]
		if i := strings.Index(relPath, " -> "); i >= 0 {
			relPath = relPath[i+len(" -> "):]
		}
		relPath = strings.Trim(relPath, "\"")

		files = append(files, filepath.Join(root, relPath))
	}

	return files, nil
}

// ChangedTestFiles returns the changed files under root that are test files.
func ChangedTestFiles(root string) ([]string, error) {
	files, err := GetChangedFiles(root)
	if err != nil {
		return nil, err
	}
	var tests []string
	for _, f := range files {
		if IsTestFile(f) {
			tests = append(tests, f)
		}
	}
	return tests, nil
}
