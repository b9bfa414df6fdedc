package filesystem

import (
	"path/filepath"
	"sort"

	"github.com/boyter/gocodewalker"
)

// StreamFiles starts a file walker and returns a channel of files.
// The walker honours .gitignore and .ignore files.
func StreamFiles(root string) <-chan *gocodewalker.File {
	fileListQueue := make(chan *gocodewalker.File, 100)
	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)

	go func() {
		_ = fileWalker.Start()
	}()

	return fileListQueue
}

// DiscoverTestFiles returns the absolute paths of the test files under
// root, sorted. Paths matched by the default ignore patterns are skipped.
func DiscoverTestFiles(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ignorer := NewIgnorer(abs)

	var paths []string
	for f := range StreamFiles(abs) {
		if !IsTestFile(f.Filename) || ignorer.ShouldIgnore(f.Location, abs) {
			continue
		}
		paths = append(paths, f.Location)
	}
	sort.Strings(paths)
	return paths, nil
}
