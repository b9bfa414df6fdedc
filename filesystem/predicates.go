package filesystem

import (
	"path/filepath"
	"strings"
)

var testSuffixes = []string{
	".test.ts", ".test.js", ".test.tsx", ".test.jsx", ".test.mts", ".test.mjs", ".test.cts", ".test.cjs",
	".spec.ts", ".spec.js", ".spec.tsx", ".spec.jsx", ".spec.mts", ".spec.mjs", ".spec.cts", ".spec.cjs",
}

var sourceExts = []string{".ts", ".js", ".tsx", ".jsx", ".mts", ".mjs", ".cts", ".cjs", ".vue", ".svelte"}

// IsTestFile checks if a file is a test file based on its extension.
func IsTestFile(name string) bool {
	for _, suffix := range testSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// IsSourceFile checks if a file is a compilable source file.
func IsSourceFile(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range sourceExts {
		if ext == e {
			return true
		}
	}
	return false
}

// SourceExtensions returns the extensions IsSourceFile accepts, in
// module resolution order.
func SourceExtensions() []string {
	return append([]string(nil), sourceExts...)
}

// IsConfigFile checks if a file is a configuration file that might affect tests.
func IsConfigFile(name string) bool {
	base := filepath.Base(name)
	return base == "package.json" ||
		base == "tsconfig.json" ||
		base == ".lazyexplorer.json" ||
		strings.HasPrefix(base, "vite.config.") ||
		strings.HasPrefix(base, "vitest.config.") ||
		strings.HasPrefix(base, "vitest.workspace.") ||
		strings.HasPrefix(base, "jest.config.") ||
		strings.HasPrefix(base, "babel.config.")
}

// Change classifies a changed path for watch mode.
type Change int

const (
	// ChangeNone is a path that never triggers a rerun.
	ChangeNone Change = iota
	// ChangeTest is a test file; only that file is rerun.
	ChangeTest
	// ChangeSource is source or config; every loaded file is rerun.
	ChangeSource
)

// Classify reports how a change to path affects the loaded tests.
func Classify(path string) Change {
	switch {
	case IsTestFile(path):
		return ChangeTest
	case IsSourceFile(path), IsConfigFile(path):
		return ChangeSource
	}
	return ChangeNone
}
