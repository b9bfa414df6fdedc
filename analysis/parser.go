package analysis

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jesspatton/lazyexplorer/filesystem"
)

// Import regex patterns
var (
	// import ... from '...' and export ... from '...'
	// Use [\s\S]*? to match across newlines non-greedily
	fromRegex = regexp.MustCompile(`(?:import|export)[\s\S]*?from\s+['"]([^'"]+)['"]`)
	// import '...'
	sideEffectRegex = regexp.MustCompile(`import\s+['"]([^'"]+)['"]`)
	// require('...') and import('...')
	callRegex = regexp.MustCompile(`(?:require|import)\s*\(\s*['"]([^'"]+)['"]\s*\)`)
)

// Imports are the relative imports of one file.
type Imports struct {
	// Resolved holds the absolute paths of imported files found on disk.
	Resolved []string
	// Unresolved holds the import key of each relative import that did
	// not match a file yet.
	Unresolved []string
}

// ParseImports extracts the relative imports of the file at path and
// resolves them against the file system. Package imports are skipped.
func ParseImports(path string) (Imports, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Imports{}, err
	}
	text := string(content)

	var result Imports
	seen := make(map[string]bool)
	dir := filepath.Dir(path)
	for _, re := range []*regexp.Regexp{fromRegex, sideEffectRegex, callRegex} {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			spec := match[1]
			if !strings.HasPrefix(spec, ".") || seen[spec] {
				continue
			}
			seen[spec] = true

			base := filepath.Join(dir, spec)
			if found, ok := resolve(base); ok {
				result.Resolved = append(result.Resolved, found)
			} else {
				result.Unresolved = append(result.Unresolved, importKey(base))
			}
		}
	}
	return result, nil
}

// importKey strips a source extension and a trailing /index from path,
// so that a file and every import reaching it share one key.
func importKey(path string) string {
	key := path
	if filesystem.IsSourceFile(path) {
		key = strings.TrimSuffix(path, filepath.Ext(path))
	}
	if filepath.Base(key) == "index" {
		return filepath.Dir(key)
	}
	return key
}

// resolve finds the file an import of base refers to, trying the exact
// path, every source extension, then an index file. An import spelled
// with a script extension also matches the source file it compiles from.
func resolve(base string) (string, bool) {
	candidates := []string{base}
	stem := base
	if filesystem.IsSourceFile(base) {
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	for _, ext := range filesystem.SourceExtensions() {
		candidates = append(candidates, stem+ext)
	}
	for _, ext := range filesystem.SourceExtensions() {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		return onDiskName(candidate), true
	}
	return "", false
}

// onDiskName returns path with its base name spelled as on disk, which
// differs on case-insensitive file systems.
func onDiskName(path string) string {
	dir, base := filepath.Split(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return path
	}
	folded := ""
	for _, entry := range entries {
		if entry.Name() == base {
			return path
		}
		if folded == "" && strings.EqualFold(entry.Name(), base) {
			folded = filepath.Join(dir, entry.Name())
		}
	}
	if folded != "" {
		return folded
	}
	return path
}
