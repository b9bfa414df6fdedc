package filesystem

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

var defaultIgnores = []string{
	"node_modules",
	".git",
	"dist",
	"build",
	"coverage",
	".DS_Store",
	"*.log",
}

// Ignorer decides which paths are skipped by discovery and watching. It
// combines default patterns with the root .gitignore.
type Ignorer struct {
	patterns []pattern
}

type pattern struct {
	glob     string
	anchored bool
}

func parsePattern(line string) (pattern, bool) {
	line = strings.TrimSpace(line)
	// Negations are not supported; re-including a path is rare for tests.
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return pattern{}, false
	}
	line = strings.TrimSuffix(line, "/")
	line = strings.TrimPrefix(line, "**/")
	p := pattern{glob: line}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		p.glob = strings.TrimPrefix(line, "/")
	}
	return p, p.glob != ""
}

// NewIgnorer creates a new Ignorer and loads patterns from .gitignore if present.
func NewIgnorer(root string) *Ignorer {
	ign := &Ignorer{}
	for _, line := range defaultIgnores {
		p, _ := parsePattern(line)
		ign.patterns = append(ign.patterns, p)
	}

	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return ign
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p, ok := parsePattern(scanner.Text()); ok {
			ign.patterns = append(ign.patterns, p)
		}
	}
	return ign
}

// ShouldIgnore checks if the given path should be ignored.
// It checks against every path component and the relative path.
func (i *Ignorer) ShouldIgnore(path string, root string) bool {
	relPath, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(relPath, "..") {
		relPath = filepath.Base(path)
	}
	relPath = filepath.ToSlash(relPath)
	parts := strings.Split(relPath, "/")

	for _, p := range i.patterns {
		if p.anchored {
			if relPath == p.glob || strings.HasPrefix(relPath, p.glob+"/") {
				return true
			}
			continue
		}

		// Slash-less patterns match any component, so a file inside an
		// ignored directory is ignored too.
		if !strings.Contains(p.glob, "/") {
			for _, part := range parts {
				if matched, _ := filepath.Match(p.glob, part); matched {
					return true
				}
			}
			continue
		}

		if relPath == p.glob || strings.HasPrefix(relPath, p.glob+"/") {
			return true
		}
	}
	return false
}
