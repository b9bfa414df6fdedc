// Package prefs persists explorer preferences between sessions.
package prefs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/jesspatton/lazyexplorer/engine"
)

// Prefs is the persisted state of one project's explorer.
type Prefs struct {
	Expanded      []string           `yaml:"expanded,omitempty"`
	Collapsed     []string           `yaml:"collapsed,omitempty"`
	Filter        engine.FilterState `yaml:"filter"`
	ExplorerWidth int                `yaml:"explorerWidth,omitempty"`
}

// DefaultPath returns the preference file for a project root under the
// user cache directory.
func DefaultPath(root string) (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating cache directory: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256([]byte(abs))
	return filepath.Join(cacheDir, "lazyexplorer", hex.EncodeToString(sum[:])[:16]+".yaml"), nil
}

// File is a Prefs document on disk. It implements engine.Persister.
type File struct {
	mu    sync.Mutex
	path  string
	prefs Prefs
}

// Open loads the preferences at path. A missing file yields empty
// preferences.
func Open(path string) (*File, error) {
	f := &File{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &f.prefs); err != nil {
		return nil, fmt.Errorf("parsing preferences %s: %w", path, err)
	}
	return f, nil
}

// Prefs returns a copy of the loaded preferences.
func (f *File) Prefs() Prefs {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.prefs
	p.Expanded = append([]string(nil), f.prefs.Expanded...)
	p.Collapsed = append([]string(nil), f.prefs.Collapsed...)
	return p
}

func (f *File) SaveExpanded(expanded, collapsed []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs.Expanded = append([]string(nil), expanded...)
	f.prefs.Collapsed = append([]string(nil), collapsed...)
	return f.write()
}

func (f *File) SaveFilter(filter engine.FilterState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs.Filter = filter
	return f.write()
}

func (f *File) SaveExplorerWidth(width int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs.ExplorerWidth = width
	return f.write()
}

// write replaces the file through a rename so readers never see a partial
// document.
func (f *File) write() error {
	data, err := yaml.Marshal(&f.prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}
