package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/jesspatton/lazyexplorer/report"
)

// ConfigFile is the project configuration file name.
const ConfigFile = ".lazyexplorer.json"

// ErrNoExecutionRoot is returned when no package.json is found above a test
// file.
var ErrNoExecutionRoot = errors.New("no execution root found")

const (
	defaultCommand     = "npx vitest run <path>"
	defaultRefreshRate = 10
	defaultFallbackMs  = 1000
)

// Override replaces the command for test files matching Pattern.
type Override struct {
	Pattern string `json:"pattern"`
	Command string `json:"command"`
}

// Config is the project configuration. Command templates may contain the
// <path> and <name> placeholders.
type Config struct {
	Command         string     `json:"command"`
	TaskCommand     string     `json:"taskCommand"`
	Overrides       []Override `json:"overrides"`
	Format          string     `json:"format"`
	MaxRefreshRate  int        `json:"maxRefreshRate"`
	FallbackDelayMs int        `json:"fallbackDelayMs"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	return Config{
		Command:         defaultCommand,
		Format:          string(report.FormatJSON),
		MaxRefreshRate:  defaultRefreshRate,
		FallbackDelayMs: defaultFallbackMs,
	}
}

// FallbackDelay is the configured fallback delay as a duration.
func (c Config) FallbackDelay() time.Duration {
	return time.Duration(c.FallbackDelayMs) * time.Millisecond
}

// StreamFormat returns the configured reporter stream format, falling back
// to JSON for unknown names.
func (c Config) StreamFormat() report.Format {
	format, err := report.ParseFormat(c.Format)
	if err != nil {
		return report.FormatJSON
	}
	return format
}

// GetExecutionRoot finds the nearest package.json starting from the test file path and walking up.
func GetExecutionRoot(testFilePath string) (string, error) {
	dir := filepath.Dir(testFilePath)
	for {
		if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w for %s", ErrNoExecutionRoot, testFilePath)
		}
		dir = parent
	}
}

// LoadConfig looks for .lazyexplorer.json in root and its ancestors. The
// nearest file wins. When none exists the defaults are returned. A file
// that cannot be parsed yields the defaults and an error.
func LoadConfig(root string) (Config, error) {
	config := DefaultConfig()

	path, ok := findConfig(root)
	if !ok {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &loaded); err != nil {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Command != "" {
		config.Command = loaded.Command
	}
	config.TaskCommand = loaded.TaskCommand
	config.Overrides = loaded.Overrides
	if loaded.Format != "" {
		config.Format = loaded.Format
	}
	if loaded.MaxRefreshRate > 0 {
		config.MaxRefreshRate = loaded.MaxRefreshRate
	}
	if loaded.FallbackDelayMs > 0 {
		config.FallbackDelayMs = loaded.FallbackDelayMs
	}
	return config, nil
}

func findConfig(root string) (string, bool) {
	dir := filepath.Clean(root)
	for {
		path := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// BuildCommandString constructs the command and arguments to execute.
// A <path> argument expands to every test path; <name> is substituted as a
// single argument so names containing spaces survive.
func BuildCommandString(template string, testPaths []string, name string) (string, []string) {
	var parts []string
	for _, field := range strings.Fields(template) {
		switch {
		case field == "<path>":
			parts = append(parts, testPaths...)
		case strings.Contains(field, "<path>"):
			parts = append(parts, strings.ReplaceAll(field, "<path>", strings.Join(testPaths, " ")))
		case strings.Contains(field, "<name>"):
			parts = append(parts, strings.ReplaceAll(field, "<name>", name))
		default:
			parts = append(parts, field)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// taskTemplate returns the template used to rerun a single task.
func (c Config) taskTemplate(fileTemplate string) string {
	if c.TaskCommand != "" {
		return c.TaskCommand
	}
	if strings.Contains(fileTemplate, "<name>") {
		return fileTemplate
	}
	return fileTemplate + " -t <name>"
}
