// lazyexplorer is a terminal explorer for test runs. It runs the project's
// test command, consumes the reporter event stream and renders a live,
// filterable tree of files, suites and tests.
//
// With --events it replays a recorded event log instead of running tests,
// and with --follow it keeps reading that log as another process writes
// it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/jesspatton/lazyexplorer/engine"
	"github.com/jesspatton/lazyexplorer/prefs"
	"github.com/jesspatton/lazyexplorer/report"
	"github.com/jesspatton/lazyexplorer/runner"
	"github.com/jesspatton/lazyexplorer/task"
	"github.com/jesspatton/lazyexplorer/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		root       string
		eventsPath string
		follow     bool
		recordPath string
		formatName string
		watch      bool
		logOutput  string
		prefsPath  string
	)

	flagSet := pflag.NewFlagSet("lazyexplorer", pflag.ContinueOnError)
	flagSet.StringVar(&root, "root", ".", "project directory to discover and run tests in")
	flagSet.StringVar(&eventsPath, "events", "", "replay a recorded event log instead of running tests")
	flagSet.BoolVar(&follow, "follow", false, "keep reading --events as it grows")
	flagSet.StringVar(&recordPath, "record", "", "record the runner's event stream to this file (.zst compresses)")
	flagSet.StringVar(&formatName, "format", "", "framing of --events: json or cbor (default: project config)")
	flagSet.BoolVarP(&watch, "watch", "w", false, "rerun tests when files change")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.StringVar(&prefsPath, "prefs", "", "preferences file (default: per-project file in the user cache directory)")
	flagSet.Bool("version", false, "print the version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if v, _ := flagSet.GetBool("version"); v {
		fmt.Println("lazyexplorer", version)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	if follow && eventsPath == "" {
		return fmt.Errorf("--follow requires --events")
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	logger, closeLog, err := newLogger(logOutput)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := runner.LoadConfig(root)
	if err != nil {
		logger.Warn("using default configuration", "error", err)
	}
	format := cfg.StreamFormat()
	if formatName != "" {
		if format, err = report.ParseFormat(formatName); err != nil {
			return err
		}
	}

	prefsFile := openPrefs(root, prefsPath, logger)
	engineOpts := engine.Options{
		MaxRate:       cfg.MaxRefreshRate,
		FallbackDelay: cfg.FallbackDelay(),
		Logger:        logger,
	}
	if prefsFile != nil {
		p := prefsFile.Prefs()
		engineOpts.Expanded = p.Expanded
		engineOpts.Collapsed = p.Collapsed
		engineOpts.Filter = p.Filter
		engineOpts.Persister = prefsFile
	}

	store := task.NewStore("")
	opts := ui.Options{
		Root:   root,
		Store:  store,
		Engine: engine.New(store, engineOpts),
		Watch:  watch,
		Prefs:  prefsFile,
		Logger: logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if eventsPath != "" {
		events, err := replay(ctx, eventsPath, format, follow, logger)
		if err != nil {
			return err
		}
		opts.Events = events
	} else {
		r := runner.NewRunner(runner.Options{Record: recordPath, Logger: logger})
		defer r.Close()
		opts.Runner = r
	}

	logger.Info("starting", "root", root, "version", version, "replay", eventsPath != "")
	program := tea.NewProgram(ui.NewModel(opts), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// newLogger returns a JSON logger writing to path, or a discarding logger
// when path is empty. The terminal belongs to the UI.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log output: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

// openPrefs loads the preference file for root. Unreadable preferences
// disable persistence rather than blocking startup.
func openPrefs(root, path string, logger *slog.Logger) *prefs.File {
	if path == "" {
		var err error
		if path, err = prefs.DefaultPath(root); err != nil {
			logger.Warn("preferences disabled", "error", err)
			return nil
		}
	}
	f, err := prefs.Open(path)
	if err != nil {
		logger.Warn("preferences disabled", "error", err)
		return nil
	}
	return f
}

// replay streams a recorded event log on the returned channel, which is
// closed when the log is exhausted. With follow set it keeps waiting for
// new events until ctx is cancelled.
func replay(ctx context.Context, path string, format report.Format, follow bool, logger *slog.Logger) (<-chan any, error) {
	events := make(chan any, 64)

	if follow {
		if report.IsCompressed(path) {
			return nil, fmt.Errorf("--follow: %w", report.ErrCompressedFollow)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("opening event log: %w", err)
		}
		go func() {
			defer close(events)
			if err := report.Follow(ctx, path, format, events, logger); err != nil {
				logger.Warn("event log ended", "path", path, "error", err)
			}
		}()
		return events, nil
	}

	rc, err := report.OpenLog(path)
	if err != nil {
		return nil, err
	}
	go func() {
		defer close(events)
		defer rc.Close()
		if err := report.Pump(ctx, report.NewDecoder(rc, format), events, logger); err != nil && ctx.Err() == nil {
			logger.Warn("event log ended", "path", path, "error", err)
		}
	}()
	return events, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `lazyexplorer: interactive explorer for test runs.

By default, discovers the test files under --root, runs them with the
command from .lazyexplorer.json (or "npx vitest run <path>"), and shows
results as they stream in.

Usage:
  lazyexplorer [flags]

Examples:
  # Run and explore the tests of the current project
  lazyexplorer

  # Rerun tests on every change and keep a compressed record of the run
  lazyexplorer --watch --record run.jsonl.zst

  # Replay a recorded run
  lazyexplorer --events run.jsonl.zst

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
