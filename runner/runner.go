// Package runner spawns the project's test command and streams its reporter
// events back to the caller.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/jesspatton/lazyexplorer/report"
)

// OutputUpdate is a line the test process wrote to stderr.
type OutputUpdate string

// StatusUpdate reports that the current test process exited.
type StatusUpdate struct {
	Err error
}

// RunStarted opens the updates of a run. Every update of earlier runs is
// delivered before it.
type RunStarted struct {
	Run int
}

// Options configures a Runner.
type Options struct {
	// Record, when set, receives a copy of every reporter stream, one
	// segment per run. A .zst suffix compresses it.
	Record string
	Logger *slog.Logger
}

// Runner runs one test process at a time. Decoded report events,
// OutputUpdate and StatusUpdate values are delivered on Updates.
type Runner struct {
	// startMu serializes Start so that runs never overlap.
	startMu sync.Mutex

	mu      sync.Mutex
	currCmd *exec.Cmd
	cancel  context.CancelFunc
	done    chan struct{} // closed once the latest run has delivered everything
	run     int
	Updates chan any

	record   string
	recorder *report.Recorder
	logger   *slog.Logger
}

func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		Updates: make(chan any, 100),
		record:  opts.Record,
		logger:  logger,
	}
}

// Run executes a command whose stdout is a JSON reporter stream. It kills
// any running command first.
func (r *Runner) Run(command string, args []string, cwd string) {
	r.Start(&TestJob{Command: command, Args: args, Root: cwd, Format: report.FormatJSON})
}

// Rerun runs the test files at paths.
func (r *Runner) Rerun(paths ...string) error {
	job, err := PrepareJob(paths...)
	if err != nil {
		return fmt.Errorf("preparing rerun: %w", err)
	}
	r.Start(job)
	return nil
}

// RerunTask runs the tasks in path whose full name is name.
func (r *Runner) RerunTask(path, name string) error {
	job, err := PrepareTaskJob(path, name)
	if err != nil {
		return fmt.Errorf("preparing task rerun: %w", err)
	}
	r.Start(job)
	return nil
}

// Start executes job. A running command is killed, and job starts once
// the killed run has delivered its remaining updates.
func (r *Runner) Start(job *TestJob) {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	// A superseded command never reports its status.
	r.currCmd = nil
	r.cancel = nil
	prev := r.done
	done := make(chan struct{})
	r.done = done
	r.run++
	run := r.run
	r.mu.Unlock()

	if prev != nil {
		<-prev
	}
	r.Updates <- RunStarted{Run: run}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, job.Command, job.Args...)
	cmd.Dir = job.Root
	isolateProcess(cmd)

	r.mu.Lock()
	r.currCmd = cmd
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Info("starting test run", "run", run, "command", job.Command, "args", job.Args, "dir", job.Root)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.fail(cmd, done, fmt.Errorf("creating stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.fail(cmd, done, fmt.Errorf("creating stderr pipe: %w", err))
		return
	}

	var events io.Reader = stdout
	segment := r.segment()
	if segment != nil {
		events = io.TeeReader(stdout, segment)
	}
	closeSegment := func() {
		if segment == nil {
			return
		}
		if err := segment.Close(); err != nil {
			r.logger.Warn("closing event record", "error", err)
		}
	}

	if err := cmd.Start(); err != nil {
		closeSegment()
		r.fail(cmd, done, fmt.Errorf("starting command: %w", err))
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := report.Pump(ctx, report.NewDecoder(events, job.Format), r.Updates, r.logger)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("reporter stream aborted", "error", err)
		}
		// Keep the pipe drained so the process never blocks on a full buffer.
		io.Copy(io.Discard, events)
	}()
	go func() {
		defer wg.Done()
		streamReader(stderr, r.Updates)
	}()

	go func() {
		defer close(done)
		// Pipes must be fully read before Wait closes them.
		wg.Wait()
		err := cmd.Wait()
		cancel()
		closeSegment()
		r.logger.Info("test run exited", "run", run, "error", err)

		r.mu.Lock()
		shouldReport := false
		if r.currCmd == cmd {
			r.currCmd = nil
			r.cancel = nil
			shouldReport = true
		}
		r.mu.Unlock()

		if shouldReport {
			r.Updates <- StatusUpdate{Err: err}
		}
	}()
}

// segment opens the record segment for the next run. The record file is
// created on first use and shared by every later run.
func (r *Runner) segment() io.WriteCloser {
	if r.record == "" {
		return nil
	}
	if r.recorder == nil {
		rec, err := report.CreateRecorder(r.record)
		if err != nil {
			r.logger.Warn("recording disabled", "error", err)
			r.record = ""
			return nil
		}
		r.recorder = rec
	}
	seg, err := r.recorder.Segment()
	if err != nil {
		r.logger.Warn("skipping record of run", "error", err)
		return nil
	}
	return seg
}

func (r *Runner) fail(cmd *exec.Cmd, done chan struct{}, err error) {
	defer close(done)
	r.logger.Warn("test run failed to start", "error", err)
	r.mu.Lock()
	if r.currCmd == cmd {
		r.cancel()
		r.currCmd = nil
		r.cancel = nil
	}
	r.mu.Unlock()
	r.Updates <- OutputUpdate(err.Error())
	r.Updates <- StatusUpdate{Err: err}
}

func streamReader(r io.Reader, out chan<- any) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- OutputUpdate(scanner.Text())
	}
}

// Kill explicitly stops the current command
func (r *Runner) Kill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Close kills the current command, waits for its updates and closes the
// record. Updates still pending are discarded.
func (r *Runner) Close() error {
	r.Kill()
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
	drain:
		for {
			select {
			case <-done:
				break drain
			case <-r.Updates:
			}
		}
	}
	if r.recorder == nil {
		return nil
	}
	err := r.recorder.Close()
	r.recorder = nil
	return err
}

// Running reports whether a test process is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currCmd != nil
}
