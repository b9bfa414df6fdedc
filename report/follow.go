package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Follow decodes an event log that another process is still writing. At
// end of file it waits for the file to grow instead of stopping. It returns
// when ctx is cancelled, the file is removed, or the stream is corrupt.
func Follow(ctx context.Context, path string, format Format, out chan<- any, logger *slog.Logger) error {
	if IsCompressed(path) {
		return fmt.Errorf("following %s: %w", path, ErrCompressedFollow)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("following event log: %w", err)
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("following event log: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching event log: %w", err)
	}

	r := &followReader{ctx: ctx, file: f, watcher: watcher, logger: logger}
	err = Pump(ctx, NewDecoder(r, format), out, logger)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// followReader turns EOF into a wait for the next write to the file.
type followReader struct {
	ctx     context.Context
	file    *os.File
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

func (r *followReader) Read(p []byte) (int, error) {
	for {
		n, err := r.file.Read(p)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
		if err := r.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the file is written. It reports io.EOF when the file
// goes away or the context ends, so the decoder sees a clean end of stream.
func (r *followReader) wait() error {
	for {
		select {
		case <-r.ctx.Done():
			return io.EOF
		case event, ok := <-r.watcher.Events:
			if !ok {
				return io.EOF
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				r.logger.Info("event log removed", "path", event.Name)
				return io.EOF
			}
			if event.Has(fsnotify.Write) {
				return nil
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return io.EOF
			}
			r.logger.Warn("event log watch error", "error", err)
		}
	}
}
