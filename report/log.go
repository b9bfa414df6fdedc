package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ErrCompressedFollow is returned when following a compressed event log,
// whose frames cannot be decoded before the writer closes them.
var ErrCompressedFollow = errors.New("cannot follow a compressed event log")

// IsCompressed reports whether an event log path selects zstd compression.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// CreateLog creates an event log for recording a reporter stream. A path
// ending in .zst is zstd-compressed.
func CreateLog(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating event log: %w", err)
	}
	if !IsCompressed(path) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating event log: %w", err)
	}
	return &zstdWriteCloser{enc: enc, file: f}, nil
}

type zstdWriteCloser struct {
	enc  *zstd.Encoder
	file *os.File
}

func (w *zstdWriteCloser) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

func (w *zstdWriteCloser) Close() error {
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}

// Recorder appends several reporter streams to one event log. Each stream
// is written as its own segment: a complete zstd frame for compressed logs,
// plain bytes otherwise. Segments must not overlap.
type Recorder struct {
	file     *os.File
	compress bool
}

// CreateRecorder creates (or truncates) the event log at path.
func CreateRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating event log: %w", err)
	}
	return &Recorder{file: f, compress: IsCompressed(path)}, nil
}

// Segment starts the next segment. Closing it completes the segment but
// leaves the log open.
func (r *Recorder) Segment() (io.WriteCloser, error) {
	if !r.compress {
		return nopCloser{r.file}, nil
	}
	enc, err := zstd.NewWriter(r.file)
	if err != nil {
		return nil, fmt.Errorf("starting event log segment: %w", err)
	}
	return enc, nil
}

// Close closes the log. Open segments are not flushed.
func (r *Recorder) Close() error {
	return r.file.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// OpenLog opens a recorded event log for replay.
func OpenLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	if !IsCompressed(path) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &zstdReadCloser{dec: dec, file: f}, nil
}

type zstdReadCloser struct {
	dec  *zstd.Decoder
	file *os.File
}

func (r *zstdReadCloser) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *zstdReadCloser) Close() error {
	r.dec.Close()
	return r.file.Close()
}
