package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Format is the framing of a reporter stream.
type Format string

const (
	// FormatJSON is one JSON envelope per line. Lines that are not JSON
	// objects are passed through as Output.
	FormatJSON Format = "json"
	// FormatCBOR is a sequence of CBOR-encoded envelopes.
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name. The empty name selects JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("unknown stream format %q", name)
}

// Decoder reads events from a reporter stream. Decode returns io.EOF when
// the stream ends.
//
// Errors other than io.EOF and ErrCorruptStream concern a single event and
// the caller may keep decoding.
type Decoder interface {
	Decode() (any, error)
}

// NewDecoder returns a decoder for the given framing.
func NewDecoder(r io.Reader, format Format) Decoder {
	if format == FormatCBOR {
		return &cborDecoder{dec: decMode.NewDecoder(r)}
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &jsonDecoder{scanner: scanner}
}

// ErrCorruptStream is returned when a stream cannot be resynchronized
// after a decoding error.
var ErrCorruptStream = errors.New("corrupt event stream")

// maxLine bounds a single JSON event line.
const maxLine = 32 * 1024 * 1024

type jsonDecoder struct {
	scanner *bufio.Scanner
}

// Decode returns the next event. A malformed JSON line yields an error but
// leaves the decoder positioned at the following line.
func (d *jsonDecoder) Decode() (any, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			return Output{Line: d.scanner.Text()}, nil
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		return env.toEvent()
	}
	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}
	return nil, io.EOF
}

var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		// Meta values decode into map[string]any rather than
		// map[interface{}]interface{}.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("report: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborDecoder struct {
	dec *cbor.Decoder
}

// Decode returns the next event. Errors wrapping ErrCorruptStream are
// terminal for the stream.
func (d *cborDecoder) Decode() (any, error) {
	var env envelope
	if err := d.dec.Decode(&env); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}
	return env.toEvent()
}
