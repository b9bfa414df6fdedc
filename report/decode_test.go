package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/jesspatton/lazyexplorer/task"
)

func decodeAll(t *testing.T, dec Decoder) ([]any, []error) {
	t.Helper()
	var events []any
	var errs []error
	for i := 0; i < 1000; i++ {
		ev, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return events, errs
		}
		if err != nil {
			errs = append(errs, err)
			if errors.Is(err, ErrCorruptStream) {
				return events, errs
			}
			continue
		}
		events = append(events, ev)
	}
	t.Fatal("decoder did not terminate")
	return nil, nil
}

const jsonStream = `{"event":"pathsCollected","paths":["/p/a.test.ts","/p/b.test.ts"]}
 RUN  v1.0.0 /p
{"event":"collected","files":[{"type":"file","id":"f1","name":"a.test.ts","filepath":"/p/a.test.ts","tasks":[{"type":"suite","id":"s1","name":"math","tasks":[{"type":"test","id":"t1","name":"adds","mode":"run"},{"type":"custom","id":"t2","name":"bench","mode":"skip"}]}]}]}
{"event":"taskUpdate","packs":[["t1",{"state":"pass","duration":12.5},null],["t2",null]]}

{"event":"userConsoleLog","log":{"taskId":"t1","type":"stdout","content":"hi\n","time":10}}
{"event":"testAnnotate","taskId":"t1","annotation":{"type":"notice","message":"slow"}}
{"event":"finished","errors":[{"name":"Error","message":"boom"}]}
`

func TestJSONDecoder(t *testing.T) {
	events, errs := decodeAll(t, NewDecoder(strings.NewReader(jsonStream), FormatJSON))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 7 {
		t.Fatalf("expected 7 events, got %d: %#v", len(events), events)
	}

	paths, ok := events[0].(PathsCollected)
	if !ok || len(paths.Paths) != 2 {
		t.Errorf("event 0: got %#v", events[0])
	}

	out, ok := events[1].(Output)
	if !ok || !strings.Contains(out.Line, "RUN") {
		t.Errorf("event 1: expected passthrough output, got %#v", events[1])
	}

	collected, ok := events[2].(Collected)
	if !ok || len(collected.Files) != 1 {
		t.Fatalf("event 2: got %#v", events[2])
	}
	f := collected.Files[0]
	if f.Filepath != "/p/a.test.ts" || f.Common.ID != "f1" {
		t.Errorf("file: got %+v", f.Common)
	}
	suite, ok := f.Tasks[0].(*task.Suite)
	if !ok {
		t.Fatalf("expected suite, got %T", f.Tasks[0])
	}
	if suite.Common.FileID != "f1" || suite.Common.ParentID != "f1" {
		t.Errorf("suite linkage: got file=%q parent=%q", suite.Common.FileID, suite.Common.ParentID)
	}
	bench, ok := suite.Tasks[1].(*task.Test)
	if !ok {
		t.Fatalf("custom task should decode as test, got %T", suite.Tasks[1])
	}
	if bench.Common.ParentID != "s1" || bench.Common.Mode != task.ModeSkip {
		t.Errorf("custom task: got %+v", bench.Common)
	}

	update, ok := events[3].(TaskUpdate)
	if !ok || len(update.Entries) != 2 {
		t.Fatalf("event 3: got %#v", events[3])
	}
	if r := update.Entries[0].Result; r == nil || r.State != task.StatePass || *r.Duration != 12.5 {
		t.Errorf("update result: got %+v", r)
	}
	if update.Entries[1].Result != nil {
		t.Errorf("expected nil result for short tuple, got %+v", update.Entries[1].Result)
	}

	if l, ok := events[4].(ConsoleLog); !ok || l.Entry.Content != "hi\n" {
		t.Errorf("event 4: got %#v", events[4])
	}
	if a, ok := events[5].(Annotate); !ok || a.Annotation.Message != "slow" {
		t.Errorf("event 5: got %#v", events[5])
	}
	if fin, ok := events[6].(Finished); !ok || len(fin.Errors) != 1 {
		t.Errorf("event 6: got %#v", events[6])
	}
}

func TestJSONDecoderRecoverable(t *testing.T) {
	stream := `{"event":"bogus"}
{"event":"collected","files":[{"type":"suite","id":"x"}]}
{not json
{"event":"pathsCollected","paths":["/a"]}
`
	events, errs := decodeAll(t, NewDecoder(strings.NewReader(stream), FormatJSON))
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
	if !errors.Is(errs[0], ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", errs[0])
	}
	if len(events) != 1 {
		t.Fatalf("decoder should resume after bad lines, got %#v", events)
	}
}

func TestCBORDecoder(t *testing.T) {
	dur := 3.0
	envs := []envelope{
		{Event: EventPathsCollected, Paths: []string{"/p/a.test.ts"}},
		{Event: EventCollected, Files: []wireTask{{
			Type: "file", ID: "f1", Filepath: "/p/a.test.ts",
			Tasks: []wireTask{{Type: "test", ID: "t1", Name: "works"}},
		}}},
		{Event: EventTaskUpdate, Packs: []wirePack{{
			ID:     "t1",
			Result: &wireResult{State: "fail", Duration: &dur, Errors: []wireError{{Message: "nope"}}},
			Meta:   map[string]any{"retry": uint64(1)},
		}}},
		{Event: EventFinished},
	}
	var buf bytes.Buffer
	for _, env := range envs {
		data, err := cbor.Marshal(env)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		buf.Write(data)
	}

	events, errs := decodeAll(t, NewDecoder(&buf, FormatCBOR))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	collected := events[1].(Collected)
	if collected.Files[0].Common.Name != "/p/a.test.ts" {
		t.Errorf("file name should default to path, got %q", collected.Files[0].Common.Name)
	}
	if collected.Files[0].Tasks[0].Info().Mode != task.ModeRun {
		t.Errorf("mode should default to run")
	}
	update := events[2].(TaskUpdate)
	entry := update.Entries[0]
	if entry.Result.State != task.StateFail || len(entry.Result.Errors) != 1 {
		t.Errorf("update: got %+v", entry.Result)
	}
	if _, ok := entry.Meta["retry"]; !ok {
		t.Errorf("meta should decode with string keys, got %#v", entry.Meta)
	}
}

func TestCBORDecoderCorrupt(t *testing.T) {
	data, err := cbor.Marshal(envelope{Event: EventFinished})
	if err != nil {
		t.Fatal(err)
	}
	truncated := data[:len(data)-1]
	_, errs := decodeAll(t, NewDecoder(bytes.NewReader(truncated), FormatCBOR))
	if len(errs) != 1 || !errors.Is(errs[0], ErrCorruptStream) {
		t.Fatalf("expected ErrCorruptStream, got %v", errs)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"cbor", FormatCBOR, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.name, got, err)
		}
	}
}

func TestPump(t *testing.T) {
	stream := `{"event":"pathsCollected","paths":["/a"]}
{"event":"bogus"}
{"event":"finished"}
`
	out := make(chan any, 10)
	err := Pump(context.Background(), NewDecoder(strings.NewReader(stream), FormatJSON), out, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Pump: %v", err)
	}
	close(out)
	var got []any
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %#v", got)
	}
}

func TestPumpCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan any)
	err := Pump(ctx, NewDecoder(strings.NewReader(jsonStream), FormatJSON), out, slog.New(slog.DiscardHandler))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLogRoundTrip(t *testing.T) {
	for _, name := range []string{"events.jsonl", "events.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			w, err := CreateLog(path)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := io.WriteString(w, jsonStream); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}

			r, err := OpenLog(path)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			events, errs := decodeAll(t, NewDecoder(r, FormatJSON))
			if len(errs) != 0 || len(events) != 7 {
				t.Fatalf("got %d events, errors %v", len(events), errs)
			}
		})
	}
}

func TestRecorderSegments(t *testing.T) {
	for _, name := range []string{"events.jsonl", "events.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			rec, err := CreateRecorder(path)
			if err != nil {
				t.Fatal(err)
			}
			for _, line := range []string{
				`{"event":"pathsCollected","paths":["/p/first.test.ts"]}`,
				`{"event":"pathsCollected","paths":["/p/second.test.ts"]}`,
			} {
				seg, err := rec.Segment()
				if err != nil {
					t.Fatal(err)
				}
				if _, err := io.WriteString(seg, line+"\n"); err != nil {
					t.Fatal(err)
				}
				if err := seg.Close(); err != nil {
					t.Fatal(err)
				}
			}
			if err := rec.Close(); err != nil {
				t.Fatal(err)
			}

			r, err := OpenLog(path)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			events, errs := decodeAll(t, NewDecoder(r, FormatJSON))
			if len(errs) != 0 || len(events) != 2 {
				t.Fatalf("got %#v, errors %v", events, errs)
			}
			for i, want := range []string{"/p/first.test.ts", "/p/second.test.ts"} {
				pc, ok := events[i].(PathsCollected)
				if !ok || len(pc.Paths) != 1 || pc.Paths[0] != want {
					t.Errorf("segment %d = %#v, want %s", i, events[i], want)
				}
			}
		})
	}
}

func TestFollowCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl.zst")
	w, err := CreateLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, jsonStream); err != nil {
		t.Fatal(err)
	}
	w.Close()

	out := make(chan any, 10)
	err = Follow(context.Background(), path, FormatJSON, out, slog.New(slog.DiscardHandler))
	if !errors.Is(err, ErrCompressedFollow) {
		t.Fatalf("expected ErrCompressedFollow, got %v", err)
	}
	if len(out) != 0 {
		t.Errorf("no events should be emitted, got %d", len(out))
	}
}
