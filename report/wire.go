package report

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jesspatton/lazyexplorer/task"
)

var (
	// ErrUnknownEvent is returned for an envelope naming an event this
	// package does not understand.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrUnknownTaskType is returned for a task whose type is not file,
	// suite, test or custom.
	ErrUnknownTaskType = errors.New("unknown task type")
)

// Event names on the wire.
const (
	EventPathsCollected = "pathsCollected"
	EventCollected      = "collected"
	EventTaskUpdate     = "taskUpdate"
	EventFinished       = "finished"
	EventUserConsoleLog = "userConsoleLog"
	EventTestAnnotate   = "testAnnotate"
)

// envelope is the wire shape of every event. The CBOR codec reads the json
// tags as well.
type envelope struct {
	Event      string          `json:"event"`
	Paths      []string        `json:"paths,omitempty"`
	Files      []wireTask      `json:"files,omitempty"`
	Packs      []wirePack      `json:"packs,omitempty"`
	Errors     []wireError     `json:"errors,omitempty"`
	Log        *wireLog        `json:"log,omitempty"`
	TaskID     string          `json:"taskId,omitempty"`
	Annotation *wireAnnotation `json:"annotation,omitempty"`
}

type wireTask struct {
	Type            string         `json:"type"`
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Mode            string         `json:"mode"`
	Result          *wireResult    `json:"result,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	Tasks           []wireTask     `json:"tasks,omitempty"`
	Filepath        string         `json:"filepath,omitempty"`
	ProjectName     string         `json:"projectName,omitempty"`
	CollectDuration float64        `json:"collectDuration,omitempty"`
	SetupDuration   float64        `json:"setupDuration,omitempty"`
	EnvironmentLoad float64        `json:"environmentLoad,omitempty"`
	PrepareDuration float64        `json:"prepareDuration,omitempty"`
}

type wireResult struct {
	State    string      `json:"state,omitempty"`
	Duration *float64    `json:"duration,omitempty"`
	Errors   []wireError `json:"errors,omitempty"`
}

type wireError struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

type wireLog struct {
	TaskID  string `json:"taskId,omitempty"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Time    int64  `json:"time,omitempty"`
}

type wireAnnotation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wirePack is one [id, result, meta] tuple of a task update.
type wirePack struct {
	_      struct{} `cbor:",toarray"`
	ID     string
	Result *wireResult
	Meta   map[string]any
}

// UnmarshalJSON decodes the tuple form. Result and meta may be null or
// missing.
func (p *wirePack) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) == 0 {
		return errors.New("empty task update tuple")
	}
	if err := json.Unmarshal(parts[0], &p.ID); err != nil {
		return fmt.Errorf("task update id: %w", err)
	}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &p.Result); err != nil {
			return fmt.Errorf("task update result: %w", err)
		}
	}
	if len(parts) > 2 {
		if err := json.Unmarshal(parts[2], &p.Meta); err != nil {
			return fmt.Errorf("task update meta: %w", err)
		}
	}
	return nil
}

// toEvent converts an envelope to one of the event types.
func (env *envelope) toEvent() (any, error) {
	switch env.Event {
	case EventPathsCollected:
		return PathsCollected{Paths: env.Paths}, nil

	case EventCollected:
		files, err := toFiles(env.Files)
		if err != nil {
			return nil, err
		}
		return Collected{Files: files}, nil

	case EventTaskUpdate:
		entries := make([]task.UpdateEntry, 0, len(env.Packs))
		for _, p := range env.Packs {
			entries = append(entries, task.UpdateEntry{
				ID:     p.ID,
				Result: p.Result.toResult(),
				Meta:   p.Meta,
			})
		}
		return TaskUpdate{Entries: entries}, nil

	case EventFinished:
		files, err := toFiles(env.Files)
		if err != nil {
			return nil, err
		}
		return Finished{Files: files, Errors: toErrors(env.Errors)}, nil

	case EventUserConsoleLog:
		if env.Log == nil {
			return nil, fmt.Errorf("%s: missing log", env.Event)
		}
		return ConsoleLog{Entry: task.ConsoleLog{
			TaskID:  env.Log.TaskID,
			Type:    env.Log.Type,
			Content: env.Log.Content,
			Time:    env.Log.Time,
		}}, nil

	case EventTestAnnotate:
		if env.Annotation == nil {
			return nil, fmt.Errorf("%s: missing annotation", env.Event)
		}
		return Annotate{
			TaskID:     env.TaskID,
			Annotation: task.Annotation{Type: env.Annotation.Type, Message: env.Annotation.Message},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

func toFiles(wire []wireTask) ([]*task.File, error) {
	files := make([]*task.File, 0, len(wire))
	for _, w := range wire {
		if w.Type != string(task.TypeFile) {
			return nil, fmt.Errorf("top-level task %s: expected file, got %q", w.ID, w.Type)
		}
		f := &task.File{
			Common:          w.info(w.ID, ""),
			Filepath:        w.Filepath,
			ProjectName:     w.ProjectName,
			CollectDuration: w.CollectDuration,
			SetupDuration:   w.SetupDuration,
			EnvironmentLoad: w.EnvironmentLoad,
			PrepareDuration: w.PrepareDuration,
		}
		if f.Common.Name == "" {
			f.Common.Name = w.Filepath
		}
		children, err := toTasks(w.Tasks, w.ID, w.ID)
		if err != nil {
			return nil, err
		}
		f.Tasks = children
		files = append(files, f)
	}
	return files, nil
}

func toTasks(wire []wireTask, fileID, parentID string) ([]task.Task, error) {
	tasks := make([]task.Task, 0, len(wire))
	for _, w := range wire {
		switch w.Type {
		case string(task.TypeSuite):
			children, err := toTasks(w.Tasks, fileID, w.ID)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, &task.Suite{Common: w.info(fileID, parentID), Tasks: children})
		case string(task.TypeTest), "custom":
			tasks = append(tasks, &task.Test{Common: w.info(fileID, parentID)})
		default:
			return nil, fmt.Errorf("task %s: %w %q", w.ID, ErrUnknownTaskType, w.Type)
		}
	}
	return tasks, nil
}

func (w *wireTask) info(fileID, parentID string) task.Info {
	mode := task.Mode(w.Mode)
	if mode == "" {
		mode = task.ModeRun
	}
	return task.Info{
		ID:       w.ID,
		Name:     w.Name,
		Mode:     mode,
		Result:   w.Result.toResult(),
		FileID:   fileID,
		ParentID: parentID,
		Meta:     w.Meta,
	}
}

func (r *wireResult) toResult() *task.Result {
	if r == nil {
		return nil
	}
	return &task.Result{
		State:    task.State(r.State),
		Duration: r.Duration,
		Errors:   toErrors(r.Errors),
	}
}

func toErrors(wire []wireError) []task.ErrorInfo {
	if len(wire) == 0 {
		return nil
	}
	errs := make([]task.ErrorInfo, 0, len(wire))
	for _, e := range wire {
		errs = append(errs, task.ErrorInfo{Name: e.Name, Message: e.Message, Stack: e.Stack})
	}
	return errs
}
