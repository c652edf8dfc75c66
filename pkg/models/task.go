package models

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TaskStatus is the server-reported state of a job. The client never computes it.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "Running"
	TaskCompleted TaskStatus = "Completed"
	TaskFailed    TaskStatus = "Failed"
)

// Task is a server-tracked long-running operation keyed by UUID in the session map.
type Task struct {
	UUID     string         `json:"uuid" yaml:"uuid"`
	TaskName string         `json:"task_name" yaml:"task_name"`
	Status   TaskStatus     `json:"status" yaml:"status"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
	Message  string         `json:"message,omitempty" yaml:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Request  map[string]any `json:"request,omitempty" yaml:"request,omitempty"`
}

// IsRunning reports whether the task is still executing on the server.
func (t Task) IsRunning() bool {
	return t.Status == TaskRunning
}

// DecodeData decodes the free-form data payload into out.
func (t Task) DecodeData(out any) error {
	return decodeLoose(t.Data, out)
}

// DecodeRequest decodes the echoed request payload into out.
func (t Task) DecodeRequest(out any) error {
	return decodeLoose(t.Request, out)
}

func decodeLoose(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode task payload: %w", err)
	}
	return nil
}

// Session is the session-wide task map returned by the backend.
type Session map[string]Task

// Lookup returns the task for uuid. A UUID missing from the map means no data.
func (s Session) Lookup(uuid string) (Task, bool) {
	if uuid == "" || s == nil {
		return Task{}, false
	}
	t, ok := s[uuid]
	return t, ok
}

// Running returns every task currently running.
func (s Session) Running() []Task {
	var out []Task
	for _, t := range s {
		if t.IsRunning() {
			out = append(out, t)
		}
	}
	return out
}

// TrainingResult is the data payload of a completed training task.
type TrainingResult struct {
	ModelPath string  `json:"model_path"`
	Epoch     int     `json:"epoch"`
	Progress  float64 `json:"progress"`
}

// PipelineProgress is the data payload reported by the one-click pipeline.
type PipelineProgress struct {
	CurrentStep string  `json:"current_step"`
	Progress    float64 `json:"progress"`
	TotalSteps  int     `json:"total_steps"`
}
