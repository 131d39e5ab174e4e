package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskMicrodataReload reloads the survey extracts into the serving snapshot.
const TaskMicrodataReload = "microdata.reload"

// Reload triggers.
const (
	TriggerManual  = "manual"
	TriggerUpload  = "upload"
	TriggerWatcher = "watcher"
	TriggerStartup = "startup"
)

// ReloadPayload identifies the ingestion run a reload belongs to. RunID is
// empty when the watcher enqueues the task; the worker then opens a new run.
type ReloadPayload struct {
	RunID       string `json:"runId,omitempty"`
	Trigger     string `json:"trigger"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func NewReloadTask(payload ReloadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMicrodataReload, data), nil
}

func ParseReloadPayload(task *asynq.Task) (ReloadPayload, error) {
	var payload ReloadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReloadPayload{}, err
	}
	return payload, nil
}
