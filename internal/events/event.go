// Package events defines the dataset and ingestion events exchanged by the
// API modules. The bus itself lives in platform/events.
package events

import (
	"github.com/JoacoLucen/EPH-Insight-App/platform/events"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus builds the process-local bus shared by the API modules.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Dataset Domain Events
// =============================================================================

// DatasetLoaded is published when a new snapshot becomes the current one.
type DatasetLoaded struct {
	BaseEvent
	Fingerprint string   `json:"fingerprint"`
	Individuals int      `json:"individuals"`
	Households  int      `json:"households"`
	Periods     []string `json:"periods"`
	Excluded    int      `json:"excluded"`
	FromCache   bool     `json:"fromCache"`
}

func (e DatasetLoaded) EventName() string { return "dataset.loaded" }

// =============================================================================
// Ingestion Domain Events
// =============================================================================

// ExtractUploaded is published when an admin stores a new survey extract.
type ExtractUploaded struct {
	BaseEvent
	Bucket  string `json:"bucket"`
	FileKey string `json:"fileKey"`
	Size    int64  `json:"size"`
}

func (e ExtractUploaded) EventName() string { return "ingest.extract.uploaded" }

// IngestionCompleted is published when a reload run finishes successfully.
type IngestionCompleted struct {
	BaseEvent
	RunID       uuid.UUID `json:"runId"`
	Fingerprint string    `json:"fingerprint"`
}

func (e IngestionCompleted) EventName() string { return "ingest.run.completed" }

// IngestionFailed is published when a reload run fails.
type IngestionFailed struct {
	BaseEvent
	RunID uuid.UUID `json:"runId"`
	Error string    `json:"error"`
}

func (e IngestionFailed) EventName() string { return "ingest.run.failed" }
