package reports

import (
	"context"
	"testing"

	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/events"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/cache"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"
)

type emptyStore struct{}

func (emptyStore) Current() (*dataset.Snapshot, error) {
	return nil, apperr.Unavailable("dataset not loaded yet")
}

func TestModule_SubscribesToDatasetLoaded(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	m := NewModule(emptyStore{}, cache.Noop{}, nil, validator.New(), logger.Discard())
	m.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.DatasetLoaded{BaseEvent: events.NewBaseEvent(), Fingerprint: "fp1"})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected warm-up to reach the store, got %v", err)
	}
}

func TestModule_IgnoresOtherEvents(t *testing.T) {
	m := NewModule(emptyStore{}, cache.Noop{}, nil, validator.New(), logger.Discard())

	if err := m.Handle(context.Background(), events.IngestionFailed{BaseEvent: events.NewBaseEvent()}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
