package scheduler

import (
	"context"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

const defaultSourceWatchInterval = 5 * time.Minute

// Fingerprinter reports the identity of the extract source as it is now.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// SourceWatcher periodically fingerprints the extract source and enqueues a
// reload whenever the fingerprint differs from the last one seen.
type SourceWatcher struct {
	source   Fingerprinter
	enqueuer ReloadEnqueuer
	log      *logger.Logger
	interval time.Duration
	last     string
}

func NewSourceWatcher(source Fingerprinter, enqueuer ReloadEnqueuer, log *logger.Logger, interval time.Duration) *SourceWatcher {
	if interval <= 0 {
		interval = defaultSourceWatchInterval
	}
	return &SourceWatcher{
		source:   source,
		enqueuer: enqueuer,
		log:      log,
		interval: interval,
	}
}

func (w *SourceWatcher) Run(ctx context.Context) {
	if w == nil || w.source == nil || w.enqueuer == nil {
		return
	}

	w.check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check returns true when a reload was enqueued.
func (w *SourceWatcher) check(ctx context.Context) bool {
	fp, err := w.source.Fingerprint(ctx)
	if err != nil {
		w.log.Warn("source fingerprint failed", "error", err)
		return false
	}
	if fp == w.last {
		return false
	}

	if err := w.enqueuer.EnqueueReload(ctx, ReloadPayload{Trigger: TriggerWatcher, Fingerprint: fp}); err != nil {
		w.log.Warn("enqueue reload failed", "fingerprint", fp, "error", err)
		return false
	}

	w.log.Info("source changed; reload enqueued", "previous", w.last, "fingerprint", fp)
	w.last = fp
	return true
}
