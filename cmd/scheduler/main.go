package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/internal/adapters/storage"
	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/scheduler"
	"github.com/JoacoLucen/EPH-Insight-App/platform/config"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

// The scheduler watches the extract source and enqueues a reload whenever it
// changes. Reload tasks are processed by the worker hosted in the API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "source", cfg.GetDataSource(), "interval", cfg.GetSourceWatchInterval())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cb, err := codebook.Load(cfg.GetCodebookPath())
	if err != nil {
		log.Error("failed to load codebook", "error", err)
		panic("failed to load codebook: " + err.Error())
	}

	var source dataset.Source = dataset.NewDirSource(cfg.GetDataDir())
	if cfg.GetDataSource() == config.DataSourceBucket {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure extracts bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx, cfg.GetMinioBucketExtracts())
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err)
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		source = dataset.NewBucketSource(storageSvc, cfg.GetMinioBucketExtracts(), dataset.ExtractsPrefix)
	}

	// The store is only fingerprinted here, never loaded.
	store := dataset.NewStore(dataset.NewLoader(source, cb, log), cb, nil, cfg.GetDatasetCacheTTL(), log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	watcher := scheduler.NewSourceWatcher(store, client, log, cfg.GetSourceWatchInterval())
	watcher.Run(ctx)
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
