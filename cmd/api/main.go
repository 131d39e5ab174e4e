package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/internal/adapters/storage"
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket"
	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/events"
	apphttp "github.com/JoacoLucen/EPH-Insight-App/internal/http"
	"github.com/JoacoLucen/EPH-Insight-App/internal/http/router"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest"
	ingestservice "github.com/JoacoLucen/EPH-Insight-App/internal/ingest/service"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/cache"
	"github.com/JoacoLucen/EPH-Insight-App/internal/scheduler"
	"github.com/JoacoLucen/EPH-Insight-App/migrations"
	"github.com/JoacoLucen/EPH-Insight-App/platform/config"
	"github.com/JoacoLucen/EPH-Insight-App/platform/db"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	cb, err := codebook.Load(cfg.GetCodebookPath())
	if err != nil {
		log.Error("failed to load codebook", "error", err)
		panic("failed to load codebook: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()
	if err := val.RegisterClusterCheck(cb); err != nil {
		panic("failed to register cluster validation: " + err.Error())
	}

	storageSvc := initStorage(ctx, cfg, log)

	loader := dataset.NewLoader(initSource(cfg, storageSvc), cb, log)
	store := dataset.NewStore(loader, cb, eventBus, cfg.GetDatasetCacheTTL(), log)
	log.Info("dataset source configured", "source", cfg.GetDataSource(), "location", loader.Source().Location())

	reportCache, closeCache := initReportCache(ctx, cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	basketModule := basket.NewModule(pool, val, log)
	ingestModule := ingest.NewModule(pool, store, storageSvc, ingestservice.Buckets{
		Extracts:       cfg.GetMinioBucketExtracts(),
		ExtractsPrefix: dataset.ExtractsPrefix,
		Normalized:     cfg.GetMinioBucketNormalized(),
	}, eventBus, val, log)
	ingestModule.Service().SetExportOnReload(storageSvc != nil)

	// Quarterly basket lines feed the poverty report
	reportsModule := reports.NewModule(store, reportCache, basketModule.Service(), val, log)

	// Event subscriptions
	reportsModule.RegisterHandlers(eventBus)

	// Reloads go through asynq when Redis is configured; the worker runs in
	// this process because it swaps the snapshot the API serves.
	enqueuer, closeScheduler := initReloadScheduler(ctx, cfg, ingestModule.Service(), log)
	if closeScheduler != nil {
		defer closeScheduler()
	}
	if enqueuer != nil {
		ingestModule.Service().SetReloadEnqueuer(enqueuer)
	}

	if run, err := ingestModule.Service().TriggerReload(ctx, scheduler.TriggerStartup); err != nil {
		log.Warn("initial dataset load failed; reports unavailable until the next reload", "error", err)
	} else {
		log.Info("initial dataset load", "runId", run.ID, "status", run.Status)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		Dataset:  store,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			reportsModule,
			basketModule,
			ingestModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initStorage returns nil when MinIO is not configured: uploads and
// normalized exports are then disabled.
func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.StorageService {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; extract uploads and normalized exports disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	ensureBucket(ctx, log, storageSvc, "extracts", cfg.GetMinioBucketExtracts())
	ensureBucket(ctx, log, storageSvc, "normalized", cfg.GetMinioBucketNormalized())
	log.Info(
		"storage service initialized",
		"extractsBucket", cfg.GetMinioBucketExtracts(),
		"normalizedBucket", cfg.GetMinioBucketNormalized(),
	)
	return storageSvc
}

func initSource(cfg *config.Config, storageSvc storage.StorageService) dataset.Source {
	if cfg.GetDataSource() == config.DataSourceBucket {
		if storageSvc == nil {
			panic("DATA_SOURCE=bucket requires MinIO to be configured")
		}
		return dataset.NewBucketSource(storageSvc, cfg.GetMinioBucketExtracts(), dataset.ExtractsPrefix)
	}
	return dataset.NewDirSource(cfg.GetDataDir())
}

func initReportCache(ctx context.Context, cfg config.ReportCacheConfig, log *logger.Logger) (cache.Cache, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; report cache disabled")
		return cache.Noop{}, nil
	}

	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Error("failed to initialize report cache", "error", err)
		return cache.Noop{}, nil
	}
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("report cache unreachable; caching disabled", "error", err)
		_ = redisCache.Close()
		return cache.Noop{}, nil
	}

	return redisCache, func() {
		_ = redisCache.Close()
	}
}

func initReloadScheduler(ctx context.Context, cfg config.SchedulerConfig, processor scheduler.ReloadProcessor, log *logger.Logger) (scheduler.ReloadEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; dataset reloads run inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reload scheduler client", "error", err)
		return nil, nil
	}

	worker, err := scheduler.NewWorker(cfg, log)
	if err != nil {
		log.Error("failed to initialize reload worker", "error", err)
		_ = client.Close()
		return nil, nil
	}
	worker.SetReloadProcessor(processor)
	go worker.Run(ctx)

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
