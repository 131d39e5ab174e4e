package scheduler

import (
	"context"
	"fmt"

	"github.com/JoacoLucen/EPH-Insight-App/platform/config"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"

	"github.com/hibiken/asynq"
)

// ReloadProcessor executes a reload task.
type ReloadProcessor interface {
	ProcessReload(ctx context.Context, payload ReloadPayload) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	reloader ReloadProcessor
	log      *logger.Logger
}

// NewWorker creates the task server. Reloads replace the whole snapshot, so
// the default concurrency is one.
func NewWorker(cfg config.SchedulerConfig, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		log:    log,
	}

	mux.HandleFunc(TaskMicrodataReload, w.handleReload)

	return w, nil
}

// SetReloadProcessor wires the component that performs reloads.
func (w *Worker) SetReloadProcessor(p ReloadProcessor) {
	w.reloader = p
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleReload(ctx context.Context, task *asynq.Task) error {
	if w.reloader == nil {
		w.log.Warn("reload task received without a processor; skipping")
		return nil
	}

	payload, err := ParseReloadPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.reloader.ProcessReload(ctx, payload)
}
