package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	reloadTimeout   = 15 * time.Minute
	reloadMaxRetry  = 3
	reloadRetention = 24 * time.Hour
)

type Client struct {
	client *asynq.Client
	queue  string
}

// ReloadEnqueuer schedules a reload of the survey extracts.
type ReloadEnqueuer interface {
	EnqueueReload(ctx context.Context, payload ReloadPayload) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueReload enqueues a reload task. Tasks carrying a fingerprint get a
// task id derived from it, so the same source state is enqueued at most once
// while the task is retained.
func (c *Client) EnqueueReload(ctx context.Context, payload ReloadPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewReloadTask(payload)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(reloadMaxRetry),
		asynq.Timeout(reloadTimeout),
	}
	if payload.Fingerprint != "" {
		opts = append(opts, asynq.TaskID(TaskMicrodataReload+":"+payload.Fingerprint), asynq.Retention(reloadRetention))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
