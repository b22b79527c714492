package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/videgen/internal/config"
)

// RedisOpt converts the shared redis settings into asynq's connection option.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueuePipelineRun schedules a whole run. Runs are never retried; the job
// id doubles as the asynq task id so a job cannot be enqueued twice.
func (c *Client) EnqueuePipelineRun(ctx context.Context, payload PipelineRunPayload) error {
	return c.enqueue(ctx, TypePipelineRun, payload,
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	)
}

func (c *Client) EnqueueWebhookDeliver(ctx context.Context, payload WebhookDeliverPayload) error {
	return c.enqueue(ctx, TypeWebhookDeliver, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
