package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/videgen/internal/queue"
	"github.com/nikhilbhutani/videgen/internal/webhook"
)

// Deliverer sends one callback; *webhook.Dispatcher satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, req webhook.DeliveryRequest) error
}

type WebhookWorker struct {
	deliverer Deliverer
}

func NewWebhookWorker(d Deliverer) *WebhookWorker {
	return &WebhookWorker{deliverer: d}
}

// ProcessTask returns delivery errors so asynq retries with backoff.
func (w *WebhookWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.WebhookDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	return w.deliverer.Deliver(ctx, webhook.DeliveryRequest{
		JobID:   payload.JobID,
		URL:     payload.URL,
		Event:   payload.Event,
		Payload: payload.Payload,
	})
}
