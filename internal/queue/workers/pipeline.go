package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/videgen/internal/apperr"
	"github.com/nikhilbhutani/videgen/internal/pipeline"
	"github.com/nikhilbhutani/videgen/internal/queue"
	"github.com/nikhilbhutani/videgen/internal/webhook"
)

// Runner executes a whole pipeline; *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest, observe func(pipeline.Stage)) (*pipeline.RunResult, error)
}

// Notifier schedules a callback delivery; *queue.Client satisfies it.
type Notifier interface {
	EnqueueWebhookDeliver(ctx context.Context, payload queue.WebhookDeliverPayload) error
}

type PipelineWorker struct {
	runner   Runner
	statuses *queue.StatusStore
	notifier Notifier
}

func NewPipelineWorker(runner Runner, statuses *queue.StatusStore, notifier Notifier) *PipelineWorker {
	return &PipelineWorker{runner: runner, statuses: statuses, notifier: notifier}
}

func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.PipelineRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	log := slog.With("job_id", payload.JobID)
	log.Info("pipeline job started", "topic", payload.Topic)

	st := queue.JobStatus{JobID: payload.JobID, Status: queue.StatusRunning}
	w.putStatus(ctx, st)

	res, runErr := w.runner.Run(ctx, pipeline.RunRequest{
		Topic:    payload.Topic,
		Language: payload.Language,
		Model:    payload.Model,
		Voice:    payload.Voice,
	}, func(stage pipeline.Stage) {
		st.Stage = stage
		w.putStatus(ctx, st)
	})

	st.Result = res
	event := webhook.EventPipelineCompleted
	if runErr != nil {
		st.Status = queue.StatusFailed
		st.Error = apperr.PublicMessage(runErr, "Pipeline failed")
		event = webhook.EventPipelineFailed
		log.Error("pipeline job failed", "stage", st.Stage, "error", runErr)
	} else {
		st.Status = queue.StatusSucceeded
		log.Info("pipeline job finished", "video_url", res.VideoURL)
	}
	w.putStatus(ctx, st)

	if payload.CallbackURL != "" {
		if err := w.notify(ctx, payload, event, st); err != nil {
			log.Error("schedule callback", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("pipeline job %s: %w: %w", payload.JobID, runErr, asynq.SkipRetry)
	}
	return nil
}

func (w *PipelineWorker) putStatus(ctx context.Context, st queue.JobStatus) {
	if err := w.statuses.Put(context.WithoutCancel(ctx), st); err != nil {
		slog.Warn("update job status", "job_id", st.JobID, "error", err)
	}
}

func (w *PipelineWorker) notify(ctx context.Context, payload queue.PipelineRunPayload, event string, st queue.JobStatus) error {
	body, err := json.Marshal(struct {
		Event string `json:"event"`
		queue.JobStatus
	}{Event: event, JobStatus: st})
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}
	return w.notifier.EnqueueWebhookDeliver(context.WithoutCancel(ctx), queue.WebhookDeliverPayload{
		JobID:   payload.JobID,
		URL:     payload.CallbackURL,
		Event:   event,
		Payload: body,
	})
}
