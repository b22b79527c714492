package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
)

func TestHandlersRegistryRoutesByType(t *testing.T) {
	r := NewHandlersRegistry()
	var got string
	r.Register(TypePipelineRun, asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		got = t.Type()
		return nil
	}))
	boom := errors.New("boom")
	r.Register(TypeWebhookDeliver, asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		return boom
	}))

	if err := r.Mux().ProcessTask(context.Background(), asynq.NewTask(TypePipelineRun, nil)); err != nil {
		t.Fatalf("pipeline task: %v", err)
	}
	if got != TypePipelineRun {
		t.Fatalf("handled type: want=%q got=%q", TypePipelineRun, got)
	}
	if err := r.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeWebhookDeliver, nil)); !errors.Is(err, boom) {
		t.Fatalf("webhook task: want=%v got=%v", boom, err)
	}

	types := r.Types()
	if len(types) != 2 || types[0] != TypePipelineRun || types[1] != TypeWebhookDeliver {
		t.Fatalf("types: got=%v", types)
	}
}
