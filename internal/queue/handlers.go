package queue

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"
)

// HandlersRegistry maps task types to worker handlers and logs every task
// the worker processes.
type HandlersRegistry struct {
	mux   *asynq.ServeMux
	types map[string]struct{}
}

func NewHandlersRegistry() *HandlersRegistry {
	mux := asynq.NewServeMux()
	mux.Use(logTask)
	return &HandlersRegistry{mux: mux, types: make(map[string]struct{})}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
	r.types[taskType] = struct{}{}
}

// Types lists the registered task types in sorted order.
func (r *HandlersRegistry) Types() []string {
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		attrs := []any{"type", t.Type(), "duration_ms", time.Since(start).Milliseconds()}
		if err != nil {
			slog.Warn("task failed", append(attrs, "error", err)...)
			return err
		}
		slog.Debug("task done", attrs...)
		return nil
	})
}
