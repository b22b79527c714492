package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/videgen/internal/pipeline"
	"github.com/nikhilbhutani/videgen/internal/queue"
	"github.com/nikhilbhutani/videgen/internal/webhook"
)

// Enqueuer is satisfied by *queue.Client.
type Enqueuer interface {
	EnqueuePipelineRun(ctx context.Context, payload queue.PipelineRunPayload) error
}

// RunValidator rejects run requests the worker would fail on validation;
// *pipeline.Pipeline satisfies it.
type RunValidator interface {
	ValidateRun(req pipeline.RunRequest) error
}

type JobHandler struct {
	enqueuer  Enqueuer
	statuses  *queue.StatusStore
	validator RunValidator
	newID     func() string
}

// NewJobHandler accepts a nil enqueuer when background jobs are disabled.
func NewJobHandler(enqueuer Enqueuer, statuses *queue.StatusStore, validator RunValidator) *JobHandler {
	return &JobHandler{enqueuer: enqueuer, statuses: statuses, validator: validator, newID: uuid.NewString}
}

type createJobRequest struct {
	Topic       string `json:"topic"`
	Language    string `json:"language"`
	Model       string `json:"model"`
	Voice       string `json:"voice"`
	CallbackURL string `json:"callbackUrl"`
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil || h.statuses == nil {
		writeMessage(w, http.StatusServiceUnavailable, "background jobs are not configured")
		return
	}

	var req createJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		writeMessage(w, http.StatusBadRequest, "topic is required")
		return
	}
	if req.CallbackURL != "" {
		if err := webhook.ValidateCallbackURL(req.CallbackURL); err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if h.validator != nil {
		err := h.validator.ValidateRun(pipeline.RunRequest{Topic: topic, Language: req.Language, Model: req.Model, Voice: req.Voice})
		if err != nil {
			writeError(w, err, "invalid pipeline request")
			return
		}
	}

	jobID := h.newID()
	st := queue.JobStatus{JobID: jobID, Status: queue.StatusQueued}
	if err := h.statuses.Put(r.Context(), st); err != nil {
		slog.Error("store queued job", "job_id", jobID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to queue pipeline")
		return
	}

	err := h.enqueuer.EnqueuePipelineRun(r.Context(), queue.PipelineRunPayload{
		JobID:       jobID,
		Topic:       topic,
		Language:    req.Language,
		Model:       req.Model,
		Voice:       req.Voice,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		slog.Error("enqueue pipeline", "job_id", jobID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to queue pipeline")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID, "status": queue.StatusQueued})
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.statuses == nil {
		writeMessage(w, http.StatusServiceUnavailable, "background jobs are not configured")
		return
	}

	st, err := h.statuses.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, queue.ErrJobNotFound) {
		writeMessage(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		slog.Error("load job status", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
