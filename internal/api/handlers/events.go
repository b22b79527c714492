package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/videgen/internal/audit"
	"github.com/nikhilbhutani/videgen/internal/storage"
)

// Ledger is satisfied by *audit.Service.
type Ledger interface {
	ListByProject(ctx context.Context, projectID string, limit int) ([]audit.Event, error)
}

type EventsHandler struct {
	ledger Ledger
}

// NewEventsHandler accepts a nil ledger when no database is configured.
func NewEventsHandler(ledger Ledger) *EventsHandler {
	return &EventsHandler{ledger: ledger}
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeMessage(w, http.StatusServiceUnavailable, "stage ledger is not configured")
		return
	}

	projectID := chi.URLParam(r, "id")
	if err := storage.ValidateProjectID(projectID); err != nil {
		writeError(w, err, "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.ledger.ListByProject(r.Context(), projectID, limit)
	if err != nil {
		slog.Error("list stage events", "project_id", projectID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projectId": projectID, "events": events})
}
