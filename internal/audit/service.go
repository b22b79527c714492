package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Event is one entry in a project's stage ledger.
type Event struct {
	ID         int64          `json:"id"`
	ProjectID  string         `json:"projectId"`
	Stage      string         `json:"stage"`
	Status     string         `json:"status"`
	Detail     map[string]any `json:"detail,omitempty"`
	DurationMs int64          `json:"durationMs"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// DB is the subset of *pgxpool.Pool the ledger needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

func (s *Service) Record(ctx context.Context, ev Event) error {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO pipeline_events (project_id, stage, status, detail, duration_ms)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.ProjectID, ev.Stage, ev.Status, detail, ev.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline event: %w", err)
	}
	return nil
}

// ListByProject returns a project's events oldest first.
func (s *Service) ListByProject(ctx context.Context, projectID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, stage, status, detail, duration_ms, created_at
		 FROM pipeline_events WHERE project_id = $1
		 ORDER BY created_at ASC, id ASC LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pipeline events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev     Event
			detail []byte
		)
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.Stage, &ev.Status, &detail, &ev.DurationMs, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline event: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &ev.Detail); err != nil {
				return nil, fmt.Errorf("decode event detail: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline events: %w", err)
	}
	return events, nil
}
