package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/videgen/internal/cache"
	"github.com/nikhilbhutani/videgen/internal/pipeline"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// JobStatus is what clients poll while a pipeline job runs.
type JobStatus struct {
	JobID     string              `json:"jobId"`
	Status    string              `json:"status"`
	Stage     pipeline.Stage      `json:"stage,omitempty"`
	Result    *pipeline.RunResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// KV is the slice of cache.Cache the status store needs.
type KV interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type StatusStore struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

func NewStatusStore(kv KV, ttl time.Duration) *StatusStore {
	return &StatusStore{kv: kv, ttl: ttl, now: time.Now}
}

func statusKey(jobID string) string { return "job:" + jobID }

func (s *StatusStore) Put(ctx context.Context, st JobStatus) error {
	st.UpdatedAt = s.now().UTC()
	if err := s.kv.Set(ctx, statusKey(st.JobID), st, s.ttl); err != nil {
		return fmt.Errorf("store job %s status: %w", st.JobID, err)
	}
	return nil
}

func (s *StatusStore) Get(ctx context.Context, jobID string) (*JobStatus, error) {
	var st JobStatus
	if err := s.kv.Get(ctx, statusKey(jobID), &st); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load job %s status: %w", jobID, err)
	}
	return &st, nil
}
