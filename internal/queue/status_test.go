package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nikhilbhutani/videgen/internal/cache"
	"github.com/nikhilbhutani/videgen/internal/pipeline"
)

type memKV map[string][]byte

func (m memKV) Get(_ context.Context, key string, dest interface{}) error {
	b, ok := m[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m[key] = b
	return nil
}

func TestStatusStoreRoundTrip(t *testing.T) {
	s := NewStatusStore(memKV{}, time.Hour)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	err := s.Put(context.Background(), JobStatus{
		JobID:  "job-1",
		Status: StatusRunning,
		Stage:  pipeline.StageTimeline,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusRunning || got.Stage != pipeline.StageTimeline || !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("status: got=%+v", got)
	}
}

func TestStatusStoreUnknownJob(t *testing.T) {
	s := NewStatusStore(memKV{}, time.Hour)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("Get: want ErrJobNotFound got=%v", err)
	}
}
