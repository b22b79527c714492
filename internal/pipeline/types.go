package pipeline

import (
	"context"

	"github.com/nikhilbhutani/videgen/internal/audit"
	"github.com/nikhilbhutani/videgen/internal/llm"
	"github.com/nikhilbhutani/videgen/internal/multimodal/image"
	"github.com/nikhilbhutani/videgen/internal/multimodal/tts"
)

type Stage string

const (
	StageScript   Stage = "script"
	StageAudio    Stage = "audio"
	StageTimeline Stage = "timeline"
	StageAssembly Stage = "assembly"
)

// AssetKind tells a stored image apart from a placeholder substituted after
// a failed fetch.
type AssetKind string

const (
	AssetResolved    AssetKind = "resolved"
	AssetPlaceholder AssetKind = "placeholder"
)

// TimedAsset is one image on the video timeline. Offsets and spans are in
// seconds.
type TimedAsset struct {
	Reference   string    `json:"imageUrl"`
	Prompt      string    `json:"imagePrompt"`
	StartOffset float64   `json:"timestamp"`
	Span        float64   `json:"duration"`
	Order       int       `json:"order"`
	Kind        AssetKind `json:"kind"`
}

// AudioResult is the narration saved into a fresh project. Duration is in
// whole seconds.
type AudioResult struct {
	Reference string `json:"audioUrl"`
	ProjectID string `json:"projectId"`
	Duration  int    `json:"duration"`
}

// TextGenerator produces text from a prompt. Models lists what the backend
// can serve; an empty list disables model validation.
type TextGenerator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*llm.Completion, error)
	Models() []string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error)
	Name() string
}

type ImageSource interface {
	Fetch(ctx context.Context, query string) (*image.Image, error)
	Name() string
}

// Recorder receives one event per finished stage.
type Recorder interface {
	Record(ctx context.Context, ev audit.Event) error
}
