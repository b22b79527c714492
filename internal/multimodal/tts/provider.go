package tts

import (
	"context"
	"time"
)

// SynthesisRequest holds the parameters for text-to-speech generation.
type SynthesisRequest struct {
	Input string  `json:"input"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// SynthesisResult holds the generated audio and its content type.
// ContentType may be empty or a raw PCM type such as "audio/L16;rate=24000";
// NormalizeAudio resolves either into a playable container.
type SynthesisResult struct {
	Audio       []byte
	ContentType string
	// Duration is set only by backends that report playback length.
	Duration time.Duration
}

// TTSProvider is the interface for text-to-speech backends.
type TTSProvider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}
