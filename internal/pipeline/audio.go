package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/nikhilbhutani/videgen/internal/apperr"
	"github.com/nikhilbhutani/videgen/internal/multimodal/tts"
)

// WordsPerMinute is the speaking rate behind EstimateDuration.
const WordsPerMinute = 150

type AudioRequest struct {
	Script string
	Voice  string
}

// GenerateAudio synthesizes narration and stores it in a newly allocated
// project.
func (p *Pipeline) GenerateAudio(ctx context.Context, req AudioRequest) (*AudioResult, error) {
	script := strings.TrimSpace(req.Script)
	if script == "" {
		return nil, apperr.Validation("script is required")
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = p.cfg.DefaultVoice
	}

	log := p.logger.With("stage", StageAudio, "backend", p.speech.Name(), "voice", voice)
	started := p.now()

	cctx, cancel := p.callCtx(ctx)
	res, err := p.speech.Synthesize(cctx, tts.SynthesisRequest{Input: script, Voice: voice})
	cancel()
	if err != nil {
		log.Error("speech synthesis failed", "error", err)
		return nil, apperr.Generation("Failed to generate audio", err)
	}
	if res == nil || len(res.Audio) == 0 {
		log.Error("speech synthesis returned no audio")
		return nil, apperr.Generation("Failed to generate audio", errors.New("no audio received"))
	}

	audio := tts.NormalizeAudio(res.Audio, res.ContentType)

	projectID, err := p.store.AllocateProject(ctx)
	if err != nil {
		log.Error("allocate project failed", "error", err)
		return nil, err
	}
	log = log.With("project_id", projectID)

	ref, err := p.store.Save(ctx, projectID, "audio"+audio.Extension, audio.Data)
	if err != nil {
		log.Error("save audio failed", "error", err)
		p.record(ctx, projectID, StageAudio, started, err, nil)
		return nil, err
	}

	duration := p.audioDuration(script, res.Duration, audio)
	log.Info("audio generated",
		"bytes", len(audio.Data),
		"content_type", audio.ContentType,
		"wrapped", audio.Wrapped,
		"duration", duration,
	)
	p.record(ctx, projectID, StageAudio, started, nil, map[string]any{
		"audioUrl":    ref,
		"contentType": audio.ContentType,
		"duration":    duration,
	})

	return &AudioResult{Reference: ref, ProjectID: projectID, Duration: duration}, nil
}

// audioDuration prefers a length reported by the backend, then a measured
// WAV length when enabled, then the word-count estimate.
func (p *Pipeline) audioDuration(script string, reported time.Duration, audio tts.NormalizedAudio) int {
	if reported > 0 {
		return ceilSeconds(reported)
	}
	if p.cfg.MeasureDuration {
		if d, ok := tts.WAVDuration(audio.Data); ok && d > 0 {
			return ceilSeconds(d)
		}
	}
	return EstimateDuration(script)
}

// EstimateDuration is ceil(words*60/150) seconds, computed in integers.
func EstimateDuration(script string) int {
	words := len(strings.Fields(script))
	return (words*60 + WordsPerMinute - 1) / WordsPerMinute
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
