package pipeline

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nikhilbhutani/videgen/internal/audit"
	"github.com/nikhilbhutani/videgen/internal/prompt"
	"github.com/nikhilbhutani/videgen/internal/storage"
	"github.com/nikhilbhutani/videgen/internal/video"
)

//go:embed prompts.yaml
var promptsYAML []byte

const (
	minPacing = 100 * time.Millisecond
	maxPacing = time.Second

	DefaultPlaceholderImageURL = "https://via.placeholder.com/1920x1080/4F46E5/FFFFFF?text={text}"
	DefaultPlaceholderVideoURL = "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"
)

type Config struct {
	DefaultModel string
	DefaultVoice string
	// Pacing spaces backend calls in the timeline stage; clamped to [100ms, 1s].
	Pacing time.Duration
	// CallTimeout bounds every backend call; zero means no bound.
	CallTimeout time.Duration
	// MeasureDuration reads the narration length from the WAV header
	// instead of estimating it from the word count.
	MeasureDuration     bool
	PlaceholderImageURL string
	PlaceholderVideoURL string
	Width               int
	Height              int
	FPS                 int
}

type Deps struct {
	Store  storage.ArtifactStore
	Text   TextGenerator
	Speech Synthesizer
	Images ImageSource
	// Compositor is optional; without one the assembly stage writes a
	// manifest and returns the placeholder video.
	Compositor video.Compositor
	Recorder   Recorder
	Logger     *slog.Logger
}

// Pipeline runs the script, audio, timeline and assembly stages. Each stage
// can be called on its own; Run chains them.
type Pipeline struct {
	cfg        Config
	store      storage.ArtifactStore
	text       TextGenerator
	speech     Synthesizer
	images     ImageSource
	compositor video.Compositor
	recorder   Recorder
	logger     *slog.Logger
	prompts    *prompt.Catalog

	newLimiter func() *rate.Limiter
	now        func() time.Time
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: artifact store is required")
	case deps.Text == nil:
		return nil, errors.New("pipeline: text generator is required")
	case deps.Speech == nil:
		return nil, errors.New("pipeline: speech synthesizer is required")
	case deps.Images == nil:
		return nil, errors.New("pipeline: image source is required")
	}

	catalog, err := prompt.LoadCatalog(promptsYAML)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		cfg:        cfg,
		store:      deps.Store,
		text:       deps.Text,
		speech:     deps.Speech,
		images:     deps.Images,
		compositor: deps.Compositor,
		recorder:   deps.Recorder,
		logger:     logger,
		prompts:    catalog,
		now:        time.Now,
	}
	p.newLimiter = func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(p.cfg.Pacing), 1)
	}
	return p, nil
}

func (c Config) withDefaults() Config {
	c.Pacing = clampPacing(c.Pacing)
	if c.PlaceholderImageURL == "" {
		c.PlaceholderImageURL = DefaultPlaceholderImageURL
	}
	if c.PlaceholderVideoURL == "" {
		c.PlaceholderVideoURL = DefaultPlaceholderVideoURL
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = 1920, 1080
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	return c
}

func clampPacing(d time.Duration) time.Duration {
	if d < minPacing {
		return minPacing
	}
	if d > maxPacing {
		return maxPacing
	}
	return d
}

// Degraded reports whether the assembly stage runs without a compositor.
func (p *Pipeline) Degraded() bool { return p.compositor == nil }

func (p *Pipeline) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// record writes a ledger entry for a finished stage. Ledger failures are
// logged and never fail the stage.
func (p *Pipeline) record(ctx context.Context, projectID string, stage Stage, started time.Time, stageErr error, detail map[string]any) {
	if p.recorder == nil || projectID == "" {
		return
	}
	ev := audit.Event{
		ProjectID:  projectID,
		Stage:      string(stage),
		Status:     audit.StatusSucceeded,
		Detail:     detail,
		DurationMs: p.now().Sub(started).Milliseconds(),
	}
	if stageErr != nil {
		ev.Status = audit.StatusFailed
		if ev.Detail == nil {
			ev.Detail = map[string]any{}
		}
		ev.Detail["error"] = stageErr.Error()
	}
	if err := p.recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		p.logger.Warn("record stage event", "stage", stage, "project_id", projectID, "error", err)
	}
}
