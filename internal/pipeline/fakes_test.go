package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/nikhilbhutani/videgen/internal/audit"
	"github.com/nikhilbhutani/videgen/internal/llm"
	"github.com/nikhilbhutani/videgen/internal/multimodal/image"
	"github.com/nikhilbhutani/videgen/internal/multimodal/tts"
	"github.com/nikhilbhutani/videgen/internal/storage"
	"github.com/nikhilbhutani/videgen/internal/video"
)

const testScript = "Plants capture sunlight with chlorophyll and turn water and carbon dioxide into sugar and oxygen."

type fakeText struct {
	mu      sync.Mutex
	models  []string
	calls   []llm.GenerateRequest
	script  string
	concept string
	err     error
}

func (f *fakeText) Generate(_ context.Context, req llm.GenerateRequest) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	out := &llm.Completion{Provider: "fake", Model: req.Model, InputTokens: 40, OutputTokens: 20, CostUSD: 0.0005}
	if strings.Contains(req.Prompt, "visual concepts") {
		out.Text = f.concept
	} else {
		out.Text = f.script
	}
	return out, nil
}

func (f *fakeText) Models() []string { return f.models }

func (f *fakeText) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSpeech struct {
	calls  int
	result *tts.SynthesisResult
	err    error
}

func (f *fakeSpeech) Name() string { return "fake-tts" }

func (f *fakeSpeech) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeImages returns a tiny PNG for every query except those listed in fail.
type fakeImages struct {
	mu      sync.Mutex
	queries []string
	times   []time.Time
	fail    map[string]bool
}

func (f *fakeImages) Name() string { return "fake-images" }

func (f *fakeImages) Fetch(_ context.Context, query string) (*image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.times = append(f.times, time.Now())
	if f.fail[query] {
		return nil, errors.New("upstream returned 503")
	}
	return &image.Image{Data: []byte("\x89PNG\r\n\x1a\nfake"), ContentType: "image/png"}, nil
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeCompositor struct {
	got video.Composition
	err error
}

func (f *fakeCompositor) Name() string { return "fake-compositor" }

func (f *fakeCompositor) Compose(_ context.Context, c video.Composition) error {
	f.got = c
	return f.err
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeRecorder) Record(_ context.Context, ev audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type harness struct {
	p        *Pipeline
	store    *storage.LocalStore
	text     *fakeText
	speech   *fakeSpeech
	images   *fakeImages
	recorder *fakeRecorder
}

func newHarness(t *testing.T, opts ...func(*Config, *Deps)) *harness {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "/temp")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	h := &harness{
		store: store,
		text: &fakeText{
			models:  []string{"gemini-2.0-flash-exp", "gpt-4o"},
			script:  "  " + testScript + "\n",
			concept: `["green leaf in sunlight", "chloroplast diagram", "water droplets on roots", "oxygen bubbles", "sugar molecules"]`,
		},
		speech: &fakeSpeech{result: &tts.SynthesisResult{
			Audio:       []byte("\xff\xfb\x90\x00mp3-frame-data"),
			ContentType: "audio/mpeg",
		}},
		images:   &fakeImages{fail: map[string]bool{}},
		recorder: &fakeRecorder{},
	}

	cfg := Config{DefaultModel: "gemini-2.0-flash-exp", DefaultVoice: "en-US-Neural2-J"}
	deps := Deps{
		Store:    store,
		Text:     h.text,
		Speech:   h.speech,
		Images:   h.images,
		Recorder: h.recorder,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	p, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Pacing == 0 {
		p.newLimiter = func() *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) }
	}
	h.p = p
	return h
}

// withPacing keeps the production limiter at the given interval.
func withPacing(d time.Duration) func(*Config, *Deps) {
	return func(c *Config, _ *Deps) { c.Pacing = d }
}

func withCompositor(c video.Compositor) func(*Config, *Deps) {
	return func(_ *Config, d *Deps) { d.Compositor = c }
}
