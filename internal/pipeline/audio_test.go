package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nikhilbhutani/videgen/internal/apperr"
	"github.com/nikhilbhutani/videgen/internal/multimodal/tts"
)

func TestEstimateDuration(t *testing.T) {
	cases := []struct {
		words int
		want  int
	}{
		{words: 1, want: 1},
		{words: 2, want: 1},
		{words: 3, want: 2},
		{words: 150, want: 60},
		{words: 151, want: 61},
		{words: 300, want: 120},
	}
	for _, tc := range cases {
		script := strings.TrimSpace(strings.Repeat("word ", tc.words))
		if got := EstimateDuration(script); got != tc.want {
			t.Fatalf("EstimateDuration(%d words): want=%d got=%d", tc.words, tc.want, got)
		}
	}
}

func TestGenerateAudioSavesIntoNewProject(t *testing.T) {
	h := newHarness(t)

	res, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: testScript})
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if res.ProjectID == "" {
		t.Fatalf("projectId is empty")
	}
	want := "/temp/" + res.ProjectID + "/audio.mp3"
	if res.Reference != want {
		t.Fatalf("audioUrl: want=%q got=%q", want, res.Reference)
	}
	if res.Duration != EstimateDuration(testScript) {
		t.Fatalf("duration: want=%d got=%d", EstimateDuration(testScript), res.Duration)
	}
	if _, err := os.Stat(filepath.Join(h.store.Root(), res.ProjectID, "audio.mp3")); err != nil {
		t.Fatalf("audio file: %v", err)
	}

	second, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: testScript})
	if err != nil {
		t.Fatalf("GenerateAudio #2: %v", err)
	}
	if second.ProjectID == res.ProjectID {
		t.Fatalf("projects must be fresh per call, both got %q", res.ProjectID)
	}
}

func TestGenerateAudioWrapsRawPCM(t *testing.T) {
	h := newHarness(t)
	pcm := bytes.Repeat([]byte{0x01, 0x00}, 24000)
	h.speech.result = &tts.SynthesisResult{Audio: pcm, ContentType: "audio/L16;rate=24000;channels=1"}

	res, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: testScript})
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if !strings.HasSuffix(res.Reference, "/audio.wav") {
		t.Fatalf("audioUrl: want .wav got=%q", res.Reference)
	}
	data, err := os.ReadFile(filepath.Join(h.store.Root(), res.ProjectID, "audio.wav"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 44+len(pcm) || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("wav header missing: len=%d prefix=%q", len(data), data[:12])
	}
}

func TestGenerateAudioDurationSources(t *testing.T) {
	longScript := strings.TrimSpace(strings.Repeat("word ", 150))
	pcm := bytes.Repeat([]byte{0, 0}, 24000) // 1s at 24kHz mono 16-bit

	t.Run("reported by backend", func(t *testing.T) {
		h := newHarness(t)
		h.speech.result = &tts.SynthesisResult{Audio: pcm, ContentType: "audio/L16", Duration: 1500 * time.Millisecond}
		res, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: longScript})
		if err != nil {
			t.Fatalf("GenerateAudio: %v", err)
		}
		if res.Duration != 2 {
			t.Fatalf("duration: want=2 got=%d", res.Duration)
		}
	})

	t.Run("estimated", func(t *testing.T) {
		h := newHarness(t)
		h.speech.result = &tts.SynthesisResult{Audio: pcm, ContentType: "audio/L16"}
		res, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: longScript})
		if err != nil {
			t.Fatalf("GenerateAudio: %v", err)
		}
		if res.Duration != 60 {
			t.Fatalf("duration: want=60 got=%d", res.Duration)
		}
	})

	t.Run("measured", func(t *testing.T) {
		h := newHarness(t, func(c *Config, _ *Deps) { c.MeasureDuration = true })
		h.speech.result = &tts.SynthesisResult{Audio: pcm, ContentType: "audio/L16"}
		res, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: longScript})
		if err != nil {
			t.Fatalf("GenerateAudio: %v", err)
		}
		if res.Duration != 1 {
			t.Fatalf("duration: want=1 got=%d", res.Duration)
		}
	})
}

func TestGenerateAudioFailures(t *testing.T) {
	t.Run("empty script", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: "  "})
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("want validation error got=%v", err)
		}
		if h.speech.calls != 0 {
			t.Fatalf("speech calls: want=0 got=%d", h.speech.calls)
		}
	})

	for name, speech := range map[string]*fakeSpeech{
		"backend error": {err: errors.New("quota exceeded")},
		"no bytes":      {result: &tts.SynthesisResult{ContentType: "audio/mpeg"}},
		"nil result":    {},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, func(_ *Config, d *Deps) { d.Speech = speech })
			_, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: testScript})
			if !apperr.Is(err, apperr.KindGeneration) {
				t.Fatalf("want generation error got=%v", err)
			}
			entries, _ := os.ReadDir(h.store.Root())
			if len(entries) != 0 {
				t.Fatalf("no project should be allocated, found %d entries", len(entries))
			}
		})
	}
}

func TestGenerateAudioUsesDefaultVoice(t *testing.T) {
	var got tts.SynthesisRequest
	h := newHarness(t)
	h.p.speech = synthFunc(func(req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
		got = req
		return &tts.SynthesisResult{Audio: []byte("\xff\xfbdata"), ContentType: "audio/mpeg"}, nil
	})

	if _, err := h.p.GenerateAudio(context.Background(), AudioRequest{Script: testScript}); err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if got.Voice != "en-US-Neural2-J" || got.Input != testScript {
		t.Fatalf("request: got=%+v", got)
	}
}

type synthFunc func(tts.SynthesisRequest) (*tts.SynthesisResult, error)

func (f synthFunc) Name() string { return "func" }

func (f synthFunc) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	return f(req)
}
