package bootstrap

import (
	"context"
	"testing"

	"github.com/nikhilbhutani/videgen/internal/config"
)

func TestNewImageSourceSelectsBackend(t *testing.T) {
	cases := map[string]string{
		"unsplash":     "unsplash",
		"pollinations": "pollinations",
		"openai":       "openai-images",
	}
	for backend, want := range cases {
		got := NewImageSource(config.ImageConfig{Backend: backend}, 1920, 1080).Name()
		if got != want {
			t.Fatalf("backend %q: want=%q got=%q", backend, want, got)
		}
	}
}

func TestNewSynthesizerSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := NewSynthesizer(ctx, config.TTSConfig{Backend: "local", LocalModel: "voice.onnx"})
	if err != nil || s.Name() != "local-piper" {
		t.Fatalf("local: got=%v err=%v", s, err)
	}
	if _, err := NewSynthesizer(ctx, config.TTSConfig{Backend: "carrier-pigeon"}); err == nil {
		t.Fatalf("unknown backend: expected error")
	}
}

func TestNewCompositor(t *testing.T) {
	if c := NewCompositor(config.VideoConfig{Backend: "mock"}); c != nil {
		t.Fatalf("mock: want nil compositor got=%v", c.Name())
	}
	if c := NewCompositor(config.VideoConfig{Backend: "ffmpeg", FFmpegPath: "ffmpeg"}); c == nil || c.Name() != "ffmpeg" {
		t.Fatalf("ffmpeg: want ffmpeg compositor")
	}
}

func TestOptionalBackendsDisabledWhenUnset(t *testing.T) {
	pool, err := OpenDatabase(context.Background(), config.DatabaseConfig{})
	if pool != nil || err != nil {
		t.Fatalf("OpenDatabase: want nil,nil got=%v,%v", pool, err)
	}
	rdb, err := OpenRedis(context.Background(), config.RedisConfig{})
	if rdb != nil || err != nil {
		t.Fatalf("OpenRedis: want nil,nil got=%v,%v", rdb, err)
	}
}

func TestNewServicesDegradedDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := &config.Config{
		LLM:     config.LLMConfig{DefaultProvider: "gemini", DefaultModel: "gemini-2.0-flash-exp"},
		TTS:     config.TTSConfig{Backend: "local", LocalModel: "voice.onnx"},
		Image:   config.ImageConfig{Backend: "pollinations"},
		Video:   config.VideoConfig{Backend: "mock", Resolution: "1280x720", FPS: 24},
		Storage: config.StorageConfig{TempDir: "temp", URLPrefix: "/temp"},
	}

	svc, err := NewServices(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	defer svc.Close()
	if !svc.Pipeline.Degraded() {
		t.Fatalf("mock video backend should leave the pipeline degraded")
	}
	if svc.Store.URLPrefix() != "/temp" {
		t.Fatalf("url prefix: got=%q", svc.Store.URLPrefix())
	}
}
