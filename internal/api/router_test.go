package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nikhilbhutani/videgen/internal/config"
	"github.com/nikhilbhutani/videgen/internal/pipeline"
)

type stubStages struct{}

func (stubStages) GenerateScript(context.Context, pipeline.ScriptRequest) (string, error) {
	return "script", nil
}

func (stubStages) GenerateAudio(context.Context, pipeline.AudioRequest) (*pipeline.AudioResult, error) {
	return &pipeline.AudioResult{}, nil
}

func (stubStages) RecommendImages(context.Context, pipeline.TimelineRequest) ([]pipeline.TimedAsset, error) {
	return nil, nil
}

func (stubStages) GenerateVideo(context.Context, pipeline.AssemblyRequest) (string, error) {
	return "v", nil
}

func (stubStages) Models() []string    { return nil }
func (stubStages) Languages() []string { return []string{"english"} }

func (stubStages) ValidateRun(pipeline.RunRequest) error { return nil }

func testRouter(t *testing.T, secret string) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "project-1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "project-1", "audio.mp3"), []byte("ID3audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Auth.JWTSecret = secret
	return NewRouter(cfg, Deps{Stages: stubStages{}, ArtifactRoot: root, ArtifactPrefix: "/temp"}), root
}

func get(h http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesArtifacts(t *testing.T) {
	h, _ := testRouter(t, "")

	rec := get(h, "/temp/project-1/audio.mp3", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ID3audio" {
		t.Fatalf("artifact: code=%d body=%q", rec.Code, rec.Body)
	}
	for _, target := range []string{"/temp/project-1/missing.png", "/temp/project-1/", "/temp/"} {
		if rec := get(h, target, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s: want=404 got=%d", target, rec.Code)
		}
	}
}

func TestRouterOptionalBackends(t *testing.T) {
	h, _ := testRouter(t, "")

	if rec := get(h, "/health", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "timestamp") {
		t.Fatalf("health: code=%d body=%s", rec.Code, rec.Body)
	}
	if rec := get(h, "/api/pipelines/job-1", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("jobs without redis: want=503 got=%d", rec.Code)
	}
	if rec := get(h, "/api/projects/project-1/events", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("events without database: want=503 got=%d", rec.Code)
	}
}

func TestRouterRequiresTokenWhenSecretSet(t *testing.T) {
	h, _ := testRouter(t, "secret")

	if rec := get(h, "/api/models", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want=401 got=%d", rec.Code)
	}
	if rec := get(h, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health stays public: got=%d", rec.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec := get(h, "/api/models", http.Header{"Authorization": {"Bearer " + token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: want=200 got=%d body=%s", rec.Code, rec.Body)
	}
}
