package handlers

import (
	"context"
	"net/http"

	"github.com/nikhilbhutani/videgen/internal/apperr"
	"github.com/nikhilbhutani/videgen/internal/pipeline"
)

const defaultTimelineDuration = 60

// Stages is the pipeline surface the HTTP layer drives one stage at a time.
type Stages interface {
	GenerateScript(ctx context.Context, req pipeline.ScriptRequest) (string, error)
	GenerateAudio(ctx context.Context, req pipeline.AudioRequest) (*pipeline.AudioResult, error)
	RecommendImages(ctx context.Context, req pipeline.TimelineRequest) ([]pipeline.TimedAsset, error)
	GenerateVideo(ctx context.Context, req pipeline.AssemblyRequest) (string, error)
	Models() []string
	Languages() []string
	ValidateRun(req pipeline.RunRequest) error
}

type StageHandler struct {
	stages       Stages
	defaultModel string
}

func NewStageHandler(stages Stages, defaultModel string) *StageHandler {
	return &StageHandler{stages: stages, defaultModel: defaultModel}
}

type scriptRequest struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

func (h *StageHandler) GenerateScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	script, err := h.stages.GenerateScript(r.Context(), pipeline.ScriptRequest{
		Topic:    req.Topic,
		Language: req.Language,
		Model:    req.Model,
	})
	if err != nil {
		writeError(w, err, "Failed to generate script")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"script": script})
}

type audioRequest struct {
	Script string `json:"script"`
	Voice  string `json:"voice"`
}

func (h *StageHandler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.stages.GenerateAudio(r.Context(), pipeline.AudioRequest{Script: req.Script, Voice: req.Voice})
	if err != nil {
		writeError(w, err, "Failed to generate audio")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type imagesRequest struct {
	Script    string   `json:"script"`
	Duration  *float64 `json:"duration"`
	ProjectID string   `json:"projectId"`
	Model     string   `json:"model"`
}

func (h *StageHandler) RecommendImages(w http.ResponseWriter, r *http.Request) {
	var req imagesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	duration := float64(defaultTimelineDuration)
	if req.Duration != nil && *req.Duration != 0 {
		duration = *req.Duration
	}
	if duration < 0 {
		writeError(w, apperr.Validation("duration must not be negative"), "")
		return
	}

	images, err := h.stages.RecommendImages(r.Context(), pipeline.TimelineRequest{
		Script:    req.Script,
		Duration:  duration,
		ProjectID: req.ProjectID,
		Model:     req.Model,
	})
	if err != nil {
		writeError(w, err, "Failed to recommend images")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

type videoRequest struct {
	AudioURL string                `json:"audioUrl"`
	Images   []pipeline.TimedAsset `json:"images"`
}

func (h *StageHandler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	videoURL, err := h.stages.GenerateVideo(r.Context(), pipeline.AssemblyRequest{
		AudioURL: req.AudioURL,
		Images:   req.Images,
	})
	if err != nil {
		writeError(w, err, "Failed to generate video")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"videoUrl": videoURL})
}

// Models lists selectable text models and script languages for the UI.
func (h *StageHandler) Models(w http.ResponseWriter, r *http.Request) {
	models := h.stages.Models()
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":       models,
		"defaultModel": h.defaultModel,
		"languages":    h.stages.Languages(),
	})
}
