package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nikhilbhutani/videgen/internal/apperr"
	"github.com/nikhilbhutani/videgen/internal/video"
)

const videoFilename = "video.mp4"

type AssemblyRequest struct {
	AudioURL string
	Images   []TimedAsset
}

// GenerateVideo composes the narration and timeline into a video. Without a
// compositor it records the intended composition as a manifest in the
// project and returns the placeholder video.
func (p *Pipeline) GenerateVideo(ctx context.Context, req AssemblyRequest) (string, error) {
	audioURL := strings.TrimSpace(req.AudioURL)
	if audioURL == "" {
		return "", apperr.Validation("audioUrl is required")
	}
	if len(req.Images) == 0 {
		return "", apperr.Validation("images are required")
	}

	if p.compositor == nil {
		return p.writeManifest(ctx, audioURL, req.Images)
	}
	return p.compose(ctx, audioURL, req.Images)
}

func (p *Pipeline) compose(ctx context.Context, audioURL string, images []TimedAsset) (string, error) {
	projectID, ok := p.store.ProjectOf(audioURL)
	if !ok {
		return "", apperr.Validation("audioUrl must reference stored audio")
	}
	audioPath, _ := p.store.Resolve(audioURL)
	if err := p.store.EnsureProjectDirectory(ctx, projectID); err != nil {
		return "", err
	}

	ref := p.store.Locator(projectID, videoFilename)
	outPath, ok := p.store.Resolve(ref)
	if !ok {
		return "", apperr.Storage("Failed to generate video", fmt.Errorf("unresolvable output locator %s", ref))
	}

	scenes := make([]video.Scene, 0, len(images))
	for _, img := range images {
		scene := video.Scene{Label: img.Prompt, Start: img.StartOffset, Duration: img.Span}
		if img.Kind != AssetPlaceholder {
			if path, ok := p.store.Resolve(img.Reference); ok {
				scene.ImagePath = path
			}
		}
		scenes = append(scenes, scene)
	}

	log := p.logger.With("stage", StageAssembly, "project_id", projectID, "compositor", p.compositor.Name())
	started := p.now()

	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	err := p.compositor.Compose(cctx, video.Composition{
		AudioPath:  audioPath,
		Scenes:     scenes,
		Width:      p.cfg.Width,
		Height:     p.cfg.Height,
		FPS:        p.cfg.FPS,
		OutputPath: outPath,
	})
	if err != nil {
		log.Error("video composition failed", "error", err)
		p.record(ctx, projectID, StageAssembly, started, err, nil)
		return "", apperr.Generation("Failed to generate video", err)
	}

	log.Info("video composed", "scenes", len(scenes), "video_url", ref)
	p.record(ctx, projectID, StageAssembly, started, nil, map[string]any{"videoUrl": ref, "scenes": len(scenes)})
	return ref, nil
}

type videoManifest struct {
	AudioURL    string       `json:"audioUrl"`
	Images      []TimedAsset `json:"images"`
	Resolution  string       `json:"resolution"`
	FPS         int          `json:"fps"`
	GeneratedAt string       `json:"generatedAt"`
	Note        string       `json:"note"`
}

func (p *Pipeline) writeManifest(ctx context.Context, audioURL string, images []TimedAsset) (string, error) {
	started := p.now()
	projectID, ok := p.store.ProjectOf(audioURL)
	if !ok {
		id, err := p.store.AllocateProject(ctx)
		if err != nil {
			return "", err
		}
		projectID = id
	}

	data, err := json.MarshalIndent(videoManifest{
		AudioURL:    audioURL,
		Images:      images,
		Resolution:  fmt.Sprintf("%dx%d", p.cfg.Width, p.cfg.Height),
		FPS:         p.cfg.FPS,
		GeneratedAt: started.UTC().Format(time.RFC3339Nano),
		Note:        "No video compositor configured; returning placeholder video.",
	}, "", "  ")
	if err != nil {
		return "", apperr.Storage("Failed to generate video", fmt.Errorf("marshal manifest: %w", err))
	}

	filename := fmt.Sprintf("video-%d.json", started.UnixMilli())
	manifestURL, err := p.store.Save(ctx, projectID, filename, data)
	if err != nil {
		p.record(ctx, projectID, StageAssembly, started, err, nil)
		return "", err
	}

	p.logger.Info("video manifest written",
		"stage", StageAssembly,
		"project_id", projectID,
		"manifest", manifestURL,
		"images", len(images),
	)
	p.record(ctx, projectID, StageAssembly, started, nil, map[string]any{
		"videoUrl": p.cfg.PlaceholderVideoURL,
		"manifest": manifestURL,
	})
	return p.cfg.PlaceholderVideoURL, nil
}
