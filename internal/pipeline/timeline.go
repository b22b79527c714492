package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/videgen/internal/apperr"
	"github.com/nikhilbhutani/videgen/internal/llm"
	"github.com/nikhilbhutani/videgen/internal/storage"
)

const (
	MinAssets = 4
	MaxAssets = 8

	conceptTemperature = 0.4
	conceptMaxTokens   = 300
)

var fallbackConcepts = []string{"education", "learning", "knowledge", "study"}

// FallbackConcepts returns the generic descriptions used when concept
// extraction yields nothing usable.
func FallbackConcepts() []string {
	return append([]string(nil), fallbackConcepts...)
}

type TimelineRequest struct {
	Script    string
	Duration  float64
	ProjectID string
	Model     string
}

// RecommendImages extracts visual concepts from the script and stores one
// image per concept in the project, spread evenly over the duration. A
// failed image becomes a placeholder asset; only an unreachable concept
// extraction or cancellation fails the stage.
func (p *Pipeline) RecommendImages(ctx context.Context, req TimelineRequest) ([]TimedAsset, error) {
	script := strings.TrimSpace(req.Script)
	if script == "" {
		return nil, apperr.Validation("script is required")
	}
	if math.IsNaN(req.Duration) || math.IsInf(req.Duration, 0) || req.Duration <= 0 {
		return nil, apperr.Validation("duration must be greater than 0")
	}
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return nil, apperr.Validation("projectId is required")
	}
	if err := storage.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	model, err := p.resolveModel(req.Model)
	if err != nil {
		return nil, err
	}

	if err := p.store.EnsureProjectDirectory(ctx, projectID); err != nil {
		return nil, err
	}

	log := p.logger.With("stage", StageTimeline, "project_id", projectID, "source", p.images.Name())
	started := p.now()
	limiter := p.newLimiter()

	if err := limiter.Wait(ctx); err != nil {
		return nil, apperr.Generation("Failed to recommend images", err)
	}
	concepts, usage, err := p.extractConcepts(ctx, script, model, log)
	if err != nil {
		p.record(ctx, projectID, StageTimeline, started, err, nil)
		return nil, err
	}

	span := req.Duration / float64(len(concepts))
	assets := make([]TimedAsset, 0, len(concepts))
	placeholders := 0
	for i, concept := range concepts {
		if err := limiter.Wait(ctx); err != nil {
			p.record(ctx, projectID, StageTimeline, started, err, nil)
			return nil, apperr.Generation("Failed to recommend images", err)
		}

		order := i + 1
		asset := TimedAsset{
			Prompt:      concept,
			StartOffset: float64(i) * span,
			Span:        span,
			Order:       order,
		}

		ref, err := p.resolveImage(ctx, projectID, order, concept)
		if err != nil {
			if ctx.Err() != nil {
				p.record(ctx, projectID, StageTimeline, started, ctx.Err(), nil)
				return nil, apperr.Generation("Failed to recommend images", ctx.Err())
			}
			log.Warn("image unavailable, using placeholder", "order", order, "prompt", concept, "error", err)
			asset.Reference = p.placeholderImage(ctx, projectID, order, concept, err, log)
			asset.Kind = AssetPlaceholder
			placeholders++
		} else {
			asset.Reference = ref
			asset.Kind = AssetResolved
		}
		assets = append(assets, asset)
	}

	log.Info("timeline built", "assets", len(assets), "placeholders", placeholders, "span", span)
	p.record(ctx, projectID, StageTimeline, started, nil, map[string]any{
		"assets":       len(assets),
		"placeholders": placeholders,
		"duration":     req.Duration,
		"llm":          usage,
	})
	return assets, nil
}

// extractConcepts also returns the usage of the generation call for the
// ledger.
func (p *Pipeline) extractConcepts(ctx context.Context, script, model string, log *slog.Logger) ([]string, map[string]any, error) {
	tmpl, ok := p.prompts.Get("concepts")
	if !ok {
		return nil, nil, apperr.Generation("Failed to recommend images", errors.New("concepts prompt missing"))
	}
	system, user, err := tmpl.Render(map[string]string{
		"script": script,
		"min":    strconv.Itoa(MinAssets),
		"max":    strconv.Itoa(MaxAssets),
	})
	if err != nil {
		return nil, nil, apperr.Generation("Failed to recommend images", err)
	}

	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	out, err := p.text.Generate(cctx, llm.GenerateRequest{
		Model:       model,
		System:      system,
		Prompt:      user,
		Temperature: conceptTemperature,
		MaxTokens:   conceptMaxTokens,
	})
	if err != nil {
		log.Error("concept extraction failed", "error", err)
		return nil, nil, apperr.Generation("Failed to recommend images", err)
	}

	log.Debug("concepts generated", out.LogAttrs()...)

	raw, ok := ParseConcepts(out.Text)
	if !ok {
		log.Warn("concept extraction unparsable, using fallback concepts", "response", truncate(out.Text, 200))
		raw = FallbackConcepts()
	}
	return NormalizeConcepts(raw), out.Usage(), nil
}

func (p *Pipeline) resolveImage(ctx context.Context, projectID string, order int, concept string) (string, error) {
	cctx, cancel := p.callCtx(ctx)
	img, err := p.images.Fetch(cctx, concept)
	cancel()
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	if img == nil || len(img.Data) == 0 {
		return "", errors.New("fetch image: empty image")
	}
	return p.store.Save(ctx, projectID, fmt.Sprintf("image-%d%s", order, img.Extension()), img.Data)
}

type placeholderMarker struct {
	Order     int    `json:"order"`
	Prompt    string `json:"imagePrompt"`
	ImageURL  string `json:"imageUrl"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"createdAt"`
}

// placeholderImage writes a marker next to the project's images and returns
// the placeholder reference. The marker is best effort.
func (p *Pipeline) placeholderImage(ctx context.Context, projectID string, order int, concept string, cause error, log *slog.Logger) string {
	ref := PlaceholderImageURL(p.cfg.PlaceholderImageURL, concept)
	marker, err := json.MarshalIndent(placeholderMarker{
		Order:     order,
		Prompt:    concept,
		ImageURL:  ref,
		Reason:    cause.Error(),
		CreatedAt: p.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, "", "  ")
	if err == nil {
		_, err = p.store.Save(ctx, projectID, fmt.Sprintf("image-%d.placeholder.json", order), marker)
	}
	if err != nil {
		log.Warn("write placeholder marker", "order", order, "error", err)
	}
	return ref
}

// PlaceholderImageURL fills the {text} slot of a placeholder template with
// the escaped prompt.
func PlaceholderImageURL(template, prompt string) string {
	text := strings.ReplaceAll(url.QueryEscape(prompt), "+", "%20")
	return strings.ReplaceAll(template, "{text}", text)
}

// NormalizeConcepts trims and drops blank entries, keeps at most MaxAssets
// and pads up to MinAssets with fallback concepts.
func NormalizeConcepts(raw []string) []string {
	concepts := make([]string, 0, MaxAssets)
	seen := make(map[string]bool, MaxAssets)
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		concepts = append(concepts, c)
		seen[strings.ToLower(c)] = true
		if len(concepts) == MaxAssets {
			break
		}
	}

	for i := 0; len(concepts) < MinAssets; i++ {
		fb := fallbackConcepts[i%len(fallbackConcepts)]
		if i < len(fallbackConcepts) && seen[fb] {
			continue
		}
		concepts = append(concepts, fb)
		seen[fb] = true
	}
	return concepts
}

// ParseConcepts reads a JSON array of strings out of a model response,
// tolerating markdown code fences and prose around the array. It reports
// false when no non-blank string can be found.
func ParseConcepts(text string) ([]string, bool) {
	for off := 0; ; {
		i := strings.IndexByte(text[off:], '[')
		if i < 0 {
			return nil, false
		}
		off += i
		if concepts, ok := decodeConcepts(text[off:]); ok {
			return concepts, true
		}
		off++
	}
}

// decodeConcepts reads one JSON array from the front of s, ignoring
// whatever follows it.
func decodeConcepts(s string) ([]string, bool) {
	var items []json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&items); err != nil {
		return nil, false
	}

	var concepts []string
	for _, item := range items {
		var c string
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		if c = strings.TrimSpace(c); c != "" {
			concepts = append(concepts, c)
		}
	}
	return concepts, len(concepts) > 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
