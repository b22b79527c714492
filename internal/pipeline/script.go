package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nikhilbhutani/videgen/internal/apperr"
	"github.com/nikhilbhutani/videgen/internal/llm"
	"github.com/nikhilbhutani/videgen/internal/prompt"
)

const (
	LanguageEnglish    = "english"
	LanguageIndonesian = "indonesian"

	scriptTemperature = 0.7
	scriptMaxTokens   = 500
	scriptPromptKey   = "script."
)

type ScriptRequest struct {
	Topic    string
	Language string
	Model    string
}

// GenerateScript writes narration for a topic in the requested language.
func (p *Pipeline) GenerateScript(ctx context.Context, req ScriptRequest) (string, error) {
	topic, language, model, tmpl, err := p.scriptInputs(req)
	if err != nil {
		return "", err
	}

	system, user, err := tmpl.Render(map[string]string{"topic": topic})
	if err != nil {
		return "", apperr.Generation("Failed to generate script", err)
	}

	log := p.logger.With("stage", StageScript, "language", language, "model", model)

	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	out, err := p.text.Generate(cctx, llm.GenerateRequest{
		Model:       model,
		System:      system,
		Prompt:      user,
		Temperature: scriptTemperature,
		MaxTokens:   scriptMaxTokens,
	})
	if err != nil {
		log.Error("text generation failed", "error", err)
		return "", apperr.Generation("Failed to generate script", err)
	}

	script := strings.TrimSpace(out.Text)
	if script == "" {
		log.Error("text generation returned no script")
		return "", apperr.Generation("Failed to generate script", errors.New("empty response"))
	}

	log.Info("script generated", append([]any{"words", len(strings.Fields(script))}, out.LogAttrs()...)...)
	return script, nil
}

// ValidateRun checks the inputs of a whole run without calling any backend,
// with the same rules GenerateScript applies.
func (p *Pipeline) ValidateRun(req RunRequest) error {
	_, _, _, _, err := p.scriptInputs(ScriptRequest{Topic: req.Topic, Language: req.Language, Model: req.Model})
	return err
}

func (p *Pipeline) scriptInputs(req ScriptRequest) (topic, language, model string, tmpl prompt.Template, err error) {
	topic = strings.TrimSpace(req.Topic)
	if topic == "" {
		return "", "", "", tmpl, apperr.Validation("topic is required")
	}

	language = strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = LanguageEnglish
	}
	tmpl, ok := p.prompts.Get(scriptPromptKey + language)
	if !ok {
		return "", "", "", tmpl, apperr.Validation(fmt.Sprintf("language must be one of: %s", strings.Join(p.Languages(), ", ")))
	}

	if model, err = p.resolveModel(req.Model); err != nil {
		return "", "", "", tmpl, err
	}
	return topic, language, model, tmpl, nil
}

// Languages lists the script languages the prompt catalog supports.
func (p *Pipeline) Languages() []string {
	var langs []string
	for _, name := range p.prompts.Names() {
		if lang, ok := strings.CutPrefix(name, scriptPromptKey); ok {
			langs = append(langs, lang)
		}
	}
	return langs
}

// Models lists the text models a client may select.
func (p *Pipeline) Models() []string {
	return p.text.Models()
}

// resolveModel validates a client-chosen model against the backend's list.
// Without a choice it uses the configured default, or the backend's first
// model when the default is not served.
func (p *Pipeline) resolveModel(requested string) (string, error) {
	models := p.text.Models()
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if len(models) > 0 && !slices.Contains(models, requested) {
			return "", apperr.Validation(fmt.Sprintf("model %q is not supported", requested))
		}
		return requested, nil
	}

	model := p.cfg.DefaultModel
	if len(models) > 0 && !slices.Contains(models, model) {
		model = models[0]
	}
	return model, nil
}
