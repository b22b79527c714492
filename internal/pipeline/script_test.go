package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nikhilbhutani/videgen/internal/apperr"
)

func TestGenerateScriptTrimsAndEmbedsTopic(t *testing.T) {
	h := newHarness(t)

	got, err := h.p.GenerateScript(context.Background(), ScriptRequest{Topic: "  Photosynthesis  "})
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if got != testScript {
		t.Fatalf("script: want=%q got=%q", testScript, got)
	}

	if len(h.text.calls) != 1 {
		t.Fatalf("calls: want=1 got=%d", len(h.text.calls))
	}
	req := h.text.calls[0]
	if !strings.Contains(req.Prompt, `"Photosynthesis"`) {
		t.Fatalf("prompt does not embed topic: %q", req.Prompt)
	}
	if req.Model != "gemini-2.0-flash-exp" {
		t.Fatalf("model: want=%q got=%q", "gemini-2.0-flash-exp", req.Model)
	}
	if req.Temperature != 0.7 || req.MaxTokens != 500 {
		t.Fatalf("params: want=0.7/500 got=%v/%d", req.Temperature, req.MaxTokens)
	}
	if req.System == "" {
		t.Fatalf("system prompt is empty")
	}
}

func TestGenerateScriptLanguages(t *testing.T) {
	h := newHarness(t)

	if _, err := h.p.GenerateScript(context.Background(), ScriptRequest{Topic: "Fotosintesis", Language: "Indonesian"}); err != nil {
		t.Fatalf("GenerateScript(indonesian): %v", err)
	}
	if !strings.Contains(h.text.calls[0].Prompt, "Bahasa Indonesia") {
		t.Fatalf("indonesian prompt not used: %q", h.text.calls[0].Prompt)
	}

	_, err := h.p.GenerateScript(context.Background(), ScriptRequest{Topic: "x", Language: "klingon"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown language: want validation error got=%v", err)
	}

	langs := h.p.Languages()
	if len(langs) != 2 || langs[0] != LanguageEnglish || langs[1] != LanguageIndonesian {
		t.Fatalf("Languages: got=%v", langs)
	}
}

func TestGenerateScriptValidationPrecedesBackend(t *testing.T) {
	h := newHarness(t)

	for _, req := range []ScriptRequest{
		{Topic: ""},
		{Topic: " \t\n"},
		{Topic: "x", Model: "no-such-model"},
	} {
		_, err := h.p.GenerateScript(context.Background(), req)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("GenerateScript(%+v): want validation error got=%v", req, err)
		}
	}
	if n := h.text.callCount(); n != 0 {
		t.Fatalf("backend calls: want=0 got=%d", n)
	}
}

func TestGenerateScriptModelSelection(t *testing.T) {
	h := newHarness(t, func(c *Config, _ *Deps) { c.DefaultModel = "retired-model" })

	if _, err := h.p.GenerateScript(context.Background(), ScriptRequest{Topic: "x"}); err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if got := h.text.calls[0].Model; got != "gemini-2.0-flash-exp" {
		t.Fatalf("unserved default: want first listed model got=%q", got)
	}

	if _, err := h.p.GenerateScript(context.Background(), ScriptRequest{Topic: "x", Model: "gpt-4o"}); err != nil {
		t.Fatalf("GenerateScript(gpt-4o): %v", err)
	}
	if got := h.text.calls[1].Model; got != "gpt-4o" {
		t.Fatalf("explicit model: want=%q got=%q", "gpt-4o", got)
	}
}

func TestGenerateScriptFailuresAreGenerationErrors(t *testing.T) {
	cases := []struct {
		name   string
		script string
		err    error
	}{
		{name: "backend error", err: errors.New("401 invalid api key")},
		{name: "empty text", script: "   \n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.text.script, h.text.err = tc.script, tc.err

			_, err := h.p.GenerateScript(context.Background(), ScriptRequest{Topic: "Photosynthesis"})
			if !apperr.Is(err, apperr.KindGeneration) {
				t.Fatalf("want generation error got=%v", err)
			}
			if msg := apperr.PublicMessage(err, ""); msg != "Failed to generate script" {
				t.Fatalf("public message: want=%q got=%q", "Failed to generate script", msg)
			}
		})
	}
}

func TestValidateRunMatchesScriptRules(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name string
		req  RunRequest
		ok   bool
	}{
		{"defaults", RunRequest{Topic: "Photosynthesis"}, true},
		{"indonesian", RunRequest{Topic: "Fotosintesis", Language: "Indonesian", Model: "gpt-4o"}, true},
		{"blank topic", RunRequest{Topic: " "}, false},
		{"unknown language", RunRequest{Topic: "x", Language: "klingon"}, false},
		{"unknown model", RunRequest{Topic: "x", Model: "not-a-real-model"}, false},
	}
	for _, c := range cases {
		err := h.p.ValidateRun(c.req)
		if c.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: want validation error got=%v", c.name, err)
		}
	}
	if n := h.text.callCount(); n != 0 {
		t.Fatalf("validation must not call the backend, calls=%d", n)
	}
}
