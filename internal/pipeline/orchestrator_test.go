package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/nikhilbhutani/videgen/internal/apperr"
)

func TestRunPhotosynthesisEndToEnd(t *testing.T) {
	h := newHarness(t)

	var stages []Stage
	res, err := h.p.Run(context.Background(), RunRequest{Topic: "Photosynthesis"}, func(s Stage) {
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Script == "" {
		t.Fatalf("script is empty")
	}
	if !strings.HasPrefix(res.Audio.Reference, "/temp/") || res.Audio.ProjectID == "" || res.Audio.Duration <= 0 {
		t.Fatalf("audio: got=%+v", res.Audio)
	}
	if n := len(res.Images); n < MinAssets || n > MaxAssets {
		t.Fatalf("images: want 4..8 got=%d", n)
	}
	sum := 0.0
	for _, img := range res.Images {
		sum += img.Span
		if !strings.HasPrefix(img.Reference, "/temp/"+res.Audio.ProjectID+"/") {
			t.Fatalf("image outside audio project: %q", img.Reference)
		}
	}
	if math.Abs(sum-float64(res.Audio.Duration)) > 1e-9 {
		t.Fatalf("spans: want sum=%d got=%v", res.Audio.Duration, sum)
	}
	if res.VideoURL == "" {
		t.Fatalf("videoUrl is empty")
	}

	want := []Stage{StageScript, StageAudio, StageTimeline, StageAssembly}
	if len(stages) != len(want) {
		t.Fatalf("stages: want=%v got=%v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stage %d: want=%s got=%s", i, want[i], stages[i])
		}
	}

	var ledger []string
	for _, ev := range h.recorder.events {
		if ev.ProjectID != res.Audio.ProjectID {
			t.Fatalf("event for foreign project: %+v", ev)
		}
		ledger = append(ledger, ev.Stage)
	}
	if strings.Join(ledger, ",") != "audio,timeline,assembly" {
		t.Fatalf("ledger: got=%v", ledger)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t)
	h.speech.err = errors.New("tts unavailable")

	var stages []Stage
	res, err := h.p.Run(context.Background(), RunRequest{Topic: "Photosynthesis"}, func(s Stage) {
		stages = append(stages, s)
	})
	if !apperr.Is(err, apperr.KindGeneration) {
		t.Fatalf("want generation error got=%v", err)
	}
	if res.Script == "" || res.Audio != nil {
		t.Fatalf("partial result: got=%+v", res)
	}
	if len(stages) != 2 || h.images.callCount() != 0 {
		t.Fatalf("later stages ran: stages=%v image calls=%d", stages, h.images.callCount())
	}
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	h := newHarness(t)
	_, err := h.p.Run(context.Background(), RunRequest{Topic: "  "}, nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("want validation error got=%v", err)
	}
	if h.text.callCount() != 0 || h.speech.calls != 0 {
		t.Fatalf("backends called for invalid run")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	h := newHarness(t)
	full := Deps{Store: h.store, Text: h.text, Speech: h.speech, Images: h.images}

	for name, mutate := range map[string]func(*Deps){
		"store":  func(d *Deps) { d.Store = nil },
		"text":   func(d *Deps) { d.Text = nil },
		"speech": func(d *Deps) { d.Speech = nil },
		"images": func(d *Deps) { d.Images = nil },
	} {
		d := full
		mutate(&d)
		if _, err := New(Config{}, d); err == nil {
			t.Fatalf("New without %s: expected error", name)
		}
	}
}
