package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("topic is required"), http.StatusBadRequest},
		{Generation("Failed to generate script", errors.New("quota")), http.StatusInternalServerError},
		{Storage("Failed to save audio", errors.New("disk full")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := Status(c.err); got != c.want {
			t.Fatalf("Status(%v): want=%d got=%d", c.err, c.want, got)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := Storage("Failed to create project", errors.New("permission denied"))
	wrapped := fmt.Errorf("audio stage: %w", base)

	if !Is(wrapped, KindStorage) {
		t.Fatalf("KindOf: want=%q got=%q", KindStorage, KindOf(wrapped))
	}
	if got := PublicMessage(wrapped, "fallback"); got != "Failed to create project" {
		t.Fatalf("PublicMessage: want=%q got=%q", "Failed to create project", got)
	}
	if !errors.Is(wrapped, base.Err) {
		t.Fatalf("errors.Is: cause lost through wrapping")
	}
}

func TestPublicMessageHidesPlainErrors(t *testing.T) {
	got := PublicMessage(errors.New("openai: 401 invalid api key sk-..."), "Failed to generate script")
	if got != "Failed to generate script" {
		t.Fatalf("PublicMessage: want fallback, got=%q", got)
	}
}
