package video

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Scene is one still shown for Duration seconds starting at Start.
// An empty ImagePath renders a solid placeholder frame.
type Scene struct {
	ImagePath string
	Label     string
	Start     float64
	Duration  float64
}

// Composition describes a narrated slideshow to render into OutputPath.
type Composition struct {
	AudioPath  string
	Scenes     []Scene
	Width      int
	Height     int
	FPS        int
	OutputPath string
}

// Compositor renders a composition into a playable video file.
type Compositor interface {
	Compose(ctx context.Context, c Composition) error
	Name() string
}

// ParseResolution parses "WIDTHxHEIGHT", e.g. "1920x1080".
func ParseResolution(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: bad width", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: bad height", s)
	}
	return w, h, nil
}
