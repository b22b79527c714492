package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const placeholderColor = "0x4F46E5"

// FFmpeg renders compositions with the ffmpeg binary in a single pass:
// every scene becomes a looped still (or a colour source for placeholders),
// scenes are scaled, padded and concatenated, and the narration is muxed in.
type FFmpeg struct {
	binPath string
}

func NewFFmpeg(binPath string) *FFmpeg {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpeg{binPath: binPath}
}

func (f *FFmpeg) Name() string { return "ffmpeg" }

func (f *FFmpeg) Compose(ctx context.Context, c Composition) error {
	args, err := buildArgs(c)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, f.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg compose: %w (stderr: %s)", err, tail(stderr.String(), 2000))
	}
	return nil
}

func buildArgs(c Composition) ([]string, error) {
	if len(c.Scenes) == 0 {
		return nil, fmt.Errorf("composition has no scenes")
	}
	if c.AudioPath == "" || c.OutputPath == "" {
		return nil, fmt.Errorf("composition needs audio and output paths")
	}
	if c.Width <= 0 || c.Height <= 0 || c.FPS <= 0 {
		return nil, fmt.Errorf("composition needs positive width, height and fps")
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, s := range c.Scenes {
		dur := seconds(s.Duration)
		if s.ImagePath != "" {
			args = append(args, "-loop", "1", "-t", dur, "-i", s.ImagePath)
			continue
		}
		src := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", placeholderColor, c.Width, c.Height, c.FPS)
		args = append(args, "-f", "lavfi", "-t", dur, "-i", src)
	}
	args = append(args, "-i", c.AudioPath)

	var filter strings.Builder
	for i := range c.Scenes {
		fmt.Fprintf(&filter,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p[v%d];",
			i, c.Width, c.Height, c.Width, c.Height, c.FPS, i)
	}
	for i := range c.Scenes {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[outv]", len(c.Scenes))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a", len(c.Scenes)),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		c.OutputPath,
	)
	return args, nil
}

func seconds(v float64) string {
	if v <= 0 {
		v = 0.1
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
