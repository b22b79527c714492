package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const piperSampleRate = 22050

type LocalTTSConfig struct {
	PiperBinPath string // default "piper"
	ModelPath    string // .onnx voice model, required
	SampleRate   int    // of the voice model, default 22050
}

// LocalTTS runs the Piper binary once per request. Its raw output is mono
// 16-bit PCM at the model's sample rate.
type LocalTTS struct {
	bin        string
	model      string
	sampleRate int
}

func NewLocalTTS(cfg LocalTTSConfig) *LocalTTS {
	l := &LocalTTS{bin: cfg.PiperBinPath, model: cfg.ModelPath, sampleRate: cfg.SampleRate}
	if l.bin == "" {
		l.bin = "piper"
	}
	if l.sampleRate <= 0 {
		l.sampleRate = piperSampleRate
	}
	return l
}

func (l *LocalTTS) Name() string { return "local-piper" }

func (l *LocalTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if l.model == "" {
		return nil, errors.New("piper: model path is required (set TTS_LOCAL_PIPER_MODEL)")
	}

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, l.bin, piperArgs(l.model, req)...)
	cmd.Stdin = strings.NewReader(req.Input)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper: %w: %s", err, strings.TrimSpace(errOut.String()))
	}

	format := PCMFormat{SampleRate: l.sampleRate, Channels: 1, BitsPerSample: 16}
	return &SynthesisResult{
		Audio:       out.Bytes(),
		ContentType: fmt.Sprintf("audio/L16;rate=%d;channels=1", l.sampleRate),
		Duration:    pcmDuration(out.Len(), format),
	}, nil
}

// piperArgs maps the request onto Piper flags. A numeric voice selects a
// speaker of a multi-speaker model; other voice names are carried by the
// model file itself.
func piperArgs(model string, req SynthesisRequest) []string {
	args := []string{"--model", model, "--output-raw"}
	if id, err := strconv.Atoi(req.Voice); err == nil && id >= 0 {
		args = append(args, "--speaker", strconv.Itoa(id))
	}
	if req.Speed > 0 && req.Speed != 1 {
		args = append(args, "--length_scale", strconv.FormatFloat(1/req.Speed, 'f', 3, 64))
	}
	return args
}
