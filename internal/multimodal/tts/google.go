package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const DefaultGoogleVoice = "en-US-Neural2-J"

// GoogleTTSConfig holds configuration for Google Cloud Text-to-Speech.
// APIKey wins over CredentialsFile; with neither set, application default
// credentials are used.
type GoogleTTSConfig struct {
	APIKey          string
	CredentialsFile string
	Endpoint        string // override for tests and regional endpoints
	SpeakingRate    float64
	ClientOptions   []option.ClientOption
}

// GoogleTTS synthesizes MP3 speech through the Cloud Text-to-Speech v1 API.
type GoogleTTS struct {
	svc          *texttospeech.Service
	speakingRate float64
}

func NewGoogleTTS(ctx context.Context, cfg GoogleTTSConfig) (*GoogleTTS, error) {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, cfg.ClientOptions...)

	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create texttospeech client: %w", err)
	}
	return &GoogleTTS{svc: svc, speakingRate: cfg.SpeakingRate}, nil
}

func (g *GoogleTTS) Name() string { return "google-tts" }

func (g *GoogleTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = DefaultGoogleVoice
	}
	rate := g.speakingRate
	if req.Speed > 0 {
		rate = req.Speed
	}

	call := g.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Input},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: voiceLanguage(voice),
			Name:         voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  rate,
		},
	})
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google tts synthesize: %w", err)
	}
	if resp.AudioContent == "" {
		return nil, fmt.Errorf("google tts returned no audio content")
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	return &SynthesisResult{Audio: audio, ContentType: "audio/mpeg"}, nil
}

// voiceLanguage derives the BCP-47 code from a voice name like "en-US-Neural2-J".
func voiceLanguage(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}
