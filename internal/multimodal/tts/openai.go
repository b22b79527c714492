package tts

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITTSConfig holds configuration for the OpenAI TTS backend.
type OpenAITTSConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "tts-1"
	Format  string // mp3 (default), wav, opus, aac, flac or pcm
}

// OpenAITTS synthesizes speech using OpenAI's speech endpoint.
type OpenAITTS struct {
	client *openai.Client
	model  openai.SpeechModel
	format openai.SpeechResponseFormat
}

func NewOpenAITTS(cfg OpenAITTSConfig) *OpenAITTS {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Format == "" {
		cfg.Format = string(openai.SpeechResponseFormatMp3)
	}
	return &OpenAITTS{
		client: openai.NewClientWithConfig(oc),
		model:  openai.SpeechModel(cfg.Model),
		format: openai.SpeechResponseFormat(cfg.Format),
	}
}

func (o *OpenAITTS) Name() string { return "openai-tts" }

func (o *OpenAITTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          req.Input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: o.format,
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: openAIContentType(o.format),
	}, nil
}

// pcm output is 24kHz 16-bit mono without a header.
func openAIContentType(format openai.SpeechResponseFormat) string {
	switch format {
	case openai.SpeechResponseFormatWav:
		return "audio/wav"
	case openai.SpeechResponseFormatOpus:
		return "audio/opus"
	case openai.SpeechResponseFormatAac:
		return "audio/aac"
	case openai.SpeechResponseFormatFlac:
		return "audio/flac"
	case openai.SpeechResponseFormatPcm:
		return "audio/L16;rate=24000;channels=1"
	default:
		return "audio/mpeg"
	}
}
