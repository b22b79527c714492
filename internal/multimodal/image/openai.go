package image

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISource generates images with the OpenAI images API.
type OpenAISource struct {
	client *openai.Client
	model  string
	size   string
}

func NewOpenAISource(apiKey, baseURL, model string) *OpenAISource {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	size := openai.CreateImageSize1792x1024
	if model == openai.CreateImageModelDallE2 {
		size = openai.CreateImageSize1024x1024
	}
	return &OpenAISource{client: openai.NewClientWithConfig(cfg), model: model, size: size}
}

func (o *OpenAISource) Name() string { return "openai-images" }

func (o *OpenAISource) Fetch(ctx context.Context, query string) (*Image, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         query,
		Model:          o.model,
		Size:           o.size,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai image: empty response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai image decode: %w", err)
	}
	return newImage(data, "")
}
