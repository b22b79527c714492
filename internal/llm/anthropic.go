package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicProvider struct {
	client anthropic.Client
}

func NewAnthropicProvider(apiKey string, opts ...option.RequestOption) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []string {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
		"claude-3-5-haiku-20241022",
	}
}

// messageParams splits system text out of the transcript, which the
// Messages API takes as a separate field.
func messageParams(req ChatRequest) anthropic.MessageNewParams {
	var system []string
	var msgs []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "user":
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = anthropic.Float(req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	return params
}

func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	resp, err := p.client.Messages.New(ctx, messageParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)

	return &ChatResponse{
		ID:           resp.ID,
		Provider:     "anthropic",
		Model:        string(resp.Model),
		Content:      content.String(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      CalculateCost(req.Model, inputTokens, outputTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *AnthropicProvider) ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	stream := p.client.Messages.NewStreaming(ctx, messageParams(req))

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		accum := anthropic.Message{}
		for stream.Next() {
			evt := stream.Current()
			_ = accum.Accumulate(evt)

			switch evt.Type {
			case "content_block_delta":
				if evt.Delta.Type == "text_delta" && !send(ctx, ch, StreamChunk{Content: evt.Delta.Text}) {
					return
				}
			case "message_stop":
				send(ctx, ch, StreamChunk{
					Done:         true,
					InputTokens:  int(accum.Usage.InputTokens),
					OutputTokens: int(accum.Usage.OutputTokens),
				})
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, StreamChunk{Error: fmt.Errorf("anthropic stream: %w", err), Done: true})
			return
		}
		send(ctx, ch, StreamChunk{Done: true})
	}()

	return ch, nil
}
