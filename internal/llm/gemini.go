package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Models() []string {
	return []string{
		"gemini-2.0-flash-exp",
		"gemini-2.0-flash",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	}
}

func (p *GeminiProvider) Close() error { return p.client.Close() }

// session maps the transcript onto a chat session: system messages become
// the system instruction, earlier turns become history, and the final user
// turn is returned to be sent.
func (p *GeminiProvider) session(req ChatRequest) (*genai.ChatSession, genai.Text, error) {
	model := p.client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}

	var system []string
	var turns []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "user":
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case "assistant":
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return nil, "", errors.New("gemini: transcript must end with a user message")
	}

	last := turns[len(turns)-1]
	cs := model.StartChat()
	cs.History = turns[:len(turns)-1]
	return cs, last.Parts[0].(genai.Text), nil
}

func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	cs, prompt, err := p.session(req)
	if err != nil {
		return nil, err
	}
	resp, err := cs.SendMessage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}

	in, out := geminiUsage(resp)
	return &ChatResponse{
		Provider:     "gemini",
		Model:        req.Model,
		Content:      geminiText(resp),
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		CostUSD:      CalculateCost(req.Model, in, out),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *GeminiProvider) ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	cs, prompt, err := p.session(req)
	if err != nil {
		return nil, err
	}
	iter := cs.SendMessageStream(ctx, prompt)

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		var in, out int
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				send(ctx, ch, StreamChunk{Done: true, InputTokens: in, OutputTokens: out})
				return
			}
			if err != nil {
				send(ctx, ch, StreamChunk{Error: fmt.Errorf("gemini stream: %w", err), Done: true})
				return
			}
			if i, o := geminiUsage(resp); i+o > 0 {
				in, out = i, o
			}
			if text := geminiText(resp); text != "" && !send(ctx, ch, StreamChunk{Content: text}) {
				return
			}
		}
	}()
	return ch, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func geminiUsage(resp *genai.GenerateContentResponse) (int, int) {
	if resp == nil || resp.UsageMetadata == nil {
		return 0, 0
	}
	return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
}
