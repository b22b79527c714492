package llm

import (
	"context"
	"strings"
	"time"
)

// GenerateRequest is a single-turn text generation call.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// TextGenerator turns the gateway into a prompt-in, text-out collaborator.
// With streaming enabled the full stream is accumulated before returning.
type TextGenerator struct {
	gw        Gateway
	streaming bool
}

func NewTextGenerator(gw Gateway, streaming bool) *TextGenerator {
	return &TextGenerator{gw: gw, streaming: streaming}
}

// Completion is generated text plus what producing it cost.
type Completion struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Latency      time.Duration
}

// Usage is the accounting part of c in the shape stage logs and ledger
// details use.
func (c *Completion) Usage() map[string]any {
	return map[string]any{
		"provider":   c.Provider,
		"model":      c.Model,
		"tokens_in":  c.InputTokens,
		"tokens_out": c.OutputTokens,
		"cost_usd":   c.CostUSD,
		"latency_ms": c.Latency.Milliseconds(),
	}
}

// LogAttrs flattens Usage into slog key/value pairs.
func (c *Completion) LogAttrs() []any {
	u := c.Usage()
	return []any{
		"provider", u["provider"],
		"tokens_in", u["tokens_in"],
		"tokens_out", u["tokens_out"],
		"cost_usd", u["cost_usd"],
		"latency_ms", u["latency_ms"],
	}
}

func (g *TextGenerator) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	chat := ChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		chat.Messages = append(chat.Messages, Message{Role: "system", Content: req.System})
	}
	chat.Messages = append(chat.Messages, Message{Role: "user", Content: req.Prompt})

	if !g.streaming {
		resp, err := g.gw.Chat(ctx, chat)
		if err != nil {
			return nil, err
		}
		model := resp.Model
		if model == "" {
			model = req.Model
		}
		return &Completion{
			Text:         resp.Content,
			Provider:     resp.Provider,
			Model:        model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			CostUSD:      resp.CostUSD,
			Latency:      time.Duration(resp.LatencyMs) * time.Millisecond,
		}, nil
	}

	start := time.Now()
	ch, err := g.gw.ChatStream(ctx, chat)
	if err != nil {
		return nil, err
	}
	text, in, out, err := collect(ctx, ch)
	if err != nil {
		return nil, err
	}
	return &Completion{
		Text:         text,
		Model:        req.Model,
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      CalculateCost(req.Model, in, out),
		Latency:      time.Since(start),
	}, nil
}

// Models lists every model the gateway can route to.
func (g *TextGenerator) Models() []string {
	infos := g.gw.ListModels()
	out := make([]string, 0, len(infos))
	for _, m := range infos {
		out = append(out, m.Model)
	}
	return out
}

// Collect drains a stream into one string. A stream error or a cancelled
// context discards everything accumulated so far.
func Collect(ctx context.Context, ch <-chan StreamChunk) (string, error) {
	text, _, _, err := collect(ctx, ch)
	return text, err
}

// collect also reports token counts; providers send them on the final
// chunk, so the last non-zero value wins.
func collect(ctx context.Context, ch <-chan StreamChunk) (string, int, int, error) {
	var (
		sb      strings.Builder
		in, out int
	)
	for {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return sb.String(), in, out, nil
			}
			if chunk.Error != nil {
				return "", 0, 0, chunk.Error
			}
			sb.WriteString(chunk.Content)
			if chunk.InputTokens > 0 {
				in = chunk.InputTokens
			}
			if chunk.OutputTokens > 0 {
				out = chunk.OutputTokens
			}
			if chunk.Done {
				return sb.String(), in, out, nil
			}
		}
	}
}
