package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/nikhilbhutani/videgen/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
}

// NewGateway registers every provider that has credentials in cfg.
func NewGateway(ctx context.Context, cfg config.LLMConfig) (Gateway, error) {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.GeminiKey != "" {
		gp, err := NewGeminiProvider(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, err
		}
		providers = append(providers, gp)
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}
	return NewGatewayFromProviders(cfg, providers...), nil
}

// NewGatewayFromProviders builds a gateway over an explicit provider set.
func NewGatewayFromProviders(cfg config.LLMConfig, providers ...Provider) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// route picks the explicit provider, else the one that lists the model,
// else the default provider.
func (g *gateway) route(req ChatRequest) string {
	if req.Provider != "" {
		return req.Provider
	}
	if req.Model != "" {
		for _, name := range g.providerNames() {
			if slices.Contains(g.providers[name].Models(), req.Model) {
				return name
			}
		}
	}
	return g.defaultProvider
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := g.route(req)

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && ctx.Err() == nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.chatWithRetry(ctx, g.fallbackProvider, g.forProvider(g.fallbackProvider, req))
	}
	return resp, err
}

// forProvider swaps in the provider's first model when it does not serve req.Model.
func (g *gateway) forProvider(name string, req ChatRequest) ChatRequest {
	p, ok := g.providers[name]
	if !ok {
		return req
	}
	models := p.Models()
	if len(models) > 0 && !slices.Contains(models, req.Model) {
		req.Model = models[0]
	}
	req.Provider = name
	return req
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	if g.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	p, err := g.Provider(g.route(req))
	if err != nil {
		return nil, err
	}
	return p.ChatCompletionStream(ctx, req)
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, name := range g.providerNames() {
		for _, m := range g.providers[name].Models() {
			models = append(models, ModelInfo{Provider: name, Model: m})
		}
	}
	return models
}

func (g *gateway) Close() error {
	var errs []error
	for _, p := range g.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// providerNames returns the default provider first, then the rest sorted.
func (g *gateway) providerNames() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		if name != g.defaultProvider {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := g.providers[g.defaultProvider]; ok {
		names = append([]string{g.defaultProvider}, names...)
	}
	return names
}
