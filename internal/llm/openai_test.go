package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: got=%q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("model: got=%v", body["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Chlorophyll absorbs light."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1000, "completion_tokens": 1000, "total_tokens": 2000}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("test-key", srv.URL+"/v1")
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: "user", Content: "what is chlorophyll"}},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Content != "Chlorophyll absorbs light." {
		t.Fatalf("content: got=%q", resp.Content)
	}
	if want := CalculateCost("gpt-4o-mini", 1000, 1000); resp.CostUSD != want {
		t.Fatalf("cost: want=%v got=%v", want, resp.CostUSD)
	}
}

func TestCalculateCostUnknownModel(t *testing.T) {
	if got := CalculateCost("llama3", 5000, 5000); got != 0 {
		t.Fatalf("CalculateCost: want=0 got=%v", got)
	}
}
