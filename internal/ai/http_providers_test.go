package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hoanghai1803/minernews/internal/models"
)

var testArticle = models.Article{
	Title: "Bitcoin Difficulty Hits Another All-Time High",
	URL:   "https://example.com/x",
	Body:  "Difficulty rose 4%.",
}

func TestAnthropicProvider_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		if req.Model != "claude-haiku-4-5" || req.System == "" || len(req.Messages) != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
		if !strings.Contains(req.Messages[0].Content, testArticle.URL) {
			t.Errorf("prompt missing article URL")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"## Summary\nDifficulty is up."}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{APIKey: "test-key", Model: "claude-haiku-4-5", BaseURL: srv.URL})
	got, err := p.Analyze(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got != "## Summary\nDifficulty is up." {
		t.Errorf("Analyze() = %q", got)
	}
}

func TestOpenAIProvider_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Analysis text"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL})
	got, err := p.Analyze(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got != "Analysis text" {
		t.Errorf("Analyze() = %q", got)
	}
}

func TestHTTPProviders_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, Transient},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"oops"}}`, Transient},
		{"overloaded non-json", http.StatusServiceUnavailable, `upstream unavailable`, Transient},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad input"}}`, Permanent},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`, Permanent},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		}))

		providers := map[string]AIProvider{
			"anthropic": NewAnthropicProvider(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}),
			"openai":    NewOpenAIProvider(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}),
		}
		for pname, p := range providers {
			t.Run(tt.name+"/"+pname, func(t *testing.T) {
				_, err := p.Analyze(context.Background(), testArticle)
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.want == Transient && !IsTransient(err) {
					t.Errorf("error %v should be transient", err)
				}
				if tt.want == Permanent && !IsPermanent(err) {
					t.Errorf("error %v should be permanent", err)
				}
			})
		}
		srv.Close()
	}
}

func TestHTTPProviders_EmptyOutputIsPermanent(t *testing.T) {
	anth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"   "}]}`))
	}))
	defer anth.Close()
	oai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer oai.Close()

	providers := map[string]AIProvider{
		"anthropic": NewAnthropicProvider(ProviderConfig{APIKey: "k", Model: "m", BaseURL: anth.URL}),
		"openai":    NewOpenAIProvider(ProviderConfig{APIKey: "k", Model: "m", BaseURL: oai.URL}),
	}
	for name, p := range providers {
		_, err := p.Analyze(context.Background(), testArticle)
		if !IsPermanent(err) {
			t.Errorf("%s: error = %v, want permanent", name, err)
		}
	}
}

func TestOpenAIProvider_RefusalIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","refusal":"I can't help with that."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	if _, err := p.Analyze(context.Background(), testArticle); !IsPermanent(err) {
		t.Errorf("error = %v, want permanent", err)
	}
}
