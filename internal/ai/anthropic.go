package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hoanghai1803/minernews/internal/models"
)

// Compile-time interface check.
var _ AIProvider = (*AnthropicProvider)(nil)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements AIProvider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewAnthropicProvider creates an AnthropicProvider. cfg.BaseURL, when set,
// replaces the Messages API endpoint.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	url := anthropicAPIURL
	if cfg.BaseURL != "" {
		url = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &AnthropicProvider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// anthropicRequest is the request body for the Anthropic Messages API.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Anthropic Messages API.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicProvider) Model() string { return p.model }

// Analyze sends the analysis prompt for the article to the Messages API.
func (p *AnthropicProvider) Analyze(ctx context.Context, article models.Article) (string, error) {
	systemPrompt, userPrompt := AnalysisPrompt(article)

	text, err := p.callAPI(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("anthropic analyze: %w", err)
	}
	return text, nil
}

// callAPI makes an HTTP request to the Anthropic Messages API and returns
// the concatenated text blocks.
func (p *AnthropicProvider) callAPI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: 2048,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", permanentErr(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", permanentErr(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	slog.Debug("calling Anthropic API", "model", p.model)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", classify(fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transientErr(fmt.Errorf("reading response body: %w", err))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", statusError(resp.StatusCode, "")
		}
		return "", transientErr(fmt.Errorf("parsing response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if apiResp.Error != nil {
			msg = apiResp.Error.Message
		}
		return "", statusError(resp.StatusCode, msg)
	}

	if apiResp.StopReason == "refusal" {
		return "", permanentErr(errors.New("model refused the request"))
	}

	var out strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "" || block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", permanentErr(errors.New("empty response: no text content returned"))
	}
	return out.String(), nil
}
