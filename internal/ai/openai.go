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
var _ AIProvider = (*OpenAIProvider)(nil)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider implements AIProvider using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider. cfg.BaseURL, when set,
// replaces the Chat Completions endpoint.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	url := openaiAPIURL
	if cfg.BaseURL != "" {
		url = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &OpenAIProvider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) Model() string { return p.model }

// Analyze sends the analysis prompt for the article to the Chat Completions API.
func (p *OpenAIProvider) Analyze(ctx context.Context, article models.Article) (string, error) {
	systemPrompt, userPrompt := AnalysisPrompt(article)

	text, err := p.callAPI(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("openai analyze: %w", err)
	}
	return text, nil
}

// callAPI makes an HTTP request to the OpenAI Chat Completions API and
// returns the text content from the first choice.
func (p *OpenAIProvider) callAPI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := openaiRequest{
		Model: p.model,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
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

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("calling OpenAI API", "model", p.model)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", classify(fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transientErr(fmt.Errorf("reading response body: %w", err))
	}

	var apiResp openaiResponse
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

	if len(apiResp.Choices) == 0 {
		return "", permanentErr(errors.New("empty response: no choices returned"))
	}

	choice := apiResp.Choices[0]
	if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
		return "", permanentErr(fmt.Errorf("model refused the request: %s", choice.Message.Refusal))
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", permanentErr(errors.New("empty response: blank content"))
	}
	return choice.Message.Content, nil
}
