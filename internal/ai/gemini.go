package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/hoanghai1803/minernews/internal/models"
)

// Compile-time interface check.
var _ AIProvider = (*GeminiProvider)(nil)

// geminiOpenAIBaseURL is Gemini's OpenAI-compatible endpoint.
const geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// chatGenerator is the subset of an eino chat model used here.
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// GeminiProvider implements AIProvider through an eino chat model pointed at
// Gemini's OpenAI-compatible API. Any other compatible endpoint works via
// cfg.BaseURL.
type GeminiProvider struct {
	model string
	chat  chatGenerator
}

// NewGeminiProvider creates a GeminiProvider backed by an eino OpenAI chat model.
func NewGeminiProvider(ctx context.Context, cfg ProviderConfig) (*GeminiProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiOpenAIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini chat model: %w", err)
	}

	return &GeminiProvider{model: cfg.Model, chat: chatModel}, nil
}

func (p *GeminiProvider) Model() string { return p.model }

// Analyze sends the analysis prompt for the article to the chat model.
func (p *GeminiProvider) Analyze(ctx context.Context, article models.Article) (string, error) {
	systemPrompt, userPrompt := AnalysisPrompt(article)

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPrompt},
	}

	slog.Debug("calling Gemini API", "model", p.model)

	resp, err := p.chat.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("gemini analyze: %w", classify(err))
	}
	if resp == nil {
		return "", fmt.Errorf("gemini analyze: %w", permanentErr(errors.New("empty response: no message returned")))
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.FinishReason == "content_filter" {
		return "", fmt.Errorf("gemini analyze: %w", permanentErr(errors.New("response blocked by content filter")))
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("gemini analyze: %w", permanentErr(errors.New("empty response: blank content")))
	}
	return resp.Content, nil
}
