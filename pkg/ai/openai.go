package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	maxTokens          = 1024
)

// OpenAIConfig configures the OpenAI chat provider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// OpenAI answers chat prompts through an OpenAI compatible chat
// completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAI creates a new OpenAI chat provider.
func NewOpenAI(client *httpclient.Client, cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(client.HTTPClient()),
		// The engine falls back to the next provider instead.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}

	c := openai.NewClient(opts...)
	return &OpenAI{client: &c, model: cfg.Model, temperature: cfg.Temperature}, nil
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req)),
			openai.UserMessage(req.Input),
		},
		Model:       shared.ChatModel(p.model),
		Temperature: openai.Float(p.temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", domain.ErrMalformedResponse)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, domain.ErrEmptyResponse
	}
	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &domain.Result{Success: true, Text: text, Model: model}, nil
}

var _ resolver.Provider = (*OpenAI)(nil)
