package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const (
	defaultChatEverywhereURL = "https://chateverywhere.app"
	defaultTemperature       = 0.7
	chatEverywhereModel      = "gpt-3.5-turbo"
	imageModel               = "unsplash"
)

// ChatEverywhere sends prompts to the chateverywhere chat endpoint, which
// answers with plain text.
type ChatEverywhere struct {
	client      *httpclient.Client
	baseURL     string
	temperature float64
}

// NewChatEverywhere creates a new chateverywhere chat provider. A zero
// temperature uses 0.7.
func NewChatEverywhere(client *httpclient.Client, baseURL string, temperature float64) *ChatEverywhere {
	if baseURL == "" {
		baseURL = defaultChatEverywhereURL
	}
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &ChatEverywhere{client: client, baseURL: strings.TrimRight(baseURL, "/"), temperature: temperature}
}

func (p *ChatEverywhere) Name() string { return "chateverywhere" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Prompt      string        `json:"prompt"`
	Temperature float64       `json:"temperature"`
}

func (p *ChatEverywhere) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/api/chat",
		JSON: chatRequest{
			Messages:    []chatMessage{{Role: "user", Content: req.Input}},
			Prompt:      systemPrompt(req),
			Temperature: p.temperature,
		},
		Header: map[string]string{"Origin": p.baseURL, "Referer": p.baseURL + "/"},
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, domain.ErrEmptyResponse
	}
	return &domain.Result{Success: true, Text: text, Model: chatEverywhereModel}, nil
}

// ChatEverywhereImage resolves an image prompt to the image URL the
// chateverywhere image endpoint redirects to.
type ChatEverywhereImage struct {
	client  *httpclient.Client
	baseURL string
}

// NewChatEverywhereImage creates a new chateverywhere image provider.
func NewChatEverywhereImage(client *httpclient.Client, baseURL string) *ChatEverywhereImage {
	if baseURL == "" {
		baseURL = defaultChatEverywhereURL
	}
	return &ChatEverywhereImage{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *ChatEverywhereImage) Name() string { return "chateverywhere-image" }

func (p *ChatEverywhereImage) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	q := url.Values{"q": {req.Input}, "width": {"960"}, "height": {"640"}}
	final, err := p.client.FinalURL(ctx, p.baseURL+"/api/image?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	if strings.HasPrefix(final, p.baseURL+"/api/image") {
		return nil, fmt.Errorf("%w: image endpoint did not redirect", domain.ErrNoMedia)
	}

	return &domain.Result{
		Success:     true,
		Title:       req.Input,
		DownloadURL: final,
		Media:       []domain.Media{{Type: domain.MediaTypeImage, URL: final}},
		Model:       imageModel,
	}, nil
}

var (
	_ resolver.Provider = (*ChatEverywhere)(nil)
	_ resolver.Provider = (*ChatEverywhereImage)(nil)
)
