package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const defaultSnapSaveBaseURL = "https://snapsave.app"

var cdnLinkPattern = regexp.MustCompile(`(?i)(?:href|src)="(https?://[^"]*(?:scontent|cdninstagram|fbcdn)[^"]*)"`)

// SnapSave posts the link to snapsave and decodes its packed script
// response.
type SnapSave struct {
	client  *httpclient.Client
	baseURL string
}

// NewSnapSave creates a new snapsave provider.
func NewSnapSave(client *httpclient.Client, baseURL string) *SnapSave {
	if baseURL == "" {
		baseURL = defaultSnapSaveBaseURL
	}
	return &SnapSave{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *SnapSave) Name() string { return "snapsave" }

func (p *SnapSave) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	resp, err := p.client.PostForm(ctx, p.baseURL+"/action.php?lang=en", url.Values{"url": {req.Input}}, map[string]string{
		"Origin":  p.baseURL,
		"Referer": p.baseURL + "/",
	})
	if err != nil {
		return nil, fmt.Errorf("submit link: %w", err)
	}

	decoded, err := unpack(resp.Text())
	if errors.Is(err, errNotPacked) {
		return nil, fmt.Errorf("%w: unexpected response format", domain.ErrMalformedResponse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", domain.ErrMalformedResponse, err)
	}
	if strings.Contains(decoded, "error_api_get_instagram") || strings.Contains(decoded, "Error:") || strings.Contains(decoded, "Unable to connect") {
		return nil, fmt.Errorf("%w: could not connect to Instagram", domain.ErrProviderReported)
	}

	var media []domain.Media
	seen := make(map[string]bool)
	for _, m := range cdnLinkPattern.FindAllStringSubmatch(decoded, -1) {
		link := strings.ReplaceAll(m[1], "&amp;", "&")
		if seen[link] {
			continue
		}
		seen[link] = true
		media = append(media, domain.Media{Type: guessType(link), URL: link})
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("%w: no download links", domain.ErrNoMedia)
	}
	return newResult("", "", media), nil
}

var _ resolver.Provider = (*SnapSave)(nil)
