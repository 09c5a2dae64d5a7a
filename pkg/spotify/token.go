package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/pkg/credential"
)

const (
	defaultWebBaseURL = "https://open.spotify.com"
	defaultTokenTTL   = 30 * time.Minute
	tokenRefreshSkew  = time.Minute
)

// embedTokenTracks are public tracks whose embed pages carry an anonymous
// access token.
var embedTokenTracks = []string{
	"0VjIjW4GlUZAMYd2vXMi3b",
	"7qiZfU4dY1lWllzX7mPBI3",
	"4cOdK2wGLETKBW3PvgPWqT",
}

var accessTokenPattern = regexp.MustCompile(`"accessToken":"([^"]+)"`)

// TokenFetcher obtains the anonymous web player token: the token endpoint
// first, then a scrape of a public embed page.
type TokenFetcher struct {
	client  *httpclient.Client
	baseURL string
	logger  *slog.Logger
}

// NewTokenFetcher creates a token fetcher against the web player at
// baseURL.
func NewTokenFetcher(client *httpclient.Client, baseURL string, logger *slog.Logger) *TokenFetcher {
	if baseURL == "" {
		baseURL = defaultWebBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "spotify-token"),
	}
}

// NewTokenCache returns a credential cache backed by f. Tokens are
// refreshed a minute before they expire.
func NewTokenCache(f *TokenFetcher, ttl time.Duration) *credential.Cache {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return credential.NewCache(f.Fetch, ttl, credential.WithRefreshSkew(tokenRefreshSkew))
}

// Fetch implements credential.FetchFunc.
func (f *TokenFetcher) Fetch(ctx context.Context) (string, time.Duration, error) {
	token, ttl, err := f.fromEndpoint(ctx)
	if err == nil {
		return token, ttl, nil
	}
	f.logger.Debug("token endpoint failed, scraping embed", "error", err)

	errs := []error{err}
	for _, id := range embedTokenTracks {
		token, err := f.fromEmbed(ctx, id)
		if err == nil {
			return token, 0, nil
		}
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		errs = append(errs, err)
	}
	return "", 0, fmt.Errorf("anonymous token: %w", errors.Join(errs...))
}

func (f *TokenFetcher) fromEndpoint(ctx context.Context) (string, time.Duration, error) {
	var resp struct {
		AccessToken                      string `json:"accessToken"`
		AccessTokenExpirationTimestampMs int64  `json:"accessTokenExpirationTimestampMs"`
		IsAnonymous                      bool   `json:"isAnonymous"`
	}
	err := f.client.JSON(ctx, httpclient.Request{
		URL:    f.baseURL + "/get_access_token?reason=transport&productType=web_player",
		Header: map[string]string{"Accept": "application/json", "Referer": f.baseURL + "/"},
	}, &resp)
	if err != nil {
		return "", 0, err
	}
	if resp.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: no accessToken", domain.ErrMalformedResponse)
	}

	var ttl time.Duration
	if resp.AccessTokenExpirationTimestampMs > 0 {
		ttl = time.Until(time.UnixMilli(resp.AccessTokenExpirationTimestampMs))
		if ttl <= 0 || ttl > defaultTokenTTL {
			ttl = 0
		}
	}
	return resp.AccessToken, ttl, nil
}

func (f *TokenFetcher) fromEmbed(ctx context.Context, id string) (string, error) {
	resp, err := f.client.Get(ctx, f.baseURL+"/embed/track/"+id, map[string]string{"Accept": "text/html"})
	if err != nil {
		return "", err
	}
	m := accessTokenPattern.FindSubmatch(resp.Body)
	if m == nil {
		return "", fmt.Errorf("%w: embed %s has no accessToken", domain.ErrMalformedResponse, id)
	}
	return string(m[1]), nil
}
