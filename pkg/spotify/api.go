package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/pkg/credential"
)

const (
	defaultAPIBaseURL = "https://api.spotify.com"
	searchLimit       = 10
)

// webAPI calls the Web API with the anonymous token. Each call builds a
// client around the current token so a refreshed token is picked up.
type webAPI struct {
	http    *http.Client
	baseURL string
	token   credential.Source
}

func newWebAPI(client *httpclient.Client, baseURL string, token credential.Source) webAPI {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return webAPI{http: client.HTTPClient(), baseURL: strings.TrimRight(baseURL, "/") + "/v1/", token: token}
}

func (a webAPI) do(ctx context.Context, fn func(ctx context.Context, c *spotify.Client) (*domain.Result, error)) (*domain.Result, error) {
	return credential.Do(ctx, a.token, func(ctx context.Context, token string) (*domain.Result, error) {
		oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, a.http)
		hc := oauth2.NewClient(oauthCtx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
		res, err := fn(ctx, spotify.New(hc, spotify.WithBaseURL(a.baseURL)))
		return res, mapError(err)
	})
}

// mapError translates Web API errors into domain errors so rejected tokens
// trigger a refresh.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr spotify.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Message)
	case http.StatusNotFound, http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrProviderReported, apiErr.Message)
	}
	return fmt.Errorf("%w: %d: %s", domain.ErrUpstreamStatus, apiErr.Status, apiErr.Message)
}

// APISearch searches tracks through the Web API.
type APISearch struct {
	api webAPI
}

// NewAPISearch creates a new Web API search provider.
func NewAPISearch(client *httpclient.Client, baseURL string, token credential.Source) *APISearch {
	return &APISearch{api: newWebAPI(client, baseURL, token)}
}

func (p *APISearch) Name() string { return "spotify-api-search" }

func (p *APISearch) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	return p.api.do(ctx, func(ctx context.Context, c *spotify.Client) (*domain.Result, error) {
		results, err := c.Search(ctx, req.Input, spotify.SearchTypeTrack, spotify.Limit(searchLimit))
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoMedia, NoResultsMessage)
		}

		tracks := make([]domain.Track, 0, len(results.Tracks.Tracks))
		for _, t := range results.Tracks.Tracks {
			tracks = append(tracks, toTrack(t))
		}
		return &domain.Result{Success: true, Title: req.Input, Tracks: tracks}, nil
	})
}

// APITrack looks up one track through the Web API.
type APITrack struct {
	api webAPI
}

// NewAPITrack creates a new Web API track provider.
func NewAPITrack(client *httpclient.Client, baseURL string, token credential.Source) *APITrack {
	return &APITrack{api: newWebAPI(client, baseURL, token)}
}

func (p *APITrack) Name() string { return "spotify-api-track" }

func (p *APITrack) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	id := trackID(req)
	if id == "" {
		return nil, domain.NewInputError(req.Capability, InvalidTrackMessage)
	}
	return p.api.do(ctx, func(ctx context.Context, c *spotify.Client) (*domain.Result, error) {
		t, err := c.GetTrack(ctx, spotify.ID(id))
		if err != nil {
			return nil, fmt.Errorf("get track: %w", err)
		}
		return trackResult(toTrack(*t)), nil
	})
}

func toTrack(t spotify.FullTrack) domain.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	var artwork string
	if len(t.Album.Images) > 0 {
		artwork = t.Album.Images[0].URL
	}
	link := t.ExternalURLs["spotify"]
	if link == "" && t.ID != "" {
		link = TrackURL(string(t.ID))
	}
	return domain.Track{
		ID:          string(t.ID),
		Title:       t.Name,
		Artist:      strings.Join(artists, ", "),
		Album:       t.Album.Name,
		Artwork:     artwork,
		URL:         link,
		PreviewURL:  t.PreviewURL,
		ReleaseDate: t.Album.ReleaseDate,
		DurationMs:  int64(t.Duration),
	}
}

// trackResult wraps one track as a lookup result.
func trackResult(t domain.Track) *domain.Result {
	return &domain.Result{
		Success:   true,
		Title:     t.Title,
		Author:    t.Artist,
		Thumbnail: t.Artwork,
		Duration:  float64(t.DurationMs) / 1000,
		Tracks:    []domain.Track{t},
	}
}

var (
	_ resolver.Provider = (*APISearch)(nil)
	_ resolver.Provider = (*APITrack)(nil)
)
