package shazam

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// webAPI holds what every Shazam web endpoint needs.
type webAPI struct {
	client  *httpclient.Client
	baseURL string
}

func newWebAPI(client *httpclient.Client, baseURL string) webAPI {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return webAPI{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a webAPI) get(ctx context.Context, path string, q url.Values, out any) error {
	return a.client.JSON(ctx, httpclient.Request{
		URL:    a.baseURL + path,
		Query:  q,
		Header: map[string]string{"Accept": "application/json"},
	}, out)
}

func noResults(query string) error {
	return fmt.Errorf("%w: %s (%q)", domain.ErrNoMedia, NoResultsMessage, query)
}

// AMAPI searches through Shazam's Apple Music catalogue proxy.
type AMAPI struct {
	api webAPI
}

// NewAMAPI creates a new amapi search provider.
func NewAMAPI(client *httpclient.Client, baseURL string) *AMAPI {
	return &AMAPI{api: newWebAPI(client, baseURL)}
}

func (p *AMAPI) Name() string { return "shazam-amapi" }

func (p *AMAPI) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp struct {
		Results catalogResults `json:"results"`
	}
	err := p.api.get(ctx, "/services/amapi/v1/catalog/US/search", url.Values{
		"term":  {req.Input},
		"limit": {strconv.Itoa(searchLimit)},
		"types": {"songs"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	tracks := catalogTracks(resp.Results.Songs.Data)
	if len(tracks) == 0 {
		return nil, noResults(req.Input)
	}
	return searchResult(req.Input, tracks), nil
}

// WebV4 searches through the v4 web search. Hits are either wrapped
// ({"track": {...}}) or bare, and some answers carry catalogue songs
// instead.
type WebV4 struct {
	api webAPI
}

// NewWebV4 creates a new v4 web search provider.
func NewWebV4(client *httpclient.Client, baseURL string) *WebV4 {
	return &WebV4{api: newWebAPI(client, baseURL)}
}

func (p *WebV4) Name() string { return "shazam-web-v4" }

type hit struct {
	Track *webTrack `json:"track"`
	webTrack
}

func (h hit) track() webTrack {
	if h.Track != nil {
		return *h.Track
	}
	return h.webTrack
}

type hitList struct {
	Hits []hit `json:"hits"`
}

func (p *WebV4) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp struct {
		Tracks  hitList        `json:"tracks"`
		Songs   hitList        `json:"songs"`
		Results catalogResults `json:"results"`
	}
	err := p.api.get(ctx, "/services/search/v4/en/US/web/search", url.Values{
		"term":       {req.Input},
		"numResults": {strconv.Itoa(searchLimit)},
		"offset":     {"0"},
		"types":      {"songs,artists"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := resp.Tracks.Hits
	if len(hits) == 0 {
		hits = resp.Songs.Hits
	}
	tracks := hitTracks(hits)
	if len(tracks) == 0 {
		tracks = catalogTracks(resp.Results.Songs.Data)
	}
	if len(tracks) == 0 {
		return nil, noResults(req.Input)
	}
	return searchResult(req.Input, tracks), nil
}

// WebV3 searches through the legacy v3 web search.
type WebV3 struct {
	api webAPI
}

// NewWebV3 creates a new v3 web search provider.
func NewWebV3(client *httpclient.Client, baseURL string) *WebV3 {
	return &WebV3{api: newWebAPI(client, baseURL)}
}

func (p *WebV3) Name() string { return "shazam-web-v3" }

func (p *WebV3) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp struct {
		Tracks hitList `json:"tracks"`
	}
	err := p.api.get(ctx, "/services/search/v3/en/US/web/search", url.Values{
		"query":      {req.Input},
		"numResults": {strconv.Itoa(searchLimit)},
		"offset":     {"0"},
		"types":      {"songs"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	tracks := hitTracks(resp.Tracks.Hits)
	if len(tracks) == 0 {
		return nil, noResults(req.Input)
	}
	return searchResult(req.Input, tracks), nil
}

func catalogTracks(songs []catalogSong) []domain.Track {
	tracks := make([]domain.Track, 0, len(songs))
	for _, s := range songs {
		if t, ok := s.toTrack(); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

func hitTracks(hits []hit) []domain.Track {
	tracks := make([]domain.Track, 0, len(hits))
	for _, h := range hits {
		if t, ok := h.track().toTrack(); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

var (
	_ resolver.Provider = (*AMAPI)(nil)
	_ resolver.Provider = (*WebV4)(nil)
	_ resolver.Provider = (*WebV3)(nil)
)
