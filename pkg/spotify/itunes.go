package spotify

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

const defaultITunesBaseURL = "https://itunes.apple.com"

// ITunes searches the iTunes catalogue. It stands in for Spotify search
// when no token can be obtained.
type ITunes struct {
	client  *httpclient.Client
	baseURL string
}

// NewITunes creates a new iTunes search provider.
func NewITunes(client *httpclient.Client, baseURL string) *ITunes {
	if baseURL == "" {
		baseURL = defaultITunesBaseURL
	}
	return &ITunes{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *ITunes) Name() string { return "itunes-search" }

type itunesItem struct {
	TrackID         int64  `json:"trackId"`
	TrackName       string `json:"trackName"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	ArtworkURL100   string `json:"artworkUrl100"`
	TrackViewURL    string `json:"trackViewUrl"`
	PreviewURL      string `json:"previewUrl"`
	ReleaseDate     string `json:"releaseDate"`
	TrackTimeMillis int64  `json:"trackTimeMillis"`
}

func (p *ITunes) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp struct {
		ResultCount int          `json:"resultCount"`
		Results     []itunesItem `json:"results"`
	}
	err := p.client.JSON(ctx, httpclient.Request{
		URL: p.baseURL + "/search",
		Query: url.Values{
			"term":   {req.Input},
			"media":  {"music"},
			"entity": {"song"},
			"limit":  {strconv.Itoa(searchLimit)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	tracks := make([]domain.Track, 0, len(resp.Results))
	for _, it := range resp.Results {
		if it.TrackName == "" {
			continue
		}
		release := it.ReleaseDate
		if len(release) > 10 {
			release = release[:10]
		}
		var id string
		if it.TrackID != 0 {
			id = strconv.FormatInt(it.TrackID, 10)
		}
		tracks = append(tracks, domain.Track{
			ID:          id,
			Title:       it.TrackName,
			Artist:      it.ArtistName,
			Album:       it.CollectionName,
			Artwork:     strings.Replace(it.ArtworkURL100, "100x100", "400x400", 1),
			URL:         it.TrackViewURL,
			PreviewURL:  it.PreviewURL,
			ReleaseDate: release,
			DurationMs:  it.TrackTimeMillis,
		})
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoMedia, NoResultsMessage)
	}
	return &domain.Result{Success: true, Title: req.Input, Tracks: tracks}, nil
}

var _ resolver.Provider = (*ITunes)(nil)
