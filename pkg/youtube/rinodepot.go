package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const defaultRinodepotBaseURL = "https://rinodepot.fr"

type rinodepotAPI struct {
	client  *httpclient.Client
	baseURL string
}

func newRinodepotAPI(client *httpclient.Client, baseURL string) rinodepotAPI {
	if baseURL == "" {
		baseURL = defaultRinodepotBaseURL
	}
	return rinodepotAPI{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a rinodepotAPI) get(ctx context.Context, path string, q url.Values, out any) error {
	return a.client.JSON(ctx, httpclient.Request{
		URL:    a.baseURL + path,
		Query:  q,
		Header: map[string]string{"Referer": a.baseURL},
	}, out)
}

// Rinodepot looks a video up on rinodepot and returns its download page.
type Rinodepot struct {
	api rinodepotAPI
}

// NewRinodepot creates a new rinodepot provider.
func NewRinodepot(client *httpclient.Client, baseURL string) *Rinodepot {
	return &Rinodepot{api: newRinodepotAPI(client, baseURL)}
}

func (p *Rinodepot) Name() string { return "rinodepot" }

type checkResponse struct {
	Found bool `json:"found"`
	Items *struct {
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"items"`
}

func (p *Rinodepot) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	id := videoID(req)
	if id == "" {
		return nil, fmt.Errorf("%w: no video id", domain.ErrInvalidInput)
	}

	var check checkResponse
	if err := p.api.get(ctx, "/check", url.Values{"q": {id}}, &check); err != nil {
		return nil, fmt.Errorf("check video: %w", err)
	}
	if !check.Found {
		return nil, fmt.Errorf("%w: video not found or unavailable", domain.ErrNoMedia)
	}

	res := &domain.Result{
		Success:     true,
		Title:       "Unknown",
		Author:      "Unknown",
		DownloadURL: p.api.baseURL + "/dl/" + id,
		Thumbnail:   ThumbnailURL(id),
		Format:      req.Format,
	}
	if check.Items != nil {
		res.Title = firstNonEmpty(check.Items.Title, res.Title)
		res.Author = firstNonEmpty(check.Items.ChannelTitle, res.Author)
	}
	return res, nil
}

// RinodepotSearch searches YouTube through rinodepot.
type RinodepotSearch struct {
	api rinodepotAPI
}

// NewRinodepotSearch creates a new rinodepot search provider.
func NewRinodepotSearch(client *httpclient.Client, baseURL string) *RinodepotSearch {
	return &RinodepotSearch{api: newRinodepotAPI(client, baseURL)}
}

func (p *RinodepotSearch) Name() string { return "rinodepot-search" }

type searchItem struct {
	ID           json.RawMessage `json:"id"`
	VideoID      string          `json:"videoId"`
	Title        string          `json:"title"`
	ChannelTitle string          `json:"channelTitle"`
	Channel      string          `json:"channel"`
	Thumbnail    string          `json:"thumbnail"`
	Duration     string          `json:"duration"`
}

// videoID handles both a plain string id and the Data API's
// {"videoId": "..."} object.
func (it searchItem) videoID() string {
	if it.VideoID != "" {
		return it.VideoID
	}
	var s string
	if json.Unmarshal(it.ID, &s) == nil {
		return s
	}
	var obj struct {
		VideoID string `json:"videoId"`
	}
	if json.Unmarshal(it.ID, &obj) == nil {
		return obj.VideoID
	}
	return ""
}

func (p *RinodepotSearch) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp struct {
		Query string       `json:"query"`
		Items []searchItem `json:"items"`
	}
	if err := p.api.get(ctx, "/search", url.Values{"q": {req.Input}}, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	tracks := make([]domain.Track, 0, len(resp.Items))
	for _, it := range resp.Items {
		id := it.videoID()
		if id == "" || it.Title == "" {
			continue
		}
		thumb := it.Thumbnail
		if thumb == "" {
			thumb = "https://img.youtube.com/vi/" + id + "/mqdefault.jpg"
		}
		tracks = append(tracks, domain.Track{
			ID:         id,
			Title:      it.Title,
			Channel:    firstNonEmpty(it.ChannelTitle, it.Channel),
			Artwork:    thumb,
			URL:        WatchURL(id),
			DurationMs: int64(parseClock(it.Duration) * 1000),
		})
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no results for %q", domain.ErrNoMedia, req.Input)
	}

	return &domain.Result{Success: true, Title: firstNonEmpty(resp.Query, req.Input), Tracks: tracks}, nil
}

var (
	_ resolver.Provider = (*Rinodepot)(nil)
	_ resolver.Provider = (*RinodepotSearch)(nil)
)
