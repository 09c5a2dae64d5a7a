package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

var (
	embedTitlePattern    = regexp.MustCompile(`"title":("(?:[^"\\]|\\.)*")`)
	embedArtistsPattern  = regexp.MustCompile(`"artists":\[([^\]]+)\]`)
	embedNamePattern     = regexp.MustCompile(`"name":("(?:[^"\\]|\\.)*")`)
	embedCoverPattern    = regexp.MustCompile(`"coverArt":\{"sources":\[.*?"url":("(?:[^"\\]|\\.)*")`)
	embedDurationPattern = regexp.MustCompile(`"duration":(\d+)`)
)

// Embed reads track metadata from the public embed page, which needs no
// token.
type Embed struct {
	client  *httpclient.Client
	baseURL string
}

// NewEmbed creates a new embed page provider.
func NewEmbed(client *httpclient.Client, baseURL string) *Embed {
	if baseURL == "" {
		baseURL = defaultWebBaseURL
	}
	return &Embed{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Embed) Name() string { return "spotify-embed" }

func (p *Embed) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	id := trackID(req)
	if id == "" {
		return nil, domain.NewInputError(req.Capability, InvalidTrackMessage)
	}
	resp, err := p.client.Get(ctx, p.baseURL+"/embed/track/"+id, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, fmt.Errorf("fetch embed: %w", err)
	}

	t, err := parseEmbed(resp.Body)
	if err != nil {
		return nil, err
	}
	t.ID = id
	t.URL = TrackURL(id)
	return trackResult(t), nil
}

func parseEmbed(body []byte) (domain.Track, error) {
	var t domain.Track
	if m := embedTitlePattern.FindSubmatch(body); m != nil {
		t.Title = unquote(m[1])
	}
	if t.Title == "" {
		return t, fmt.Errorf("%w: embed page has no track title", domain.ErrMalformedResponse)
	}

	if m := embedArtistsPattern.FindSubmatch(body); m != nil {
		var names []string
		for _, n := range embedNamePattern.FindAllSubmatch(m[1], -1) {
			if name := unquote(n[1]); name != "" {
				names = append(names, name)
			}
		}
		t.Artist = strings.Join(names, ", ")
	}
	if m := embedCoverPattern.FindSubmatch(body); m != nil {
		t.Artwork = unquote(m[1])
	}
	if m := embedDurationPattern.FindSubmatch(body); m != nil {
		t.DurationMs, _ = strconv.ParseInt(string(m[1]), 10, 64)
	}
	return t, nil
}

// unquote decodes a quoted JSON string, returning "" when it is invalid.
func unquote(quoted []byte) string {
	var s string
	if json.Unmarshal(quoted, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

var _ resolver.Provider = (*Embed)(nil)
