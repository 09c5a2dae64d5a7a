package youtube

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const defaultVeviozBaseURL = "https://api.vevioz.com"

var mediaLinkPattern = regexp.MustCompile(`(?i)^https?://[^"]+\.(mp3|mp4|m4a)`)

// Vevioz scrapes the download button widget of vevioz for a direct file
// link.
type Vevioz struct {
	client  *httpclient.Client
	baseURL string
}

// NewVevioz creates a new vevioz provider. An empty baseURL uses the
// public endpoint.
func NewVevioz(client *httpclient.Client, baseURL string) *Vevioz {
	if baseURL == "" {
		baseURL = defaultVeviozBaseURL
	}
	return &Vevioz{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Vevioz) Name() string { return "vevioz" }

func (p *Vevioz) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	id := videoID(req)
	if id == "" {
		return nil, fmt.Errorf("%w: no video id", domain.ErrInvalidInput)
	}

	doc, err := p.client.Document(ctx, httpclient.Request{
		URL:    fmt.Sprintf("%s/api/button/%s/%s", p.baseURL, req.Format, id),
		Header: map[string]string{"Referer": "https://www.y2mate.com/"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch button page: %w", err)
	}

	link := findDownloadLink(doc)
	if link == "" {
		return nil, fmt.Errorf("%w: no download link on button page", domain.ErrNoMedia)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	return &domain.Result{
		Success:     true,
		Title:       title,
		DownloadURL: link,
		Media:       []domain.Media{{Type: mediaType(req.Format), URL: link, Format: req.Format}},
		Thumbnail:   ThumbnailURL(id),
		Format:      req.Format,
	}, nil
}

// findDownloadLink prefers links to media files and falls back to any
// absolute link that looks like a download endpoint.
func findDownloadLink(doc *goquery.Document) string {
	var direct, fallback string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		switch {
		case mediaLinkPattern.MatchString(href):
			direct = href
			return false
		case fallback == "" && strings.HasPrefix(href, "http") && strings.Contains(href, "dl"):
			fallback = href
		}
		return true
	})
	if direct != "" {
		return direct
	}
	return fallback
}

var _ resolver.Provider = (*Vevioz)(nil)
