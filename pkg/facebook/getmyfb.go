package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const defaultGetMyFBBaseURL = "https://getmyfb.com"

// GetMyFB scrapes the result page of getmyfb.
type GetMyFB struct {
	client  *httpclient.Client
	baseURL string
}

// NewGetMyFB creates a new getmyfb provider.
func NewGetMyFB(client *httpclient.Client, baseURL string) *GetMyFB {
	if baseURL == "" {
		baseURL = defaultGetMyFBBaseURL
	}
	return &GetMyFB{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *GetMyFB) Name() string { return "getmyfb" }

func (p *GetMyFB) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	doc, err := p.client.Document(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/process",
		Form:   url.Values{"id": {req.Input}, "locale": {"en"}},
		Header: map[string]string{"Origin": p.baseURL, "Referer": p.baseURL + "/"},
	})
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	links := downloadLinks(doc, p.baseURL)
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: no download links", domain.ErrNoMedia)
	}
	var hd string
	if len(links) > 1 {
		hd = links[1]
	}
	title := httpclient.TextOf(doc.Selection, ".results-list-item-title, .results-item-text")
	return buildResult(title, "", "", links[0], hd), nil
}

// downloadLinks returns mp4 video links and links marked for download,
// falling back to any Facebook CDN link. Links back to the site itself
// are ignored.
func downloadLinks(doc *goquery.Document, site string) []string {
	var links, fallback []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if !strings.HasPrefix(href, "http") || strings.HasPrefix(href, site) {
			return
		}
		_, download := s.Attr("download")
		switch {
		case strings.Contains(href, "video") && strings.Contains(href, ".mp4"), download:
			links = append(links, href)
		case strings.Contains(href, "fbcdn") || strings.Contains(href, "facebook") || strings.Contains(href, "fb"):
			fallback = append(fallback, href)
		}
	})
	if len(links) > 0 {
		return links
	}
	return fallback
}

var _ resolver.Provider = (*GetMyFB)(nil)
