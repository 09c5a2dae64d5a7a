package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const (
	defaultFDownloaderBaseURL = "https://v3.fdownloader.net"
	fdownloaderSite           = "https://fdownloader.net"
)

var (
	clockPattern = regexp.MustCompile(`^\d{1,2}:\d{2}(?::\d{2})?$`)
	imagePattern = regexp.MustCompile(`(?i)^https?://\S+\.(?:jpg|jpeg|png)`)
)

// FDownloader queries fdownloader's ajaxSearch endpoint, which wraps a
// rendered HTML table of links in a JSON envelope.
type FDownloader struct {
	client  *httpclient.Client
	baseURL string
}

// NewFDownloader creates a new fdownloader provider.
func NewFDownloader(client *httpclient.Client, baseURL string) *FDownloader {
	if baseURL == "" {
		baseURL = defaultFDownloaderBaseURL
	}
	return &FDownloader{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *FDownloader) Name() string { return "fdownloader" }

func (p *FDownloader) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp struct {
		Status string `json:"status"`
		Data   string `json:"data"`
		Msg    string `json:"mess"`
	}
	err := p.client.JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/api/ajaxSearch",
		Form:   url.Values{"q": {req.Input}, "lang": {"en"}, "country": {"en"}},
		Header: map[string]string{"Origin": fdownloaderSite, "Referer": fdownloaderSite + "/"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if resp.Status != "ok" || resp.Data == "" {
		msg := resp.Msg
		if msg == "" {
			msg = "no data"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderReported, msg)
	}

	doc, err := httpclient.ParseHTML([]byte(resp.Data))
	if err != nil {
		return nil, err
	}
	return parseFDownloader(doc)
}

func parseFDownloader(doc *goquery.Document) (*domain.Result, error) {
	var sd, hd string
	var found []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if !strings.HasPrefix(href, "http") {
			return
		}
		if !strings.Contains(href, "snapcdn.app/download") && !strings.Contains(href, "fbcdn.net") && !strings.Contains(href, ".mp4") {
			return
		}
		found = append(found, href)
		// The quality label lives in the table row, not the link.
		label := href + " " + s.Closest("tr").Text()
		if isHD(label) {
			if hd == "" {
				hd = href
			}
		} else if sd == "" {
			sd = href
		}
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no download links", domain.ErrNoMedia)
	}

	var thumbnail string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src := s.AttrOr("src", ""); imagePattern.MatchString(src) {
			thumbnail = src
			return false
		}
		return true
	})

	var duration string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); clockPattern.MatchString(t) {
			duration = t
			return false
		}
		return true
	})

	return buildResult(httpclient.TextOf(doc.Selection, "h3"), thumbnail, duration, sd, hd), nil
}

var _ resolver.Provider = (*FDownloader)(nil)
