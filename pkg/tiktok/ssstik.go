package tiktok

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/pkg/credential"
)

const (
	defaultSsstikBaseURL = "https://ssstik.io"
	defaultSessionTTL    = 10 * time.Minute
)

var (
	ttPattern     = regexp.MustCompile(`s_tt\s*=\s*'([^']+)'`)
	furlPattern   = regexp.MustCompile(`s_furl\s*=\s*'([^']+)'`)
	authorPattern = regexp.MustCompile(`@([A-Za-z0-9_.]+)`)
)

// SsstikConfig configures the ssstik provider.
type SsstikConfig struct {
	BaseURL    string
	SessionTTL time.Duration
}

// Ssstik submits the video to ssstik's HTMX form. The form needs a session
// token scraped from the landing page; the token is cached and refreshed
// once when the form call is rejected.
type Ssstik struct {
	client  *httpclient.Client
	baseURL string
	session *credential.Cache
	logger  *slog.Logger
}

// NewSsstik creates a new ssstik provider.
func NewSsstik(client *httpclient.Client, cfg SsstikConfig, logger *slog.Logger) *Ssstik {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSsstikBaseURL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Ssstik{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger.With("provider", "ssstik"),
	}
	p.session = credential.NewCache(p.handshake, cfg.SessionTTL)
	return p
}

func (p *Ssstik) Name() string { return "ssstik" }

// Session exposes the token cache, for tests.
func (p *Ssstik) Session() *credential.Cache { return p.session }

// handshake scrapes the session token and form path from the landing page.
// Both are packed into one cached credential.
func (p *Ssstik) handshake(ctx context.Context) (string, time.Duration, error) {
	resp, err := p.client.Get(ctx, p.baseURL+"/en-1", nil)
	if err != nil {
		return "", 0, fmt.Errorf("fetch landing page: %w", err)
	}
	html := resp.Text()

	m := ttPattern.FindStringSubmatch(html)
	if m == nil {
		return "", 0, fmt.Errorf("%w: session token not found on landing page", domain.ErrMalformedResponse)
	}
	furl := "abc"
	if f := furlPattern.FindStringSubmatch(html); f != nil {
		furl = f[1]
	}

	p.logger.Debug("session token refreshed", "form_path", furl)
	return url.Values{"tt": {m[1]}, "furl": {furl}}.Encode(), 0, nil
}

func (p *Ssstik) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	return credential.Do(ctx, p.session, func(ctx context.Context, token string) (*domain.Result, error) {
		return p.submit(ctx, req.Input, token)
	})
}

func (p *Ssstik) submit(ctx context.Context, videoURL, token string) (*domain.Result, error) {
	session, err := url.ParseQuery(token)
	if err != nil {
		return nil, fmt.Errorf("%w: bad cached session: %v", domain.ErrCredential, err)
	}

	landing := p.baseURL + "/en-1"
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/" + session.Get("furl"),
		Query:  url.Values{"url": {"dl"}},
		Form:   url.Values{"id": {videoURL}, "locale": {"en"}, "tt": {session.Get("tt")}},
		Header: map[string]string{
			"Origin":         p.baseURL,
			"Referer":        landing,
			"HX-Request":     "true",
			"HX-Target":      "target",
			"HX-Current-URL": landing,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("submit form: %w", err)
	}

	html := strings.TrimSpace(resp.Text())
	if html == "" {
		// A stale session token is answered with an empty fragment.
		return nil, fmt.Errorf("%w: empty form response", domain.ErrUnauthorized)
	}
	lower := strings.ToLower(html)
	if strings.Contains(lower, "error") && strings.Contains(lower, "invalid") {
		return nil, fmt.Errorf("%w: upstream rejected the link", domain.ErrProviderReported)
	}

	doc, err := httpclient.ParseHTML(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseSsstik(doc)
}

func parseSsstik(doc *goquery.Document) (*domain.Result, error) {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); strings.HasPrefix(href, "http") {
			links = append(links, href)
		}
	})

	var video, noWatermark, audio string
	for _, l := range links {
		switch {
		case strings.Contains(l, "music") || strings.Contains(l, "mp3") || strings.Contains(l, "audio"):
			if audio == "" {
				audio = l
			}
		case strings.Contains(l, "tikcdn") && strings.Contains(l, "/m/"):
			if noWatermark == "" {
				noWatermark = l
			}
		case strings.Contains(l, "tikcdn"):
			if video == "" {
				video = l
			}
		}
	}
	if video == "" && noWatermark == "" {
		if len(links) == 0 {
			return nil, fmt.Errorf("%w: no download links, the video may be private or unavailable", domain.ErrNoMedia)
		}
		video = links[0]
	}

	title := httpclient.TextOf(doc.Selection, ".maintext")
	var author string
	if m := authorPattern.FindStringSubmatch(doc.Find("h2").First().Text()); m != nil {
		author = m[1]
	}
	cover := httpclient.AttrOf(doc.Selection, "img.result_author", "src")

	return buildResult(title, author, cover, noWatermark, video, audio), nil
}

var _ resolver.Provider = (*Ssstik)(nil)
