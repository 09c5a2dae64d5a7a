package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dyatlov/go-opengraph/opengraph"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// playablePattern finds the stream URLs Facebook embeds in page scripts.
var playablePattern = regexp.MustCompile(`"(browser_native_hd_url|playable_url_quality_hd|browser_native_sd_url|playable_url)":("(?:[^"\\]|\\.)+")`)

// OpenGraph reads the public video page itself: og:video tags first, then
// the stream URLs embedded in its scripts.
type OpenGraph struct {
	client *httpclient.Client
	// origin replaces the scheme and host of the requested page, for tests.
	origin string
}

// NewOpenGraph creates a new opengraph provider. An empty origin fetches
// the page as given.
func NewOpenGraph(client *httpclient.Client, origin string) *OpenGraph {
	return &OpenGraph{client: client, origin: strings.TrimRight(origin, "/")}
}

func (p *OpenGraph) Name() string { return "opengraph" }

func (p *OpenGraph) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	target, err := p.pageURL(req.Input)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Get(ctx, target, map[string]string{
		"Accept":         "text/html,application/xhtml+xml",
		"Sec-Fetch-Mode": "navigate",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(resp.Body)); err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", domain.ErrMalformedResponse, err)
	}

	var sd, hd string
	for _, v := range og.Videos {
		link := v.SecureURL
		if link == "" {
			link = v.URL
		}
		if link != "" && sd == "" {
			sd = link
		}
	}

	for _, m := range playablePattern.FindAllSubmatch(resp.Body, -1) {
		var link string
		if json.Unmarshal(m[2], &link) != nil || link == "" {
			continue
		}
		switch string(m[1]) {
		case "browser_native_hd_url", "playable_url_quality_hd":
			if hd == "" {
				hd = link
			}
		default:
			if sd == "" {
				sd = link
			}
		}
	}

	if sd == "" && hd == "" {
		return nil, fmt.Errorf("%w: page has no public video", domain.ErrNoMedia)
	}

	var thumbnail string
	if len(og.Images) > 0 {
		thumbnail = og.Images[0].URL
	}
	title := og.Title
	if title == "" {
		title = og.Description
	}
	return buildResult(title, thumbnail, "", sd, hd), nil
}

func (p *OpenGraph) pageURL(input string) (string, error) {
	if p.origin == "" {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return p.origin + u.RequestURI(), nil
}

var _ resolver.Provider = (*OpenGraph)(nil)
