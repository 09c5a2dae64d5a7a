package tiktok

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const defaultTikwmBaseURL = "https://www.tikwm.com"

// Tikwm resolves videos with the tikwm JSON API.
type Tikwm struct {
	client  *httpclient.Client
	baseURL string
}

// NewTikwm creates a new tikwm provider.
func NewTikwm(client *httpclient.Client, baseURL string) *Tikwm {
	if baseURL == "" {
		baseURL = defaultTikwmBaseURL
	}
	return &Tikwm{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Tikwm) Name() string { return "tikwm" }

type tikwmResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Title  string `json:"title"`
		Cover  string `json:"cover"`
		Play   string `json:"play"`
		HDPlay string `json:"hdplay"`
		WMPlay string `json:"wmplay"`
		Music  string `json:"music"`
		Author struct {
			UniqueID string `json:"unique_id"`
			Nickname string `json:"nickname"`
		} `json:"author"`
	} `json:"data"`
}

func (p *Tikwm) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp tikwmResponse
	err := p.client.JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/api/",
		Form:   url.Values{"url": {req.Input}, "hd": {"1"}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("query api: %w", err)
	}
	if resp.Code != 0 {
		msg := resp.Msg
		if msg == "" {
			msg = fmt.Sprintf("code %d", resp.Code)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderReported, msg)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: missing data", domain.ErrMalformedResponse)
	}

	d := resp.Data
	noWatermark := p.absolute(d.HDPlay)
	if noWatermark == "" {
		noWatermark = p.absolute(d.Play)
	}
	if noWatermark == "" && d.WMPlay == "" {
		return nil, fmt.Errorf("%w: no play urls", domain.ErrNoMedia)
	}

	author := d.Author.UniqueID
	if author == "" {
		author = d.Author.Nickname
	}
	return buildResult(d.Title, author, p.absolute(d.Cover), noWatermark, p.absolute(d.WMPlay), p.absolute(d.Music)), nil
}

// absolute resolves the site-relative paths tikwm sometimes returns.
func (p *Tikwm) absolute(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return p.baseURL + "/" + strings.TrimLeft(u, "/")
}

var _ resolver.Provider = (*Tikwm)(nil)
