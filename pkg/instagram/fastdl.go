package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const (
	defaultFastDLBaseURL     = "https://api-wh.fastdl.app"
	defaultFastDLJSONBaseURL = "https://fastdl.app"
	fastDLSite               = "https://fastdl.app"
)

var sourceUserPattern = regexp.MustCompile(`@?([A-Za-z0-9_.]+)`)

type fastDLItem struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

type fastDLResponse struct {
	Success  *bool             `json:"success"`
	Message  string            `json:"message"`
	Info     json.RawMessage   `json:"info"`
	URL      string            `json:"url"`
	URLList  []json.RawMessage `json:"url_list"`
	Title    string            `json:"title"`
	Username string            `json:"username"`
	Meta     struct {
		Title     string `json:"title"`
		SourceURL string `json:"source_url"`
	} `json:"meta"`
}

func (r *fastDLResponse) failed() bool {
	return r.Success != nil && !*r.Success
}

// infoError reports whether info is a string describing an error.
func (r *fastDLResponse) infoError() bool {
	var s string
	if json.Unmarshal(r.Info, &s) != nil {
		return false
	}
	return strings.Contains(s, "error") || strings.Contains(s, "invalid_request")
}

// toResult accepts url_list entries that are either plain links or
// {type, url, thumbnail} objects, falling back to the single url field.
func (r *fastDLResponse) toResult() (*domain.Result, error) {
	var media []domain.Media
	for _, raw := range r.URLList {
		var link string
		if json.Unmarshal(raw, &link) == nil {
			if link != "" {
				media = append(media, domain.Media{Type: guessType(link), URL: link})
			}
			continue
		}
		var item fastDLItem
		if json.Unmarshal(raw, &item) != nil || item.URL == "" {
			continue
		}
		t := domain.MediaType(item.Type)
		if !t.Valid() {
			t = guessType(item.URL)
		}
		media = append(media, domain.Media{Type: t, URL: item.URL, Thumbnail: item.Thumbnail})
	}
	if len(media) == 0 && r.URL != "" {
		media = append(media, domain.Media{Type: guessType(r.URL), URL: r.URL})
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("%w: no downloadable media", domain.ErrNoMedia)
	}

	author := r.Username
	if m := sourceUserPattern.FindStringSubmatch(r.Meta.SourceURL); m != nil {
		author = m[1]
	}
	return newResult(firstNonEmpty(r.Meta.Title, r.Title), author, media), nil
}

func (r *fastDLResponse) reported(fallback string) error {
	msg := r.Message
	if msg == "" {
		msg = fallback
	}
	return fmt.Errorf("%w: %s", domain.ErrProviderReported, msg)
}

// FastDL posts the link as a form to the fastdl conversion worker.
type FastDL struct {
	client  *httpclient.Client
	baseURL string
}

// NewFastDL creates a new fastdl provider.
func NewFastDL(client *httpclient.Client, baseURL string) *FastDL {
	if baseURL == "" {
		baseURL = defaultFastDLBaseURL
	}
	return &FastDL{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *FastDL) Name() string { return "fastdl" }

func (p *FastDL) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp fastDLResponse
	err := p.client.JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/api/convert",
		Form:   url.Values{"sf_url": {req.Input}},
		Header: fastDLHeaders(),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	if resp.failed() {
		return nil, resp.reported("conversion failed")
	}
	if resp.infoError() {
		return nil, fmt.Errorf("%w: upstream returned an error", domain.ErrProviderReported)
	}
	return resp.toResult()
}

// FastDLJSON is the JSON flavour of the fastdl conversion API.
type FastDLJSON struct {
	client  *httpclient.Client
	baseURL string
}

// NewFastDLJSON creates a new fastdl JSON provider.
func NewFastDLJSON(client *httpclient.Client, baseURL string) *FastDLJSON {
	if baseURL == "" {
		baseURL = defaultFastDLJSONBaseURL
	}
	return &FastDLJSON{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *FastDLJSON) Name() string { return "fastdl-json" }

func (p *FastDLJSON) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp fastDLResponse
	err := p.client.JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/api/convert",
		JSON:   map[string]string{"url": req.Input},
		Header: fastDLHeaders(),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	if resp.failed() || (len(resp.URLList) == 0 && resp.URL == "") {
		return nil, resp.reported("conversion failed")
	}
	return resp.toResult()
}

func fastDLHeaders() map[string]string {
	return map[string]string{
		"Origin":  fastDLSite,
		"Referer": fastDLSite + "/en2",
		"Accept":  "application/json",
	}
}

var (
	_ resolver.Provider = (*FastDL)(nil)
	_ resolver.Provider = (*FastDLJSON)(nil)
)
