package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const (
	defaultGraphQLBaseURL = "https://www.instagram.com"
	postQueryDocID        = "8845758582119845"
	mobileUserAgent       = "Mozilla/5.0 (Linux; Android 11; SAMSUNG SM-G973U) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/14.2 Chrome/87.0.4280.141 Mobile Safari/537.36"
	maxTitleLength        = 100
)

// GraphQL queries Instagram's public web GraphQL endpoint with the
// anonymous post query.
type GraphQL struct {
	client  *httpclient.Client
	baseURL string
}

// NewGraphQL creates a new GraphQL provider.
func NewGraphQL(client *httpclient.Client, baseURL string) *GraphQL {
	if baseURL == "" {
		baseURL = defaultGraphQLBaseURL
	}
	return &GraphQL{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *GraphQL) Name() string { return "graphql" }

type mediaNode struct {
	IsVideo      bool    `json:"is_video"`
	VideoURL     string  `json:"video_url"`
	DisplayURL   string  `json:"display_url"`
	ThumbnailSrc string  `json:"thumbnail_src"`
	Title        string  `json:"title"`
	Duration     float64 `json:"video_duration"`
	Dimensions   *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions"`
	Owner struct {
		Username string `json:"username"`
	} `json:"owner"`
	Caption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	Children struct {
		Edges []struct {
			Node mediaNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

type graphQLResponse struct {
	Data struct {
		Media *mediaNode `json:"xdt_shortcode_media"`
	} `json:"data"`
}

func (p *GraphQL) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	code := req.Option("shortcode")
	if code == "" {
		var ok bool
		if code, ok = ExtractShortcode(req.Input); !ok {
			return nil, fmt.Errorf("%w: no shortcode", domain.ErrInvalidInput)
		}
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/graphql/query",
		Form:   postQueryForm(code),
		Header: map[string]string{
			"User-Agent":         mobileUserAgent,
			"Accept-Language":    "en-US,en;q=0.5",
			"X-FB-Friendly-Name": "PolarisPostActionLoadPostQueryQuery",
			"X-IG-App-ID":        "1217981644879628",
			"X-FB-LSD":           "AVrqPT0gJDo",
			"X-ASBD-ID":          "359341",
			"Sec-Fetch-Site":     "same-origin",
			"Referer":            p.baseURL + "/p/" + code + "/",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "json") {
		return nil, fmt.Errorf("%w: non-JSON response (%s)", domain.ErrMalformedResponse, ct)
	}

	var out graphQLResponse
	if err := httpclient.DecodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	m := out.Data.Media
	if m == nil {
		return nil, fmt.Errorf("%w: post not found or is private", domain.ErrNoMedia)
	}

	var media []domain.Media
	if item, ok := m.toMedia(true); ok {
		media = append(media, item)
	}
	for _, edge := range m.Children.Edges {
		if item, ok := edge.Node.toMedia(false); ok {
			media = append(media, item)
		}
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("%w: no downloadable media in this post", domain.ErrNoMedia)
	}

	res := newResult(m.title(), m.Owner.Username, media)
	res.Duration = m.Duration
	return res, nil
}

func (m *mediaNode) toMedia(top bool) (domain.Media, bool) {
	switch {
	case m.IsVideo && m.VideoURL != "":
		item := domain.Media{Type: domain.MediaTypeVideo, URL: m.VideoURL, Thumbnail: m.DisplayURL, Format: "mp4"}
		if top {
			item.Thumbnail = firstNonEmpty(m.ThumbnailSrc, m.DisplayURL)
			if m.Dimensions != nil {
				item.Quality = fmt.Sprintf("%dx%d", m.Dimensions.Width, m.Dimensions.Height)
			}
		}
		return item, true
	case m.DisplayURL != "":
		item := domain.Media{Type: domain.MediaTypeImage, URL: m.DisplayURL}
		if top {
			item.Thumbnail = m.ThumbnailSrc
		}
		return item, true
	}
	return domain.Media{}, false
}

func (m *mediaNode) title() string {
	if m.Title != "" {
		return m.Title
	}
	if len(m.Caption.Edges) > 0 {
		text := []rune(m.Caption.Edges[0].Node.Text)
		if len(text) > maxTitleLength {
			text = text[:maxTitleLength]
		}
		return string(text)
	}
	return ""
}

func postQueryForm(shortcode string) url.Values {
	variables, _ := json.Marshal(map[string]any{
		"shortcode":               shortcode,
		"fetch_tagged_user_count": nil,
		"hoisted_comment_id":      nil,
		"hoisted_reply_id":        nil,
	})
	return url.Values{
		"av":                       {"0"},
		"__d":                      {"www"},
		"__user":                   {"0"},
		"__a":                      {"1"},
		"__req":                    {"b"},
		"__comet_req":              {"7"},
		"lsd":                      {"AVrqPT0gJDo"},
		"jazoest":                  {"2946"},
		"__crn":                    {"comet.igweb.PolarisPostRoute"},
		"fb_api_caller_class":      {"RelayModern"},
		"fb_api_req_friendly_name": {"PolarisPostActionLoadPostQueryQuery"},
		"variables":                {string(variables)},
		"server_timestamps":        {"true"},
		"doc_id":                   {postQueryDocID},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ resolver.Provider = (*GraphQL)(nil)
