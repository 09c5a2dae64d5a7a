package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/downloader"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const defaultYtdownBaseURL = "https://app.ytdown.to"

// YtdownConfig configures the ytdown provider.
type YtdownConfig struct {
	BaseURL string
	Poll    downloader.PollConfig
	// Parallel caps how many media items are polled at once.
	Parallel int
}

// Ytdown submits a video to the ytdown.to proxy and polls each returned
// media item until its converted file is ready.
type Ytdown struct {
	client   *httpclient.Client
	baseURL  string
	poll     downloader.PollConfig
	parallel int
	logger   *slog.Logger
}

// NewYtdown creates a new ytdown provider.
func NewYtdown(client *httpclient.Client, cfg YtdownConfig, logger *slog.Logger) *Ytdown {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYtdownBaseURL
	}
	if cfg.Poll.MaxAttempts == 0 {
		cfg.Poll = downloader.DefaultPollConfig()
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}
	return &Ytdown{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		poll:     cfg.Poll,
		parallel: cfg.Parallel,
		logger:   logger,
	}
}

func (p *Ytdown) Name() string { return "ytdown" }

type ytdownResponse struct {
	API *struct {
		Status          string       `json:"status"`
		Message         string       `json:"message"`
		ID              string       `json:"id"`
		Title           string       `json:"title"`
		ImagePreviewURL string       `json:"imagePreviewUrl"`
		MediaItems      []ytdownItem `json:"mediaItems"`
		Medias          []ytdownItem `json:"medias"`
	} `json:"api"`
}

type ytdownItem struct {
	Type           string `json:"type"`
	MediaURL       string `json:"mediaUrl"`
	MediaQuality   string `json:"mediaQuality"`
	MediaRes       string `json:"mediaRes"`
	MediaExtension string `json:"mediaExtension"`
	MediaFileSize  string `json:"mediaFileSize"`
	MediaDuration  string `json:"mediaDuration"`
	MediaThumbnail string `json:"mediaThumbnail"`
}

// jobStatus is the JSON a processing URL answers with.
type jobStatus struct {
	Status      string          `json:"status"`
	Percent     json.RawMessage `json:"percent"`
	FileURL     string          `json:"fileUrl"`
	ViewURL     string          `json:"viewUrl"`
	URL         string          `json:"url"`
	DownloadURL string          `json:"downloadUrl"`
}

func (p *Ytdown) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var resp ytdownResponse
	err := p.client.JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/proxy.php",
		Form:   url.Values{"url": {req.Input}},
		Header: map[string]string{
			"Origin":  p.baseURL,
			"Referer": p.baseURL + "/en2/",
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	api := resp.API
	if api == nil {
		return nil, fmt.Errorf("%w: missing api object", domain.ErrMalformedResponse)
	}
	if strings.EqualFold(api.Status, "error") {
		msg := api.Message
		if msg == "" {
			msg = "Failed to process YouTube URL."
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderReported, msg)
	}

	items := api.MediaItems
	if len(items) == 0 {
		items = api.Medias
	}

	media, err := p.resolveItems(ctx, items)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("%w: none of %d media items resolved", domain.ErrNoMedia, len(items))
	}

	res := &domain.Result{
		Success:   true,
		Title:     api.Title,
		Thumbnail: api.ImagePreviewURL,
		Media:     media,
		Format:    req.Format,
	}
	if res.Title == "" {
		res.Title = "YouTube Video"
	}
	if len(items) > 0 {
		if res.Thumbnail == "" {
			res.Thumbnail = items[0].MediaThumbnail
		}
		res.Duration = parseClock(items[0].MediaDuration)
	}
	if m, ok := res.FirstMedia(mediaType(req.Format)); ok {
		res.DownloadURL = m.URL
	}
	return res, nil
}

// resolveItems polls every item concurrently and keeps the ones that
// produced a final URL, in their original order. An item that fails is
// skipped; cancellation of ctx stops them all.
func (p *Ytdown) resolveItems(ctx context.Context, items []ytdownItem) ([]domain.Media, error) {
	resolved := make([]*domain.Media, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, item := range items {
		if item.MediaURL == "" {
			continue
		}
		i, item := i, item
		g.Go(func() error {
			final, err := p.resolveMedia(gctx, item.MediaURL)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				p.logger.Debug("ytdown media item unresolved",
					"quality", item.MediaQuality,
					"error", err,
				)
				return nil
			}
			resolved[i] = &domain.Media{
				Type:      itemType(item.Type),
				URL:       final,
				Quality:   firstNonEmpty(item.MediaQuality, item.MediaRes),
				Format:    strings.ToLower(item.MediaExtension),
				Thumbnail: item.MediaThumbnail,
				Size:      parseSize(item.MediaFileSize),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	media := make([]domain.Media, 0, len(items))
	for _, m := range resolved {
		if m != nil {
			media = append(media, *m)
		}
	}
	return media, nil
}

// resolveMedia polls a processing URL until it yields a final file URL.
// A non-JSON answer means the processing URL already is the file.
func (p *Ytdown) resolveMedia(ctx context.Context, processingURL string) (string, error) {
	return downloader.Poll(ctx, p.poll, func(ctx context.Context, attempt int) (string, domain.JobState, error) {
		resp, err := p.client.Get(ctx, processingURL, map[string]string{"Accept": "application/json"})
		if err != nil {
			return "", "", err
		}
		if !strings.Contains(resp.Header.Get("Content-Type"), "json") {
			return processingURL, domain.JobStateCompleted, nil
		}

		var st jobStatus
		if err := httpclient.DecodeJSON(resp.Body, &st); err != nil {
			return "", "", err
		}
		final, state := st.state()
		return final, state, nil
	})
}

func (s jobStatus) state() (string, domain.JobState) {
	if strings.EqualFold(s.Status, "error") {
		return "", domain.JobStateFailed
	}
	if s.FileURL != "" && !strings.Contains(s.FileURL, "Waiting") {
		return s.FileURL, domain.JobStateCompleted
	}
	if s.ViewURL != "" && !strings.Contains(s.ViewURL, "Waiting") {
		return s.ViewURL, domain.JobStateCompleted
	}

	status := domain.ParseJobState(s.Status)
	if s.Status != "" && !status.Terminal() {
		return "", domain.JobStateProcessing
	}
	if strings.Contains(string(s.Percent), "Waiting") {
		return "", domain.JobStateProcessing
	}

	if s.URL != "" {
		return s.URL, domain.JobStateCompleted
	}
	if s.DownloadURL != "" {
		return s.DownloadURL, domain.JobStateCompleted
	}
	return "", domain.JobStateFailed
}

func itemType(t string) domain.MediaType {
	switch strings.ToLower(t) {
	case "audio":
		return domain.MediaTypeAudio
	case "image":
		return domain.MediaTypeImage
	}
	return domain.MediaTypeVideo
}

// parseClock converts "hh:mm:ss" or "mm:ss" into seconds.
func parseClock(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var total float64
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// parseSize converts sizes such as "3.4 MB" into bytes. Unknown formats
// yield 0.
func parseSize(s string) int64 {
	fields := strings.Fields(strings.ToUpper(s))
	if len(fields) == 0 {
		return 0
	}
	num, unit := fields[0], ""
	if len(fields) > 1 {
		unit = fields[1]
	} else {
		i := strings.IndexFunc(num, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
		if i > 0 {
			num, unit = num[:i], num[i:]
		}
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "KB", "K":
		n *= 1 << 10
	case "MB", "M":
		n *= 1 << 20
	case "GB", "G":
		n *= 1 << 30
	case "B", "":
	default:
		return 0
	}
	return int64(n)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ resolver.Provider = (*Ytdown)(nil)
