package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iconidentify/mediagrab/internal/downloader"
	"github.com/iconidentify/mediagrab/pkg/ffmpeg"
)

// Messages for the stream routes.
const (
	BadStreamURLMessage = "Query parameter 'url' must be an http or https URL."
	NoReachableMessage  = "None of the given URLs is reachable."
	NoTranscoderMessage = "Transcoding is not available on this server."
)

// Transcoder converts a media stream into another container.
type Transcoder interface {
	Transcode(ctx context.Context, src io.Reader, dst io.Writer, format string) error
}

// StreamHandler proxies the bytes of a resolved download URL so clients
// do not have to deal with upstream headers or CDN referer checks.
type StreamHandler struct {
	downloader downloader.Downloader
	transcoder Transcoder
	logger     *slog.Logger
}

// NewStreamHandler creates a new stream handler. transcoder may be nil,
// in which case ?format= is rejected.
func NewStreamHandler(dl downloader.Downloader, transcoder Transcoder, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		downloader: dl,
		transcoder: transcoder,
		logger:     logger.With("component", "stream-handler"),
	}
}

// Stream handles GET /stream?url=&format=. Repeating url lists
// candidates in preference order, such as an HD and an SD rendition; the
// first reachable one is streamed.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	urls, ok := streamURLs(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(queryParam(r, "format"))
	if format != "" {
		if h.transcoder == nil {
			writeError(w, http.StatusServiceUnavailable, NoTranscoderMessage)
			return
		}
		if !ffmpeg.Supported(format) {
			writeError(w, http.StatusBadRequest, "Unsupported format "+format+".")
			return
		}
	}

	link := urls[0]
	if len(urls) > 1 {
		best, err := h.downloader.SelectBestURL(r.Context(), urls)
		if err != nil {
			writeError(w, http.StatusBadGateway, NoReachableMessage)
			return
		}
		link = best
	}

	ctx := r.Context()
	s, err := h.downloader.Open(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client closed request before stream opened", "url", link)
			w.WriteHeader(StatusClientClosedRequest)
			return
		}
		h.logger.Warn("failed to open stream", "url", link, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to open media stream: "+err.Error())
		return
	}

	if format == "" {
		contentType := s.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		if s.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(s.Size, 10))
		}
		w.WriteHeader(http.StatusOK)

		n, err := h.downloader.Copy(ctx, w, s)
		if err != nil {
			h.logger.Info("stream ended early", "url", link, "bytes", n, "error", err)
			return
		}
		h.logger.Debug("stream complete", "url", link, "bytes", n)
		return
	}

	defer s.Body.Close()
	w.Header().Set("Content-Type", ffmpeg.ContentType(format))
	w.WriteHeader(http.StatusOK)
	if err := h.transcoder.Transcode(ctx, s.Body, w, format); err != nil {
		h.logger.Info("transcode ended early", "url", link, "format", format, "error", err)
	}
}

// Probe handles HEAD /stream?url= by checking the upstream without
// fetching the body.
func (h *StreamHandler) Probe(w http.ResponseWriter, r *http.Request) {
	urls, ok := streamURLs(w, r)
	if !ok {
		return
	}
	res, err := h.downloader.Probe(r.Context(), urls[0])
	if err != nil || !res.Accessible {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	if res.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
}

// streamURLs returns every non-blank url parameter, or writes a 400.
func streamURLs(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var urls []string
	for _, raw := range r.URL.Query()["url"] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			writeError(w, http.StatusBadRequest, BadStreamURLMessage)
			return nil, false
		}
		urls = append(urls, raw)
	}
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, MissingURLMessage)
		return nil, false
	}
	return urls, true
}
