package handler

import (
	"log/slog"
	"net/http"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// Messages for missing query parameters.
const (
	MissingQueryMessage   = "Query parameter 'q' is required"
	MissingYouTubeMessage = "Query parameter 'url' is required. Provide a YouTube video URL."
	MissingURLMessage     = "Query parameter 'url' is required."
)

// MediaHandler serves the video platform routes: YouTube search and
// conversion, TikTok, Instagram and Facebook.
type MediaHandler struct {
	engine resolver.Resolver
	logger *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(engine resolver.Resolver, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		engine: engine,
		logger: logger.With("component", "media-handler"),
	}
}

// Search handles GET /api/search?q= and returns the list of videos.
func (h *MediaHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := queryParam(r, "q")
	if q == "" {
		writeError(w, http.StatusBadRequest, MissingQueryMessage)
		return
	}

	res, err := h.engine.Resolve(r.Context(), resolver.Request{
		Capability: domain.CapYouTubeSearch,
		Input:      q,
	})
	if err != nil {
		writeResolveError(w, r, h.logger, domain.CapYouTubeSearch, err)
		return
	}

	items := res.Tracks
	if items == nil {
		items = []domain.Track{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Convert returns a handler for GET /download/<alias>?url= converting to
// format.
func (h *MediaHandler) Convert(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link := queryParam(r, "url")
		if link == "" {
			writeError(w, http.StatusBadRequest, MissingYouTubeMessage)
			return
		}
		resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{
			Capability: domain.CapYouTubeConvert,
			Input:      link,
			Format:     format,
		})
	}
}

// Fetch returns a handler for GET /download/<platform>?url= resolving c.
func (h *MediaHandler) Fetch(c domain.Capability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link := queryParam(r, "url")
		if link == "" {
			writeError(w, http.StatusBadRequest, MissingURLMessage)
			return
		}
		resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{
			Capability: c,
			Input:      link,
		})
	}
}
