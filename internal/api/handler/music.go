package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const defaultMaxUpload = 10 << 20

// Messages for the music routes.
const (
	MissingTrackMessage = "Query parameter 'url' or 'id' is required."
	MissingSongMessage  = "Query parameter 'q' or 'url' is required."
	EmptyBodyMessage    = "Request body must contain raw audio."
	TooLargeMessage     = "Audio upload is too large."
)

// MusicHandler serves the Spotify and Shazam routes.
type MusicHandler struct {
	engine    resolver.Resolver
	maxUpload int64
	logger    *slog.Logger
}

// NewMusicHandler creates a new music handler. maxUpload caps the
// recognition body; zero uses 10 MiB.
func NewMusicHandler(engine resolver.Resolver, maxUpload int64, logger *slog.Logger) *MusicHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &MusicHandler{
		engine:    engine,
		maxUpload: maxUpload,
		logger:    logger.With("component", "music-handler"),
	}
}

// SpotifySearch handles GET /api/spotify/search?q=.
func (h *MusicHandler) SpotifySearch(w http.ResponseWriter, r *http.Request) {
	h.queryRoute(w, r, domain.CapSpotifySearch)
}

// SpotifyTrack handles GET /api/spotify/track?url= (or ?id=).
func (h *MusicHandler) SpotifyTrack(w http.ResponseWriter, r *http.Request) {
	input := queryParam(r, "url", "id")
	if input == "" {
		writeError(w, http.StatusBadRequest, MissingTrackMessage)
		return
	}
	resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{
		Capability: domain.CapSpotifyResolveTrack,
		Input:      input,
	})
}

// SpotifyDownload handles GET /download/spotify?q= (or ?url=).
func (h *MusicHandler) SpotifyDownload(w http.ResponseWriter, r *http.Request) {
	input := queryParam(r, "q", "url")
	if input == "" {
		writeError(w, http.StatusBadRequest, MissingSongMessage)
		return
	}
	resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{
		Capability: domain.CapSpotifyDownload,
		Input:      input,
	})
}

// ShazamSearch handles GET /api/shazam/search?q=.
func (h *MusicHandler) ShazamSearch(w http.ResponseWriter, r *http.Request) {
	h.queryRoute(w, r, domain.CapShazamSearch)
}

// ShazamTrack handles GET /api/shazam/track/{trackID}.
func (h *MusicHandler) ShazamTrack(w http.ResponseWriter, r *http.Request) {
	resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{
		Capability: domain.CapShazamTrack,
		Input:      chi.URLParam(r, "trackID"),
	})
}

// ShazamRecognize handles POST /api/shazam/recognize. The body is raw
// 16 kHz mono s16le PCM.
func (h *MusicHandler) ShazamRecognize(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxUpload)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, TooLargeMessage)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, EmptyBodyMessage)
		return
	}

	resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{
		Capability: domain.CapShazamRecognize,
		Payload:    payload,
	})
}

func (h *MusicHandler) queryRoute(w http.ResponseWriter, r *http.Request, c domain.Capability) {
	q := queryParam(r, "q")
	if q == "" {
		writeError(w, http.StatusBadRequest, MissingQueryMessage)
		return
	}
	resolveAndWrite(w, r, h.engine, h.logger, resolver.Request{Capability: c, Input: q})
}
