package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/mediagrab/internal/api/handler"
	mw "github.com/iconidentify/mediagrab/internal/api/middleware"
	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/pkg/ai"
)

// audioAliases are the legacy YouTube MP3 routes, all served the same way.
var audioAliases = []string{"audio", "ytmp3", "dlmp3", "mp3", "yta", "yta2", "yta3"}

// Endpoints lists the public routes for the index page.
var Endpoints = []handler.Endpoint{
	{Method: http.MethodGet, Path: "/api/search?q=", Description: "Search YouTube videos"},
	{Method: http.MethodGet, Path: "/download/{audio|ytmp3|dlmp3|mp3|yta|yta2|yta3}?url=", Description: "Convert a YouTube video to MP3"},
	{Method: http.MethodGet, Path: "/download/mp4?url=", Description: "Convert a YouTube video to MP4"},
	{Method: http.MethodGet, Path: "/download/tiktok?url=", Description: "TikTok video without watermark"},
	{Method: http.MethodGet, Path: "/download/instagram?url=", Description: "Instagram post, reel or story media"},
	{Method: http.MethodGet, Path: "/download/facebook?url=", Description: "Facebook video in HD and SD"},
	{Method: http.MethodGet, Path: "/api/spotify/search?q=", Description: "Search Spotify tracks"},
	{Method: http.MethodGet, Path: "/api/spotify/track?url=", Description: "Spotify track metadata"},
	{Method: http.MethodGet, Path: "/download/spotify?q=", Description: "Download a Spotify track or song name as MP3"},
	{Method: http.MethodGet, Path: "/api/shazam/search?q=", Description: "Search the Shazam catalogue"},
	{Method: http.MethodGet, Path: "/api/shazam/track/{trackID}", Description: "Shazam track details"},
	{Method: http.MethodPost, Path: "/api/shazam/recognize", Description: "Recognize raw 16 kHz mono s16le audio"},
	{Method: http.MethodPost, Path: "/api/ai/{persona}", Description: "Chat with an AI persona: " + strings.Join(ai.Personas(), ", ")},
	{Method: http.MethodPost, Path: "/api/ai/image/dall-e", Description: "Generate an image from a prompt"},
	{Method: http.MethodGet, Path: "/stream?url=&format=", Description: "Proxy (and optionally transcode) a resolved media URL"},
	{Method: http.MethodHead, Path: "/stream?url=", Description: "Check that a media URL is reachable"},
	{Method: http.MethodGet, Path: "/api/v1/providers", Description: "Provider health per capability"},
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	mediaHandler *handler.MediaHandler,
	musicHandler *handler.MusicHandler,
	aiHandler *handler.AIHandler,
	streamHandler *handler.StreamHandler,
	healthHandler *handler.HealthHandler,
	indexHandler *handler.IndexHandler,
	metrics http.Handler,
	requestTimeout time.Duration,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS)

	// Probes and diagnostics
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", metrics)
	r.Get("/", indexHandler.Index)

	// Byte streaming is bounded by the server write timeout only.
	r.Get("/stream", streamHandler.Stream)
	r.Head("/stream", streamHandler.Probe)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/api/v1/providers", healthHandler.Providers)
		r.Get("/api/v1/stats", healthHandler.Stats)

		// YouTube
		r.Get("/api/search", mediaHandler.Search)
		for _, alias := range audioAliases {
			r.Get("/download/"+alias, mediaHandler.Convert("mp3"))
		}
		r.Get("/download/mp4", mediaHandler.Convert("mp4"))

		// Social video
		r.Get("/download/tiktok", mediaHandler.Fetch(domain.CapTikTokFetch))
		r.Get("/download/instagram", mediaHandler.Fetch(domain.CapInstagramFetch))
		r.Get("/download/facebook", mediaHandler.Fetch(domain.CapFacebookFetch))

		// Music
		r.Get("/api/spotify/search", musicHandler.SpotifySearch)
		r.Get("/api/spotify/track", musicHandler.SpotifyTrack)
		r.Get("/download/spotify", musicHandler.SpotifyDownload)
		r.Get("/api/shazam/search", musicHandler.ShazamSearch)
		r.Get("/api/shazam/track/{trackID}", musicHandler.ShazamTrack)
		r.Post("/api/shazam/recognize", musicHandler.ShazamRecognize)

		// AI
		r.Post("/api/ai/image/dall-e", aiHandler.Image)
		r.Post("/api/ai/{persona}", aiHandler.Chat)
	})

	return r
}
