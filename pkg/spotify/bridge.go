package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/pkg/textnorm"
	"github.com/iconidentify/mediagrab/pkg/youtube"
)

// YouTubeBridge downloads a Spotify track by finding it on YouTube. Track
// metadata comes from spotify.resolveTrack or spotify.search, the video
// from youtube.search and the audio from youtube.convert, all through the
// engine so each step keeps its own fallbacks.
type YouTubeBridge struct {
	engine resolver.Resolver
	logger *slog.Logger
}

// NewYouTubeBridge creates a new Spotify to YouTube provider.
func NewYouTubeBridge(engine resolver.Resolver, logger *slog.Logger) *YouTubeBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &YouTubeBridge{engine: engine, logger: logger.With("provider", "spotify-youtube")}
}

func (p *YouTubeBridge) Name() string { return "spotify-youtube" }

func (p *YouTubeBridge) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	track, err := p.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	artist := primaryArtist(track.Artist)
	p.logger.Debug("track found", "title", track.Title, "artist", artist)

	search, err := p.engine.Resolve(ctx, resolver.Request{
		Capability: domain.CapYouTubeSearch,
		Input:      track.Title + " " + artist,
	})
	if err != nil {
		return nil, fmt.Errorf("find %q on youtube: %w", track.Title, err)
	}
	video, ok := bestMatch(search.Tracks, track.Title, artist)
	if !ok {
		return nil, fmt.Errorf("%w: no youtube video for %q", domain.ErrNoMedia, track.Title)
	}

	audio, err := convert(ctx, p.engine, video)
	if err != nil {
		return nil, fmt.Errorf("download temporarily unavailable for %q: %w", track.Title, err)
	}

	return &domain.Result{
		Success:     true,
		Title:       track.Title,
		Author:      track.Artist,
		DownloadURL: audio,
		Media:       []domain.Media{{Type: domain.MediaTypeAudio, URL: audio, Format: "mp3", Thumbnail: track.Artwork}},
		Thumbnail:   track.Artwork,
		Duration:    float64(track.DurationMs) / 1000,
		Format:      "mp3",
		Tracks:      []domain.Track{track},
	}, nil
}

// lookup finds the track: by ID for track links, otherwise (or when the
// lookup fails) the first search hit.
func (p *YouTubeBridge) lookup(ctx context.Context, req resolver.Request) (domain.Track, error) {
	if id := trackID(req); id != "" {
		res, err := p.engine.Resolve(ctx, resolver.Request{
			Capability: domain.CapSpotifyResolveTrack,
			Input:      TrackURL(id),
		})
		if err == nil && len(res.Tracks) > 0 {
			return res.Tracks[0], nil
		}
		if ctx.Err() != nil {
			return domain.Track{}, ctx.Err()
		}
		p.logger.Debug("track lookup failed, searching", "id", id, "error", err)
	}

	res, err := p.engine.Resolve(ctx, resolver.Request{
		Capability: domain.CapSpotifySearch,
		Input:      req.Input,
	})
	if err != nil {
		return domain.Track{}, fmt.Errorf("find track: %w", err)
	}
	if len(res.Tracks) == 0 {
		return domain.Track{}, fmt.Errorf("%w: %s", domain.ErrNoMedia, NoResultsMessage)
	}
	return res.Tracks[0], nil
}

// YouTubeDirect treats the input as a YouTube query and downloads the
// first hit, reading artist and title from a "Artist - Title" video title.
type YouTubeDirect struct {
	engine resolver.Resolver
}

// NewYouTubeDirect creates a new direct YouTube provider.
func NewYouTubeDirect(engine resolver.Resolver) *YouTubeDirect {
	return &YouTubeDirect{engine: engine}
}

func (p *YouTubeDirect) Name() string { return "youtube-direct" }

func (p *YouTubeDirect) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	search, err := p.engine.Resolve(ctx, resolver.Request{
		Capability: domain.CapYouTubeSearch,
		Input:      req.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("search youtube: %w", err)
	}
	if len(search.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no youtube results for %q", domain.ErrNoMedia, req.Input)
	}
	video := search.Tracks[0]

	audio, err := convert(ctx, p.engine, video)
	if err != nil {
		return nil, err
	}

	artist, title := splitVideoTitle(video.Title)
	if title == "" {
		title = req.Input
	}
	return &domain.Result{
		Success:     true,
		Title:       title,
		Author:      artist,
		DownloadURL: audio,
		Media:       []domain.Media{{Type: domain.MediaTypeAudio, URL: audio, Format: "mp3", Thumbnail: video.Artwork}},
		Thumbnail:   video.Artwork,
		Duration:    float64(video.DurationMs) / 1000,
		Format:      "mp3",
	}, nil
}

func convert(ctx context.Context, engine resolver.Resolver, video domain.Track) (string, error) {
	link := video.URL
	if link == "" {
		link = youtube.WatchURL(video.ID)
	}
	res, err := engine.Resolve(ctx, resolver.Request{
		Capability: domain.CapYouTubeConvert,
		Input:      link,
		Format:     "mp3",
	})
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", link, err)
	}
	if res.DownloadURL != "" {
		return res.DownloadURL, nil
	}
	if m, ok := res.FirstMedia(domain.MediaTypeAudio); ok {
		return m.URL, nil
	}
	return "", fmt.Errorf("%w: conversion returned no audio", domain.ErrNoMedia)
}

// bestMatch picks the candidate whose cleaned title is closest to
// "artist title". Earlier candidates win ties.
func bestMatch(candidates []domain.Track, title, artist string) (domain.Track, bool) {
	want := textnorm.CleanTitle(artist + " " + title)
	best, bestScore := -1, -1.0
	for i, c := range candidates {
		if c.ID == "" && c.URL == "" {
			continue
		}
		score := textnorm.Similarity(textnorm.CleanTitle(c.Title), want)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return domain.Track{}, false
	}
	return candidates[best], true
}

func primaryArtist(artists string) string {
	first, _, _ := strings.Cut(artists, ",")
	return strings.TrimSpace(first)
}

// splitVideoTitle splits "Artist - Title" video titles. Titles without a
// separator have no artist.
func splitVideoTitle(s string) (artist, title string) {
	parts := strings.Split(s, " - ")
	if len(parts) < 2 {
		return "", strings.TrimSpace(s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(strings.Join(parts[1:], " - "))
}

var (
	_ resolver.Provider = (*YouTubeBridge)(nil)
	_ resolver.Provider = (*YouTubeDirect)(nil)
)
