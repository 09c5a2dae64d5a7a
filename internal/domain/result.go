package domain

import (
	"fmt"
	"strings"
)

// MediaType represents the type of a resolved media entry.
type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeImage:
		return true
	}
	return false
}

// Media is one resolvable asset of a result.
type Media struct {
	Type      MediaType `json:"type"`
	URL       string    `json:"url"`
	Quality   string    `json:"quality,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Format    string    `json:"format,omitempty"`
	Size      int64     `json:"size,omitempty"`
}

// Track is a music catalogue entry returned by search and lookup
// capabilities.
type Track struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Artwork     string `json:"artwork,omitempty"`
	URL         string `json:"url,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	DurationMs  int64  `json:"durationMs,omitempty"`
	Channel     string `json:"channel,omitempty"`
}

// Result is the canonical shape every provider produces.
type Result struct {
	Success     bool    `json:"success"`
	Title       string  `json:"title,omitempty"`
	Author      string  `json:"author,omitempty"`
	DownloadURL string  `json:"downloadUrl,omitempty"`
	Media       []Media `json:"media,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Format      string  `json:"format,omitempty"`
	Tracks      []Track `json:"tracks,omitempty"`
	Text        string  `json:"text,omitempty"`
	Model       string  `json:"model,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Failure is the failure object returned to callers for err.
func Failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// HasPayload reports whether the result carries anything a caller can use.
func (r *Result) HasPayload() bool {
	if r.DownloadURL != "" || len(r.Tracks) > 0 || strings.TrimSpace(r.Text) != "" {
		return true
	}
	for _, m := range r.Media {
		if m.URL != "" {
			return true
		}
	}
	return false
}

// Validate checks the minimum shape of a provider result. A result that
// reports failure, or claims success without any usable payload, is an
// error.
func (r *Result) Validate() error {
	if r == nil {
		return ErrEmptyResponse
	}
	if !r.Success {
		msg := strings.TrimSpace(r.Error)
		if msg == "" {
			msg = "provider reported failure"
		}
		return fmt.Errorf("%w: %s", ErrProviderReported, msg)
	}
	for i, m := range r.Media {
		if !m.Type.Valid() {
			return fmt.Errorf("%w: media[%d] has type %q", ErrMalformedResponse, i, m.Type)
		}
		if m.URL == "" {
			return fmt.Errorf("%w: media[%d] has no url", ErrMalformedResponse, i)
		}
	}
	if !r.HasPayload() {
		return fmt.Errorf("%w: no download url, media, tracks or text", ErrMalformedResponse)
	}
	return nil
}

// FirstMedia returns the first media entry of type t.
func (r *Result) FirstMedia(t MediaType) (Media, bool) {
	for _, m := range r.Media {
		if m.Type == t {
			return m, true
		}
	}
	return Media{}, false
}
