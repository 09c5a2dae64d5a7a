// Package spotify resolves Spotify tracks with the anonymous web player
// token, falls back to the public embed page and iTunes, and bridges tracks
// to YouTube for downloads.
package spotify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/pkg/textnorm"
)

// Messages returned for rejected input.
const (
	InvalidTrackMessage = "Invalid Spotify track. Provide a track URL, spotify:track: URI or track ID."
	EmptyQueryMessage   = "Provide a Spotify URL or song name."
	NoResultsMessage    = "No results found. Try a different search term."
)

// Kinds of catalogue objects ExtractID recognises.
const (
	KindTrack    = "track"
	KindAlbum    = "album"
	KindPlaylist = "playlist"
)

var (
	idPattern     = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
	localePattern = regexp.MustCompile(`^intl-[a-z]{2}(?:-[a-z]{2})?$`)
)

// ExtractID returns the kind and ID of a Spotify URL
// (open.spotify.com/track/{id}, including intl-xx paths), a spotify:kind:id
// URI or a bare 22 character track ID.
func ExtractID(input string) (kind, id string, ok bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", "", false
	}

	if idPattern.MatchString(s) {
		return KindTrack, s, true
	}

	if strings.HasPrefix(s, "spotify:") {
		parts := strings.Split(s, ":")
		if len(parts) == 3 {
			return checkKind(parts[1], parts[2])
		}
		return "", "", false
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || !strings.EqualFold(u.Hostname(), "open.spotify.com") {
		return "", "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 && localePattern.MatchString(segments[0]) {
		segments = segments[1:]
	}
	if len(segments) > 0 && segments[0] == "embed" {
		segments = segments[1:]
	}
	if len(segments) < 2 {
		return "", "", false
	}
	return checkKind(segments[0], segments[1])
}

func checkKind(kind, id string) (string, string, bool) {
	switch kind {
	case KindTrack, KindAlbum, KindPlaylist:
	default:
		return "", "", false
	}
	if !idPattern.MatchString(id) {
		return "", "", false
	}
	return kind, id, true
}

// TrackURL returns the canonical web URL of a track.
func TrackURL(id string) string {
	return "https://open.spotify.com/track/" + id
}

// ValidateTrack rejects input that does not name a track and rewrites it to
// the canonical track URL. The ID is stored under the "id" option.
func ValidateTrack(req *resolver.Request) error {
	kind, id, ok := ExtractID(req.Input)
	if !ok || kind != KindTrack {
		return domain.NewInputError(req.Capability, InvalidTrackMessage)
	}
	req.Input = TrackURL(id)
	req.SetOption("id", id)
	return nil
}

// ValidateDownload accepts a track link or free text. Track links are
// canonicalised like ValidateTrack; free text is normalised.
func ValidateDownload(req *resolver.Request) error {
	if kind, id, ok := ExtractID(req.Input); ok && kind == KindTrack {
		req.Input = TrackURL(id)
		req.SetOption("id", id)
		return nil
	}
	q := textnorm.Query(req.Input)
	if q == "" {
		return domain.NewInputError(req.Capability, EmptyQueryMessage)
	}
	req.Input = q
	return nil
}

func trackID(req resolver.Request) string {
	if id := req.Option("id"); id != "" {
		return id
	}
	if kind, id, ok := ExtractID(req.Input); ok && kind == KindTrack {
		return id
	}
	return ""
}
