// Package youtube resolves YouTube videos to downloadable audio and video
// through several converter backends, and searches YouTube.
package youtube

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// InvalidURLMessage is returned for input that is not a YouTube video.
const InvalidURLMessage = "Invalid YouTube URL. Please provide a valid YouTube video URL."

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var youtubeHosts = map[string]bool{
	"youtube.com":          true,
	"m.youtube.com":        true,
	"music.youtube.com":    true,
	"gaming.youtube.com":   true,
	"youtube-nocookie.com": true,
}

// ExtractVideoID returns the 11-character video id of a YouTube URL or a
// bare id. Watch, short link, embed, /v/, shorts and live URLs are
// recognised. The second result is false when nothing matches.
func ExtractVideoID(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if videoIDPattern.MatchString(s) {
		return s, true
	}
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch {
	case host == "youtu.be":
		return checkID(segments[0])
	case youtubeHosts[host]:
		if v := u.Query().Get("v"); v != "" {
			return checkID(v)
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "embed", "v", "e", "shorts", "live":
				return checkID(segments[1])
			}
		}
	}
	return "", false
}

func checkID(id string) (string, bool) {
	if videoIDPattern.MatchString(id) {
		return id, true
	}
	return "", false
}

// WatchURL returns the canonical watch URL of id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ThumbnailURL returns the high resolution thumbnail of id.
func ThumbnailURL(id string) string {
	return "https://img.youtube.com/vi/" + id + "/maxresdefault.jpg"
}

// ValidateConvert rejects input without a video id and rewrites the input
// to the canonical watch URL so every backend addresses the same video.
// The id is stored under the "id" option and the format defaults to mp3.
func ValidateConvert(req *resolver.Request) error {
	id, ok := ExtractVideoID(req.Input)
	if !ok {
		return domain.NewInputError(req.Capability, InvalidURLMessage)
	}
	switch f := strings.ToLower(strings.TrimSpace(req.Format)); f {
	case "":
		req.Format = "mp3"
	case "mp3", "mp4":
		req.Format = f
	default:
		return domain.NewInputError(req.Capability, "Unsupported format "+req.Format+". Use mp3 or mp4.")
	}
	req.Input = WatchURL(id)
	req.SetOption("id", id)
	return nil
}

func videoID(req resolver.Request) string {
	if id := req.Option("id"); id != "" {
		return id
	}
	id, _ := ExtractVideoID(req.Input)
	return id
}

func mediaType(format string) domain.MediaType {
	if format == "mp4" {
		return domain.MediaTypeVideo
	}
	return domain.MediaTypeAudio
}
