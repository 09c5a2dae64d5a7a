// Package tiktok resolves TikTok videos to watermark-free downloads.
package tiktok

import (
	"net/url"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// InvalidURLMessage is returned for input that is not a TikTok link.
const InvalidURLMessage = "Invalid TikTok URL. Please provide a valid TikTok video link."

var tiktokHosts = map[string]bool{
	"tiktok.com":    true,
	"m.tiktok.com":  true,
	"vm.tiktok.com": true,
	"vt.tiktok.com": true,
}

// ValidURL reports whether input is a TikTok video or short link.
func ValidURL(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !tiktokHosts[host] {
		return false
	}
	// Short links carry only a code; full links need a video path.
	path := strings.Trim(u.Path, "/")
	if host == "vm.tiktok.com" || host == "vt.tiktok.com" {
		return path != ""
	}
	return strings.Contains(path, "/video/") || strings.HasPrefix(path, "t/") || strings.HasPrefix(path, "v/")
}

// ValidateURL rejects input that is not a TikTok link and normalises the
// input to an absolute https URL.
func ValidateURL(req *resolver.Request) error {
	if !ValidURL(req.Input) {
		return domain.NewInputError(req.Capability, InvalidURLMessage)
	}
	s := strings.TrimSpace(req.Input)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	req.Input = s
	return nil
}

// buildResult shapes the links a backend found. The no-watermark video is
// the primary download.
func buildResult(title, author, cover, noWatermark, watermark, audio string) *domain.Result {
	if noWatermark == "" {
		noWatermark = watermark
	}
	if title == "" {
		title = "TikTok Video"
	}

	res := &domain.Result{
		Success:     true,
		Title:       title,
		Author:      author,
		DownloadURL: noWatermark,
		Thumbnail:   cover,
		Format:      "mp4",
	}
	if noWatermark != "" {
		res.Media = append(res.Media, domain.Media{Type: domain.MediaTypeVideo, URL: noWatermark, Quality: "no-watermark", Thumbnail: cover, Format: "mp4"})
	}
	if watermark != "" && watermark != noWatermark {
		res.Media = append(res.Media, domain.Media{Type: domain.MediaTypeVideo, URL: watermark, Quality: "watermark", Thumbnail: cover, Format: "mp4"})
	}
	if audio != "" {
		res.Media = append(res.Media, domain.Media{Type: domain.MediaTypeAudio, URL: audio, Format: "mp3"})
	}
	return res
}
