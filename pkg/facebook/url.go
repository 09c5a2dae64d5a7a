// Package facebook resolves public Facebook videos to SD and HD downloads.
package facebook

import (
	"net/url"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// InvalidURLMessage is returned for input that is not a Facebook link.
const InvalidURLMessage = "Invalid Facebook URL. Please provide a valid Facebook video link."

const defaultTitle = "Facebook Video"

var facebookHosts = map[string]bool{
	"facebook.com":        true,
	"m.facebook.com":      true,
	"web.facebook.com":    true,
	"mbasic.facebook.com": true,
	"fb.watch":            true,
	"fb.com":              true,
}

// ValidURL reports whether input is a Facebook link with a path.
func ValidURL(input string) bool {
	u, ok := parse(input)
	if !ok {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return facebookHosts[host] && strings.Trim(u.Path, "/") != ""
}

// ValidateURL rejects input that is not a Facebook link and normalises the
// input to an absolute https URL.
func ValidateURL(req *resolver.Request) error {
	if !ValidURL(req.Input) {
		return domain.NewInputError(req.Capability, InvalidURLMessage)
	}
	u, _ := parse(req.Input)
	req.Input = u.String()
	return nil
}

func parse(input string) (*url.URL, bool) {
	s := strings.TrimSpace(input)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return nil, false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	return u, true
}

// buildResult shapes SD and HD links. The HD link is the primary download
// when present, and either link stands in for a missing one.
func buildResult(title, thumbnail, duration, sd, hd string) *domain.Result {
	if sd == "" {
		sd = hd
	}
	if hd == "" {
		hd = sd
	}
	if title == "" {
		title = defaultTitle
	}

	res := &domain.Result{
		Success:     true,
		Title:       title,
		DownloadURL: hd,
		Thumbnail:   thumbnail,
		Duration:    parseClock(duration),
		Format:      "mp4",
	}
	if hd != "" {
		res.Media = append(res.Media, domain.Media{Type: domain.MediaTypeVideo, URL: hd, Quality: "HD", Thumbnail: thumbnail, Format: "mp4"})
	}
	if sd != "" && sd != hd {
		res.Media = append(res.Media, domain.Media{Type: domain.MediaTypeVideo, URL: sd, Quality: "SD", Thumbnail: thumbnail, Format: "mp4"})
	}
	return res
}

// parseClock converts "m:ss" or "h:mm:ss" into seconds.
func parseClock(s string) float64 {
	if s == "" {
		return 0
	}
	var total float64
	for _, part := range strings.Split(s, ":") {
		n := 0
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0
			}
			n = n*10 + int(c-'0')
		}
		total = total*60 + float64(n)
	}
	return total
}

func isHD(s string) bool {
	return strings.Contains(s, "720p") || strings.Contains(s, "(HD)") || strings.Contains(s, "1080p")
}
