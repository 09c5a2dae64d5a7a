// Package instagram resolves Instagram posts, reels, IGTV videos and
// stories to their media files.
package instagram

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// InvalidURLMessage is returned for input that is not an Instagram post.
const InvalidURLMessage = "Invalid Instagram URL. Provide a valid post, reel, or IGTV link."

const defaultTitle = "Instagram Media"

var (
	shortcodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	storyIDPattern   = regexp.MustCompile(`^\d+$`)
)

// ExtractShortcode returns the shortcode of a post, reel or IGTV URL, or
// the numeric id of a story URL. The second result is false when the
// input is not an Instagram media link.
func ExtractShortcode(input string) (string, bool) {
	s := strings.TrimSpace(input)
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
	host := strings.ToLower(u.Hostname())
	if host != "instagram.com" && !strings.HasSuffix(host, ".instagram.com") {
		return "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		switch segments[i] {
		case "p", "reel", "reels", "tv":
			if shortcodePattern.MatchString(segments[i+1]) {
				return segments[i+1], true
			}
			return "", false
		case "stories":
			if i+2 < len(segments) && storyIDPattern.MatchString(segments[i+2]) {
				return segments[i+2], true
			}
			return "", false
		}
	}
	return "", false
}

// ValidateURL rejects input without a shortcode and stores the shortcode
// under the "shortcode" option.
func ValidateURL(req *resolver.Request) error {
	code, ok := ExtractShortcode(req.Input)
	if !ok {
		return domain.NewInputError(req.Capability, InvalidURLMessage)
	}
	req.Input = strings.TrimSpace(req.Input)
	req.SetOption("shortcode", code)
	return nil
}

// guessType classifies a CDN link by its path.
func guessType(link string) domain.MediaType {
	if strings.Contains(link, ".mp4") || strings.Contains(link, "video") {
		return domain.MediaTypeVideo
	}
	return domain.MediaTypeImage
}

func newResult(title, author string, media []domain.Media) *domain.Result {
	if title == "" {
		title = defaultTitle
	}
	res := &domain.Result{
		Success: true,
		Title:   title,
		Author:  author,
		Media:   media,
	}
	if len(media) > 0 {
		res.DownloadURL = media[0].URL
		res.Thumbnail = media[0].Thumbnail
	}
	return res
}
