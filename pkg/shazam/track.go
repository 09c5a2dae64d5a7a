// Package shazam searches the Shazam catalogue, looks up tracks by key and
// recognizes recorded audio with a local songrec binary.
package shazam

import (
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/pkg/textnorm"
)

// Messages returned for rejected input or empty answers.
const (
	EmptyQueryMessage    = "Search query is required."
	InvalidKeyMessage    = "Invalid Shazam track ID. It must be numeric."
	EmptyAudioMessage    = "Audio payload is required. Send raw PCM (s16LE, mono, 16kHz)."
	NoResultsMessage     = "No results found. Try a different search term."
	NotRecognizedMessage = "Could not identify the song. Try a longer or clearer audio sample."
)

const (
	defaultBaseURL = "https://www.shazam.com"
	searchLimit    = 10
)

// ValidateQuery rejects empty searches and normalises the query.
func ValidateQuery(req *resolver.Request) error {
	q := textnorm.Query(req.Input)
	if q == "" {
		return domain.NewInputError(req.Capability, EmptyQueryMessage)
	}
	req.Input = q
	return nil
}

// ValidateKey rejects track keys that are not all digits.
func ValidateKey(req *resolver.Request) error {
	key := strings.TrimSpace(req.Input)
	if key == "" || strings.Trim(key, "0123456789") != "" {
		return domain.NewInputError(req.Capability, InvalidKeyMessage)
	}
	req.Input = key
	return nil
}

// ValidateAudio rejects empty recognition payloads.
func ValidateAudio(req *resolver.Request) error {
	if len(req.Payload) == 0 {
		return domain.NewInputError(req.Capability, EmptyAudioMessage)
	}
	return nil
}

// catalogSong is an Apple Music catalogue entry, as returned by the amapi
// search and embedded in some web search answers.
type catalogSong struct {
	ID         string `json:"id"`
	Attributes struct {
		Name        string   `json:"name"`
		ArtistName  string   `json:"artistName"`
		AlbumName   string   `json:"albumName"`
		GenreNames  []string `json:"genreNames"`
		ReleaseDate string   `json:"releaseDate"`
		URL         string   `json:"url"`
		Artwork     struct {
			URL string `json:"url"`
		} `json:"artwork"`
		Previews []struct {
			URL string `json:"url"`
		} `json:"previews"`
		DurationInMillis int64 `json:"durationInMillis"`
	} `json:"attributes"`
}

func (s catalogSong) toTrack() (domain.Track, bool) {
	a := s.Attributes
	if a.Name == "" {
		return domain.Track{}, false
	}
	t := domain.Track{
		ID:          s.ID,
		Title:       a.Name,
		Artist:      a.ArtistName,
		Album:       a.AlbumName,
		URL:         a.URL,
		ReleaseDate: a.ReleaseDate,
		DurationMs:  a.DurationInMillis,
	}
	if a.Artwork.URL != "" {
		t.Artwork = strings.NewReplacer("{w}", "400", "{h}", "400").Replace(a.Artwork.URL)
	}
	if len(a.Previews) > 0 {
		t.PreviewURL = a.Previews[0].URL
	}
	return t, true
}

type catalogResults struct {
	Songs struct {
		Data []catalogSong `json:"data"`
	} `json:"songs"`
}

// webTrack is the track shape of the web search, discovery and
// recognition APIs.
type webTrack struct {
	Key      string `json:"key"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Heading  struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
	} `json:"heading"`
	Images struct {
		Default    string `json:"default"`
		CoverArt   string `json:"coverart"`
		CoverArtHQ string `json:"coverarthq"`
	} `json:"images"`
	URL   string `json:"url"`
	Share struct {
		Href string `json:"href"`
	} `json:"share"`
	Stores struct {
		Apple struct {
			PreviewURL string `json:"previewurl"`
		} `json:"apple"`
	} `json:"stores"`
	Sections []struct {
		Type     string `json:"type"`
		Metadata []struct {
			Title string `json:"title"`
			Text  string `json:"text"`
		} `json:"metadata"`
	} `json:"sections"`
}

func (w webTrack) toTrack() (domain.Track, bool) {
	title := firstNonEmpty(w.Title, w.Heading.Title)
	if title == "" {
		return domain.Track{}, false
	}
	t := domain.Track{
		ID:         firstNonEmpty(w.Key, w.ID),
		Title:      title,
		Artist:     firstNonEmpty(w.Subtitle, w.Heading.Subtitle),
		Artwork:    firstNonEmpty(w.Images.CoverArtHQ, w.Images.CoverArt, w.Images.Default),
		URL:        firstNonEmpty(w.URL, w.Share.Href),
		PreviewURL: w.Stores.Apple.PreviewURL,
	}
	for _, s := range w.Sections {
		if s.Type != "SONG" {
			continue
		}
		for _, m := range s.Metadata {
			switch m.Title {
			case "Album":
				t.Album = m.Text
			case "Released":
				t.ReleaseDate = m.Text
			}
		}
	}
	return t, true
}

func searchResult(query string, tracks []domain.Track) *domain.Result {
	return &domain.Result{Success: true, Title: query, Tracks: tracks}
}

func trackResult(t domain.Track) *domain.Result {
	return &domain.Result{
		Success:   true,
		Title:     t.Title,
		Author:    t.Artist,
		Thumbnail: t.Artwork,
		Duration:  float64(t.DurationMs) / 1000,
		Tracks:    []domain.Track{t},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
