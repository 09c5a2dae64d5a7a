package youtube

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/internal/toolexec"
)

const searchResults = 10

type ytdlpFormat struct {
	FormatID string  `json:"format_id"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	Ext      string  `json:"ext"`
	Protocol string  `json:"protocol"`
	URL      string  `json:"url"`
	ABR      float64 `json:"abr"`
	TBR      float64 `json:"tbr"`
	Height   int     `json:"height"`
	Filesize int64   `json:"filesize"`
}

func (f ytdlpFormat) audioOnly() bool {
	return (f.VCodec == "none" || f.VCodec == "") && f.ACodec != "none"
}

func (f ytdlpFormat) muxed() bool {
	return f.VCodec != "none" && f.VCodec != "" && f.ACodec != "none" && f.ACodec != ""
}

type ytdlpInfo struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Uploader  string        `json:"uploader"`
	Channel   string        `json:"channel"`
	Duration  float64       `json:"duration"`
	Thumbnail string        `json:"thumbnail"`
	Formats   []ytdlpFormat `json:"formats"`
}

// YTDLP resolves a video with a local yt-dlp binary. The process is bound
// to the request context and is killed when it is cancelled.
type YTDLP struct {
	runner toolexec.Runner
	path   string
}

// NewYTDLP creates a new yt-dlp provider. path defaults to "yt-dlp".
func NewYTDLP(runner toolexec.Runner, path string) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLP{runner: runner, path: path}
}

func (p *YTDLP) Name() string { return "ytdlp" }

func (p *YTDLP) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	id := videoID(req)
	if id == "" {
		return nil, fmt.Errorf("%w: no video id", domain.ErrInvalidInput)
	}

	out, err := p.runner.Run(ctx, p.path, []string{"-J", "--no-warnings", "--skip-download", WatchURL(id)}, nil)
	if err != nil {
		return nil, err
	}

	var info ytdlpInfo
	if err := httpclient.DecodeJSON(out, &info); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	best, ok := pickFormat(info.Formats, req.Format)
	if !ok {
		return nil, fmt.Errorf("%w: no usable %s formats", domain.ErrNoMedia, req.Format)
	}

	m := domain.Media{
		Type:   mediaType(req.Format),
		URL:    best.URL,
		Format: best.Ext,
		Size:   best.Filesize,
	}
	if m.Type == domain.MediaTypeAudio && best.ABR > 0 {
		m.Quality = fmt.Sprintf("%.0fkbps", best.ABR)
	} else if best.Height > 0 {
		m.Quality = fmt.Sprintf("%dp", best.Height)
	}

	thumb := info.Thumbnail
	if thumb == "" {
		thumb = ThumbnailURL(id)
	}
	return &domain.Result{
		Success:     true,
		Title:       info.Title,
		Author:      firstNonEmpty(info.Uploader, info.Channel),
		DownloadURL: best.URL,
		Media:       []domain.Media{m},
		Thumbnail:   thumb,
		Duration:    info.Duration,
		Format:      req.Format,
	}, nil
}

// pickFormat chooses the best format for the requested output: audio-only
// streams for mp3 (any stream with audio as a fallback), muxed streams for
// mp4, preferring the highest resolution.
func pickFormat(formats []ytdlpFormat, format string) (ytdlpFormat, bool) {
	var candidates []ytdlpFormat
	if format == "mp4" {
		for _, f := range formats {
			if f.URL != "" && f.muxed() {
				candidates = append(candidates, f)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Height != candidates[j].Height {
				return candidates[i].Height > candidates[j].Height
			}
			return protocolScore(candidates[i].Protocol) > protocolScore(candidates[j].Protocol)
		})
	} else {
		for _, f := range formats {
			if f.URL != "" && f.audioOnly() {
				candidates = append(candidates, f)
			}
		}
		if len(candidates) == 0 {
			for _, f := range formats {
				if f.URL != "" && f.ACodec != "none" {
					candidates = append(candidates, f)
				}
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			si, sj := audioScore(candidates[i]), audioScore(candidates[j])
			if si == sj {
				return candidates[i].ABR > candidates[j].ABR
			}
			return si > sj
		})
	}
	if len(candidates) == 0 {
		return ytdlpFormat{}, false
	}
	return candidates[0], true
}

func audioScore(f ytdlpFormat) int {
	score := 0
	switch strings.ToLower(f.Ext) {
	case "m4a":
		score += 100
	case "webm":
		score += 90
	case "ogg", "opus":
		score += 85
	case "mp4":
		score += 70
	default:
		score += 60
	}
	score += protocolScore(f.Protocol)
	if f.ABR > 0 {
		score += int(f.ABR)
	} else if f.TBR > 0 {
		score += int(f.TBR / 2)
	}
	return score
}

func protocolScore(protocol string) int {
	p := strings.ToLower(protocol)
	switch {
	case strings.HasPrefix(p, "https"):
		return 30
	case strings.HasPrefix(p, "http"):
		return 25
	case strings.Contains(p, "m3u8"), strings.Contains(p, "hls"):
		return 20
	case strings.Contains(p, "dash"):
		return 15
	}
	return 0
}

// YTDLPSearch searches YouTube with yt-dlp's ytsearch extractor.
type YTDLPSearch struct {
	runner toolexec.Runner
	path   string
}

// NewYTDLPSearch creates a new yt-dlp search provider.
func NewYTDLPSearch(runner toolexec.Runner, path string) *YTDLPSearch {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLPSearch{runner: runner, path: path}
}

func (p *YTDLPSearch) Name() string { return "ytdlp-search" }

func (p *YTDLPSearch) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	query := fmt.Sprintf("ytsearch%d:%s", searchResults, req.Input)
	out, err := p.runner.Run(ctx, p.path, []string{"-J", "--flat-playlist", "--no-warnings", query}, nil)
	if err != nil {
		return nil, err
	}

	var playlist struct {
		Entries []struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			Channel  string  `json:"channel"`
			Uploader string  `json:"uploader"`
			Duration float64 `json:"duration"`
		} `json:"entries"`
	}
	if err := httpclient.DecodeJSON(out, &playlist); err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	tracks := make([]domain.Track, 0, len(playlist.Entries))
	for _, e := range playlist.Entries {
		if _, ok := checkID(e.ID); !ok || e.Title == "" {
			continue
		}
		tracks = append(tracks, domain.Track{
			ID:         e.ID,
			Title:      e.Title,
			Channel:    firstNonEmpty(e.Channel, e.Uploader),
			Artwork:    "https://img.youtube.com/vi/" + e.ID + "/mqdefault.jpg",
			URL:        WatchURL(e.ID),
			DurationMs: int64(e.Duration * 1000),
		})
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no results for %q", domain.ErrNoMedia, req.Input)
	}
	return &domain.Result{Success: true, Title: req.Input, Tracks: tracks}, nil
}

var (
	_ resolver.Provider = (*YTDLP)(nil)
	_ resolver.Provider = (*YTDLPSearch)(nil)
)
