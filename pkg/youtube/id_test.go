package youtube

import (
	"errors"
	"testing"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch with extra params", "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short link with si", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", true},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"nocookie embed", "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"v path", "https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"shorts", "https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"live", "https://www.youtube.com/live/dQw4w9WgXcQ?feature=shared", "dQw4w9WgXcQ", true},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"music", "https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=RD", "dQw4w9WgXcQ", true},
		{"no scheme", "youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"bare id with spaces", "  dQw4w9WgXcQ ", "dQw4w9WgXcQ", true},
		{"empty", "", "", false},
		{"free text", "never gonna give you up", "", false},
		{"short id", "https://youtu.be/abc", "", false},
		{"channel", "https://www.youtube.com/@RickAstleyYT", "", false},
		{"other host", "https://vimeo.com/watch?v=dQw4w9WgXcQ", "", false},
		{"bad id chars", "https://www.youtube.com/watch?v=dQw4w9WgXc!", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVideoID(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractVideoID(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractVideoID_SameIDAcrossShapes(t *testing.T) {
	inputs := []string{
		"https://youtu.be/abcDEFghijk",
		"https://www.youtube.com/watch?v=abcDEFghijk",
		"abcDEFghijk",
	}
	for _, in := range inputs {
		got, ok := ExtractVideoID(in)
		if !ok || got != "abcDEFghijk" {
			t.Errorf("ExtractVideoID(%q) = (%q, %v), want abcDEFghijk", in, got, ok)
		}
		again, _ := ExtractVideoID(got)
		if again != got {
			t.Errorf("extracting from the id again = %q, want %q", again, got)
		}
	}
}

func TestValidateConvert(t *testing.T) {
	req := &resolver.Request{Capability: domain.CapYouTubeConvert, Input: "https://youtu.be/dQw4w9WgXcQ"}
	if err := ValidateConvert(req); err != nil {
		t.Fatalf("ValidateConvert() error = %v", err)
	}
	if req.Input != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("Input = %q, want canonical watch URL", req.Input)
	}
	if req.Option("id") != "dQw4w9WgXcQ" {
		t.Errorf("id option = %q", req.Option("id"))
	}
	if req.Format != "mp3" {
		t.Errorf("Format = %q, want mp3 default", req.Format)
	}

	mp4 := &resolver.Request{Capability: domain.CapYouTubeConvert, Input: "dQw4w9WgXcQ", Format: "MP4"}
	if err := ValidateConvert(mp4); err != nil || mp4.Format != "mp4" {
		t.Errorf("ValidateConvert(MP4) = %v, format %q", err, mp4.Format)
	}

	bad := &resolver.Request{Capability: domain.CapYouTubeConvert, Input: "not a video"}
	err := ValidateConvert(bad)
	if !errors.Is(err, domain.ErrInvalidInput) || err.Error() != InvalidURLMessage {
		t.Errorf("ValidateConvert(bad) = %v", err)
	}

	flac := &resolver.Request{Capability: domain.CapYouTubeConvert, Input: "dQw4w9WgXcQ", Format: "flac"}
	if err := ValidateConvert(flac); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("ValidateConvert(flac) = %v, want ErrInvalidInput", err)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"03:32", 212},
		{"1:02:03", 3723},
		{"45", 45},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		if got := parseClock(tt.in); got != tt.want {
			t.Errorf("parseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1 KB", 1024},
		{"2MB", 2 << 20},
		{"1.5 MB", 1572864},
		{"Unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseSize(tt.in); got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
