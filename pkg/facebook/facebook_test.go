package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const videoURL = "https://www.facebook.com/watch/?v=1234567890"

func fetchRequest() resolver.Request {
	return resolver.Request{Capability: domain.CapFacebookFetch, Input: videoURL}
}

// =============================================================================
// URL Validation Tests
// =============================================================================

func TestValidURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{videoURL, true},
		{"https://fb.watch/abcDEF123/", true},
		{"https://m.facebook.com/story.php?story_fbid=1&id=2", true},
		{"https://web.facebook.com/user/videos/1234/", true},
		{"facebook.com/reel/1234", true},
		{"https://www.facebook.com/", false},
		{"https://facebook.com.evil.example/watch/?v=1", false},
		{"https://instagram.com/p/abc", false},
		{"javascript:alert(1)", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidURL(tt.input); got != tt.want {
				t.Errorf("ValidURL(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	req := &resolver.Request{Capability: domain.CapFacebookFetch, Input: " fb.watch/abcDEF123/ "}
	if err := ValidateURL(req); err != nil {
		t.Fatalf("ValidateURL() error = %v", err)
	}
	if req.Input != "https://fb.watch/abcDEF123/" {
		t.Errorf("Input = %q", req.Input)
	}

	err := ValidateURL(&resolver.Request{Capability: domain.CapFacebookFetch, Input: "video please"})
	if !errors.Is(err, domain.ErrInvalidInput) || err.Error() != InvalidURLMessage {
		t.Errorf("ValidateURL(bad) = %v", err)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0:45", 45},
		{"12:03", 723},
		{"1:00:01", 3601},
		{"", 0},
		{"1:x", 0},
	}
	for _, tt := range tests {
		if got := parseClock(tt.in); got != tt.want {
			t.Errorf("parseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// FDownloader Tests
// =============================================================================

const fdownloaderTable = `<div class="thumbnail"><img src="https://scontent.example/thumb.jpg?a=1&amp;b=2"></div>
<h3>Cats being cats</h3>
<p>1:05</p>
<table>
	<tr><td class="video-quality">720p (HD)</td><td><a href="https://dl.snapcdn.app/download?token=hd">Download</a></td></tr>
	<tr><td class="video-quality">360p (SD)</td><td><a href="https://dl.snapcdn.app/download?token=sd">Download</a></td></tr>
	<tr><td>Render</td><td><a href="/render">Render</a></td></tr>
</table>`

func TestFDownloader_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ajaxSearch" || r.FormValue("q") != videoURL {
			t.Errorf("request = %s q=%s", r.URL.Path, r.FormValue("q"))
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "data": fdownloaderTable})
	}))
	defer srv.Close()

	res, err := NewFDownloader(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.DownloadURL != "https://dl.snapcdn.app/download?token=hd" {
		t.Errorf("DownloadURL = %q, want the HD link", res.DownloadURL)
	}
	if len(res.Media) != 2 || res.Media[1].URL != "https://dl.snapcdn.app/download?token=sd" || res.Media[1].Quality != "SD" {
		t.Errorf("Media = %+v", res.Media)
	}
	if res.Title != "Cats being cats" || res.Duration != 65 {
		t.Errorf("title/duration = %q / %v", res.Title, res.Duration)
	}
	if res.Thumbnail != "https://scontent.example/thumb.jpg?a=1&b=2" {
		t.Errorf("Thumbnail = %q", res.Thumbnail)
	}
}

func TestFDownloader_SingleQuality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "data": `<a href="https://video.fbcdn.net/v/only.mp4">Download</a>`})
	}))
	defer srv.Close()

	res, err := NewFDownloader(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.DownloadURL != "https://video.fbcdn.net/v/only.mp4" || len(res.Media) != 1 || res.Title != defaultTitle {
		t.Errorf("result = %+v", res)
	}
}

func TestFDownloader_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"status error", `{"status":"error","mess":"Video is private"}`, domain.ErrProviderReported},
		{"no data", `{"status":"ok","data":""}`, domain.ErrProviderReported},
		{"no links", `{"status":"ok","data":"<p>Nothing here</p>"}`, domain.ErrNoMedia},
		{"not json", `<html></html>`, domain.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewFDownloader(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

// =============================================================================
// GetMyFB Tests
// =============================================================================

func TestGetMyFB(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    error
		wantURL string
	}{
		{
			name: "video links",
			html: `<a href="SITE/faq">FAQ</a>
				<a href="https://video.fbcdn.net/v/video-sd.mp4?x=1">SD</a>
				<a href="https://cdn.example/file" download>HD</a>`,
			wantURL: "https://cdn.example/file",
		},
		{
			name:    "fallback",
			html:    `<a href="SITE/about">About</a><a href="https://scontent.fbcdn.net/x">Open</a>`,
			wantURL: "https://scontent.fbcdn.net/x",
		},
		{name: "nothing", html: `<a href="SITE/">Home</a>`, want: domain.ErrNoMedia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var srv *httptest.Server
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/process" || r.FormValue("id") != videoURL {
					t.Errorf("request = %s id=%s", r.URL.Path, r.FormValue("id"))
				}
				w.Write([]byte(strings.ReplaceAll(tt.html, "SITE", srv.URL)))
			}))
			defer srv.Close()

			res, err := NewGetMyFB(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if tt.want == nil && res.DownloadURL != tt.wantURL {
				t.Errorf("DownloadURL = %q, want %q", res.DownloadURL, tt.wantURL)
			}
		})
	}
}

// =============================================================================
// OpenGraph Tests
// =============================================================================

func TestOpenGraph_Tags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch/" || r.URL.Query().Get("v") != "1234567890" {
			t.Errorf("request = %s", r.URL)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Sunset timelapse">
			<meta property="og:image" content="https://scontent.example/poster.jpg">
			<meta property="og:video" content="https://video.example/sd.mp4">
			<meta property="og:video:secure_url" content="https://video.example/sd-secure.mp4">
			</head><body><script>{"browser_native_hd_url":"https:\/\/video.example\/hd.mp4?a=1&b=2"}</script></body></html>`))
	}))
	defer srv.Close()

	res, err := NewOpenGraph(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.DownloadURL != "https://video.example/hd.mp4?a=1&b=2" {
		t.Errorf("DownloadURL = %q, want the HD stream", res.DownloadURL)
	}
	if len(res.Media) != 2 || res.Media[1].URL != "https://video.example/sd-secure.mp4" {
		t.Errorf("Media = %+v", res.Media)
	}
	if res.Title != "Sunset timelapse" || res.Thumbnail != "https://scontent.example/poster.jpg" {
		t.Errorf("metadata = %q / %q", res.Title, res.Thumbnail)
	}
}

func TestOpenGraph_NoVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="Log in to Facebook"></head></html>`))
	}))
	defer srv.Close()

	_, err := NewOpenGraph(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
	if !errors.Is(err, domain.ErrNoMedia) {
		t.Errorf("error = %v, want ErrNoMedia", err)
	}
}
