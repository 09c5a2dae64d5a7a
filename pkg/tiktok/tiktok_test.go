package tiktok

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

const videoURL = "https://www.tiktok.com/@scout2015/video/6718335390845095173"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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
		{"https://m.tiktok.com/v/6718335390845095173.html", true},
		{"https://vm.tiktok.com/ZMeAbCdEf/", true},
		{"https://vt.tiktok.com/ZSabc123/", true},
		{"tiktok.com/@user/video/123", true},
		{"https://www.tiktok.com/t/ZTRabc/", true},
		{"https://vm.tiktok.com/", false},
		{"https://www.tiktok.com/@scout2015", false},
		{"https://www.tiktok.com.evil.example/@a/video/1", false},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"ftp://www.tiktok.com/@a/video/1", false},
		{"not a url", false},
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
	req := &resolver.Request{Capability: domain.CapTikTokFetch, Input: "  vm.tiktok.com/ZMeAbCdEf/ "}
	if err := ValidateURL(req); err != nil {
		t.Fatalf("ValidateURL() error = %v", err)
	}
	if req.Input != "https://vm.tiktok.com/ZMeAbCdEf/" {
		t.Errorf("Input = %q", req.Input)
	}

	bad := &resolver.Request{Capability: domain.CapTikTokFetch, Input: "hello"}
	err := ValidateURL(bad)
	if !errors.Is(err, domain.ErrInvalidInput) || err.Error() != InvalidURLMessage {
		t.Errorf("ValidateURL(bad) = %v", err)
	}
}

// =============================================================================
// Ssstik Tests
// =============================================================================

const ssstikResult = `<div id="target">
	<img class="result_author" src="https://cdn.example/avatar.jpg">
	<h2>@scout2015</h2>
	<p class="maintext">Scramble up ur name &amp; I'll try to guess it</p>
	<a href="https://tikcdn.io/ssstik/6718335390845095173">Without watermark</a>
	<a href="https://tikcdn.io/ssstik/m/6718335390845095173">Without watermark HD</a>
	<a href="https://tikcdn.io/music/6718335390845095173.mp3">Download MP3</a>
</div>`

type ssstikServer struct {
	*httptest.Server
	handshakes atomic.Int32
	posts      atomic.Int32
}

// newSsstikServer serves the landing page and the form. With rejectFirst
// the first form post is answered with 403.
func newSsstikServer(t *testing.T, result string, rejectFirst bool) *ssstikServer {
	t.Helper()
	s := &ssstikServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/en-1", func(w http.ResponseWriter, r *http.Request) {
		n := s.handshakes.Add(1)
		w.Write([]byte(`<script>s_tt = 'token` + string(rune('0'+n)) + `'; s_furl = 'abc';</script>`))
	})
	mux.HandleFunc("/abc", func(w http.ResponseWriter, r *http.Request) {
		n := s.posts.Add(1)
		if r.URL.Query().Get("url") != "dl" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("HX-Request") != "true" {
			t.Error("missing HX-Request header")
		}
		if r.FormValue("id") != videoURL || r.FormValue("locale") != "en" {
			t.Errorf("form = %v", r.PostForm)
		}
		if rejectFirst && n == 1 {
			if r.FormValue("tt") != "token1" {
				t.Errorf("first post tt = %q", r.FormValue("tt"))
			}
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(result))
	})
	s.Server = httptest.NewServer(mux)
	return s
}

func fetchRequest() resolver.Request {
	return resolver.Request{Capability: domain.CapTikTokFetch, Input: videoURL}
}

func TestSsstik_Resolve(t *testing.T) {
	srv := newSsstikServer(t, ssstikResult, false)
	defer srv.Close()

	p := NewSsstik(httpclient.New(), SsstikConfig{BaseURL: srv.URL}, testLogger())
	res, err := p.Invoke(context.Background(), fetchRequest())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.DownloadURL != "https://tikcdn.io/ssstik/m/6718335390845095173" {
		t.Errorf("DownloadURL = %q", res.DownloadURL)
	}
	if res.Author != "scout2015" {
		t.Errorf("Author = %q", res.Author)
	}
	if res.Title != "Scramble up ur name & I'll try to guess it" {
		t.Errorf("Title = %q", res.Title)
	}
	if res.Thumbnail != "https://cdn.example/avatar.jpg" {
		t.Errorf("Thumbnail = %q", res.Thumbnail)
	}
	if len(res.Media) != 3 {
		t.Fatalf("len(Media) = %d, want 3", len(res.Media))
	}
	if audio, ok := res.FirstMedia(domain.MediaTypeAudio); !ok || audio.URL != "https://tikcdn.io/music/6718335390845095173.mp3" {
		t.Errorf("audio = %+v", audio)
	}
	if err := res.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	// The session token is reused by the next call.
	if _, err := p.Invoke(context.Background(), fetchRequest()); err != nil {
		t.Fatalf("second Invoke() error = %v", err)
	}
	if srv.handshakes.Load() != 1 {
		t.Errorf("handshakes = %d, want 1", srv.handshakes.Load())
	}
}

func TestSsstik_RehandshakeOnce(t *testing.T) {
	srv := newSsstikServer(t, ssstikResult, true)
	defer srv.Close()

	p := NewSsstik(httpclient.New(), SsstikConfig{BaseURL: srv.URL}, testLogger())
	if _, err := p.Invoke(context.Background(), fetchRequest()); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if srv.handshakes.Load() != 2 || srv.posts.Load() != 2 {
		t.Errorf("handshakes = %d, posts = %d, want 2 and 2", srv.handshakes.Load(), srv.posts.Load())
	}
}

func TestSsstik_RejectedTwice(t *testing.T) {
	srv := newSsstikServer(t, "", false)
	defer srv.Close()

	p := NewSsstik(httpclient.New(), SsstikConfig{BaseURL: srv.URL}, testLogger())
	_, err := p.Invoke(context.Background(), fetchRequest())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if srv.posts.Load() != 2 {
		t.Errorf("posts = %d, want exactly one retry", srv.posts.Load())
	}
}

func TestSsstik_PreExpiredSession(t *testing.T) {
	srv := newSsstikServer(t, ssstikResult, false)
	defer srv.Close()

	p := NewSsstik(httpclient.New(), SsstikConfig{BaseURL: srv.URL}, testLogger())
	p.Session().Set("tt=stale&furl=abc", time.Now().Add(-time.Minute))
	if _, err := p.Invoke(context.Background(), fetchRequest()); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if srv.handshakes.Load() != 1 {
		t.Errorf("handshakes = %d, want 1", srv.handshakes.Load())
	}
}

func TestSsstik_Failures(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   error
	}{
		{"invalid link", `<p class="error">Error: invalid link</p>`, domain.ErrProviderReported},
		{"no links", `<div id="target"><p>This video is private</p></div>`, domain.ErrNoMedia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSsstikServer(t, tt.result, false)
			defer srv.Close()

			p := NewSsstik(httpclient.New(), SsstikConfig{BaseURL: srv.URL}, testLogger())
			_, err := p.Invoke(context.Background(), fetchRequest())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSsstik_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	p := NewSsstik(httpclient.New(), SsstikConfig{BaseURL: srv.URL}, testLogger())
	_, err := p.Invoke(context.Background(), fetchRequest())
	if !errors.Is(err, domain.ErrCredential) {
		t.Errorf("error = %v, want ErrCredential", err)
	}
}

// =============================================================================
// Tikwm Tests
// =============================================================================

func TestTikwm_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.FormValue("url") != videoURL || r.FormValue("hd") != "1" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.Write([]byte(`{"code":0,"msg":"success","data":{
			"title":"guess my name","cover":"/video/cover/1.webp",
			"play":"https://v16.example/play.mp4","hdplay":"","wmplay":"https://v16.example/wm.mp4",
			"music":"/video/music/1.mp3","author":{"unique_id":"scout2015","nickname":"Scout"}}}`))
	}))
	defer srv.Close()

	res, err := NewTikwm(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.DownloadURL != "https://v16.example/play.mp4" {
		t.Errorf("DownloadURL = %q", res.DownloadURL)
	}
	if res.Thumbnail != srv.URL+"/video/cover/1.webp" {
		t.Errorf("Thumbnail = %q", res.Thumbnail)
	}
	if audio, _ := res.FirstMedia(domain.MediaTypeAudio); audio.URL != srv.URL+"/video/music/1.mp3" {
		t.Errorf("audio url = %q", audio.URL)
	}
	if res.Author != "scout2015" || len(res.Media) != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestTikwm_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"reported", `{"code":-1,"msg":"Url parsing is failed! Please check url."}`, domain.ErrProviderReported},
		{"missing data", `{"code":0,"msg":"success"}`, domain.ErrMalformedResponse},
		{"no urls", `{"code":0,"data":{"title":"x"}}`, domain.ErrNoMedia},
		{"html", `<html>cloudflare</html>`, domain.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewTikwm(httpclient.New(), srv.URL).Invoke(context.Background(), fetchRequest())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
