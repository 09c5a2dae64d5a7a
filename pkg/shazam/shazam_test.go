package shazam

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func searchRequest(q string) resolver.Request {
	return resolver.Request{Capability: domain.CapShazamSearch, Input: q}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestValidators(t *testing.T) {
	q := &resolver.Request{Capability: domain.CapShazamSearch, Input: "  Ｄａｆｔ  Punk "}
	if err := ValidateQuery(q); err != nil {
		t.Fatalf("ValidateQuery() error = %v", err)
	}
	if q.Input != "Daft Punk" {
		t.Errorf("Input = %q, want %q", q.Input, "Daft Punk")
	}

	tests := []struct {
		name string
		fn   resolver.Validator
		req  resolver.Request
		msg  string
	}{
		{"empty query", ValidateQuery, resolver.Request{Capability: domain.CapShazamSearch, Input: " "}, EmptyQueryMessage},
		{"letters in key", ValidateKey, resolver.Request{Capability: domain.CapShazamTrack, Input: "12ab"}, InvalidKeyMessage},
		{"empty key", ValidateKey, resolver.Request{Capability: domain.CapShazamTrack}, InvalidKeyMessage},
		{"no audio", ValidateAudio, resolver.Request{Capability: domain.CapShazamRecognize}, EmptyAudioMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(&tt.req)
			if !errors.Is(err, domain.ErrInvalidInput) || err.Error() != tt.msg {
				t.Errorf("error = %v, want %q", err, tt.msg)
			}
		})
	}

	key := &resolver.Request{Capability: domain.CapShazamTrack, Input: " 40333609 "}
	if err := ValidateKey(key); err != nil || key.Input != "40333609" {
		t.Errorf("ValidateKey() = %v, input %q", err, key.Input)
	}
}

// =============================================================================
// Search Tests
// =============================================================================

func TestAMAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/amapi/v1/catalog/US/search" || r.URL.Query().Get("term") != "get lucky" || r.URL.Query().Get("types") != "songs" {
			t.Errorf("request = %s", r.URL)
		}
		w.Write([]byte(`{"results":{"songs":{"data":[
			{"id":"617154366","attributes":{"name":"Get Lucky","artistName":"Daft Punk","albumName":"Random Access Memories",
			 "releaseDate":"2013-04-19","url":"https://music.apple.com/x","durationInMillis":369629,
			 "artwork":{"url":"https://is1.mzstatic.com/image/{w}x{h}bb.jpg"},"previews":[{"url":"https://audio.example/preview.m4a"}]}},
			{"id":"1","attributes":{}}
		]}}}`))
	}))
	defer srv.Close()

	res, err := NewAMAPI(httpclient.New(), srv.URL).Invoke(context.Background(), searchRequest("get lucky"))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(res.Tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(res.Tracks))
	}
	got := res.Tracks[0]
	if got.Title != "Get Lucky" || got.Artist != "Daft Punk" || got.Album != "Random Access Memories" {
		t.Errorf("track = %+v", got)
	}
	if got.Artwork != "https://is1.mzstatic.com/image/400x400bb.jpg" || got.PreviewURL != "https://audio.example/preview.m4a" {
		t.Errorf("artwork/preview = %q / %q", got.Artwork, got.PreviewURL)
	}
}

func TestWebV4(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTitle string
		wantErr   error
	}{
		{
			name:      "wrapped hits",
			body:      `{"tracks":{"hits":[{"track":{"key":"20066955","title":"Get Lucky","subtitle":"Daft Punk","images":{"coverart":"https://img/c.jpg"}}}]}}`,
			wantTitle: "Get Lucky",
		},
		{
			name:      "bare song hits",
			body:      `{"songs":{"hits":[{"key":"1","heading":{"title":"One More Time","subtitle":"Daft Punk"}}]}}`,
			wantTitle: "One More Time",
		},
		{
			name:      "catalogue fallback",
			body:      `{"results":{"songs":{"data":[{"id":"2","attributes":{"name":"Around the World","artistName":"Daft Punk"}}]}}}`,
			wantTitle: "Around the World",
		},
		{name: "empty", body: `{}`, wantErr: domain.ErrNoMedia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/services/search/v4/en/US/web/search" || r.URL.Query().Get("term") != "daft punk" {
					t.Errorf("request = %s", r.URL)
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := NewWebV4(httpclient.New(), srv.URL).Invoke(context.Background(), searchRequest("daft punk"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && res.Tracks[0].Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", res.Tracks[0].Title, tt.wantTitle)
			}
		})
	}
}

func TestWebV3(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/search/v3/en/US/web/search" || r.URL.Query().Get("query") != "daft punk" {
			t.Errorf("request = %s", r.URL)
		}
		w.Write([]byte(`{"tracks":{"hits":[{"track":{"key":"20066955","heading":{"title":"Get Lucky","subtitle":"Daft Punk"},
			"images":{"default":"https://img/d.jpg"},"share":{"href":"https://www.shazam.com/track/20066955"},
			"stores":{"apple":{"previewurl":"https://audio.example/p.m4a"}}}}]}}`))
	}))
	defer srv.Close()

	res, err := NewWebV3(httpclient.New(), srv.URL).Invoke(context.Background(), searchRequest("daft punk"))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	got := res.Tracks[0]
	if got.ID != "20066955" || got.Artist != "Daft Punk" || got.Artwork != "https://img/d.jpg" {
		t.Errorf("track = %+v", got)
	}
	if got.URL != "https://www.shazam.com/track/20066955" || got.PreviewURL != "https://audio.example/p.m4a" {
		t.Errorf("links = %q / %q", got.URL, got.PreviewURL)
	}
}

func TestSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewAMAPI(httpclient.New(), srv.URL).Invoke(context.Background(), searchRequest("x"))
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}

// =============================================================================
// Discovery Tests
// =============================================================================

func TestDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/discovery/v5/en/US/web/-/track/20066955":
			w.Write([]byte(`{"key":"20066955","title":"Get Lucky","subtitle":"Daft Punk",
				"images":{"coverart":"https://img/c.jpg","coverarthq":"https://img/hq.jpg"},
				"sections":[{"type":"SONG","metadata":[{"title":"Album","text":"Random Access Memories"},{"title":"Released","text":"2013"}]}]}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	p := NewDiscovery(httpclient.New(), srv.URL)
	res, err := p.Invoke(context.Background(), resolver.Request{Capability: domain.CapShazamTrack, Input: "20066955"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Title != "Get Lucky" || res.Thumbnail != "https://img/hq.jpg" {
		t.Errorf("result = %+v", res)
	}
	if got := res.Tracks[0]; got.Album != "Random Access Memories" || got.ReleaseDate != "2013" {
		t.Errorf("track = %+v", got)
	}

	_, err = p.Invoke(context.Background(), resolver.Request{Capability: domain.CapShazamTrack, Input: "1"})
	if !errors.Is(err, domain.ErrNoMedia) {
		t.Errorf("unknown key error = %v, want ErrNoMedia", err)
	}
}

// =============================================================================
// Songrec Tests
// =============================================================================

// wavRunner checks the audio file handed to songrec while it still exists.
type wavRunner struct {
	t    *testing.T
	out  string
	err  error
	file string
}

func (r *wavRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	if name != "songrec" || len(args) != 2 || args[0] != "audio-file-to-recognized-song" {
		r.t.Errorf("command = %s %v", name, args)
		return nil, errors.New("bad command")
	}
	r.file = args[1]
	data, err := os.ReadFile(r.file)
	if err != nil {
		r.t.Errorf("read audio file: %v", err)
		return nil, err
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		r.t.Errorf("header = %q", data[:12])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != sampleRate {
		r.t.Errorf("sample rate = %d, want %d", rate, sampleRate)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); int(size) != len(data)-44 {
		r.t.Errorf("data size = %d, want %d", size, len(data)-44)
	}
	return []byte(r.out), r.err
}

func recognizeRequest() resolver.Request {
	return resolver.Request{Capability: domain.CapShazamRecognize, Payload: make([]byte, 3200)}
}

func TestSongrec_Recognized(t *testing.T) {
	runner := &wavRunner{t: t, out: `{"matches":[{"id":"20066955"}],"track":{"key":"20066955","title":"Get Lucky","subtitle":"Daft Punk","images":{"coverart":"https://img/c.jpg"}}}`}
	p := NewSongrec(runner, "", testLogger())
	p.tmpDir = t.TempDir()

	res, err := p.Invoke(context.Background(), recognizeRequest())
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Title != "Get Lucky" || res.Author != "Daft Punk" || res.Tracks[0].ID != "20066955" {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(runner.file); !os.IsNotExist(err) {
		t.Errorf("audio file %s should be removed, stat error = %v", runner.file, err)
	}
}

func TestSongrec_Failures(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want error
	}{
		{"no match", `{"matches":[]}`, nil, domain.ErrNoMedia},
		{"not json", `thread 'main' panicked`, nil, domain.ErrMalformedResponse},
		{"missing binary", "", domain.ErrToolMissing, domain.ErrToolMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSongrec(&wavRunner{t: t, out: tt.out, err: tt.err}, "", testLogger())
			p.tmpDir = t.TempDir()

			_, err := p.Invoke(context.Background(), recognizeRequest())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
