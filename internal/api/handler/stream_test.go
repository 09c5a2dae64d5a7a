package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iconidentify/mediagrab/internal/config"
	"github.com/iconidentify/mediagrab/internal/downloader"
)

// upperTranscoder stands in for ffmpeg by upper-casing the input.
type upperTranscoder struct {
	format string
}

func (u *upperTranscoder) Transcode(ctx context.Context, src io.Reader, dst io.Writer, format string) error {
	u.format = format
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	_, err = dst.Write(bytes.ToUpper(data))
	return err
}

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4 bytes"))
	})
	mux.HandleFunc("/raw", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw audio"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestDownloader() *downloader.HTTPDownloader {
	return downloader.NewHTTPDownloader(config.StreamConfig{
		Timeout:     5 * time.Second,
		ReadTimeout: 5 * time.Second,
		MaxRetries:  1,
	}, "mediagrab-test", testLogger())
}

// =============================================================================
// Stream Handler Tests
// =============================================================================

func TestStream_Passthrough(t *testing.T) {
	srv := newMediaServer(t)
	h := NewStreamHandler(newTestDownloader(), nil, testLogger())

	w := httptest.NewRecorder()
	h.Stream(w, httptest.NewRequest(http.MethodGet, "/stream?url="+srv.URL+"/clip.mp4", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want %q", got, "video/mp4")
	}
	if got := w.Header().Get("Content-Length"); got != "9" {
		t.Errorf("Content-Length = %q, want %q", got, "9")
	}
	if got := w.Body.String(); got != "mp4 bytes" {
		t.Errorf("body = %q, want %q", got, "mp4 bytes")
	}
}

func TestStream_Transcode(t *testing.T) {
	srv := newMediaServer(t)
	tc := &upperTranscoder{}
	h := NewStreamHandler(newTestDownloader(), tc, testLogger())

	w := httptest.NewRecorder()
	h.Stream(w, httptest.NewRequest(http.MethodGet, "/stream?url="+srv.URL+"/raw&format=MP3", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want %q", got, "audio/mpeg")
	}
	if got := w.Body.String(); got != "RAW AUDIO" {
		t.Errorf("body = %q, want %q", got, "RAW AUDIO")
	}
	if tc.format != "mp3" {
		t.Errorf("format = %q, want %q", tc.format, "mp3")
	}
}

func TestStream_Errors(t *testing.T) {
	srv := newMediaServer(t)

	tests := []struct {
		name       string
		transcoder Transcoder
		target     string
		wantStatus int
	}{
		{"missing url", nil, "/stream", http.StatusBadRequest},
		{"bad scheme", nil, "/stream?url=ftp://example.com/a.mp3", http.StatusBadRequest},
		{"no host", nil, "/stream?url=http://", http.StatusBadRequest},
		{"no transcoder", nil, "/stream?url=" + srv.URL + "/raw&format=mp3", http.StatusServiceUnavailable},
		{"unsupported format", &upperTranscoder{}, "/stream?url=" + srv.URL + "/raw&format=flac", http.StatusBadRequest},
		{"upstream missing", nil, "/stream?url=" + srv.URL + "/gone", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStreamHandler(newTestDownloader(), tt.transcoder, testLogger())

			w := httptest.NewRecorder()
			h.Stream(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if resp := decodeError(t, w.Body); resp.Success || resp.Error == "" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestStream_PicksFirstReachableURL(t *testing.T) {
	srv := newMediaServer(t)
	h := NewStreamHandler(newTestDownloader(), nil, testLogger())

	t.Run("fallback", func(t *testing.T) {
		w := httptest.NewRecorder()
		target := "/stream?url=" + srv.URL + "/gone&url=" + srv.URL + "/clip.mp4"
		h.Stream(w, httptest.NewRequest(http.MethodGet, target, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Body.String(); got != "mp4 bytes" {
			t.Errorf("body = %q, want %q", got, "mp4 bytes")
		}
	})

	t.Run("none reachable", func(t *testing.T) {
		w := httptest.NewRecorder()
		target := "/stream?url=" + srv.URL + "/gone&url=" + srv.URL + "/missing"
		h.Stream(w, httptest.NewRequest(http.MethodGet, target, nil))

		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
		}
		if resp := decodeError(t, w.Body); resp.Error != NoReachableMessage {
			t.Errorf("error = %q, want %q", resp.Error, NoReachableMessage)
		}
	})
}

func TestStream_Probe(t *testing.T) {
	srv := newMediaServer(t)
	h := NewStreamHandler(newTestDownloader(), nil, testLogger())

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantType   string
	}{
		{"reachable", "/stream?url=" + srv.URL + "/clip.mp4", http.StatusOK, "video/mp4"},
		{"missing", "/stream?url=" + srv.URL + "/gone", http.StatusBadGateway, ""},
		{"bad url", "/stream?url=file:///etc/passwd", http.StatusBadRequest, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Probe(w, httptest.NewRequest(http.MethodHead, tt.target, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
		})
	}
}
