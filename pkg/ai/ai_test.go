package ai

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

func chatRequestFor(persona, prompt string) resolver.Request {
	req := resolver.Request{Capability: domain.CapAIChat, Input: prompt}
	if persona != "" {
		req.SetOption(OptionPersona, persona)
	}
	return req
}

// =============================================================================
// Persona Tests
// =============================================================================

func TestValidateChat(t *testing.T) {
	tests := []struct {
		name       string
		persona    string
		system     string
		prompt     string
		wantErr    string
		wantSystem string
	}{
		{name: "default persona", prompt: " hi ", wantSystem: "You are a helpful assistant."},
		{name: "claude", persona: "Claude", prompt: "hi", wantSystem: personas["claude"]},
		{name: "caller system wins", persona: "groq", system: "Be terse.", prompt: "hi", wantSystem: "Be terse."},
		{name: "empty prompt", persona: "gpt", prompt: "  ", wantErr: EmptyPromptMessage},
		{name: "unknown persona", persona: "hal9000", prompt: "hi", wantErr: UnknownPersonaMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := chatRequestFor(tt.persona, tt.prompt)
			if tt.system != "" {
				req.SetOption(OptionSystem, tt.system)
			}
			err := ValidateChat(&req)
			if tt.wantErr != "" {
				if !errors.Is(err, domain.ErrInvalidInput) || err.Error() != tt.wantErr {
					t.Errorf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateChat() error = %v", err)
			}
			if req.Input != "hi" {
				t.Errorf("Input = %q", req.Input)
			}
			if got := req.Option(OptionSystem); got != tt.wantSystem {
				t.Errorf("system = %q, want %q", got, tt.wantSystem)
			}
		})
	}
}

func TestPersonas(t *testing.T) {
	got := Personas()
	if len(got) != 8 || got[0] != "claude" {
		t.Errorf("Personas() = %v", got)
	}
}

// =============================================================================
// ChatEverywhere Tests
// =============================================================================

func TestChatEverywhere(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" || body.Messages[0].Content != "what is go?" {
			t.Errorf("messages = %+v", body.Messages)
		}
		if body.Prompt != "Be terse." || body.Temperature != 0.7 {
			t.Errorf("prompt/temperature = %q / %v", body.Prompt, body.Temperature)
		}
		w.Write([]byte("  Go is a programming language.\n"))
	}))
	defer srv.Close()

	req := chatRequestFor("gpt", "what is go?")
	req.SetOption(OptionSystem, "Be terse.")
	res, err := NewChatEverywhere(httpclient.New(), srv.URL, 0).Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Text != "Go is a programming language." || res.Model != chatEverywhereModel {
		t.Errorf("result = %+v", res)
	}
}

func TestChatEverywhere_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"upstream error", http.StatusInternalServerError, "boom", domain.ErrUpstreamStatus},
		{"blank answer", http.StatusOK, "   ", domain.ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewChatEverywhere(httpclient.New(), srv.URL, 0).Invoke(context.Background(), chatRequestFor("", "hi"))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChatEverywhereImage(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/image":
			q := r.URL.Query()
			if q.Get("q") != "a red fox" || q.Get("width") != "960" || q.Get("height") != "640" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			http.Redirect(w, r, srv.URL+"/photos/fox.jpg", http.StatusFound)
		case "/photos/fox.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte{0xff, 0xd8})
		}
	}))
	defer srv.Close()

	res, err := NewChatEverywhereImage(httpclient.New(), srv.URL).Invoke(context.Background(), resolver.Request{Capability: domain.CapAIImage, Input: "a red fox"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.DownloadURL != srv.URL+"/photos/fox.jpg" || res.Model != imageModel {
		t.Errorf("result = %+v", res)
	}
	if m, ok := res.FirstMedia(domain.MediaTypeImage); !ok || m.URL != res.DownloadURL {
		t.Errorf("Media = %+v", res.Media)
	}
}

func TestChatEverywhereImage_NoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no image"))
	}))
	defer srv.Close()

	_, err := NewChatEverywhereImage(httpclient.New(), srv.URL).Invoke(context.Background(), resolver.Request{Capability: domain.CapAIImage, Input: "x"})
	if !errors.Is(err, domain.ErrNoMedia) {
		t.Errorf("error = %v, want ErrNoMedia", err)
	}
}

// =============================================================================
// OpenAI Tests
// =============================================================================

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(httpclient.New(), OpenAIConfig{}); err == nil {
		t.Error("NewOpenAI() without a key should fail")
	}
}

func TestOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Model != "test-model" || len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "hello" {
			t.Errorf("body = %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" Hello there! "}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(httpclient.New(), OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	req := chatRequestFor("gpt", "hello")
	if err := ValidateChat(&req); err != nil {
		t.Fatalf("ValidateChat() error = %v", err)
	}
	res, err := p.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Text != "Hello there!" || res.Model != "test-model" {
		t.Errorf("result = %+v", res)
	}
}

func TestOpenAI_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(httpclient.New(), OpenAIConfig{APIKey: "sk-bad", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	_, err = p.Invoke(context.Background(), chatRequestFor("", "hello"))
	if err == nil || !strings.Contains(err.Error(), "chat completion") {
		t.Errorf("error = %v, want chat completion failure", err)
	}
}
