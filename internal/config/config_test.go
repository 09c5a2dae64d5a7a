package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero provider timeout", func(c *Config) { c.Resolver.ProviderTimeout = 0 }},
		{"zero threshold", func(c *Config) { c.Resolver.FailureThreshold = 0 }},
		{"zero cooldown", func(c *Config) { c.Resolver.Cooldown = 0 }},
		{"reset window shorter than cooldown", func(c *Config) { c.Resolver.ResetWindow = time.Minute }},
		{"negative cache size", func(c *Config) { c.Resolver.CacheSize = -1 }},
		{"zero poll attempts", func(c *Config) { c.Poll.MaxAttempts = 0 }},
		{"empty user agent", func(c *Config) { c.HTTP.UserAgent = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"negative worker interval", func(c *Config) { c.Worker.TokenRefresh = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "default",
			cfg:  ServerConfig{Host: "0.0.0.0", Port: 5000},
			want: "0.0.0.0:5000",
		},
		{
			name: "localhost",
			cfg:  ServerConfig{Host: "localhost", Port: 8080},
			want: "localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  host: "localhost"
  port: 8080
resolver:
  provider_timeout: 12s
  failure_threshold: 5
poll:
  delay: 2s
tools:
  ytdlp: ""
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("Host = %q, want %q", cfg.Server.Host, "localhost")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Resolver.ProviderTimeout != 12*time.Second {
		t.Errorf("ProviderTimeout = %v, want 12s", cfg.Resolver.ProviderTimeout)
	}
	if cfg.Resolver.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.Resolver.FailureThreshold)
	}
	if cfg.Poll.Delay != 2*time.Second {
		t.Errorf("Poll.Delay = %v, want 2s", cfg.Poll.Delay)
	}
	if cfg.Tools.YTDLP != "" {
		t.Errorf("Tools.YTDLP = %q, want empty", cfg.Tools.YTDLP)
	}
	// untouched values keep their defaults
	if cfg.Resolver.Cooldown != 5*time.Minute {
		t.Errorf("Cooldown = %v, want default 5m", cfg.Resolver.Cooldown)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  port: 8080
ai:
  openai_model: "yaml-model"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("OPENAI_MODEL", "env-model")
	t.Setenv("RESOLVER_COOLDOWN", "2m")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port should be from env, got %d", cfg.Server.Port)
	}
	if cfg.AI.OpenAIModel != "env-model" {
		t.Errorf("OpenAIModel should be from env, got %q", cfg.AI.OpenAIModel)
	}
	if cfg.Resolver.Cooldown != 2*time.Minute {
		t.Errorf("Cooldown = %v, want 2m", cfg.Resolver.Cooldown)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SPOTIFY_TOKEN_TTL", "15m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AI.OpenAIAPIKey != "sk-test" {
		t.Errorf("OpenAIAPIKey = %q, want %q", cfg.AI.OpenAIAPIKey, "sk-test")
	}
	if cfg.Credentials.SpotifyTTL != 15*time.Minute {
		t.Errorf("SpotifyTTL = %v, want 15m", cfg.Credentials.SpotifyTTL)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
server:
  host: "localhost
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("RESOLVER_FAILURE_THRESHOLD", "0")

	_, err := Load("")
	if err == nil {
		t.Error("Load should fail validation with a zero failure threshold")
	}
}

func TestLoad_UpstreamsFromEnv(t *testing.T) {
	t.Setenv("UPSTREAMS", "tikwm:https://tikwm.example,ytdown:http://10.0.0.5:8080")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Upstream("tikwm"); got != "https://tikwm.example" {
		t.Errorf("Upstream(tikwm) = %q, want %q", got, "https://tikwm.example")
	}
	if got := cfg.Upstream("ytdown"); got != "http://10.0.0.5:8080" {
		t.Errorf("Upstream(ytdown) = %q, want %q", got, "http://10.0.0.5:8080")
	}
	if got := cfg.Upstream("vevioz"); got != "" {
		t.Errorf("Upstream(vevioz) = %q, want empty", got)
	}
}

func TestUpstreams_Decode(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    Upstreams
		wantErr bool
	}{
		{"scheme and port kept", "ytdown:http://10.0.0.5:8080", Upstreams{"ytdown": "http://10.0.0.5:8080"}, false},
		{"several items", "tikwm:https://tikwm.example, snapsave:https://s.example/", Upstreams{"tikwm": "https://tikwm.example", "snapsave": "https://s.example/"}, false},
		{"blank items skipped", "tikwm:https://tikwm.example,,", Upstreams{"tikwm": "https://tikwm.example"}, false},
		{"empty", "", Upstreams{}, false},
		{"missing url", "tikwm:", nil, true},
		{"missing name", ":https://tikwm.example", nil, true},
		{"no separator", "tikwm", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Upstreams
			err := got.Decode(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Decode(%q) = %v, want %v", tt.value, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Decode(%q)[%s] = %q, want %q", tt.value, k, got[k], v)
				}
			}
		})
	}
}

func TestLoad_UpstreamsEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "upstreams:\n  tikwm: https://file.example\n  vevioz: https://vevioz.example\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("UPSTREAMS", "tikwm:https://env.example:8443")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Upstream("tikwm"); got != "https://env.example:8443" {
		t.Errorf("Upstream(tikwm) = %q, want %q", got, "https://env.example:8443")
	}
}
