package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	HTTP        HTTPConfig        `yaml:"http"`
	Poll        PollConfig        `yaml:"poll"`
	Stream      StreamConfig      `yaml:"stream"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Tools       ToolsConfig       `yaml:"tools"`
	AI          AIConfig          `yaml:"ai"`
	Worker      WorkerConfig      `yaml:"worker"`
	// Upstreams overrides provider base URLs by provider name, e.g.
	// UPSTREAMS="tikwm:https://tikwm.example,ytdown:http://10.0.0.5".
	Upstreams Upstreams `yaml:"upstreams" envconfig:"UPSTREAMS"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port           int           `yaml:"port" envconfig:"SERVER_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"SERVER_REQUEST_TIMEOUT"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" envconfig:"SERVER_MAX_UPLOAD_BYTES"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// ResolverConfig holds fallback orchestration and health tracking settings.
type ResolverConfig struct {
	ProviderTimeout  time.Duration `yaml:"provider_timeout" envconfig:"RESOLVER_PROVIDER_TIMEOUT"`
	FailureThreshold int           `yaml:"failure_threshold" envconfig:"RESOLVER_FAILURE_THRESHOLD"`
	Cooldown         time.Duration `yaml:"cooldown" envconfig:"RESOLVER_COOLDOWN"`
	ResetWindow      time.Duration `yaml:"reset_window" envconfig:"RESOLVER_RESET_WINDOW"`
	// CacheSize of 0 disables the result cache.
	CacheSize int           `yaml:"cache_size" envconfig:"RESOLVER_CACHE_SIZE"`
	CacheTTL  time.Duration `yaml:"cache_ttl" envconfig:"RESOLVER_CACHE_TTL"`
}

// HTTPConfig holds outbound HTTP settings shared by all adapters.
type HTTPConfig struct {
	UserAgent    string        `yaml:"user_agent" envconfig:"HTTP_USER_AGENT"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"HTTP_TIMEOUT"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" envconfig:"HTTP_MAX_BODY_BYTES"`
}

// PollConfig holds asynchronous job polling settings.
type PollConfig struct {
	MaxAttempts int           `yaml:"max_attempts" envconfig:"POLL_MAX_ATTEMPTS"`
	Delay       time.Duration `yaml:"delay" envconfig:"POLL_DELAY"`
}

// StreamConfig holds settings for proxying resolved media bytes.
type StreamConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"STREAM_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"STREAM_READ_TIMEOUT"`
	MaxRetries    int           `yaml:"max_retries" envconfig:"STREAM_MAX_RETRIES"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"STREAM_RETRY_DELAY"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"STREAM_MAX_RETRY_DELAY"`
}

// CredentialsConfig holds lifetimes of cached upstream credentials.
type CredentialsConfig struct {
	SpotifyTTL time.Duration `yaml:"spotify_ttl" envconfig:"SPOTIFY_TOKEN_TTL"`
	TikTokTTL  time.Duration `yaml:"tiktok_ttl" envconfig:"TIKTOK_SESSION_TTL"`
}

// ToolsConfig holds paths of local helper binaries. Empty disables the
// providers that need them.
type ToolsConfig struct {
	YTDLP   string        `yaml:"ytdlp" envconfig:"YTDLP_PATH"`
	Songrec string        `yaml:"songrec" envconfig:"SONGREC_PATH"`
	FFmpeg  string        `yaml:"ffmpeg" envconfig:"FFMPEG_PATH"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TOOLS_TIMEOUT"`
}

// AIConfig holds chat and image provider configuration.
type AIConfig struct {
	ChatEverywhereURL string  `yaml:"chateverywhere_url" envconfig:"CHATEVERYWHERE_URL"`
	Temperature       float64 `yaml:"temperature" envconfig:"AI_TEMPERATURE"`
	OpenAIAPIKey      string  `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string  `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	OpenAIModel       string  `yaml:"openai_model" envconfig:"OPENAI_MODEL"`
}

// WorkerConfig holds background maintenance settings.
type WorkerConfig struct {
	// TokenRefresh keeps shared upstream credentials warm. Zero disables it.
	TokenRefresh time.Duration `yaml:"token_refresh" envconfig:"WORKER_TOKEN_REFRESH"`
	// HealthReport logs providers in cooldown. Zero disables it.
	HealthReport time.Duration `yaml:"health_report" envconfig:"WORKER_HEALTH_REPORT"`
}

// Default returns the configuration used when neither the file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			RequestTimeout: 3 * time.Minute,
			MaxUploadBytes: 10 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Resolver: ResolverConfig{
			ProviderTimeout:  20 * time.Second,
			FailureThreshold: 3,
			Cooldown:         5 * time.Minute,
			ResetWindow:      10 * time.Minute,
			CacheSize:        512,
			CacheTTL:         10 * time.Minute,
		},
		HTTP: HTTPConfig{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Timeout:      15 * time.Second,
			MaxBodyBytes: 8 << 20,
		},
		Poll: PollConfig{
			MaxAttempts: 4,
			Delay:       1500 * time.Millisecond,
		},
		Stream: StreamConfig{
			Timeout:       15 * time.Second,
			ReadTimeout:   60 * time.Second,
			MaxRetries:    3,
			RetryDelay:    time.Second,
			MaxRetryDelay: 10 * time.Second,
		},
		Credentials: CredentialsConfig{
			SpotifyTTL: 30 * time.Minute,
			TikTokTTL:  10 * time.Minute,
		},
		Tools: ToolsConfig{
			YTDLP:   "yt-dlp",
			Songrec: "songrec",
			FFmpeg:  "ffmpeg",
			Timeout: 45 * time.Second,
		},
		AI: AIConfig{
			ChatEverywhereURL: "https://chateverywhere.app",
			Temperature:       0.7,
			OpenAIBaseURL:     "https://api.openai.com/v1",
			OpenAIModel:       "gpt-4o-mini",
		},
		Worker: WorkerConfig{
			TokenRefresh: 5 * time.Minute,
			HealthReport: time.Minute,
		},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values, which override defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Resolver.ProviderTimeout <= 0 {
		return fmt.Errorf("RESOLVER_PROVIDER_TIMEOUT must be positive")
	}
	if c.Resolver.FailureThreshold < 1 {
		return fmt.Errorf("RESOLVER_FAILURE_THRESHOLD must be at least 1")
	}
	if c.Resolver.Cooldown <= 0 {
		return fmt.Errorf("RESOLVER_COOLDOWN must be positive")
	}
	if c.Resolver.ResetWindow < c.Resolver.Cooldown {
		return fmt.Errorf("RESOLVER_RESET_WINDOW (%s) must not be shorter than RESOLVER_COOLDOWN (%s)",
			c.Resolver.ResetWindow, c.Resolver.Cooldown)
	}
	if c.Resolver.CacheSize < 0 {
		return fmt.Errorf("RESOLVER_CACHE_SIZE must not be negative")
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("HTTP_USER_AGENT is required")
	}
	if c.Worker.TokenRefresh < 0 || c.Worker.HealthReport < 0 {
		return fmt.Errorf("WORKER_* intervals must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Upstreams maps provider names to base URLs.
type Upstreams map[string]string

// Decode parses "name:url,name:url". Each item splits on its first colon
// so URLs keep their scheme and port.
func (u *Upstreams) Decode(value string) error {
	m := make(Upstreams)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, base, ok := strings.Cut(item, ":")
		name, base = strings.TrimSpace(name), strings.TrimSpace(base)
		if !ok || name == "" || base == "" {
			return fmt.Errorf("invalid upstream %q: want name:url", item)
		}
		m[name] = base
	}
	*u = m
	return nil
}

// Upstream returns the base URL override for provider, or "" to use the
// provider's default.
func (c *Config) Upstream(provider string) string {
	return c.Upstreams[provider]
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseLevel maps a level name onto a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", level)
}
