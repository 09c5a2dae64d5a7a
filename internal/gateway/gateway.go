// Package gateway wires configuration, adapters and the resolution engine
// together. It is the only place that knows which providers serve which
// capability and in what order.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iconidentify/mediagrab/internal/config"
	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/downloader"
	"github.com/iconidentify/mediagrab/internal/health"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/internal/toolexec"
	"github.com/iconidentify/mediagrab/internal/worker"
	"github.com/iconidentify/mediagrab/pkg/ai"
	"github.com/iconidentify/mediagrab/pkg/credential"
	"github.com/iconidentify/mediagrab/pkg/facebook"
	"github.com/iconidentify/mediagrab/pkg/ffmpeg"
	"github.com/iconidentify/mediagrab/pkg/instagram"
	"github.com/iconidentify/mediagrab/pkg/shazam"
	"github.com/iconidentify/mediagrab/pkg/spotify"
	"github.com/iconidentify/mediagrab/pkg/textnorm"
	"github.com/iconidentify/mediagrab/pkg/tiktok"
	"github.com/iconidentify/mediagrab/pkg/youtube"
)

// EmptySearchMessage rejects a blank YouTube search.
const EmptySearchMessage = "Query parameter 'q' is required"

// nestedTimeoutFactor scales the provider timeout for composite providers
// that resolve other capabilities in turn.
const nestedTimeoutFactor = 3

// Gateway holds everything the HTTP layer needs.
type Gateway struct {
	Engine     *resolver.Engine
	Health     *health.Breaker
	Metrics    *resolver.Metrics
	Downloader *downloader.HTTPDownloader
	// Transcoder is nil when ffmpeg is not installed.
	Transcoder *ffmpeg.Transcoder
	// SpotifyToken is the shared anonymous Spotify credential.
	SpotifyToken *credential.Cache
	// Tools reports which local helpers were found at startup.
	Tools map[string]bool
	// Tasks are the background jobs to run in a worker pool.
	Tasks []worker.Task
}

// Option configures New.
type Option func(*options)

type options struct {
	runner    toolexec.Runner
	toolCheck func(string) bool
}

// WithRunner replaces the process runner used by yt-dlp and songrec.
func WithRunner(r toolexec.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithToolCheck replaces the PATH lookup that decides whether local
// helpers are registered.
func WithToolCheck(fn func(string) bool) Option {
	return func(o *options) { o.toolCheck = fn }
}

// New builds the registry, health tracker and engine from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{
		runner:    toolexec.New(cfg.Tools.Timeout),
		toolCheck: toolexec.Available,
	}
	for _, opt := range opts {
		opt(&o)
	}

	client := httpclient.New(
		httpclient.WithTimeout(cfg.HTTP.Timeout),
		httpclient.WithUserAgent(cfg.HTTP.UserAgent),
		httpclient.WithMaxBody(cfg.HTTP.MaxBodyBytes),
	)

	b := &builder{
		cfg:       cfg,
		logger:    logger,
		client:    client,
		runner:    o.runner,
		toolCheck: o.toolCheck,
		deferred:  &resolver.Deferred{},
		tools:     make(map[string]bool),
	}

	providers, err := b.providers()
	if err != nil {
		return nil, err
	}
	reg, err := resolver.NewRegistry(providers, validators())
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	breaker := health.NewBreaker(health.Config{
		FailureThreshold: cfg.Resolver.FailureThreshold,
		Cooldown:         cfg.Resolver.Cooldown,
		ResetWindow:      cfg.Resolver.ResetWindow,
	})

	metrics := resolver.NewMetrics()
	nested := nestedTimeoutFactor * cfg.Resolver.ProviderTimeout
	engine := resolver.NewEngine(reg, breaker,
		resolver.WithProviderTimeout(cfg.Resolver.ProviderTimeout),
		resolver.WithCapabilityTimeout(domain.CapSpotifyDownload, nested),
		resolver.WithCache(resolver.NewResultCache(cfg.Resolver.CacheSize, cfg.Resolver.CacheTTL)),
		resolver.WithMetrics(metrics),
		resolver.WithLogger(logger.With("component", "resolver")),
	)
	b.deferred.Set(engine)

	g := &Gateway{
		Engine:       engine,
		Health:       breaker,
		Metrics:      metrics,
		Downloader:   downloader.NewHTTPDownloader(cfg.Stream, cfg.HTTP.UserAgent, logger),
		SpotifyToken: b.spotifyToken,
		Tools:        b.tools,
	}
	if cfg.Tools.FFmpeg != "" && o.toolCheck(cfg.Tools.FFmpeg) {
		g.Transcoder = ffmpeg.NewTranscoder(cfg.Tools.FFmpeg)
		b.tools["ffmpeg"] = true
		logFFmpegVersion(g.Transcoder, logger)
	} else {
		b.tools["ffmpeg"] = false
	}
	g.Tasks = maintenanceTasks(cfg.Worker, g, logger.With("component", "maintenance"))

	for _, c := range domain.Capabilities() {
		var names []string
		for _, p := range reg.ListFor(c) {
			names = append(names, p.Name())
		}
		if len(names) == 0 {
			logger.Warn("capability has no providers", "capability", string(c))
			continue
		}
		logger.Info("capability registered", "capability", string(c), "providers", names)
	}
	return g, nil
}

type builder struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *httpclient.Client
	runner    toolexec.Runner
	toolCheck func(string) bool
	deferred  *resolver.Deferred

	spotifyToken *credential.Cache
	tools        map[string]bool
}

func (b *builder) url(provider string) string {
	return b.cfg.Upstream(provider)
}

// tool reports whether a configured helper binary can be used and records
// the outcome.
func (b *builder) tool(name, path string) bool {
	ok := path != "" && b.toolCheck(path)
	b.tools[name] = ok
	if !ok {
		b.logger.Warn("local helper not available, provider disabled", "tool", name, "path", path)
	}
	return ok
}

func (b *builder) providers() (map[domain.Capability][]resolver.Provider, error) {
	cfg := b.cfg
	c := b.client

	ytConvert := []resolver.Provider{
		youtube.NewYtdown(c, youtube.YtdownConfig{
			BaseURL: b.url("ytdown"),
			Poll: downloader.PollConfig{
				MaxAttempts: cfg.Poll.MaxAttempts,
				Delay:       cfg.Poll.Delay,
			},
		}, b.logger.With("provider", "ytdown")),
		youtube.NewVevioz(c, b.url("vevioz")),
		youtube.NewRinodepot(c, b.url("rinodepot")),
	}
	ytSearch := []resolver.Provider{
		youtube.NewRinodepotSearch(c, b.url("rinodepot-search")),
	}
	if b.tool("yt-dlp", cfg.Tools.YTDLP) {
		ytConvert = append(ytConvert, youtube.NewYTDLP(b.runner, cfg.Tools.YTDLP))
		ytSearch = append(ytSearch, youtube.NewYTDLPSearch(b.runner, cfg.Tools.YTDLP))
	}

	fetcher := spotify.NewTokenFetcher(c, b.url("spotify-token"), b.logger)
	b.spotifyToken = spotify.NewTokenCache(fetcher, cfg.Credentials.SpotifyTTL)

	var recognize []resolver.Provider
	if b.tool("songrec", cfg.Tools.Songrec) {
		recognize = append(recognize, shazam.NewSongrec(b.runner, cfg.Tools.Songrec, b.logger))
	}

	chat := []resolver.Provider{
		ai.NewChatEverywhere(c, firstNonEmpty(b.url("chateverywhere"), cfg.AI.ChatEverywhereURL), cfg.AI.Temperature),
	}
	if cfg.AI.OpenAIAPIKey != "" {
		p, err := ai.NewOpenAI(c, ai.OpenAIConfig{
			APIKey:      cfg.AI.OpenAIAPIKey,
			BaseURL:     firstNonEmpty(b.url("openai"), cfg.AI.OpenAIBaseURL),
			Model:       cfg.AI.OpenAIModel,
			Temperature: cfg.AI.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		chat = append(chat, p)
	}

	return map[domain.Capability][]resolver.Provider{
		domain.CapYouTubeConvert: ytConvert,
		domain.CapYouTubeSearch:  ytSearch,
		domain.CapTikTokFetch: {
			tiktok.NewSsstik(c, tiktok.SsstikConfig{
				BaseURL:    b.url("ssstik"),
				SessionTTL: cfg.Credentials.TikTokTTL,
			}, b.logger),
			tiktok.NewTikwm(c, b.url("tikwm")),
		},
		domain.CapInstagramFetch: {
			instagram.NewGraphQL(c, b.url("graphql")),
			instagram.NewSnapSave(c, b.url("snapsave")),
			instagram.NewFastDL(c, b.url("fastdl")),
			instagram.NewFastDLJSON(c, b.url("fastdl-json")),
			instagram.NewSaveFrom(c, b.url("savefrom")),
		},
		domain.CapFacebookFetch: {
			facebook.NewFDownloader(c, b.url("fdownloader")),
			facebook.NewGetMyFB(c, b.url("getmyfb")),
			facebook.NewOpenGraph(c, b.url("opengraph")),
		},
		domain.CapSpotifySearch: {
			spotify.NewAPISearch(c, b.url("spotify-api"), b.spotifyToken),
			spotify.NewITunes(c, b.url("itunes-search")),
		},
		domain.CapSpotifyResolveTrack: {
			spotify.NewAPITrack(c, b.url("spotify-api"), b.spotifyToken),
			spotify.NewEmbed(c, b.url("spotify-embed")),
		},
		domain.CapSpotifyDownload: {
			spotify.NewYouTubeBridge(b.deferred, b.logger),
			spotify.NewYouTubeDirect(b.deferred),
		},
		domain.CapShazamSearch: {
			shazam.NewAMAPI(c, b.url("shazam-amapi")),
			shazam.NewWebV4(c, b.url("shazam-web-v4")),
			shazam.NewWebV3(c, b.url("shazam-web-v3")),
		},
		domain.CapShazamTrack: {
			shazam.NewDiscovery(c, b.url("shazam-discovery")),
		},
		domain.CapShazamRecognize: recognize,
		domain.CapAIChat:          chat,
		domain.CapAIImage: {
			ai.NewChatEverywhereImage(c, firstNonEmpty(b.url("chateverywhere-image"), cfg.AI.ChatEverywhereURL)),
		},
	}, nil
}

func validators() map[domain.Capability]resolver.Validator {
	return map[domain.Capability]resolver.Validator{
		domain.CapYouTubeConvert:      youtube.ValidateConvert,
		domain.CapYouTubeSearch:       searchQuery(EmptySearchMessage),
		domain.CapTikTokFetch:         tiktok.ValidateURL,
		domain.CapInstagramFetch:      instagram.ValidateURL,
		domain.CapFacebookFetch:       facebook.ValidateURL,
		domain.CapSpotifySearch:       searchQuery(spotify.EmptyQueryMessage),
		domain.CapSpotifyResolveTrack: spotify.ValidateTrack,
		domain.CapSpotifyDownload:     spotify.ValidateDownload,
		domain.CapShazamSearch:        shazam.ValidateQuery,
		domain.CapShazamTrack:         shazam.ValidateKey,
		domain.CapShazamRecognize:     shazam.ValidateAudio,
		domain.CapAIChat:              ai.ValidateChat,
		domain.CapAIImage:             ai.ValidateImage,
	}
}

// searchQuery normalises free text and rejects it when nothing is left.
func searchQuery(msg string) resolver.Validator {
	return func(req *resolver.Request) error {
		req.Input = textnorm.Query(req.Input)
		if req.Input == "" {
			return domain.NewInputError(req.Capability, msg)
		}
		return nil
	}
}

func logFFmpegVersion(t *ffmpeg.Transcoder, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := t.Version(ctx)
	if err != nil {
		logger.Warn("ffmpeg version check failed", "error", err)
		return
	}
	logger.Info("ffmpeg available, transcoding enabled", "version", v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
