package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/mediagrab/internal/api"
	"github.com/iconidentify/mediagrab/internal/api/handler"
	"github.com/iconidentify/mediagrab/internal/config"
	"github.com/iconidentify/mediagrab/internal/gateway"
	"github.com/iconidentify/mediagrab/internal/worker"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediagrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting mediagrab",
		"version", Version,
		"build_time", BuildTime,
	)

	// Build providers, health tracking and the engine
	g, err := gateway.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}

	// A nil *ffmpeg.Transcoder must stay a nil interface.
	var transcoder handler.Transcoder
	if g.Transcoder != nil {
		transcoder = g.Transcoder
	}

	// Initialize handlers
	mediaHandler := handler.NewMediaHandler(g.Engine, logger)
	musicHandler := handler.NewMusicHandler(g.Engine, cfg.Server.MaxUploadBytes, logger)
	aiHandler := handler.NewAIHandler(g.Engine, logger)
	streamHandler := handler.NewStreamHandler(g.Downloader, transcoder, logger)
	healthHandler := handler.NewHealthHandler(g.Engine, g.Tools)
	indexHandler := handler.NewIndexHandler(Version, api.Endpoints)

	// Setup router
	router := api.NewRouter(
		mediaHandler,
		musicHandler,
		aiHandler,
		streamHandler,
		healthHandler,
		indexHandler,
		g.Metrics.Handler(),
		cfg.Server.RequestTimeout,
	)

	// Start background maintenance
	pool := worker.NewPool(g.Tasks, logger)
	pool.Start()

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := pool.Stop(5 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
