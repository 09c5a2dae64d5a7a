package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/iconidentify/mediagrab/internal/config"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/internal/worker"
)

// maintenanceTasks returns the background jobs for g. A zero interval in
// cfg leaves the matching task out.
func maintenanceTasks(cfg config.WorkerConfig, g *Gateway, logger *slog.Logger) []worker.Task {
	var tasks []worker.Task
	if cfg.TokenRefresh > 0 && g.SpotifyToken != nil {
		tasks = append(tasks, worker.Task{
			Name:       "spotify-token",
			Interval:   cfg.TokenRefresh,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				_, err := g.SpotifyToken.Token(ctx)
				return err
			},
		})
	}
	if cfg.HealthReport > 0 {
		tasks = append(tasks, worker.Task{
			Name:     "health-report",
			Interval: cfg.HealthReport,
			Run: func(ctx context.Context) error {
				reportCooldowns(g.Engine.Providers(), logger)
				return nil
			},
		})
	}
	return tasks
}

// reportCooldowns logs every provider currently skipped by the engine and
// returns how many there were.
func reportCooldowns(statuses []resolver.ProviderStatus, logger *slog.Logger) int {
	n := 0
	for _, st := range statuses {
		if st.Available {
			continue
		}
		n++
		attrs := []any{
			"capability", string(st.Capability),
			"provider", st.Provider,
			"failures", st.FailureCount,
		}
		if st.CooldownUntil != nil {
			attrs = append(attrs, "retry_in", time.Until(*st.CooldownUntil).Round(time.Second))
		}
		logger.Warn("provider in cooldown", attrs...)
	}
	return n
}
