package observability

import (
	"log/slog"
	"os"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/config"
)

// SetupLogger builds the process-wide JSON logger. Every record carries the
// service name and environment so the orchestrator, worker, and idle watcher
// are distinguishable in a shared log stream. LOG_LEVEL overrides the
// env-based default of debug in dev and info elsewhere.
func SetupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	if cfg.LogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
			level = l
		}
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}
