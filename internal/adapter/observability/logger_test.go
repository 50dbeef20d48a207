package observability_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/config"
)

func TestSetupLoggerLevels(t *testing.T) {
	cases := []struct {
		name        string
		cfg         config.Config
		debugOn     bool
		wantEnabled slog.Level
	}{
		{"dev defaults to debug", config.Config{AppEnv: "dev"}, true, slog.LevelDebug},
		{"prod defaults to info", config.Config{AppEnv: "prod"}, false, slog.LevelInfo},
		{"LOG_LEVEL overrides env", config.Config{AppEnv: "prod", LogLevel: "debug"}, true, slog.LevelDebug},
		{"bad LOG_LEVEL falls back", config.Config{AppEnv: "prod", LogLevel: "shout"}, false, slog.LevelInfo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger := observability.SetupLogger(tc.cfg)
			assert.Equal(t, tc.debugOn, logger.Enabled(context.Background(), slog.LevelDebug))
			assert.True(t, logger.Enabled(context.Background(), tc.wantEnabled))
		})
	}
}
