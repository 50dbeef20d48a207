// Command idlewatcher samples queue depth and stops the GPU host after
// sustained idleness.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	hostec2 "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/host/ec2"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	queuesqs "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/queue/sqs"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/config"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/idle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("aws config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	queue := queuesqs.NewQueue(awsCfg, cfg.QueueURL)
	host := hostec2.NewController(awsCfg, cfg.HostID, cfg.HostControlTimeout)

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics server starting", slog.Int("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	detector := idle.New(queue, host, cfg.IdleSample, cfg.IdlePeriods, 0)
	if cfg.DLQURL != "" {
		detector.DLQ = queuesqs.NewQueue(awsCfg, cfg.DLQURL)
	}
	if err := detector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("idle detector exited", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
