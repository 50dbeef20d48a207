// Command worker runs the queue-to-engine adapter on the GPU host.
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

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/engine"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	queuesqs "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/queue/sqs"
	registrydynamo "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/registry/dynamo"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/config"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("aws config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	registry := registrydynamo.NewRegistry(awsCfg, cfg.RegistryTable, cfg.RecordTTL)
	queue := queuesqs.NewQueue(awsCfg, cfg.QueueURL)
	eng := engine.New(cfg.EngineBaseURL, 30*time.Second)

	// Standalone metrics endpoint; the worker carries no API surface.
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

	adapter := worker.New(queue, registry, eng,
		cfg.ReceiveWait, cfg.PollInterval, cfg.JobDeadline, cfg.VisibilityTimeout, cfg.MaxReceives)

	if err := adapter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker exited", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
