// Command orchestrator starts the always-on job submission API.
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

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/artifact"
	hostec2 "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/host/ec2"
	httpserver "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/httpserver"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	queuesqs "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/queue/sqs"
	registrydynamo "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/registry/dynamo"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/app"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/config"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/usecase"
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

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("aws config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Driven adapters
	registry := registrydynamo.NewRegistry(awsCfg, cfg.RegistryTable, cfg.RecordTTL)
	queue := queuesqs.NewQueue(awsCfg, cfg.QueueURL)
	host := hostec2.NewController(awsCfg, cfg.HostID, cfg.HostControlTimeout)
	artifacts := artifact.NewS3Store(awsCfg, cfg.ArtifactBucket)

	// Usecases
	submitSvc := usecase.NewSubmitService(registry, queue, host, cfg.HostControlTimeout)
	statusSvc := usecase.NewStatusService(registry)
	healthSvc := usecase.NewHealthService(registry, queue, host)
	artifactSvc := usecase.NewArtifactService(artifacts)

	srv := httpserver.NewServer(submitSvc, statusSvc, healthSvc, artifactSvc)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
