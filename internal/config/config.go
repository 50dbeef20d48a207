// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
// The same structure is shared by the orchestrator, the worker adapter, and
// the idle watcher; each process reads the subset it needs.
type Config struct {
	AppEnv    string `env:"APP_ENV" envDefault:"dev"`
	Port      int    `env:"PORT" envDefault:"8080"`
	AWSRegion string `env:"AWS_REGION" envDefault:"us-east-1"`

	// Work queue (SQS).
	QueueURL string `env:"QUEUE_URL"`
	DLQURL   string `env:"DLQ_URL"`
	// VisibilityTimeout is the per-message lease V; the queue redelivers a
	// message that is not acknowledged within it.
	VisibilityTimeout time.Duration `env:"VISIBILITY_TIMEOUT" envDefault:"300s"`
	ReceiveWait       time.Duration `env:"RECEIVE_WAIT" envDefault:"20s"`
	// MaxReceives is the redrive threshold R after which the queue diverts a
	// message to the dead-letter sink. The worker only logs when a delivery
	// approaches it; enforcement belongs to the queue.
	MaxReceives int `env:"MAX_RECEIVES" envDefault:"3"`

	// Job registry (DynamoDB).
	RegistryTable string `env:"REGISTRY_TABLE" envDefault:"job_registry"`
	// RecordTTL controls automatic expiry of job records long after they
	// reach a terminal state. Zero disables TTL.
	RecordTTL time.Duration `env:"RECORD_TTL" envDefault:"720h"`

	// Compute host (EC2).
	HostID             string        `env:"HOST_ID"`
	HostControlTimeout time.Duration `env:"HOST_CONTROL_TIMEOUT" envDefault:"10s"`

	// Inference engine on the GPU host.
	EngineBaseURL string        `env:"ENGINE_BASE_URL" envDefault:"http://localhost:8000"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	JobDeadline   time.Duration `env:"JOB_DEADLINE" envDefault:"600s"`

	// Idle shutdown policy.
	IdleSample  time.Duration `env:"IDLE_SAMPLE" envDefault:"300s"`
	IdlePeriods int           `env:"IDLE_PERIODS" envDefault:"6"`

	// Result artifacts (S3).
	ArtifactBucket string `env:"ARTIFACT_BUCKET"`

	// HTTP server.
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// Observability.
	// LogLevel overrides the env-based default (debug in dev, info
	// otherwise); accepts slog level names such as warn or error.
	LogLevel        string `env:"LOG_LEVEL" envDefault:""`
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"gpu-job-dispatcher"`
	MetricsPort     int    `env:"METRICS_PORT" envDefault:"9090"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.VisibilityTimeout <= 0 {
		return fmt.Errorf("VISIBILITY_TIMEOUT must be positive")
	}
	if c.JobDeadline < c.VisibilityTimeout {
		return fmt.Errorf("JOB_DEADLINE must be at least VISIBILITY_TIMEOUT")
	}
	if c.IdlePeriods < 1 {
		return fmt.Errorf("IDLE_PERIODS must be at least 1")
	}
	if c.MaxReceives < 1 {
		return fmt.Errorf("MAX_RECEIVES must be at least 1")
	}
	return nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
