package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 300*time.Second, cfg.VisibilityTimeout)
	assert.Equal(t, 20*time.Second, cfg.ReceiveWait)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 600*time.Second, cfg.JobDeadline)
	assert.Equal(t, 3, cfg.MaxReceives)
	assert.Equal(t, 300*time.Second, cfg.IdleSample)
	assert.Equal(t, 6, cfg.IdlePeriods)
	assert.Equal(t, "job_registry", cfg.RegistryTable)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/1/gpu_tasks")
	t.Setenv("HOST_ID", "i-0abc")
	t.Setenv("VISIBILITY_TIMEOUT", "120s")
	t.Setenv("JOB_DEADLINE", "300s")
	t.Setenv("IDLE_PERIODS", "3")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1/gpu_tasks", cfg.QueueURL)
	assert.Equal(t, "i-0abc", cfg.HostID)
	assert.Equal(t, 120*time.Second, cfg.VisibilityTimeout)
	assert.Equal(t, 3, cfg.IdlePeriods)
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("VISIBILITY_TIMEOUT", "five minutes")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_DeadlineShorterThanLease(t *testing.T) {
	t.Setenv("VISIBILITY_TIMEOUT", "600s")
	t.Setenv("JOB_DEADLINE", "60s")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_InvalidIdlePeriods(t *testing.T) {
	t.Setenv("IDLE_PERIODS", "0")
	_, err := config.Load()
	require.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDev())
	assert.False(t, cfg.IsTest())
}
