package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain/mocks"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/usecase"
)

func TestHealthAllOK(t *testing.T) {
	jobs := new(mocks.MockJobRegistry)
	queue := new(mocks.MockWorkQueue)
	host := new(mocks.MockHostController)

	jobs.On("Ping", mock.Anything).Return(nil)
	queue.On("Ping", mock.Anything).Return(nil)
	host.On("Describe", mock.Anything).Return(domain.HostInfo{State: domain.HostRunning}, nil)

	rep := usecase.NewHealthService(jobs, queue, host).Check(context.Background())
	assert.True(t, rep.Healthy)
	assert.Equal(t, "ok", rep.Components["registry"])
	assert.Equal(t, "ok", rep.Components["queue"])
	assert.Equal(t, "ok", rep.Components["host"])
}

func TestHealthHostValueIsNeverRawState(t *testing.T) {
	cases := []struct {
		name  string
		state domain.HostState
		err   error
		want  string
	}{
		{"running", domain.HostRunning, nil, "ok"},
		{"stopped", domain.HostStopped, nil, "ok"},
		{"starting", domain.HostStarting, nil, "ok"},
		{"unreachable", "", domain.ErrUnavailable, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := new(mocks.MockJobRegistry)
			queue := new(mocks.MockWorkQueue)
			host := new(mocks.MockHostController)

			jobs.On("Ping", mock.Anything).Return(nil)
			queue.On("Ping", mock.Anything).Return(nil)
			host.On("Describe", mock.Anything).Return(domain.HostInfo{State: tc.state}, tc.err)

			rep := usecase.NewHealthService(jobs, queue, host).Check(context.Background())
			assert.Equal(t, tc.want, rep.Components["host"])
		})
	}
}

func TestHealthHostDownIsStillHealthy(t *testing.T) {
	jobs := new(mocks.MockJobRegistry)
	queue := new(mocks.MockWorkQueue)
	host := new(mocks.MockHostController)

	jobs.On("Ping", mock.Anything).Return(nil)
	queue.On("Ping", mock.Anything).Return(nil)
	host.On("Describe", mock.Anything).Return(domain.HostInfo{}, domain.ErrUnavailable)

	rep := usecase.NewHealthService(jobs, queue, host).Check(context.Background())
	assert.True(t, rep.Healthy)
	assert.Equal(t, "unknown", rep.Components["host"])
}

func TestHealthQueueDown(t *testing.T) {
	jobs := new(mocks.MockJobRegistry)
	queue := new(mocks.MockWorkQueue)
	host := new(mocks.MockHostController)

	jobs.On("Ping", mock.Anything).Return(nil)
	queue.On("Ping", mock.Anything).Return(domain.ErrUnavailable)
	host.On("Describe", mock.Anything).Return(domain.HostInfo{State: domain.HostStopped}, nil)

	rep := usecase.NewHealthService(jobs, queue, host).Check(context.Background())
	assert.False(t, rep.Healthy)
	assert.Equal(t, "unavailable", rep.Components["queue"])
}
