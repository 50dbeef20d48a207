// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// SubmitService accepts jobs, records them, and hands them to the queue.
// Waking the GPU host is a side effect of submission, never a precondition:
// the client gets its job id back whether or not the host is up yet.
type SubmitService struct {
	Jobs  domain.JobRegistry
	Queue domain.WorkQueue
	Host  domain.HostController

	// WakeTimeout bounds the detached host wake call.
	WakeTimeout time.Duration
}

// NewSubmitService constructs a SubmitService with its dependencies.
func NewSubmitService(j domain.JobRegistry, q domain.WorkQueue, h domain.HostController, wakeTimeout time.Duration) SubmitService {
	return SubmitService{Jobs: j, Queue: q, Host: h, WakeTimeout: wakeTimeout}
}

// Submit validates the envelope, creates the durable record, and enqueues
// the job message. The record is written before the message so that a
// consumer can never receive a job id with no record behind it.
func (s SubmitService) Submit(ctx domain.Context, jobType string, body json.RawMessage) (domain.Job, error) {
	if err := domain.ValidateEnvelope(jobType, body); err != nil {
		return domain.Job{}, err
	}

	now := time.Now().UTC()
	j := domain.Job{
		ID:          uuid.NewString(),
		Status:      domain.JobPending,
		JobType:     jobType,
		RequestBody: body,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Jobs.Create(ctx, j); err != nil {
		return domain.Job{}, fmt.Errorf("create job record: %w", err)
	}

	msg := domain.JobMessage{JobID: j.ID, JobType: jobType, RequestBody: body}
	if err := s.Queue.Enqueue(ctx, msg); err != nil {
		// The record exists but nothing will ever consume it; fail it so the
		// client sees a terminal answer instead of a job stuck in pending.
		if ferr := s.Jobs.Fail(ctx, j.ID, "enqueue failed"); ferr != nil {
			slog.Error("fail after enqueue error", slog.String("job_id", j.ID), slog.Any("error", ferr))
		}
		return domain.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	observability.SubmitJob(jobType)
	s.wakeHost(j.ID)
	return j, nil
}

// wakeHost starts the GPU host in the background. Failures are logged and
// dropped; the idle watcher and the next submission will try again, and the
// queued message waits either way.
func (s SubmitService) wakeHost(jobID string) {
	timeout := s.WakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Host.Start(ctx); err != nil {
			slog.Warn("host wake failed", slog.String("job_id", jobID), slog.Any("error", err))
		}
	}()
}
