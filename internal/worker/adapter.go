// Package worker pulls job messages off the queue and drives them through
// the inference engine on the GPU host.
//
// The loop is single-threaded and cooperative. Correctness under
// at-least-once delivery rests on two rules: the registry commit is
// conditional and never overwrites a terminal record, and a message is
// acknowledged only after a terminal commit is durable. Everything else is
// allowed to be repeated.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// Adapter is the queue-to-engine run loop.
type Adapter struct {
	Queue  domain.WorkQueue
	Jobs   domain.JobRegistry
	Engine domain.EngineClient

	// ReceiveWait is the long-poll wait per receive.
	ReceiveWait time.Duration
	// PollInterval is the engine status poll period.
	PollInterval time.Duration
	// JobDeadline bounds total effort per delivery; on expiry the record is
	// failed with "deadline exceeded".
	JobDeadline time.Duration
	// Visibility is the queue's invisibility lease. While polling, the lease
	// is renewed in steps of half its length so slow jobs are not redelivered
	// mid-flight.
	Visibility time.Duration
	// MaxReceives is the queue's redrive threshold. The queue enforces it;
	// the worker only flags deliveries on their last attempt.
	MaxReceives int
}

// New constructs an Adapter.
func New(q domain.WorkQueue, j domain.JobRegistry, e domain.EngineClient, wait, poll, deadline, visibility time.Duration, maxReceives int) *Adapter {
	return &Adapter{
		Queue:        q,
		Jobs:         j,
		Engine:       e,
		ReceiveWait:  wait,
		PollInterval: poll,
		JobDeadline:  deadline,
		Visibility:   visibility,
		MaxReceives:  maxReceives,
	}
}

// Run receives and processes messages until the context is canceled.
func (a *Adapter) Run(ctx context.Context) error {
	slog.Info("worker started",
		slog.Duration("receive_wait", a.ReceiveWait),
		slog.Duration("job_deadline", a.JobDeadline),
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping")
			return ctx.Err()
		default:
		}

		d, err := a.Queue.Receive(ctx, a.ReceiveWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("receive failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.ReceiveWait):
			}
			continue
		}
		if d == nil {
			continue
		}
		a.Handle(ctx, d)
	}
}

// Handle processes one delivery end to end. It never returns an error; every
// outcome is either an ack, or a deliberate non-ack that lets the visibility
// lease lapse and the queue redeliver.
func (a *Adapter) Handle(ctx context.Context, d *domain.Delivery) {
	var msg domain.JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" {
		slog.Warn("malformed message dropped", slog.Any("error", err), slog.Int("receive_count", d.ReceiveCount))
		a.ack(ctx, d)
		return
	}
	log := slog.Default().With(slog.String("job_id", msg.JobID), slog.String("job_type", msg.JobType))
	if a.MaxReceives > 0 && d.ReceiveCount >= a.MaxReceives {
		log.Warn("final delivery attempt before dead-letter", slog.Int("receive_count", d.ReceiveCount))
	}

	j, err := a.Jobs.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("no record behind message, dropping")
			a.ack(ctx, d)
			return
		}
		log.Error("registry lookup failed", slog.Any("error", err))
		return
	}
	if j.Status.Terminal() {
		log.Info("record already terminal, dropping duplicate delivery", slog.String("status", string(j.Status)))
		a.ack(ctx, d)
		return
	}

	j, err = a.Jobs.Claim(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrTerminalState) {
			// Another delivery won between lookup and claim.
			a.ack(ctx, d)
			return
		}
		log.Error("claim failed", slog.Any("error", err))
		return
	}
	log.Info("claimed", slog.Int("attempt", j.Attempts))
	observability.StartProcessingJob(msg.JobType)

	submitCtx, cancelSubmit := context.WithTimeout(ctx, a.submitBudget())
	workerJobID, err := a.Engine.Submit(submitCtx, msg.JobType, msg.RequestBody)
	cancelSubmit()
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			// The engine will reject this payload on every redelivery.
			a.commitAndAck(ctx, d, msg, func(c context.Context) error {
				return a.Jobs.Fail(c, msg.JobID, truncate(err.Error()))
			}, observability.FailJob)
			return
		}
		observability.AbandonJob(msg.JobType)
		log.Warn("engine submit failed, leaving message for redelivery", slog.Any("error", err))
		return
	}
	if err := a.Jobs.SetWorkerJobID(ctx, msg.JobID, workerJobID); err != nil {
		log.Warn("store worker job id failed", slog.Any("error", err))
	}
	log.Info("submitted to engine", slog.String("worker_job_id", workerJobID))

	st, err := a.poll(ctx, d, workerJobID, log)
	if err != nil {
		// Context canceled mid-poll; the lease will lapse and the next
		// receiver repeats from submit.
		observability.AbandonJob(msg.JobType)
		return
	}

	switch st.Status {
	case domain.JobCompleted:
		a.commitAndAck(ctx, d, msg, func(c context.Context) error {
			return a.Jobs.Complete(c, msg.JobID, st.ResultURL)
		}, observability.CompleteJob)
	default:
		errMsg := st.Error
		if errMsg == "" {
			errMsg = fmt.Sprintf("engine reported %s", st.Status)
		}
		a.commitAndAck(ctx, d, msg, func(c context.Context) error {
			return a.Jobs.Fail(c, msg.JobID, truncate(errMsg))
		}, observability.FailJob)
	}
}

// submitBudget bounds one engine submit, retries included. Half the
// visibility lease keeps a down engine from holding the delivery until the
// queue hands it to someone else; the job deadline applies when it is the
// tighter of the two.
func (a *Adapter) submitBudget() time.Duration {
	b := a.JobDeadline
	if half := a.Visibility / 2; half < b {
		b = half
	}
	return b
}

// poll queries the engine every PollInterval until it reports a terminal
// state or JobDeadline elapses. The visibility lease is renewed in steps of
// half the lease length so the message stays invisible throughout.
func (a *Adapter) poll(ctx context.Context, d *domain.Delivery, workerJobID string, log *slog.Logger) (domain.EngineStatus, error) {
	deadline := time.Now().Add(a.JobDeadline)
	nextExtend := time.Now().Add(a.Visibility / 2)

	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.EngineStatus{}, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			log.Warn("job deadline exceeded", slog.String("worker_job_id", workerJobID))
			return domain.EngineStatus{Status: domain.JobFailed, Error: "deadline exceeded"}, nil
		}

		if time.Now().After(nextExtend) {
			if err := a.Queue.ExtendVisibility(ctx, d.Receipt, a.Visibility); err != nil {
				log.Warn("visibility extension failed", slog.Any("error", err))
			}
			nextExtend = time.Now().Add(a.Visibility / 2)
		}

		st, err := a.Engine.Status(ctx, workerJobID)
		if err != nil {
			if ctx.Err() != nil {
				return domain.EngineStatus{}, ctx.Err()
			}
			// Transient; the deadline bounds how long this can go on.
			log.Warn("engine status failed", slog.Any("error", err))
			continue
		}
		if st.Status.Terminal() {
			return st, nil
		}
	}
}

// commitAndAck writes the terminal state and acknowledges the message only
// when the commit is durable. A conditional-write refusal means another
// delivery already committed; that also counts as durable. The outcome
// counter is recorded only then, so a failed commit followed by redelivery
// does not count the job twice.
func (a *Adapter) commitAndAck(ctx context.Context, d *domain.Delivery, msg domain.JobMessage, commit func(context.Context) error, record func(string)) {
	if err := commit(ctx); err != nil && !errors.Is(err, domain.ErrTerminalState) {
		slog.Error("terminal commit failed, leaving message for redelivery",
			slog.String("job_id", msg.JobID), slog.Any("error", err))
		observability.AbandonJob(msg.JobType)
		return
	}
	record(msg.JobType)
	a.ack(ctx, d)
}

func (a *Adapter) ack(ctx context.Context, d *domain.Delivery) {
	if err := a.Queue.Delete(ctx, d.Receipt); err != nil {
		slog.Warn("ack failed, message will be redelivered", slog.Any("error", err))
	}
}

// truncate keeps stored error strings within the record's size discipline.
func truncate(s string) string {
	const max = 1024
	if len(s) <= max {
		return s
	}
	return s[:max]
}
