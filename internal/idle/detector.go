// Package idle decides when the GPU host has been quiet long enough to stop.
//
// The detector samples the queue's visible depth on a fixed period and
// counts consecutive readings at or below the threshold. In-flight messages
// are invisible and do not count toward depth, so a zero streak can only
// accumulate while nothing is waiting AND the worker has drained its last
// lease past the sample period. Stopping on a streak, not a single reading,
// keeps one slow poll from shutting down a busy host.
package idle

import (
	"context"
	"log/slog"
	"time"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// Detector runs the idle-shutdown policy.
type Detector struct {
	Queue domain.WorkQueue
	Host  domain.HostController
	// DLQ, when set, is sampled alongside the main queue purely for the
	// dead-letter depth gauge; it never influences the stop decision.
	DLQ domain.WorkQueue

	// SamplePeriod is the interval between depth samples.
	SamplePeriod time.Duration
	// IdlePeriods is the number of consecutive idle samples required before
	// a stop is issued.
	IdlePeriods int
	// DepthThreshold is the depth at or below which a sample counts as idle.
	// Normally zero.
	DepthThreshold int

	streak int
}

// New constructs a Detector.
func New(q domain.WorkQueue, h domain.HostController, period time.Duration, idlePeriods, threshold int) *Detector {
	return &Detector{
		Queue:          q,
		Host:           h,
		SamplePeriod:   period,
		IdlePeriods:    idlePeriods,
		DepthThreshold: threshold,
	}
}

// Run samples until the context is canceled.
func (d *Detector) Run(ctx context.Context) error {
	slog.Info("idle detector started",
		slog.Duration("sample_period", d.SamplePeriod),
		slog.Int("idle_periods", d.IdlePeriods),
	)
	ticker := time.NewTicker(d.SamplePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("idle detector stopping")
			return ctx.Err()
		case <-ticker.C:
			d.Sample(ctx)
		}
	}
}

// Sample takes one depth reading and applies the policy. A failed reading
// resets the streak; without a depth we cannot claim the queue is idle.
func (d *Detector) Sample(ctx context.Context) {
	if d.DLQ != nil {
		if parked, err := d.DLQ.Depth(ctx); err == nil {
			observability.ObserveDLQDepth(parked)
			if parked > 0 {
				slog.Warn("dead-letter queue holds messages", slog.Int("depth", parked))
			}
		}
	}

	depth, err := d.Queue.Depth(ctx)
	if err != nil {
		slog.Warn("depth sample failed", slog.Any("error", err))
		d.streak = 0
		return
	}
	observability.ObserveQueueDepth(depth)

	if depth > d.DepthThreshold {
		if d.streak > 0 {
			slog.Debug("idle streak reset", slog.Int("depth", depth))
		}
		d.streak = 0
		return
	}

	d.streak++
	// Fire exactly on the Nth sample. The streak keeps counting past N so a
	// host that declined to stop (already stopped, or mid-transition) is not
	// hammered every period; it gets another chance when work arrives and
	// drains again, or on controller state change via the next submit.
	if d.streak != d.IdlePeriods {
		return
	}
	slog.Info("sustained idleness detected, stopping host", slog.Int("samples", d.streak))
	if err := d.Host.Stop(ctx); err != nil {
		slog.Error("host stop failed", slog.Any("error", err))
	}
}

// Streak reports the current consecutive idle sample count.
func (d *Detector) Streak() int {
	return d.streak
}
