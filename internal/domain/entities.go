package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	// ErrUnavailable marks transient failures of the registry, queue, or
	// engine; callers retry by their own loop (HTTP 503, queue redelivery).
	ErrUnavailable = errors.New("unavailable")
	// ErrTerminalState is returned by conditional registry writes that would
	// overwrite a completed or failed record. Terminal states are final.
	ErrTerminalState = errors.New("record already terminal")
	ErrInternal      = errors.New("internal error")
)

// JobStatus is the client-visible lifecycle state of a job record.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether s is an irreversible endpoint.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// Job is the registry record for one unit of inference work. The registry is
// the single source of truth for client-visible status; the engine's own job
// state is never read for it.
//
// Invariants: completed implies ResultURI set and Error empty; failed implies
// Error set and ResultURI empty; UpdatedAt >= CreatedAt; Attempts never
// decreases; a terminal status is never overwritten.
type Job struct {
	ID          string
	Status      JobStatus
	JobType     string
	RequestBody json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResultURI   string
	Error       string
	// WorkerJobID is the id the inference engine assigned for this attempt;
	// cleared on every claim so a redelivery resubmits from scratch.
	WorkerJobID string
	Attempts    int
	// ExpiresAt is the optional TTL instant for automatic record expiry.
	ExpiresAt time.Time
}

// JobMessage is the queue-level envelope. The queue preserves neither
// ordering nor uniqueness; consumers must tolerate duplicates.
type JobMessage struct {
	JobID       string          `json:"job_id"`
	JobType     string          `json:"job_type"`
	RequestBody json.RawMessage `json:"request_body"`
}

// Delivery is one received queue message together with its lease handle.
type Delivery struct {
	Body []byte
	// Receipt identifies this delivery's visibility lease for Delete and
	// ExtendVisibility. It is delivery-scoped, not message-scoped.
	Receipt string
	// ReceiveCount is the queue's approximate delivery count, 1 on first
	// delivery. At MaxReceives the queue diverts the message to dead-letter.
	ReceiveCount int
}

// HostState is the compute host lifecycle as seen by the controller.
type HostState string

const (
	HostStopped  HostState = "stopped"
	HostStarting HostState = "starting"
	HostRunning  HostState = "running"
	HostStopping HostState = "stopping"
	HostUnknown  HostState = "unknown"
)

// EngineStatus is the inference engine's view of a submitted job.
type EngineStatus struct {
	Status    JobStatus
	ResultURL string
	Error     string
}

// Ports

//go:generate mockery --name=JobRegistry --with-expecter --filename=job_registry_mock.go
//go:generate mockery --name=WorkQueue --with-expecter --filename=work_queue_mock.go
//go:generate mockery --name=HostController --with-expecter --filename=host_controller_mock.go
//go:generate mockery --name=EngineClient --with-expecter --filename=engine_client_mock.go

// JobRegistry is the durable per-job record store. All mutating
// operations are conditional so that at-least-once consumers stay idempotent.
type JobRegistry interface {
	Create(ctx Context, j Job) error
	Get(ctx Context, id string) (Job, error)
	// Claim transitions a record to processing iff its status is pending or
	// processing, increments Attempts, and clears WorkerJobID. A terminal
	// record yields ErrTerminalState.
	Claim(ctx Context, id string) (Job, error)
	SetWorkerJobID(ctx Context, id, workerJobID string) error
	// Complete and Fail are terminal commits; both refuse to overwrite an
	// already-terminal record (ErrTerminalState), so the first winner of a
	// duplicate-delivery race is preserved.
	Complete(ctx Context, id, resultURI string) error
	Fail(ctx Context, id, errMsg string) error
	ListByStatus(ctx Context, status JobStatus, limit int) ([]Job, error)
	Ping(ctx Context) error
}

// WorkQueue is the at-least-once message channel between orchestrator and
// worker.
type WorkQueue interface {
	Enqueue(ctx Context, msg JobMessage) error
	// Receive long-polls for a single message for up to wait; returns nil
	// when the wait elapses with nothing available.
	Receive(ctx Context, wait time.Duration) (*Delivery, error)
	Delete(ctx Context, receipt string) error
	ExtendVisibility(ctx Context, receipt string, d time.Duration) error
	// Depth is the approximate count of visible messages. Leased (in-flight)
	// messages are excluded, which is what makes idle detection race-safe.
	Depth(ctx Context) (int, error)
	Ping(ctx Context) error
}

// HostController wraps the compute host control plane.
type HostController interface {
	Describe(ctx Context) (HostInfo, error)
	// Start attempts stopped -> starting and is a no-op in any other state.
	Start(ctx Context) error
	// Stop attempts running -> stopping; it is a no-op otherwise and must
	// never transition a starting host.
	Stop(ctx Context) error
}

// HostInfo is the controller's point-in-time snapshot of the compute host.
type HostInfo struct {
	State    HostState
	PublicIP string
}

// EngineClient talks to the black-box inference API on the GPU host.
type EngineClient interface {
	Submit(ctx Context, jobType string, body json.RawMessage) (string, error)
	Status(ctx Context, workerJobID string) (EngineStatus, error)
	Ping(ctx Context) error
}

// ArtifactStore deletes result artifacts from the object store.
type ArtifactStore interface {
	Delete(ctx Context, key string) error
}

// Context is an alias to context.Context; adapters and usecases pass the
// standard context through.
type Context = context.Context
