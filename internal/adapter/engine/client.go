// Package engine is the HTTP client for the inference API on the GPU host.
//
// The engine exposes one submit endpoint per job type and a shared status
// endpoint. Responses vary slightly between job types (result_url versus
// result_s3_uri, error versus error_message); the client folds the aliases
// into one shape so the worker never sees the difference.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// defaultSubmitRetryWindow bounds how long Submit keeps retrying transient
// failures. It must stay well under the queue's visibility lease: the worker
// only starts renewing the lease once Submit returns, so a longer window
// would let the message reappear while this worker still holds it.
const defaultSubmitRetryWindow = 30 * time.Second

// Client calls the inference engine over HTTP.
type Client struct {
	baseURL     string
	http        *http.Client
	retryWindow time.Duration
}

// New returns a Client for the engine at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retryWindow: defaultSubmitRetryWindow,
	}
}

// NewWithHTTPClient constructs a Client with an explicit HTTP client and
// submit retry window. Used by tests.
func NewWithHTTPClient(baseURL string, hc *http.Client, retryWindow time.Duration) *Client {
	return &Client{baseURL: baseURL, http: hc, retryWindow: retryWindow}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	Status       string `json:"status"`
	ResultURL    string `json:"result_url"`
	ResultS3URI  string `json:"result_s3_uri"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// Submit posts a job to the engine and returns the engine-assigned job id.
// Transient failures (connection refused while the host boots, 5xx) are
// retried with exponential backoff within the caller's context, capped at
// the retry window; past that the caller decides whether to try again.
func (c *Client) Submit(ctx domain.Context, jobType string, body json.RawMessage) (string, error) {
	start := time.Now()
	defer func() { observability.ObserveEngineRequest("submit", time.Since(start)) }()

	url := c.baseURL + domain.EnginePath(jobType)

	var out submitResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = res.Body.Close() }()
		if res.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, res.Body)
			return fmt.Errorf("engine returned %d", res.StatusCode)
		}
		if res.StatusCode >= 400 {
			payload, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
			return backoff.Permanent(fmt.Errorf("%w: engine rejected submit: %d %s", domain.ErrInvalidArgument, res.StatusCode, payload))
		}
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode submit response: %w", err))
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.retryWindow
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", fmt.Errorf("op=engine.submit: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("op=engine.submit: empty job_id: %w", domain.ErrInternal)
	}
	return out.JobID, nil
}

// Status fetches the engine's view of a submitted job.
func (c *Client) Status(ctx domain.Context, workerJobID string) (domain.EngineStatus, error) {
	start := time.Now()
	defer func() { observability.ObserveEngineRequest("status", time.Since(start)) }()

	url := fmt.Sprintf("%s/api/v1/jobs/%s", c.baseURL, workerJobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.EngineStatus{}, fmt.Errorf("op=engine.status: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return domain.EngineStatus{}, fmt.Errorf("op=engine.status: %w: %v", domain.ErrUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return domain.EngineStatus{}, fmt.Errorf("op=engine.status: job %s: %w", workerJobID, domain.ErrNotFound)
	case res.StatusCode >= 400:
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return domain.EngineStatus{}, fmt.Errorf("op=engine.status: engine returned %d %s: %w", res.StatusCode, payload, domain.ErrUnavailable)
	}

	var sr statusResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return domain.EngineStatus{}, fmt.Errorf("op=engine.status: decode response: %w", err)
	}
	st := domain.EngineStatus{
		Status:    domain.JobStatus(sr.Status),
		ResultURL: sr.ResultURL,
		Error:     sr.Error,
	}
	if st.ResultURL == "" {
		st.ResultURL = sr.ResultS3URI
	}
	if st.Error == "" {
		st.Error = sr.ErrorMessage
	}
	return st, nil
}

// Ping probes the engine health endpoint. It reports ErrUnavailable until
// the engine on a freshly started host is accepting work.
func (c *Client) Ping(ctx domain.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("op=engine.ping: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("op=engine.ping: %w: %v", domain.ErrUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("op=engine.ping: engine returned %d: %w", res.StatusCode, domain.ErrUnavailable)
	}
	return nil
}

var _ domain.EngineClient = (*Client)(nil)
