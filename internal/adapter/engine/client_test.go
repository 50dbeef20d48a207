package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/engine"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

func newClient(srv *httptest.Server) *engine.Client {
	return engine.NewWithHTTPClient(srv.URL, srv.Client(), 5*time.Second)
}

func TestSubmitPostsToJobTypeEndpoint(t *testing.T) {
	t.Parallel()
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "eng-42", "status": "pending"})
	}))
	defer srv.Close()

	id, err := newClient(srv).Submit(context.Background(), domain.JobTypeQwenImageEdit,
		json.RawMessage(`{"image_url":"s3://b/k","prompt":"sunset"}`))
	require.NoError(t, err)
	assert.Equal(t, "eng-42", id)
	assert.Equal(t, "/api/v1/qwen-image-edit/jobs", gotPath)
	assert.Equal(t, "sunset", gotBody["prompt"])
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "eng-1", "status": "pending"})
	}))
	defer srv.Close()

	id, err := newClient(srv).Submit(context.Background(), domain.JobTypeFaceMask, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "eng-1", id)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestSubmitRetryWindowBoundsPersistentOutage(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := engine.NewWithHTTPClient(srv.URL, srv.Client(), 100*time.Millisecond)
	start := time.Now()
	_, err := c.Submit(context.Background(), domain.JobTypeFaceMask, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestSubmitRejectionIsPermanent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newClient(srv).Submit(context.Background(), domain.JobTypeFaceMask, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmitHonorsContextCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := newClient(srv).Submit(ctx, domain.JobTypeFaceMask, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestStatusFoldsAliases(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		payload   string
		wantURL   string
		wantError string
	}{
		{"result_url", `{"status":"completed","result_url":"https://cdn/out.png"}`, "https://cdn/out.png", ""},
		{"result_s3_uri", `{"status":"completed","result_s3_uri":"s3://b/out.png"}`, "s3://b/out.png", ""},
		{"error", `{"status":"failed","error":"cuda oom"}`, "", "cuda oom"},
		{"error_message", `{"status":"failed","error_message":"bad input"}`, "", "bad input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/jobs/eng-1", r.URL.Path)
				_, _ = w.Write([]byte(tc.payload))
			}))
			defer srv.Close()

			st, err := newClient(srv).Status(context.Background(), "eng-1")
			require.NoError(t, err)
			assert.Equal(t, tc.wantURL, st.ResultURL)
			assert.Equal(t, tc.wantError, st.Error)
		})
	}
}

func TestStatusNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(srv).Status(context.Background(), "eng-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	require.NoError(t, newClient(srv).Ping(context.Background()))

	srv.Close()
	assert.ErrorIs(t, newClient(srv).Ping(context.Background()), domain.ErrUnavailable)
}
