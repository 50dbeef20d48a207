// Package httpserver exposes the dispatcher's client-facing HTTP API.
package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/usecase"
)

// maxBodyBytes caps request envelopes. Image payloads travel by URL, so
// anything near this limit is a client bug.
const maxBodyBytes = 1 << 20

// Server bundles the usecase services behind HTTP handlers.
type Server struct {
	Submit    usecase.SubmitService
	Status    usecase.StatusService
	Health    usecase.HealthService
	Artifacts usecase.ArtifactService
}

// NewServer constructs a Server from its services.
func NewServer(sub usecase.SubmitService, st usecase.StatusService, h usecase.HealthService, a usecase.ArtifactService) *Server {
	return &Server{Submit: sub, Status: st, Health: h, Artifacts: a}
}

// SubmitJob handles POST /api/v1/{jobType}/jobs.
func (s *Server) SubmitJob(w http.ResponseWriter, r *http.Request) {
	jobType := chi.URLParam(r, "jobType")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if len(body) > maxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: errorDetail{
			Code: "PAYLOAD_TOO_LARGE", Message: "request body exceeds 1MB",
		}})
		return
	}

	j, err := s.Submit.Submit(r.Context(), jobType, json.RawMessage(body))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobResponse(j))
}

// GetJob handles GET /api/v1/jobs/{id}.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.Status.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

// HealthCheck handles GET /api/v1/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	rep := s.Health.Check(r.Context())
	status := http.StatusOK
	overall := "healthy"
	if !rep.Healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"components": rep.Components,
	})
}

// DebugHost handles GET /debug/host.
func (s *Server) DebugHost(w http.ResponseWriter, r *http.Request) {
	info, err := s.Health.HostInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"state":     string(info.State),
		"public_ip": info.PublicIP,
	})
}

// ListJobs handles GET /api/v1/admin/jobs?status=pending&limit=50.
func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case domain.JobPending, domain.JobProcessing, domain.JobCompleted, domain.JobFailed:
	default:
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		limit = n
	}

	jobs, err := s.Status.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out, "count": len(out)})
}

// DeleteImage handles DELETE /api/v1/images/{key}. The key may contain
// slashes; chi's wildcard carries the rest of the path.
func (s *Server) DeleteImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := s.Artifacts.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": key})
}
