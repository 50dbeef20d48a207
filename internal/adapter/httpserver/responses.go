package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// errorBody is the error envelope returned on every non-2xx response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// jobResponse is the client-facing view of a job record. Result and error
// are always present, null until the record is terminal.
type jobResponse struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	JobType   string  `json:"job_type"`
	ResultURL *string `json:"result_url"`
	Error     *string `json:"error"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toJobResponse(j domain.Job) jobResponse {
	resp := jobResponse{
		JobID:     j.ID,
		Status:    string(j.Status),
		JobType:   j.JobType,
		CreatedAt: j.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: j.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if j.Status == domain.JobCompleted && j.ResultURI != "" {
		resp.ResultURL = &j.ResultURI
	}
	if j.Status == domain.JobFailed && j.Error != "" {
		resp.Error = &j.Error
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", slog.Any("error", err))
	}
}

// writeError maps domain sentinel errors onto HTTP statuses. Unrecognized
// errors become a 500 with a generic message; the detail goes to the log,
// not the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	msg := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code, msg = http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, msg = http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrConflict):
		status, code, msg = http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrUnavailable):
		status, code, msg = http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable"
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.Any("error", err))
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}
