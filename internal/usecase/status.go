package usecase

import (
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// StatusService serves client-facing job lookups and administrative scans.
type StatusService struct {
	Jobs domain.JobRegistry
}

// NewStatusService constructs a StatusService with its dependencies.
func NewStatusService(j domain.JobRegistry) StatusService {
	return StatusService{Jobs: j}
}

// Get loads a single job record by id.
func (s StatusService) Get(ctx domain.Context, id string) (domain.Job, error) {
	return s.Jobs.Get(ctx, id)
}

// ListByStatus returns the newest records in a given status.
func (s StatusService) ListByStatus(ctx domain.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	return s.Jobs.ListByStatus(ctx, status, limit)
}
