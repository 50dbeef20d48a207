package usecase

import (
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// ArtifactService removes result artifacts on client request.
type ArtifactService struct {
	Store domain.ArtifactStore
}

// NewArtifactService constructs an ArtifactService with its dependencies.
func NewArtifactService(st domain.ArtifactStore) ArtifactService {
	return ArtifactService{Store: st}
}

// Delete removes one artifact by object key.
func (s ArtifactService) Delete(ctx domain.Context, key string) error {
	return s.Store.Delete(ctx, key)
}
