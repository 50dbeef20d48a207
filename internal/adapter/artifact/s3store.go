// Package artifact manages result artifacts in S3.
package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// API is the subset of the S3 client used by the store.
type API interface {
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store deletes result artifacts from a single bucket.
type S3Store struct {
	bucket string
	client API
}

// NewS3Store returns a store bound to the artifact bucket.
func NewS3Store(cfg aws.Config, bucket string, opts ...func(*s3.Options)) *S3Store {
	return &S3Store{bucket: bucket, client: s3.NewFromConfig(cfg, opts...)}
}

// NewS3StoreWithClient constructs a store with an explicit client. Used by tests.
func NewS3StoreWithClient(client API, bucket string) *S3Store {
	return &S3Store{bucket: bucket, client: client}
}

// Delete removes an artifact by key. Deleting a missing key succeeds;
// S3 delete is idempotent and callers retry anyway.
func (s *S3Store) Delete(ctx domain.Context, key string) error {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return fmt.Errorf("op=artifact.delete: empty key: %w", domain.ErrInvalidArgument)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("op=artifact.delete: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

var _ domain.ArtifactStore = (*S3Store)(nil)
