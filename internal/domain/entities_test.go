package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

func TestJobStatus_Terminal(t *testing.T) {
	t.Parallel()
	assert.False(t, domain.JobPending.Terminal())
	assert.False(t, domain.JobProcessing.Terminal())
	assert.True(t, domain.JobCompleted.Terminal())
	assert.True(t, domain.JobFailed.Terminal())
}

func TestJobMessage_WireFormat(t *testing.T) {
	t.Parallel()
	msg := domain.JobMessage{
		JobID:       "j-1",
		JobType:     domain.JobTypeCameraAngle,
		RequestBody: json.RawMessage(`{"image_url":"s3://b/in.jpg","prompt":"top-down","steps":8}`),
	}
	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Contains(t, decoded, "job_id")
	assert.Contains(t, decoded, "job_type")
	assert.Contains(t, decoded, "request_body")
}

func TestKnownJobType(t *testing.T) {
	t.Parallel()
	for _, jt := range domain.JobTypes() {
		assert.True(t, domain.KnownJobType(jt), jt)
	}
	assert.False(t, domain.KnownJobType("video-upscale"))
}

func TestEnginePath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/api/v1/camera-angle/jobs", domain.EnginePath(domain.JobTypeCameraAngle))
}

func TestValidateEnvelope_OK(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		domain.JobTypeCameraAngle:   `{"image_url":"s3://b/in.jpg","vertical":1}`,
		domain.JobTypeQwenImageEdit: `{"image_url":"s3://b/in.jpg","prompt":"remove hat","steps":4}`,
		domain.JobTypeFaceMask:      `{"image_url":"s3://b/in.jpg","face_index":0}`,
		domain.JobTypeFullFaceSwap:  `{"source_image_url":"s3://b/a.jpg","target_face_url":"s3://b/f.jpg"}`,
	}
	for jt, body := range cases {
		assert.NoError(t, domain.ValidateEnvelope(jt, json.RawMessage(body)), jt)
	}
}

func TestValidateEnvelope_MissingField(t *testing.T) {
	t.Parallel()
	err := domain.ValidateEnvelope(domain.JobTypeQwenImageEdit, json.RawMessage(`{"image_url":"s3://b/in.jpg"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "prompt")
}

func TestValidateEnvelope_InvalidJSON(t *testing.T) {
	t.Parallel()
	err := domain.ValidateEnvelope(domain.JobTypeCameraAngle, json.RawMessage(`{"image_url":`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestValidateEnvelope_UnknownType(t *testing.T) {
	t.Parallel()
	err := domain.ValidateEnvelope("video-upscale", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestValidateEnvelope_ExtraFieldsPassThrough(t *testing.T) {
	t.Parallel()
	// The envelope check is intentionally shallow; unknown fields belong to
	// the engine's schema, not ours.
	body := json.RawMessage(`{"image_url":"s3://b/in.jpg","seed":42,"sampler_name":"sa_solver"}`)
	assert.NoError(t, domain.ValidateEnvelope(domain.JobTypeCameraAngle, body))
}
