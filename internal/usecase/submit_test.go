package usecase_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain/mocks"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/usecase"
)

func TestSubmitHappyPath(t *testing.T) {
	jobs := new(mocks.MockJobRegistry)
	queue := new(mocks.MockWorkQueue)
	host := new(mocks.MockHostController)

	var created domain.Job
	jobs.On("Create", mock.Anything, mock.AnythingOfType("domain.Job")).
		Run(func(args mock.Arguments) { created = args.Get(1).(domain.Job) }).
		Return(nil).Once()
	queue.On("Enqueue", mock.Anything, mock.AnythingOfType("domain.JobMessage")).Return(nil).Once()

	woke := make(chan struct{})
	host.On("Start", mock.Anything).Run(func(mock.Arguments) { close(woke) }).Return(nil).Once()

	svc := usecase.NewSubmitService(jobs, queue, host, time.Second)
	j, err := svc.Submit(context.Background(), domain.JobTypeCameraAngle, json.RawMessage(`{"image_url":"s3://b/k"}`))
	require.NoError(t, err)

	assert.NotEmpty(t, j.ID)
	assert.Equal(t, domain.JobPending, j.Status)
	assert.Equal(t, created.ID, j.ID)

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("host wake never issued")
	}
	jobs.AssertExpectations(t)
	queue.AssertExpectations(t)
	host.AssertExpectations(t)
}

func TestSubmitUnknownJobType(t *testing.T) {
	svc := usecase.NewSubmitService(new(mocks.MockJobRegistry), new(mocks.MockWorkQueue), new(mocks.MockHostController), time.Second)
	_, err := svc.Submit(context.Background(), "style-transfer", json.RawMessage(`{"image_url":"s3://b/k"}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitInvalidEnvelope(t *testing.T) {
	jobs := new(mocks.MockJobRegistry)
	svc := usecase.NewSubmitService(jobs, new(mocks.MockWorkQueue), new(mocks.MockHostController), time.Second)

	_, err := svc.Submit(context.Background(), domain.JobTypeQwenImageEdit, json.RawMessage(`{"image_url":"s3://b/k"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitEnqueueFailureFailsRecord(t *testing.T) {
	jobs := new(mocks.MockJobRegistry)
	queue := new(mocks.MockWorkQueue)
	host := new(mocks.MockHostController)

	jobs.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	queue.On("Enqueue", mock.Anything, mock.Anything).Return(domain.ErrUnavailable).Once()
	jobs.On("Fail", mock.Anything, mock.AnythingOfType("string"), "enqueue failed").Return(nil).Once()

	svc := usecase.NewSubmitService(jobs, queue, host, time.Second)
	_, err := svc.Submit(context.Background(), domain.JobTypeFaceMask, json.RawMessage(`{"image_url":"s3://b/k"}`))
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	jobs.AssertExpectations(t)
	queue.AssertExpectations(t)
	host.AssertNotCalled(t, "Start", mock.Anything)
}

func TestSubmitCreateConflict(t *testing.T) {
	jobs := new(mocks.MockJobRegistry)
	queue := new(mocks.MockWorkQueue)

	jobs.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict).Once()

	svc := usecase.NewSubmitService(jobs, queue, new(mocks.MockHostController), time.Second)
	_, err := svc.Submit(context.Background(), domain.JobTypeFullFaceSwap,
		json.RawMessage(`{"source_image_url":"s3://b/s","target_face_url":"s3://b/t"}`))
	assert.ErrorIs(t, err, domain.ErrConflict)
	queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}
