package ec2_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2sdk "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hostec2 "github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/host/ec2"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

type stubAPI struct {
	state       types.InstanceStateName
	publicIP    string
	describeErr error
	started     int
	stopped     int
}

func (s *stubAPI) DescribeInstances(_ context.Context, _ *ec2sdk.DescribeInstancesInput, _ ...func(*ec2sdk.Options)) (*ec2sdk.DescribeInstancesOutput, error) {
	if s.describeErr != nil {
		return nil, s.describeErr
	}
	inst := types.Instance{
		InstanceId: aws.String("i-0abc"),
		State:      &types.InstanceState{Name: s.state},
	}
	if s.publicIP != "" {
		inst.PublicIpAddress = aws.String(s.publicIP)
	}
	return &ec2sdk.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: []types.Instance{inst}}},
	}, nil
}

func (s *stubAPI) StartInstances(_ context.Context, _ *ec2sdk.StartInstancesInput, _ ...func(*ec2sdk.Options)) (*ec2sdk.StartInstancesOutput, error) {
	s.started++
	return &ec2sdk.StartInstancesOutput{}, nil
}

func (s *stubAPI) StopInstances(_ context.Context, _ *ec2sdk.StopInstancesInput, _ ...func(*ec2sdk.Options)) (*ec2sdk.StopInstancesOutput, error) {
	s.stopped++
	return &ec2sdk.StopInstancesOutput{}, nil
}

func newController(stub *stubAPI) *hostec2.Controller {
	return hostec2.NewControllerWithClient(stub, "i-0abc", 10*time.Second)
}

func TestDescribeMapsStates(t *testing.T) {
	t.Parallel()
	cases := []struct {
		ec2State types.InstanceStateName
		want     domain.HostState
	}{
		{types.InstanceStateNamePending, domain.HostStarting},
		{types.InstanceStateNameRunning, domain.HostRunning},
		{types.InstanceStateNameStopping, domain.HostStopping},
		{types.InstanceStateNameShuttingDown, domain.HostStopping},
		{types.InstanceStateNameStopped, domain.HostStopped},
		{types.InstanceStateNameTerminated, domain.HostUnknown},
	}
	for _, tc := range cases {
		info, err := newController(&stubAPI{state: tc.ec2State}).Describe(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.want, info.State, "ec2 state %s", tc.ec2State)
	}
}

func TestDescribeCarriesPublicIP(t *testing.T) {
	t.Parallel()
	info, err := newController(&stubAPI{state: types.InstanceStateNameRunning, publicIP: "203.0.113.9"}).Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", info.PublicIP)
}

func TestStartOnlyFromStopped(t *testing.T) {
	t.Parallel()
	for _, st := range []types.InstanceStateName{
		types.InstanceStateNamePending,
		types.InstanceStateNameRunning,
		types.InstanceStateNameStopping,
	} {
		stub := &stubAPI{state: st}
		require.NoError(t, newController(stub).Start(context.Background()))
		assert.Zero(t, stub.started, "must not start from %s", st)
	}

	stub := &stubAPI{state: types.InstanceStateNameStopped}
	require.NoError(t, newController(stub).Start(context.Background()))
	assert.Equal(t, 1, stub.started)
}

func TestStopOnlyFromRunning(t *testing.T) {
	t.Parallel()
	for _, st := range []types.InstanceStateName{
		types.InstanceStateNamePending,
		types.InstanceStateNameStopped,
		types.InstanceStateNameStopping,
	} {
		stub := &stubAPI{state: st}
		require.NoError(t, newController(stub).Stop(context.Background()))
		assert.Zero(t, stub.stopped, "must not stop from %s", st)
	}

	stub := &stubAPI{state: types.InstanceStateNameRunning}
	require.NoError(t, newController(stub).Stop(context.Background()))
	assert.Equal(t, 1, stub.stopped)
}

func TestDescribeUnavailable(t *testing.T) {
	t.Parallel()
	info, err := newController(&stubAPI{describeErr: assert.AnError}).Describe(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, domain.HostUnknown, info.State)
}
