// Package ec2 controls the GPU worker host as a single EC2 instance.
//
// Start and stop are strict about the observed state: a start is issued only
// from stopped and a stop only from running. A host mid-transition is left
// alone; callers retry on the next cycle instead of racing the cloud API.
package ec2

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2sdk "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// API is the subset of the EC2 client used by the controller.
type API interface {
	DescribeInstances(ctx context.Context, in *ec2sdk.DescribeInstancesInput, opts ...func(*ec2sdk.Options)) (*ec2sdk.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, in *ec2sdk.StartInstancesInput, opts ...func(*ec2sdk.Options)) (*ec2sdk.StartInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2sdk.StopInstancesInput, opts ...func(*ec2sdk.Options)) (*ec2sdk.StopInstancesOutput, error)
}

// Controller manages the lifecycle of one instance by id.
type Controller struct {
	instanceID string
	client     API
	timeout    time.Duration
}

// NewController returns a Controller for the given instance id.
func NewController(cfg aws.Config, instanceID string, timeout time.Duration, opts ...func(*ec2sdk.Options)) *Controller {
	return &Controller{instanceID: instanceID, client: ec2sdk.NewFromConfig(cfg, opts...), timeout: timeout}
}

// NewControllerWithClient constructs a Controller with an explicit client.
// Used by tests.
func NewControllerWithClient(client API, instanceID string, timeout time.Duration) *Controller {
	return &Controller{instanceID: instanceID, client: client, timeout: timeout}
}

// Describe reports the current instance state and public address.
func (c *Controller) Describe(ctx domain.Context) (domain.HostInfo, error) {
	tracer := otel.Tracer("host.ec2")
	ctx, span := tracer.Start(ctx, "host.Describe")
	defer span.End()

	ctx, cancel := c.bound(ctx)
	defer cancel()

	inst, err := c.instance(ctx)
	if err != nil {
		return domain.HostInfo{State: domain.HostUnknown}, err
	}
	info := domain.HostInfo{State: mapState(inst.State)}
	if inst.PublicIpAddress != nil {
		info.PublicIP = *inst.PublicIpAddress
	}
	return info, nil
}

// Start issues a start request if and only if the instance is stopped.
// Any other observed state is a no-op.
func (c *Controller) Start(ctx domain.Context) error {
	tracer := otel.Tracer("host.ec2")
	ctx, span := tracer.Start(ctx, "host.Start")
	defer span.End()

	ctx, cancel := c.bound(ctx)
	defer cancel()

	inst, err := c.instance(ctx)
	if err != nil {
		return err
	}
	if mapState(inst.State) != domain.HostStopped {
		return nil
	}
	_, err = c.client.StartInstances(ctx, &ec2sdk.StartInstancesInput{
		InstanceIds: []string{c.instanceID},
	})
	if err != nil {
		return fmt.Errorf("op=host.start: %w: %v", domain.ErrUnavailable, err)
	}
	observability.HostStartsTotal.Inc()
	return nil
}

// Stop issues a stop request if and only if the instance is running. A host
// still starting is never stopped; the request that woke it deserves a
// chance to be served.
func (c *Controller) Stop(ctx domain.Context) error {
	tracer := otel.Tracer("host.ec2")
	ctx, span := tracer.Start(ctx, "host.Stop")
	defer span.End()

	ctx, cancel := c.bound(ctx)
	defer cancel()

	inst, err := c.instance(ctx)
	if err != nil {
		return err
	}
	if mapState(inst.State) != domain.HostRunning {
		return nil
	}
	_, err = c.client.StopInstances(ctx, &ec2sdk.StopInstancesInput{
		InstanceIds: []string{c.instanceID},
	})
	if err != nil {
		return fmt.Errorf("op=host.stop: %w: %v", domain.ErrUnavailable, err)
	}
	observability.HostStopsTotal.Inc()
	return nil
}

func (c *Controller) instance(ctx context.Context) (types.Instance, error) {
	res, err := c.client.DescribeInstances(ctx, &ec2sdk.DescribeInstancesInput{
		InstanceIds: []string{c.instanceID},
	})
	if err != nil {
		return types.Instance{}, fmt.Errorf("op=host.describe: %w: %v", domain.ErrUnavailable, err)
	}
	for _, rsv := range res.Reservations {
		for _, inst := range rsv.Instances {
			return inst, nil
		}
	}
	return types.Instance{}, fmt.Errorf("op=host.describe: instance %s: %w", c.instanceID, domain.ErrNotFound)
}

func (c *Controller) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func mapState(s *types.InstanceState) domain.HostState {
	if s == nil {
		return domain.HostUnknown
	}
	switch s.Name {
	case types.InstanceStateNamePending:
		return domain.HostStarting
	case types.InstanceStateNameRunning:
		return domain.HostRunning
	case types.InstanceStateNameStopping, types.InstanceStateNameShuttingDown:
		return domain.HostStopping
	case types.InstanceStateNameStopped:
		return domain.HostStopped
	default:
		return domain.HostUnknown
	}
}

var _ domain.HostController = (*Controller)(nil)
