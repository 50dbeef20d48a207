// Package sqs implements the work queue on Amazon SQS.
//
// Delivery is at-least-once. A received message stays invisible for the
// queue's visibility timeout; consumers that need longer extend the lease
// explicitly. Poison messages are moved to the dead-letter queue by the
// queue's redrive policy after the configured maximum receive count.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqssdk "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// API is the subset of the SQS client used by the queue.
type API interface {
	SendMessage(ctx context.Context, in *sqssdk.SendMessageInput, opts ...func(*sqssdk.Options)) (*sqssdk.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqssdk.ReceiveMessageInput, opts ...func(*sqssdk.Options)) (*sqssdk.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqssdk.DeleteMessageInput, opts ...func(*sqssdk.Options)) (*sqssdk.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqssdk.ChangeMessageVisibilityInput, opts ...func(*sqssdk.Options)) (*sqssdk.ChangeMessageVisibilityOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqssdk.GetQueueAttributesInput, opts ...func(*sqssdk.Options)) (*sqssdk.GetQueueAttributesOutput, error)
}

// Queue dispatches job messages through a single SQS queue.
type Queue struct {
	queueURL string
	client   API
}

// NewQueue returns a Queue bound to an SQS queue URL.
func NewQueue(cfg aws.Config, queueURL string, opts ...func(*sqssdk.Options)) *Queue {
	return &Queue{queueURL: queueURL, client: sqssdk.NewFromConfig(cfg, opts...)}
}

// NewQueueWithClient constructs a Queue with an explicit client. Used by tests.
func NewQueueWithClient(client API, queueURL string) *Queue {
	return &Queue{queueURL: queueURL, client: client}
}

// Enqueue publishes a job message.
func (q *Queue) Enqueue(ctx domain.Context, msg domain.JobMessage) error {
	tracer := otel.Tracer("queue.sqs")
	ctx, span := tracer.Start(ctx, "queue.Enqueue")
	defer span.End()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("op=queue.enqueue: marshal message: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqssdk.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("op=queue.enqueue: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// Receive long-polls for a single message for up to wait. A nil delivery with
// a nil error means the poll elapsed with nothing to hand out.
func (q *Queue) Receive(ctx domain.Context, wait time.Duration) (*domain.Delivery, error) {
	res, err := q.client.ReceiveMessage(ctx, &sqssdk.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   1,
		WaitTimeSeconds:       int32(wait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("op=queue.receive: %w: %v", domain.ErrUnavailable, err)
	}
	if len(res.Messages) == 0 {
		return nil, nil
	}
	m := res.Messages[0]
	d := &domain.Delivery{
		Body:         []byte(aws.ToString(m.Body)),
		Receipt:      aws.ToString(m.ReceiptHandle),
		ReceiveCount: 1,
	}
	if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			d.ReceiveCount = n
		}
	}
	return d, nil
}

// Delete acknowledges a delivery so it is never redelivered.
func (q *Queue) Delete(ctx domain.Context, receipt string) error {
	_, err := q.client.DeleteMessage(ctx, &sqssdk.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("op=queue.delete: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// ExtendVisibility renews the invisibility lease on an in-flight delivery.
func (q *Queue) ExtendVisibility(ctx domain.Context, receipt string, timeout time.Duration) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &sqssdk.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: int32(timeout / time.Second),
	})
	if err != nil {
		return fmt.Errorf("op=queue.extend_visibility: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// Depth returns the approximate number of visible messages. In-flight
// deliveries are not counted, which is what lets the idle detector treat a
// zero reading as "nothing waiting" rather than "nothing running".
func (q *Queue) Depth(ctx domain.Context) (int, error) {
	res, err := q.client.GetQueueAttributes(ctx, &sqssdk.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("op=queue.depth: %w: %v", domain.ErrUnavailable, err)
	}
	raw, ok := res.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	if !ok {
		return 0, fmt.Errorf("op=queue.depth: attribute missing: %w", domain.ErrInternal)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("op=queue.depth: parse attribute: %w", err)
	}
	return n, nil
}

// Ping verifies queue reachability.
func (q *Queue) Ping(ctx domain.Context) error {
	_, err := q.client.GetQueueAttributes(ctx, &sqssdk.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("op=queue.ping: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

var _ domain.WorkQueue = (*Queue)(nil)
