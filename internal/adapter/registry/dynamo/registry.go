// Package dynamo implements the job registry on a DynamoDB table.
//
// The table is the single source of truth for client-visible job status.
// Every mutating operation is a conditional write so that at-least-once
// consumers cannot regress a terminal record or resurrect a missing one.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// StatusIndex is the GSI supporting administrative scans by status,
// newest first.
const StatusIndex = "status-created_at-index"

// API is the subset of the DynamoDB client used by the registry.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Registry persists and loads job records from DynamoDB.
type Registry struct {
	table     string
	client    API
	recordTTL time.Duration
}

// NewRegistry returns a Registry connected to a DynamoDB table.
func NewRegistry(cfg aws.Config, table string, recordTTL time.Duration, opts ...func(*dynamodb.Options)) *Registry {
	return &Registry{table: table, client: dynamodb.NewFromConfig(cfg, opts...), recordTTL: recordTTL}
}

// NewRegistryWithClient constructs a Registry with an explicit client.
// Used by tests.
func NewRegistryWithClient(client API, table string, recordTTL time.Duration) *Registry {
	return &Registry{table: table, client: client, recordTTL: recordTTL}
}

type jobItem struct {
	JobID       string `dynamodbav:"job_id"`
	Status      string `dynamodbav:"status"`
	JobType     string `dynamodbav:"job_type"`
	RequestBody []byte `dynamodbav:"request_body"`
	CreatedAt   int64  `dynamodbav:"created_at"`
	UpdatedAt   int64  `dynamodbav:"updated_at"`
	ResultURI   string `dynamodbav:"result_uri,omitempty"`
	Error       string `dynamodbav:"error,omitempty"`
	WorkerJobID string `dynamodbav:"worker_job_id,omitempty"`
	Attempts    int    `dynamodbav:"attempts"`
	ExpiresAt   int64  `dynamodbav:"expires_at,omitempty"`
}

func (it jobItem) toDomain() domain.Job {
	j := domain.Job{
		ID:          it.JobID,
		Status:      domain.JobStatus(it.Status),
		JobType:     it.JobType,
		RequestBody: it.RequestBody,
		CreatedAt:   time.Unix(it.CreatedAt, 0).UTC(),
		UpdatedAt:   time.Unix(it.UpdatedAt, 0).UTC(),
		ResultURI:   it.ResultURI,
		Error:       it.Error,
		WorkerJobID: it.WorkerJobID,
		Attempts:    it.Attempts,
	}
	if it.ExpiresAt > 0 {
		j.ExpiresAt = time.Unix(it.ExpiresAt, 0).UTC()
	}
	return j
}

// Create inserts a new job record. A duplicate id yields domain.ErrConflict.
func (r *Registry) Create(ctx domain.Context, j domain.Job) error {
	tracer := otel.Tracer("registry.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()

	now := time.Now().UTC()
	it := jobItem{
		JobID:       j.ID,
		Status:      string(j.Status),
		JobType:     j.JobType,
		RequestBody: j.RequestBody,
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
		Attempts:    0,
	}
	if r.recordTTL > 0 {
		it.ExpiresAt = now.Add(r.recordTTL).Unix()
	}
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("op=job.create: marshal item: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(job_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("op=job.create: %w", domain.ErrConflict)
		}
		return fmt.Errorf("op=job.create: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// Get loads a job record by id.
func (r *Registry) Get(ctx domain.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("registry.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()

	res, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            jobKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=job.get: %w: %v", domain.ErrUnavailable, err)
	}
	if res.Item == nil {
		return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
	}
	var it jobItem
	if err := attributevalue.UnmarshalMap(res.Item, &it); err != nil {
		return domain.Job{}, fmt.Errorf("op=job.get: unmarshal item: %w", err)
	}
	return it.toDomain(), nil
}

// Claim conditionally transitions a record to processing, bumping the attempt
// counter and clearing any previous engine job id. Pending and processing
// records may be claimed (the latter is the duplicate-delivery re-entry);
// terminal records yield ErrTerminalState.
func (r *Registry) Claim(ctx domain.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("registry.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Claim")
	defer span.End()

	cond := expression.Name("status").In(
		expression.Value(string(domain.JobPending)),
		expression.Value(string(domain.JobProcessing)),
	)
	upd := expression.
		Set(expression.Name("status"), expression.Value(string(domain.JobProcessing))).
		Set(expression.Name("updated_at"), expression.Value(time.Now().UTC().Unix())).
		Set(expression.Name("attempts"), expression.Plus(
			expression.IfNotExists(expression.Name("attempts"), expression.Value(0)),
			expression.Value(1),
		)).
		Remove(expression.Name("worker_job_id"))
	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(upd).Build()
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=job.claim: build expression: %w", err)
	}

	res, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       jobKey(id),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return domain.Job{}, fmt.Errorf("op=job.claim: %w", domain.ErrTerminalState)
		}
		return domain.Job{}, fmt.Errorf("op=job.claim: %w: %v", domain.ErrUnavailable, err)
	}
	var it jobItem
	if err := attributevalue.UnmarshalMap(res.Attributes, &it); err != nil {
		return domain.Job{}, fmt.Errorf("op=job.claim: unmarshal item: %w", err)
	}
	return it.toDomain(), nil
}

// SetWorkerJobID records the engine-assigned id for the current attempt.
func (r *Registry) SetWorkerJobID(ctx domain.Context, id, workerJobID string) error {
	tracer := otel.Tracer("registry.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetWorkerJobID")
	defer span.End()

	cond := expression.Name("status").Equal(expression.Value(string(domain.JobProcessing)))
	upd := expression.
		Set(expression.Name("worker_job_id"), expression.Value(workerJobID)).
		Set(expression.Name("updated_at"), expression.Value(time.Now().UTC().Unix()))
	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(upd).Build()
	if err != nil {
		return fmt.Errorf("op=job.set_worker_id: build expression: %w", err)
	}
	if err := r.update(ctx, id, expr); err != nil {
		return fmt.Errorf("op=job.set_worker_id: %w", err)
	}
	return nil
}

// Complete commits a completed terminal state with its result artifact URI.
func (r *Registry) Complete(ctx domain.Context, id, resultURI string) error {
	tracer := otel.Tracer("registry.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Complete")
	defer span.End()

	upd := expression.
		Set(expression.Name("status"), expression.Value(string(domain.JobCompleted))).
		Set(expression.Name("result_uri"), expression.Value(resultURI)).
		Set(expression.Name("updated_at"), expression.Value(time.Now().UTC().Unix())).
		Remove(expression.Name("error"))
	expr, err := expression.NewBuilder().WithCondition(notTerminal()).WithUpdate(upd).Build()
	if err != nil {
		return fmt.Errorf("op=job.complete: build expression: %w", err)
	}
	if err := r.update(ctx, id, expr); err != nil {
		return fmt.Errorf("op=job.complete: %w", err)
	}
	return nil
}

// Fail commits a failed terminal state with a short error string.
func (r *Registry) Fail(ctx domain.Context, id, errMsg string) error {
	tracer := otel.Tracer("registry.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Fail")
	defer span.End()

	upd := expression.
		Set(expression.Name("status"), expression.Value(string(domain.JobFailed))).
		Set(expression.Name("error"), expression.Value(errMsg)).
		Set(expression.Name("updated_at"), expression.Value(time.Now().UTC().Unix())).
		Remove(expression.Name("result_uri"))
	expr, err := expression.NewBuilder().WithCondition(notTerminal()).WithUpdate(upd).Build()
	if err != nil {
		return fmt.Errorf("op=job.fail: build expression: %w", err)
	}
	if err := r.update(ctx, id, expr); err != nil {
		return fmt.Errorf("op=job.fail: %w", err)
	}
	return nil
}

// ListByStatus queries the status GSI for administrative scans, newest first.
func (r *Registry) ListByStatus(ctx domain.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("registry.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListByStatus")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	keyEx := expression.Key("status").Equal(expression.Value(string(status)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("op=job.list_by_status: build expression: %w", err)
	}
	res, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(StatusIndex),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		KeyConditionExpression:    expr.KeyCondition(),
		Limit:                     aws.Int32(int32(limit)),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("op=job.list_by_status: %w: %v", domain.ErrUnavailable, err)
	}
	jobs := make([]domain.Job, 0, len(res.Items))
	for _, item := range res.Items {
		var it jobItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return nil, fmt.Errorf("op=job.list_by_status: unmarshal item: %w", err)
		}
		jobs = append(jobs, it.toDomain())
	}
	return jobs, nil
}

// Ping verifies table reachability.
func (r *Registry) Ping(ctx domain.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	if err != nil {
		return fmt.Errorf("op=job.ping: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *Registry) update(ctx context.Context, id string, expr expression.Expression) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       jobKey(id),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return domain.ErrTerminalState
		}
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func notTerminal() expression.ConditionBuilder {
	return expression.Not(expression.Name("status").In(
		expression.Value(string(domain.JobCompleted)),
		expression.Value(string(domain.JobFailed)),
	))
}

func jobKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"job_id": &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

var _ domain.JobRegistry = (*Registry)(nil)
