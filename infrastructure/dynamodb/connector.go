package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Item is a single DynamoDB record in its native attribute-value form.
type Item = map[string]types.AttributeValue

// Connector exposes the store primitives the query builder executes against.
// The production implementation wraps the AWS SDK client; tests substitute an
// in-memory fake.
type Connector interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, input *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, input *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
}

// Client is the production Connector backed by the AWS SDK DynamoDB client.
type Client struct {
	api    *dynamodb.Client
	logger *zap.Logger
}

// NewClient creates a new DynamoDB connector
func NewClient(api *dynamodb.Client, logger *zap.Logger) *Client {
	return &Client{
		api:    api,
		logger: logger,
	}
}

func (c *Client) GetItem(ctx context.Context, input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	return c.api.GetItem(ctx, input)
}

func (c *Client) PutItem(ctx context.Context, input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	return c.api.PutItem(ctx, input)
}

func (c *Client) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	return c.api.UpdateItem(ctx, input)
}

func (c *Client) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
	return c.api.DeleteItem(ctx, input)
}

func (c *Client) Query(ctx context.Context, input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	return c.api.Query(ctx, input)
}

func (c *Client) Scan(ctx context.Context, input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
	return c.api.Scan(ctx, input)
}

func (c *Client) BatchGetItem(ctx context.Context, input *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error) {
	return c.api.BatchGetItem(ctx, input)
}

func (c *Client) BatchWriteItem(ctx context.Context, input *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
	return c.api.BatchWriteItem(ctx, input)
}

// IsConditionalCheckFailed reports whether err is a rejected conditional
// write. Callers use this to detect losing a create race.
func IsConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
