package metadata

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoLookup.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoLookup reads metadata items keyed by the string attribute "id".
// Optional attributes: url (S), title (S), records (N).
type DynamoLookup struct {
	client DynamoAPI
	table  string
}

// NewDynamoLookup creates a lookup on table.
func NewDynamoLookup(client DynamoAPI, table string) *DynamoLookup {
	return &DynamoLookup{client: client, table: table}
}

// Lookup implements Lookup.
func (l *DynamoLookup) Lookup(ctx context.Context, id string) (Dataset, bool, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ProjectionExpression: aws.String("id, #u, title, records"),
		ExpressionAttributeNames: map[string]string{
			"#u": "url",
		},
	})
	if err != nil {
		return Dataset{}, false, fmt.Errorf("metadata: dynamodb lookup %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return Dataset{}, false, nil
	}

	d := Dataset{ID: id}
	if v, ok := out.Item["url"].(*types.AttributeValueMemberS); ok {
		d.URL = v.Value
	}
	if v, ok := out.Item["title"].(*types.AttributeValueMemberS); ok {
		d.Title = v.Value
	}
	if v, ok := out.Item["records"].(*types.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return Dataset{}, false, fmt.Errorf("metadata: dynamodb item %s: records: %w", id, err)
		}
		d.RecordCount = n
	}
	return d, true, nil
}
