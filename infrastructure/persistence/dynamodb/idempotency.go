package dynamodb

import (
	"context"
	"time"

	"wedding-backend/application/ports"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type idempotencyItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	CreatedAt string `dynamodbav:"CreatedAt"`
	TTL       int64  `dynamodbav:"TTL"`
}

// IdempotencyStore records processed keys in the table, expiring them via
// the table's TTL attribute.
type IdempotencyStore struct {
	client    Client
	tableName string
	ttl       time.Duration
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a DynamoDB-backed idempotency store
func NewIdempotencyStore(client Client, tableName string, ttl time.Duration) *IdempotencyStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, tableName: tableName, ttl: ttl}
}

func idempotencyKey(scope, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "IDEMPOTENCY#" + scope},
		"SK": &types.AttributeValueMemberS{Value: key},
	}
}

// Claim writes the key if absent. Only the first concurrent caller wins.
func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) (bool, error) {
	now := time.Now().UTC()
	item, err := attributevalue.MarshalMap(idempotencyItem{
		PK:        "IDEMPOTENCY#" + scope,
		SK:        key,
		CreatedAt: now.Format(time.RFC3339),
		TTL:       now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to marshal idempotency item")
	}

	// An expired record that TTL has not swept yet can be reclaimed.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: itoa(now.Unix())},
		},
	})
	if _, ok := conditionFailed(err); ok {
		return false, nil
	}
	if err != nil {
		return false, classify("ClaimIdempotencyKey", err)
	}
	return true, nil
}

// Release deletes the key so a failed operation can run again.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       idempotencyKey(scope, key),
	})
	return classify("ReleaseIdempotencyKey", err)
}
