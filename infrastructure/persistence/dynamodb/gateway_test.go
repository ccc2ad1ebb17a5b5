package dynamodb

import (
	"context"
	"strings"
	"testing"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem    func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	query      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	queries    []*dynamodb.QueryInput
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(in)
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItem(in)
}

func (f *fakeClient) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(in)
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	return f.query(in)
}

func newTestGateway(c Client) *Gateway {
	return NewGateway(c, GatewayConfig{
		TableName:  "wedding-rsvp",
		IndexNames: map[string]string{keys.StatusIndex.Name: "GSI2"},
		Timeout:    time.Second,
	}, nil, zap.NewNop())
}

var guestKey = keys.GuestKey("wedding", "jane@example.com")

func TestGateway_GetItem(t *testing.T) {
	c := &fakeClient{getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		assert.True(t, aws.ToBool(in.ConsistentRead))
		return &dynamodb.GetItemOutput{}, nil
	}}
	_, err := newTestGateway(c).GetItem(context.Background(), guestKey)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGateway_ErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"throttling is unavailable", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, pkgerrors.IsUnavailable},
		{"unknown api error is unavailable", &smithy.GenericAPIError{Code: "ValidationException"}, pkgerrors.IsUnavailable},
		{"deadline is timeout", context.DeadlineExceeded, pkgerrors.IsTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeClient{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) { return nil, tt.err }}
			_, err := newTestGateway(c).GetItem(context.Background(), guestKey)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestGateway_PutItemIfNotExists(t *testing.T) {
	c := &fakeClient{putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		require.NotNil(t, in.ConditionExpression)
		assert.Contains(t, *in.ConditionExpression, "attribute_not_exists")
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}}
	item, err := entities.ToItem(entities.NewGuest("wedding", "jane@example.com", "Jane", "ABC123", 2, time.Now()))
	require.NoError(t, err)

	err = newTestGateway(c).PutItem(context.Background(), item, ports.PutOptions{IfNotExists: true})
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestGateway_UpdateItem(t *testing.T) {
	expected := 4

	t.Run("builds versioned update", func(t *testing.T) {
		c := &fakeClient{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			update := aws.ToString(in.UpdateExpression)
			assert.Contains(t, update, "ADD")
			assert.Contains(t, update, "SET")
			assert.Contains(t, update, "REMOVE")
			assert.Contains(t, aws.ToString(in.ConditionExpression), "attribute_exists")
			assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
			return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
				"Version": &types.AttributeValueMemberN{Value: "5"},
			}}, nil
		}}
		out, err := newTestGateway(c).UpdateItem(context.Background(), guestKey, ports.Patch{"Notes": "hi", "GSI3PK": nil}, &expected)
		require.NoError(t, err)
		assert.Equal(t, "5", out["Version"].(*types.AttributeValueMemberN).Value)
	})

	t.Run("condition failure with old image is version mismatch", func(t *testing.T) {
		c := &fakeClient{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Item: map[string]types.AttributeValue{
				"Version": &types.AttributeValueMemberN{Value: "5"},
			}}
		}}
		_, err := newTestGateway(c).UpdateItem(context.Background(), guestKey, ports.Patch{"Notes": "x"}, &expected)
		assert.True(t, pkgerrors.IsVersionMismatch(err))
	})

	t.Run("condition failure without image is not found", func(t *testing.T) {
		c := &fakeClient{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{}
		}}
		_, err := newTestGateway(c).UpdateItem(context.Background(), guestKey, ports.Patch{"Notes": "x"}, &expected)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestGateway_IncrementCounter(t *testing.T) {
	incr := ports.CounterIncrement{
		Counter:     entities.AttrInvitationUses,
		Limit:       entities.AttrInvitationMaxUses,
		Token:       "tok",
		TokenSet:    entities.AttrInvitationRedeemedBy,
		RequireTrue: []string{entities.AttrInvitationActive},
		WindowFrom:  entities.AttrInvitationValidFrom,
		WindowUntil: entities.AttrInvitationValidUntil,
		Now:         "2025-01-01T00:00:00.000000000Z",
	}
	invKey := keys.InvitationKey("ABC123")

	t.Run("single conditional update", func(t *testing.T) {
		calls := 0
		c := &fakeClient{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			calls++
			cond := aws.ToString(in.ConditionExpression)
			for _, fragment := range []string{"contains", "NOT", "<", "attribute_exists"} {
				assert.Contains(t, cond, fragment)
			}
			assert.True(t, strings.HasPrefix(aws.ToString(in.UpdateExpression), "ADD"))
			return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{}}, nil
		}}
		res, err := newTestGateway(c).IncrementCounter(context.Background(), invKey, incr)
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, 1, calls)
	})

	t.Run("replayed token", func(t *testing.T) {
		c := &fakeClient{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Item: map[string]types.AttributeValue{
				"RedeemedBy": &types.AttributeValueMemberSS{Value: []string{"tok"}},
			}}
		}}
		res, err := newTestGateway(c).IncrementCounter(context.Background(), invKey, incr)
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.False(t, res.Applied)
	})

	t.Run("exhausted", func(t *testing.T) {
		c := &fakeClient{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Item: map[string]types.AttributeValue{
				"CurrentUses": &types.AttributeValueMemberN{Value: "1"},
			}}
		}}
		res, err := newTestGateway(c).IncrementCounter(context.Background(), invKey, incr)
		assert.True(t, pkgerrors.IsConflict(err))
		assert.NotNil(t, res.Item)
	})
}

func TestGateway_ReleaseCounter(t *testing.T) {
	incr := ports.CounterIncrement{
		Counter:  entities.AttrInvitationUses,
		Token:    "tok",
		TokenSet: entities.AttrInvitationRedeemedBy,
	}
	invKey := keys.InvitationKey("ABC123")

	t.Run("decrements and drops the token", func(t *testing.T) {
		c := &fakeClient{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			update := aws.ToString(in.UpdateExpression)
			assert.Contains(t, update, "ADD")
			assert.Contains(t, update, "DELETE")
			assert.Contains(t, aws.ToString(in.ConditionExpression), "contains")
			return &dynamodb.UpdateItemOutput{}, nil
		}}
		released, err := newTestGateway(c).ReleaseCounter(context.Background(), invKey, incr)
		require.NoError(t, err)
		assert.True(t, released)
	})

	t.Run("token already gone", func(t *testing.T) {
		c := &fakeClient{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Item: map[string]types.AttributeValue{
				"CurrentUses": &types.AttributeValueMemberN{Value: "0"},
			}}
		}}
		released, err := newTestGateway(c).ReleaseCounter(context.Background(), invKey, incr)
		require.NoError(t, err)
		assert.False(t, released)
	})
}

func TestGateway_QueryIndexAndLimit(t *testing.T) {
	page := []map[string]types.AttributeValue{{"PK": &types.AttributeValueMemberS{Value: "a"}}, {"PK": &types.AttributeValueMemberS{Value: "b"}}}
	c := &fakeClient{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		return &dynamodb.QueryOutput{
			Items:            page,
			LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "b"}},
		}, nil
	}}

	items, err := newTestGateway(c).Query(context.Background(), ports.QueryInput{
		Index:        &keys.StatusIndex,
		PartitionKey: "STATUS#wedding#attending",
		Limit:        3,
	})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	require.Len(t, c.queries, 2)
	assert.Equal(t, "GSI2", aws.ToString(c.queries[0].IndexName))
	assert.Nil(t, c.queries[0].ConsistentRead, "index reads cannot be consistent")
}
