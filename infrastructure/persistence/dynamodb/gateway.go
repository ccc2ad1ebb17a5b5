// Package dynamodb implements the storage gateway and its companions on a
// single DynamoDB table.
package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultTimeout = 3 * time.Second

// Gateway is the DynamoDB ports.Store.
type Gateway struct {
	client  Client
	cfg     GatewayConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ ports.Store = (*Gateway)(nil)

// NewGateway creates a gateway over client. breaker may be nil.
func NewGateway(client Client, cfg GatewayConfig, breaker *gobreaker.CircuitBreaker, logger *zap.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Gateway{client: client, cfg: cfg, breaker: breaker, logger: logger}
}

// call runs fn with the per-operation timeout, through the breaker.
func (g *Gateway) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	if g.breaker == nil {
		return fn(ctx)
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

func keyAttrs(k keys.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keys.AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		keys.AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

func (g *Gateway) indexName(idx *keys.Index) *string {
	if name, ok := g.cfg.IndexNames[idx.Name]; ok && name != "" {
		return aws.String(name)
	}
	return aws.String(idx.Name)
}

// GetItem performs a strongly consistent read.
func (g *Gateway) GetItem(ctx context.Context, key keys.Key) (ports.Item, error) {
	var out *dynamodb.GetItemOutput
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(g.cfg.TableName),
			Key:            keyAttrs(key),
			ConsistentRead: aws.Bool(true),
		})
		return err
	})
	if err != nil {
		return nil, classify("GetItem", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("item " + key.String())
	}
	return out.Item, nil
}

// Query pages through every match, stopping once Limit rows are collected.
func (g *Gateway) Query(ctx context.Context, in ports.QueryInput) ([]ports.Item, error) {
	pkAttr, skAttr := keys.AttrPK, keys.AttrSK
	if in.Index != nil {
		pkAttr, skAttr = in.Index.PartitionAttr, in.Index.SortAttr
	}
	keyCond := expression.Key(pkAttr).Equal(expression.Value(in.PartitionKey))
	switch {
	case in.SortKeyPrefix != "":
		keyCond = keyCond.And(expression.Key(skAttr).BeginsWith(in.SortKeyPrefix))
	case in.SortKeyBetween != nil:
		keyCond = keyCond.And(expression.Key(skAttr).Between(
			expression.Value(in.SortKeyBetween[0]), expression.Value(in.SortKeyBetween[1])))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build query expression").WithCause(err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(g.cfg.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!in.Descending),
	}
	if in.Index != nil {
		input.IndexName = g.indexName(in.Index)
	} else if in.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(int32(in.Limit))
	}

	var items []ports.Item
	err = g.call(ctx, func(ctx context.Context) error {
		paginator := dynamodb.NewQueryPaginator(g.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			items = append(items, page.Items...)
			if in.Limit > 0 && len(items) >= in.Limit {
				items = items[:in.Limit]
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("Query", err)
	}
	g.logger.Debug("Query completed",
		zap.String("partitionKey", in.PartitionKey),
		zap.String("sortKeyPrefix", in.SortKeyPrefix),
		zap.Int("count", len(items)),
	)
	return items, nil
}

// PutItem writes item, optionally refusing to replace an existing row.
func (g *Gateway) PutItem(ctx context.Context, item ports.Item, opts ports.PutOptions) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(g.cfg.TableName),
		Item:      item,
	}
	if opts.IfNotExists {
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeNotExists(expression.Name(keys.AttrPK))).
			Build()
		if err != nil {
			return pkgerrors.NewInternalError("failed to build put condition").WithCause(err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	err := g.call(ctx, func(ctx context.Context) error {
		_, err := g.client.PutItem(ctx, input)
		return err
	})
	if _, ok := conditionFailed(err); ok {
		return pkgerrors.NewConflictError("item already exists").WithCode(pkgerrors.CodeDuplicate)
	}
	return classify("PutItem", err)
}

// UpdateItem applies patch in one update expression and increments Version.
func (g *Gateway) UpdateItem(ctx context.Context, key keys.Key, patch ports.Patch, expectedVersion *int) (ports.Item, error) {
	update := expression.Add(expression.Name(keys.AttrVersion), expression.Value(1))
	names := make([]string, 0, len(patch))
	for name := range patch {
		if name == keys.AttrPK || name == keys.AttrSK || name == keys.AttrVersion {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := patch[name]; v == nil {
			update = update.Remove(expression.Name(name))
		} else {
			update = update.Set(expression.Name(name), expression.Value(v))
		}
	}

	cond := expression.AttributeExists(expression.Name(keys.AttrPK))
	if expectedVersion != nil {
		cond = cond.And(expression.Name(keys.AttrVersion).Equal(expression.Value(*expectedVersion)))
	}
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build update expression").WithCause(err)
	}

	var out *dynamodb.UpdateItemOutput
	err = g.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                           aws.String(g.cfg.TableName),
			Key:                                 keyAttrs(key),
			UpdateExpression:                    expr.Update(),
			ConditionExpression:                 expr.Condition(),
			ExpressionAttributeNames:            expr.Names(),
			ExpressionAttributeValues:           expr.Values(),
			ReturnValues:                        types.ReturnValueAllNew,
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		})
		return err
	})
	if ccf, ok := conditionFailed(err); ok {
		if len(ccf.Item) == 0 {
			return nil, pkgerrors.NewNotFoundError("item " + key.String())
		}
		expected := 0
		if expectedVersion != nil {
			expected = *expectedVersion
		}
		g.logger.Debug("Optimistic lock lost",
			zap.String("pk", key.PK),
			zap.String("sk", key.SK),
			zap.Int("expectedVersion", expected),
		)
		return nil, pkgerrors.NewVersionMismatchError(expected)
	}
	if err != nil {
		return nil, classify("UpdateItem", err)
	}
	return out.Attributes, nil
}

// stringSet marshals as a DynamoDB string set, which ADD needs.
type stringSet []string

func (s stringSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberSS{Value: s}, nil
}

var _ attributevalue.Marshaler = stringSet(nil)

// IncrementCounter performs the conditional increment in a single UpdateItem.
// When the condition fails the returned old image tells a replayed token
// apart from a genuine rejection.
func (g *Gateway) IncrementCounter(ctx context.Context, key keys.Key, in ports.CounterIncrement) (ports.CounterResult, error) {
	update := expression.Add(expression.Name(in.Counter), expression.Value(1))
	cond := expression.AttributeExists(expression.Name(keys.AttrPK))
	for _, attr := range in.RequireTrue {
		cond = cond.And(expression.Name(attr).Equal(expression.Value(true)))
	}
	if in.WindowFrom != "" {
		cond = cond.And(expression.Or(
			expression.AttributeNotExists(expression.Name(in.WindowFrom)),
			expression.Name(in.WindowFrom).LessThanEqual(expression.Value(in.Now)),
		))
	}
	if in.WindowUntil != "" {
		cond = cond.And(expression.Or(
			expression.AttributeNotExists(expression.Name(in.WindowUntil)),
			expression.Name(in.WindowUntil).GreaterThan(expression.Value(in.Now)),
		))
	}
	cond = cond.And(expression.Name(in.Counter).LessThan(expression.Name(in.Limit)))
	if in.Token != "" {
		update = update.Add(expression.Name(in.TokenSet), expression.Value(stringSet{in.Token}))
		cond = cond.And(expression.Not(expression.Name(in.TokenSet).Contains(in.Token)))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return ports.CounterResult{}, pkgerrors.NewInternalError("failed to build counter expression").WithCause(err)
	}

	var out *dynamodb.UpdateItemOutput
	err = g.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                           aws.String(g.cfg.TableName),
			Key:                                 keyAttrs(key),
			UpdateExpression:                    expr.Update(),
			ConditionExpression:                 expr.Condition(),
			ExpressionAttributeNames:            expr.Names(),
			ExpressionAttributeValues:           expr.Values(),
			ReturnValues:                        types.ReturnValueAllNew,
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		})
		return err
	})
	if ccf, ok := conditionFailed(err); ok {
		if len(ccf.Item) == 0 {
			return ports.CounterResult{}, pkgerrors.NewNotFoundError("item " + key.String())
		}
		if in.Token != "" && hasToken(ccf.Item, in.TokenSet, in.Token) {
			return ports.CounterResult{Item: ccf.Item, Replayed: true}, nil
		}
		return ports.CounterResult{Item: ccf.Item}, pkgerrors.NewConflictError(fmt.Sprintf("condition on %s failed", in.Counter))
	}
	if err != nil {
		return ports.CounterResult{}, classify("IncrementCounter", err)
	}
	return ports.CounterResult{Item: out.Attributes, Applied: true}, nil
}

func hasToken(item ports.Item, attr, token string) bool {
	ss, ok := item[attr].(*types.AttributeValueMemberSS)
	if !ok {
		return false
	}
	for _, v := range ss.Value {
		if v == token {
			return true
		}
	}
	return false
}

// ReleaseCounter gives back a use recorded under in.Token in one
// conditional update.
func (g *Gateway) ReleaseCounter(ctx context.Context, key keys.Key, in ports.CounterIncrement) (bool, error) {
	if in.Token == "" {
		return false, pkgerrors.NewValidationError("release needs a token")
	}
	update := expression.Add(expression.Name(in.Counter), expression.Value(-1)).
		Delete(expression.Name(in.TokenSet), expression.Value(stringSet{in.Token}))
	cond := expression.AttributeExists(expression.Name(keys.AttrPK)).
		And(expression.Name(in.TokenSet).Contains(in.Token))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return false, pkgerrors.NewInternalError("failed to build release expression").WithCause(err)
	}

	err = g.call(ctx, func(ctx context.Context) error {
		_, err := g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                           aws.String(g.cfg.TableName),
			Key:                                 keyAttrs(key),
			UpdateExpression:                    expr.Update(),
			ConditionExpression:                 expr.Condition(),
			ExpressionAttributeNames:            expr.Names(),
			ExpressionAttributeValues:           expr.Values(),
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		})
		return err
	})
	if ccf, ok := conditionFailed(err); ok {
		if len(ccf.Item) == 0 {
			return false, pkgerrors.NewNotFoundError("item " + key.String())
		}
		return false, nil
	}
	if err != nil {
		return false, classify("ReleaseCounter", err)
	}
	return true, nil
}
