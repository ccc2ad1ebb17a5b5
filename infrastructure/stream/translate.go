// Package stream turns committed table writes into change events.
package stream

import (
	"fmt"
	"strconv"
	"time"

	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/events"
	"wedding-backend/domain/keys"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Tracked reports whether writes to rows of entityType produce change events.
func Tracked(entityType string) bool {
	return entityType == keys.EntityGuest || entityType == keys.EntityRSVPResponse
}

// FromItem builds the change event of a committed write of item. ok is false
// for rows that are not tracked.
func FromItem(id string, name events.ChangeEventName, item entities.Item, at time.Time) (events.ChangeEvent, bool, error) {
	entity := entities.EntityTypeOf(item)
	if !Tracked(entity) {
		return events.ChangeEvent{}, false, nil
	}
	image := map[string]interface{}{}
	if err := attributevalue.UnmarshalMap(item, &image); err != nil {
		return events.ChangeEvent{}, false, fmt.Errorf("decode new image: %w", err)
	}
	return events.ChangeEvent{
		EventID:   id,
		EventName: name,
		Entity:    entity,
		Keys: map[string]string{
			keys.AttrPK: entities.StringAttr(item, keys.AttrPK),
			keys.AttrSK: entities.StringAttr(item, keys.AttrSK),
		},
		NewImage:   image,
		OccurredAt: at.UTC(),
	}, true, nil
}

// FromRecord translates one DynamoDB stream record. REMOVE records and
// untracked entities are skipped with ok false.
func FromRecord(rec lambdaevents.DynamoDBEventRecord) (events.ChangeEvent, bool, error) {
	var name events.ChangeEventName
	switch lambdaevents.DynamoDBOperationType(rec.EventName) {
	case lambdaevents.DynamoDBOperationTypeInsert:
		name = events.ChangeInsert
	case lambdaevents.DynamoDBOperationTypeModify:
		name = events.ChangeModify
	default:
		return events.ChangeEvent{}, false, nil
	}
	item, err := ConvertImage(rec.Change.NewImage)
	if err != nil {
		return events.ChangeEvent{}, false, err
	}
	at := rec.Change.ApproximateCreationDateTime.Time
	if at.IsZero() {
		at = time.Now()
	}
	return FromItem(rec.EventID, name, item, at)
}

// FromRecords translates a stream batch in order. Records that cannot be
// decoded are logged and skipped so one bad row does not block the shard.
func FromRecords(records []lambdaevents.DynamoDBEventRecord, logger *zap.Logger) []events.ChangeEvent {
	out := make([]events.ChangeEvent, 0, len(records))
	for _, rec := range records {
		change, ok, err := FromRecord(rec)
		if err != nil {
			logger.Error("Skipping undecodable stream record",
				zap.String("recordId", rec.EventID),
				zap.String("eventName", rec.EventName),
				zap.Error(err))
			continue
		}
		if ok {
			out = append(out, change)
		}
	}
	return out
}

// ConvertImage converts a stream image into SDK attribute values.
func ConvertImage(image map[string]lambdaevents.DynamoDBAttributeValue) (entities.Item, error) {
	out := make(entities.Item, len(image))
	for name, v := range image {
		av, err := convert(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		out[name] = av
	}
	return out, nil
}

func convert(v lambdaevents.DynamoDBAttributeValue) (types.AttributeValue, error) {
	switch v.DataType() {
	case lambdaevents.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}, nil
	case lambdaevents.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}, nil
	case lambdaevents.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case lambdaevents.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case lambdaevents.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}, nil
	case lambdaevents.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case lambdaevents.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case lambdaevents.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case lambdaevents.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for i, e := range list {
			av, err := convert(e)
			if err != nil {
				return nil, fmt.Errorf("[%s]: %w", strconv.Itoa(i), err)
			}
			out = append(out, av)
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case lambdaevents.DataTypeMap:
		m, err := ConvertImage(v.Map())
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}
	return nil, fmt.Errorf("unsupported stream data type %v", v.DataType())
}
