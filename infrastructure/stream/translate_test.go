package stream

import (
	"testing"
	"time"

	"wedding-backend/domain/events"
	"wedding-backend/domain/keys"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rsvpImage() map[string]lambdaevents.DynamoDBAttributeValue {
	return map[string]lambdaevents.DynamoDBAttributeValue{
		"PK":         lambdaevents.NewStringAttribute("EVENT#wedding"),
		"SK":         lambdaevents.NewStringAttribute("RSVP#jane@example.com#2025-05-01T10:00:00.000000000Z#r1"),
		"EntityType": lambdaevents.NewStringAttribute(keys.EntityRSVPResponse),
		"EventID":    lambdaevents.NewStringAttribute("wedding"),
		"Email":      lambdaevents.NewStringAttribute("jane@example.com"),
		"PartySize":  lambdaevents.NewNumberAttribute("2"),
		"Attendees": lambdaevents.NewListAttribute([]lambdaevents.DynamoDBAttributeValue{
			lambdaevents.NewMapAttribute(map[string]lambdaevents.DynamoDBAttributeValue{
				"Name": lambdaevents.NewStringAttribute("Sam Doe"),
			}),
		}),
		"RedeemedBy": lambdaevents.NewStringSetAttribute([]string{"a", "b"}),
	}
}

func record(id, name string, image map[string]lambdaevents.DynamoDBAttributeValue) lambdaevents.DynamoDBEventRecord {
	return lambdaevents.DynamoDBEventRecord{
		EventID:   id,
		EventName: name,
		Change: lambdaevents.DynamoDBStreamRecord{
			ApproximateCreationDateTime: lambdaevents.SecondsEpochTime{Time: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)},
			NewImage:                    image,
		},
	}
}

func TestFromRecord_Insert(t *testing.T) {
	change, ok, err := FromRecord(record("rec-1", "INSERT", rsvpImage()))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "rec-1", change.EventID)
	assert.Equal(t, events.ChangeInsert, change.EventName)
	assert.Equal(t, keys.EntityRSVPResponse, change.Entity)
	assert.Equal(t, "EVENT#wedding", change.Keys["PK"])
	assert.Equal(t, "wedding", change.ImageString("EventID"))
	assert.Equal(t, float64(2), change.NewImage["PartySize"])
	assert.Equal(t, events.DetailTypeRSVPRecorded, change.GetEventType())
	assert.Equal(t, 2025, change.OccurredAt.Year())
}

func TestFromRecord_Skipped(t *testing.T) {
	_, ok, err := FromRecord(record("rec-2", "REMOVE", rsvpImage()))
	require.NoError(t, err)
	assert.False(t, ok)

	image := rsvpImage()
	image["EntityType"] = lambdaevents.NewStringAttribute(keys.EntityInvitation)
	_, ok, err = FromRecord(record("rec-3", "MODIFY", image))
	require.NoError(t, err)
	assert.False(t, ok, "invitation rows are not tracked")
}

func TestFromRecords_KeepsOrder(t *testing.T) {
	guest := map[string]lambdaevents.DynamoDBAttributeValue{
		"PK":         lambdaevents.NewStringAttribute("EVENT#wedding"),
		"SK":         lambdaevents.NewStringAttribute("GUEST#jane@example.com"),
		"EntityType": lambdaevents.NewStringAttribute(keys.EntityGuest),
		"EventID":    lambdaevents.NewStringAttribute("wedding"),
	}
	changes := FromRecords([]lambdaevents.DynamoDBEventRecord{
		record("a", "INSERT", rsvpImage()),
		record("b", "REMOVE", guest),
		record("c", "MODIFY", guest),
	}, zap.NewNop())

	require.Len(t, changes, 2)
	assert.Equal(t, "a", changes[0].EventID)
	assert.Equal(t, "c", changes[1].EventID)
	assert.Equal(t, events.ChangeModify, changes[1].EventName)
	assert.Equal(t, events.DetailTypeGuestChanged, changes[1].GetEventType())
}
