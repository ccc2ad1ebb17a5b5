package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"wedding-backend/domain/events"
	"wedding-backend/domain/keys"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	calls  []*eventbridge.PutEventsInput
	result func(*eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error)
}

func (f *fakeClient) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.result != nil {
		return f.result(in)
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func change(i int) events.ChangeEvent {
	return events.ChangeEvent{
		EventID:    fmt.Sprintf("evt-%d", i),
		EventName:  events.ChangeInsert,
		Entity:     keys.EntityRSVPResponse,
		Keys:       map[string]string{"PK": "EVENT#wedding", "SK": fmt.Sprintf("RSVP#guest%d@example.com#ts#id", i)},
		NewImage:   map[string]interface{}{"Status": "attending"},
		OccurredAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublishBatch_SplitsIntoTens(t *testing.T) {
	client := &fakeClient{}
	p := NewEventBridgePublisher(client, "wedding-bus", zap.NewNop())

	batch := make([]events.ChangeEvent, 0, 23)
	for i := 0; i < 23; i++ {
		batch = append(batch, change(i))
	}
	require.NoError(t, p.PublishBatch(context.Background(), batch))

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)

	entry := client.calls[0].Entries[0]
	assert.Equal(t, "wedding-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.DetailTypeRSVPRecorded, aws.ToString(entry.DetailType))

	var decoded events.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &decoded))
	assert.Equal(t, "evt-0", decoded.EventID)
}

func TestPublishBatch_FailedEntries(t *testing.T) {
	client := &fakeClient{result: func(in *eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error) {
		return &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("ok")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
			},
		}, nil
	}}
	p := NewEventBridgePublisher(client, "wedding-bus", zap.NewNop())
	err := p.PublishBatch(context.Background(), []events.ChangeEvent{change(1), change(2)})
	assert.ErrorContains(t, err, "1 events failed")
}

func TestPublish_ClientError(t *testing.T) {
	client := &fakeClient{result: func(*eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error) {
		return nil, errors.New("throttled")
	}}
	err := NewEventBridgePublisher(client, "wedding-bus", zap.NewNop()).Publish(context.Background(), change(1))
	assert.Error(t, err)

	assert.NoError(t, NewEventBridgePublisher(&fakeClient{}, "wedding-bus", zap.NewNop()).PublishBatch(context.Background(), nil))
}
