package eventbridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"chat-backend/domain/chat"
)

type capturingClient struct {
	calls  []*eventbridge.PutEventsInput
	output *eventbridge.PutEventsOutput
}

func (c *capturingClient) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	c.calls = append(c.calls, params)
	if c.output != nil {
		return c.output, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestPublishSendsEntry(t *testing.T) {
	client := &capturingClient{}
	publisher := NewPublisher(client, "chat-bus", zap.NewNop())

	event := chat.Event{
		Type:       chat.EventMessageSent,
		RoomID:     "room-1",
		UserID:     "alice",
		MessageKey: "message_1_id-1",
		OccurredAt: 1_700_000_000_000,
	}
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, client.calls, 1)
	require.Len(t, client.calls[0].Entries, 1)
	entry := client.calls[0].Entries[0]
	assert.Equal(t, "chat-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, EventSource, aws.ToString(entry.Source))
	assert.Equal(t, event.DetailType(), aws.ToString(entry.DetailType))

	var decoded chat.Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &decoded))
	assert.Equal(t, event.RoomID, decoded.RoomID)
	assert.Equal(t, event.MessageKey, decoded.MessageKey)
}

func TestPublishBatchChunksAtTen(t *testing.T) {
	client := &capturingClient{}
	publisher := NewPublisher(client, "chat-bus", zap.NewNop())

	events := make([]chat.Event, 23)
	for i := range events {
		events[i] = chat.Event{Type: chat.EventMessageSent, RoomID: "room-1"}
	}
	require.NoError(t, publisher.PublishBatch(context.Background(), events))

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[1].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	client := &capturingClient{}
	publisher := NewPublisher(client, "chat-bus", zap.NewNop())

	require.NoError(t, publisher.PublishBatch(context.Background(), nil))
	assert.Empty(t, client.calls)
}

func TestPublishReportsFailedEntries(t *testing.T) {
	client := &capturingClient{
		output: &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("slow down")},
			},
		},
	}
	publisher := NewPublisher(client, "chat-bus", zap.NewNop())

	err := publisher.Publish(context.Background(), chat.Event{Type: chat.EventRoomCreated, RoomID: "room-1"})
	assert.Error(t, err)
}

func TestPublishFailedEntryLogsItsOwnEvent(t *testing.T) {
	client := &capturingClient{
		output: &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("evt-1")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
			},
		},
	}
	core, logs := observer.New(zapcore.ErrorLevel)
	publisher := NewPublisher(client, "chat-bus", zap.New(core))

	err := publisher.PublishBatch(context.Background(), []chat.Event{
		{Type: chat.EventRoomCreated, RoomID: "room-1"},
		{Type: chat.EventMessageSent, RoomID: "room-2"},
	})
	require.Error(t, err)

	entries := logs.FilterMessage("failed to publish chat event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(chat.EventMessageSent), entries[0].ContextMap()["eventType"])
}
