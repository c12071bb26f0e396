// Package eventbridge publishes chat domain events to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"chat-backend/domain/chat"
)

// EventSource identifies this service on published entries
const EventSource = "chat-backend"

// PutEventsAPI is the EventBridge call the publisher depends on
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends chat events to an EventBridge bus. Subscriptions are
// managed externally through rules and targets.
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client PutEventsAPI, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Publish sends a single event
func (p *Publisher) Publish(ctx context.Context, event chat.Event) error {
	return p.PublishBatch(ctx, []chat.Event{event})
}

// PublishBatch sends events in chunks of ten, the PutEvents entry cap
func (p *Publisher) PublishBatch(ctx context.Context, events []chat.Event) error {
	if len(events) == 0 {
		return nil
	}

	const batchSize = 10

	for i := 0; i < len(events); i += batchSize {
		end := i + batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := p.publishBatch(ctx, events[i:end]); err != nil {
			return err
		}
	}

	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, events []chat.Event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	// Result entries come back positionally, and marshal failures are skipped
	// above, so the source event is tracked per entry.
	sources := make([]chat.Event, 0, len(events))

	for _, event := range events {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to marshal chat event",
				zap.Error(err),
				zap.String("eventType", string(event.Type)),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(EventSource),
			DetailType:   aws.String(event.DetailType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(time.UnixMilli(event.OccurredAt)),
			Resources:    []string{fmt.Sprintf("arn:aws:chat::%s", event.RoomID)},
		})
		sources = append(sources, event)
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(sources) {
				p.logger.Error("failed to publish chat event",
					zap.String("eventType", string(sources[i].Type)),
					zap.String("errorCode", *entry.ErrorCode),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("chat events published",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)

	return nil
}
