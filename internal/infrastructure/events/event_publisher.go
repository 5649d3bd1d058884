package events

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/contracts"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/messaging"
)

type MessagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

// EventPublisher announces recorded events on the message broker.
type EventPublisher struct {
	publisher MessagePublisher
}

func NewEventPublisher(publisher MessagePublisher) *EventPublisher {
	return &EventPublisher{
		publisher: publisher,
	}
}

func (p *EventPublisher) Notify(ctx context.Context, event *domain.Event) error {
	payload := messaging.EventRecordedData{
		Event: *event,
	}

	eventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.publisher.PublishMessage(ctx, contracts.EventRecorded, contracts.AmqpMessage{
		ApplicationID: event.ApplicationID,
		Data:          eventJSON,
	})
}

func (p *EventPublisher) Name() string {
	return "rabbitmq"
}
