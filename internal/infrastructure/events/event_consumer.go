package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/contracts"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

// Notifier is the local side of a recorded event, typically the live feed.
type Notifier interface {
	Notify(ctx context.Context, event *domain.Event) error
}

// EventConsumer relays events recorded by any replica to a local notifier.
type EventConsumer struct {
	rabbitmq *messaging.RabbitMQ
	target   Notifier
	logger   logging.Logger
}

func NewEventConsumer(rabbitmq *messaging.RabbitMQ, target Notifier, logger logging.Logger) *EventConsumer {
	return &EventConsumer{
		rabbitmq: rabbitmq,
		target:   target,
		logger:   logger,
	}
}

func (c *EventConsumer) Listen(ctx context.Context) error {
	queue, err := c.rabbitmq.DeclareReplicaQueue(contracts.EventRecorded)
	if err != nil {
		return err
	}

	return c.rabbitmq.ConsumeMessages(ctx, queue, func(ctx context.Context, msg amqp091.Delivery) error {
		return c.handle(ctx, msg.Body)
	})
}

func (c *EventConsumer) handle(ctx context.Context, body []byte) error {
	event, err := decodeEventRecorded(body)
	if err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Subscription, "failed to decode message", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	return c.target.Notify(ctx, event)
}

func decodeEventRecorded(body []byte) (*domain.Event, error) {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var payload messaging.EventRecordedData
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return &payload.Event, nil
}
