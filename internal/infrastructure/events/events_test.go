package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/contracts"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	message    contracts.AmqpMessage
	err        error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, routingKey string, message contracts.AmqpMessage) error {
	p.routingKey = routingKey
	p.message = message
	return p.err
}

type recordingNotifier struct {
	got *domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event *domain.Event) error {
	n.got = event
	return nil
}

func TestEventPublisher_RoundTripsThroughConsumer(t *testing.T) {
	pub := &recordingPublisher{}
	event := &domain.Event{
		ID:            12,
		Name:          "Product Purchase",
		ApplicationID: 3,
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, NewEventPublisher(pub).Notify(context.Background(), event))
	assert.Equal(t, contracts.EventRecorded, pub.routingKey)
	assert.EqualValues(t, 3, pub.message.ApplicationID)

	body, err := json.Marshal(pub.message)
	require.NoError(t, err)

	target := &recordingNotifier{}
	consumer := NewEventConsumer(nil, target, logging.NewNop())
	require.NoError(t, consumer.handle(context.Background(), body))

	require.NotNil(t, target.got)
	assert.Equal(t, *event, *target.got)
}

func TestEventPublisher_PropagatesError(t *testing.T) {
	boom := errors.New("broker down")
	err := NewEventPublisher(&recordingPublisher{err: boom}).Notify(context.Background(), &domain.Event{Name: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestEventConsumer_RejectsGarbage(t *testing.T) {
	consumer := NewEventConsumer(nil, &recordingNotifier{}, logging.NewNop())
	assert.Error(t, consumer.handle(context.Background(), []byte("not json")))
}
