package ws

import (
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
)

type WSMessage struct {
	Type          string `json:"type"`
	ApplicationID int64  `json:"applicationId"`
	Data          any    `json:"data"`
}

type EventPayload struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	Backlog   bool   `json:"backlog,omitempty"`
}

type FeedReadyPayload struct {
	Subscribers int `json:"subscribers"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewEventRecorded(event *domain.Event) *WSMessage {
	return &WSMessage{
		Type:          EventRecorded,
		ApplicationID: event.ApplicationID,
		Data: EventPayload{
			ID:        event.ID,
			Name:      event.Name,
			CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

func newBacklogEvent(event domain.Event) *WSMessage {
	msg := NewEventRecorded(&event)
	payload := msg.Data.(EventPayload)
	payload.Backlog = true
	msg.Data = payload
	return msg
}

func NewFeedReady(applicationID int64, subscribers int) *WSMessage {
	return &WSMessage{
		Type:          FeedReady,
		ApplicationID: applicationID,
		Data:          FeedReadyPayload{Subscribers: subscribers},
	}
}

func NewError(applicationID int64, message string) *WSMessage {
	return &WSMessage{
		Type:          ErrorEvent,
		ApplicationID: applicationID,
		Data:          ErrorPayload{Message: message},
	}
}
