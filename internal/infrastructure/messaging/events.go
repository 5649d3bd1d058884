package messaging

import "github.com/hilthontt/cheahlytics/internal/domain"

const (
	// RecordedEventsQueue is the durable queue for downstream consumers.
	RecordedEventsQueue = "events.recorded"
	DeadLetterQueue     = "dead_letter_queue"
)

type EventRecordedData struct {
	Event domain.Event `json:"event"`
}
