package contracts

// AmqpMessage is the envelope published on the events exchange.
type AmqpMessage struct {
	ApplicationID int64  `json:"applicationId"`
	Data          []byte `json:"data"`
}

// Routing keys
const (
	EventRecorded = "event.recorded"
)
