package ws

const (
	EventRecorded = "event.recorded"
	FeedReady     = "feed.ready"

	ErrorEvent = "error"
)
