package ws

import (
	"errors"
)

var ErrFeedNotFound = errors.New("feed not found")

// Feed groups the subscribers of one application.
type Feed struct {
	ApplicationID int64
	Clients       map[string]*Client
}

// FeedManager is owned by the Core goroutine and is not locked.
type FeedManager struct {
	feeds map[int64]*Feed
}

func NewFeedManager() *FeedManager {
	return &FeedManager{
		feeds: make(map[int64]*Feed),
	}
}

func (fm *FeedManager) AddClient(cl *Client) int {
	feed, ok := fm.feeds[cl.ApplicationID]
	if !ok {
		feed = &Feed{
			ApplicationID: cl.ApplicationID,
			Clients:       make(map[string]*Client),
		}
		fm.feeds[cl.ApplicationID] = feed
	}

	feed.Clients[cl.ID] = cl
	return len(feed.Clients)
}

// RemoveClient closes the client's outbound channel. It reports whether the
// client was registered.
func (fm *FeedManager) RemoveClient(cl *Client) bool {
	feed, ok := fm.feeds[cl.ApplicationID]
	if !ok {
		return false
	}

	if _, ok := feed.Clients[cl.ID]; !ok {
		return false
	}

	delete(feed.Clients, cl.ID)
	close(cl.Message)

	if len(feed.Clients) == 0 {
		delete(fm.feeds, cl.ApplicationID)
	}
	return true
}

// Broadcast returns the ids of clients whose buffers were full.
func (fm *FeedManager) Broadcast(msg *WSMessage) ([]string, error) {
	feed, ok := fm.feeds[msg.ApplicationID]
	if !ok {
		return nil, ErrFeedNotFound
	}

	var dropped []string
	for id, cl := range feed.Clients {
		select {
		case cl.Message <- msg:
		default:
			dropped = append(dropped, id)
		}
	}
	return dropped, nil
}
