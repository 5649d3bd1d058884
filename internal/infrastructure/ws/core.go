package ws

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
)

const backlogSize = 20

var ErrBroadcastBacklogFull = errors.New("live feed broadcast queue is full")

// Gauge tracks open subscriptions. prometheus.Gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

// Core owns the live feeds. All feed state is touched only by Run.
type Core struct {
	feeds       *FeedManager
	register    chan *Client
	unregister  chan *Client
	broadcast   chan *WSMessage
	done        chan struct{}
	events      domain.EventRepository
	logger      logging.Logger
	subscribers Gauge
}

func NewCore(events domain.EventRepository, logger logging.Logger, subscribers Gauge) *Core {
	return &Core{
		feeds:       NewFeedManager(),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *WSMessage, 256),
		done:        make(chan struct{}),
		events:      events,
		logger:      logger,
		subscribers: subscribers,
	}
}

func (c *Core) Run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case cl := <-c.register:
			n := c.feeds.AddClient(cl)
			c.subscribers.Inc()
			select {
			case cl.Message <- NewFeedReady(cl.ApplicationID, n):
			default:
			}

		case cl := <-c.unregister:
			if c.feeds.RemoveClient(cl) {
				c.subscribers.Dec()
			}

		case msg := <-c.broadcast:
			dropped, err := c.feeds.Broadcast(msg)
			if err != nil {
				continue // nobody is watching this application
			}
			for _, id := range dropped {
				c.logger.Warn(logging.WebSocket, logging.Subscription, "client buffer full, dropping message", map[logging.ExtraKey]any{
					logging.ApplicationID: msg.ApplicationID,
					"client":              id,
				})
			}

		case <-ctx.Done():
			for _, feed := range c.feeds.feeds {
				for _, cl := range feed.Clients {
					if c.feeds.RemoveClient(cl) {
						c.subscribers.Dec()
					}
				}
			}
			return
		}
	}
}

// Notify queues a recorded event for the subscribers of its application.
func (c *Core) Notify(_ context.Context, event *domain.Event) error {
	select {
	case c.broadcast <- NewEventRecorded(event):
		return nil
	default:
		return ErrBroadcastBacklogFull
	}
}

func (c *Core) Name() string {
	return "live_feed"
}

// Serve streams the feed of one application over conn until the peer goes
// away or the core stops. The most recent events are sent first.
func (c *Core) Serve(ctx context.Context, conn *websocket.Conn, applicationID int64) {
	cl := NewClient(conn, uuid.NewString(), applicationID)
	c.queueBacklog(ctx, cl)

	select {
	case c.register <- cl:
	case <-c.done:
		_ = cl.conn.Close()
		return
	}

	go cl.WriteMessage(c.logger)
	cl.ReadMessage(c)
}

// queueBacklog fills the client's buffer, oldest first, before it is
// registered. A failed load is reported to the client as an error message.
func (c *Core) queueBacklog(ctx context.Context, cl *Client) {
	recent, err := c.events.ListByApplication(ctx, cl.ApplicationID, backlogSize)
	if err != nil {
		c.logger.Error(logging.WebSocket, logging.Subscription, "failed to load event backlog", map[logging.ExtraKey]any{
			logging.ApplicationID: cl.ApplicationID,
			logging.ErrorMessage:  err.Error(),
		})
		cl.Message <- NewError(cl.ApplicationID, "recent events are unavailable")
		return
	}

	slices.Reverse(recent)
	for _, ev := range recent {
		cl.Message <- newBacklogEvent(ev)
	}
}

func (c *Core) leave(cl *Client) {
	select {
	case c.unregister <- cl:
	case <-c.done:
	}
}
