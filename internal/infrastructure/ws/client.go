package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	clientBuffer   = 64
)

type Client struct {
	conn          *connWrapper
	Message       chan *WSMessage
	ID            string `json:"id"`
	ApplicationID int64  `json:"applicationId"`
}

func NewClient(conn *websocket.Conn, id string, applicationID int64) *Client {
	return &Client{
		conn:          newConnWrapper(conn),
		Message:       make(chan *WSMessage, clientBuffer),
		ID:            id,
		ApplicationID: applicationID,
	}
}

// ReadMessage drains inbound frames so control messages are processed. The
// feed is one-way; anything the peer sends is ignored.
func (c *Client) ReadMessage(core *Core) {
	defer func() {
		core.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				core.logger.Warn(logging.WebSocket, logging.Subscription, "ws read error", map[logging.ExtraKey]any{
					"client":             c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}
	}
}

func (c *Client) WriteMessage(logger logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Message:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Debug(logging.WebSocket, logging.Subscription, "ws write error", map[logging.ExtraKey]any{
					"client":             c.ID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		}
	}
}
