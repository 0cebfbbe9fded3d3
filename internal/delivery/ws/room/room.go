package ws_room

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// Client is one socket following one room. The socket is receive-only for
// the browser; writes go through the HTTP API.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	userID uuid.UUID
	roomID uuid.UUID

	// Owned by the hub under its lock. Until live, feed events are held in
	// pending; since is the room version of the snapshot.
	live    bool
	since   int64
	pending []roomEvent
}

// NewClient creates a client without a socket: it is attached to the hub
// before the upgrade, so a room that cannot be followed is refused over HTTP.
func NewClient(hub *Hub, roomID uuid.UUID, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan Event, sendBuffer),
		userID: userID,
		roomID: roomID,
	}
}

// covers reports whether the snapshot already reflects e.
func (c *Client) covers(e roomEvent) bool {
	return e.version != 0 && e.version <= c.since
}

// serve starts the pumps on the upgraded socket.
func (c *Client) serve(conn *websocket.Conn) {
	c.conn = conn
	go c.writePump()
	go c.readPump()
}

// readPump only keeps the connection alive and notices when it goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).WithField("user_id", c.userID).Debug("socket closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
