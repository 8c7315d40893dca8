// Package push delivers live progress to connected browsers over websockets.
package push

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Frame is the wire shape of every server-to-client push message.
type Frame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Channel wraps one websocket connection. Writes are serialized internally;
// gorilla connections allow a single concurrent writer.
type Channel struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func NewChannel(conn *websocket.Conn) *Channel {
	return &Channel{id: uuid.NewString(), conn: conn}
}

func (c *Channel) ID() string { return c.id }

// Send writes one event frame. Errors after close are returned but harmless;
// the read pump tears the connection down.
func (c *Channel) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(Frame{Event: event, Payload: payload})
}

// Close sends a normal-closure frame and closes the connection.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}
