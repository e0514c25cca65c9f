package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for one outbound write.
	writeWait = 10 * time.Second
	// pongWait is how long to wait for a pong before dropping the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps inbound frames; clients only send join requests.
	maxMessageSize = 4096
)

// client is one websocket connection with its buffered outbound queue.
// The mutex serializes queueing against close: the hub broadcasts from
// outside this file while readPump can tear the connection down at any
// moment, and a send must never hit an already-closed queue.
type client struct {
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	out    chan []byte
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:  h,
		conn: conn,
		out:  make(chan []byte, 32),
	}
}

// send queues a message for delivery. Slow consumers are dropped rather than
// allowed to block the broadcast path. Safe against a concurrent close.
func (c *client) send(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.out <- raw:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.close()
	}
}

// close tears the connection down once. The queue is closed only after the
// closed flag is published under the mutex, so no send can reach it.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.hub.leave(c)
	close(c.out)
}

// readPump consumes inbound frames until the peer goes away.
func (c *client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.hub.handleInbound(c, raw)
	}
}

// writePump flushes the outbound queue and keeps the connection alive with
// pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
