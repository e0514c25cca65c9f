package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Push is one server->client websocket frame.
type Push struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DataMap decodes the frame payload into a map.
func (p Push) DataMap() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(p.Data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// WSClient is a websocket subscriber for one gateway.
type WSClient struct {
	conn   *websocket.Conn
	frames chan Push
	errs   chan error
}

// DialWS connects to the gateway's websocket endpoint and starts reading
// frames in the background.
func DialWS(url string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	c := &WSClient{
		conn:   conn,
		frames: make(chan Push, 64),
		errs:   make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.errs <- err
			close(c.frames)
			return
		}
		var push Push
		if err := json.Unmarshal(raw, &push); err != nil {
			continue
		}
		c.frames <- push
	}
}

// Join subscribes to a session's room.
func (c *WSClient) Join(clientID string) error {
	return c.conn.WriteJSON(map[string]any{
		"event": "join",
		"data":  map[string]any{"clientId": clientID},
	})
}

// Next returns the next frame, or an error after the timeout.
func (c *WSClient) Next(timeout time.Duration) (Push, error) {
	select {
	case push, ok := <-c.frames:
		if !ok {
			return Push{}, fmt.Errorf("websocket closed")
		}
		return push, nil
	case <-time.After(timeout):
		return Push{}, fmt.Errorf("no frame within %s", timeout)
	}
}

// NextOfType discards frames until one with the wanted event arrives.
func (c *WSClient) NextOfType(eventName string, timeout time.Duration) (Push, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Push{}, fmt.Errorf("no %q frame within %s", eventName, timeout)
		}
		push, err := c.Next(remaining)
		if err != nil {
			return Push{}, err
		}
		if push.Event == eventName {
			return push, nil
		}
	}
}

// Close closes the connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
