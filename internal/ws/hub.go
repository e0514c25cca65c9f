// Package ws bridges lifecycle events to websocket subscribers. Connections
// join rooms keyed by clientId; every lifecycle event for a session is pushed
// only to that session's room.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/genialityco/wa-multi-session-backend/internal/event"
	"github.com/genialityco/wa-multi-session-backend/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatusFunc reports the current status of a session, if one exists. The hub
// uses it to deliver a synthetic ready to late joiners.
type StatusFunc func(clientID string) (string, bool)

// Message is the wire envelope for server->client pushes.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks connections and their room memberships and fans lifecycle
// events out to the right room.
type Hub struct {
	status StatusFunc

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}

	unsubscribe func()
}

// NewHub creates a hub subscribed to the given event bus.
func NewHub(bus *event.Bus, status StatusFunc) *Hub {
	h := &Hub{
		status: status,
		rooms:  make(map[string]map[*client]struct{}),
	}
	h.unsubscribe = bus.SubscribeAll(h.handleEvent)
	return h
}

// Close detaches the hub from the bus and closes every connection.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.mu.Lock()
	clients := make(map[*client]struct{})
	for _, room := range h.rooms {
		for c := range room {
			clients[c] = struct{}{}
		}
	}
	h.rooms = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the connection and starts its read/write pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn)
	go c.writePump()
	go c.readPump()
}

// join subscribes a connection to a session's room. If the session is
// already ready, a synthetic ready status is delivered immediately so late
// subscribers are not stuck waiting for an event that already fired.
func (h *Hub) join(c *client, clientID string) {
	h.mu.Lock()
	room, ok := h.rooms[clientID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[clientID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	log := logging.Session(clientID)
	log.Debug().Msg("websocket joined room")

	if h.status != nil {
		if status, ok := h.status(clientID); ok && status == "ready" {
			c.send(Message{Event: "status", Data: map[string]any{"status": "ready"}})
		}
	}
}

// leave removes a connection from every room it joined.
func (h *Hub) leave(c *client) {
	h.mu.Lock()
	for clientID, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, clientID)
		}
	}
	h.mu.Unlock()
}

// broadcast pushes a message to every connection in one room.
func (h *Hub) broadcast(clientID string, msg Message) {
	h.mu.Lock()
	members := make([]*client, 0, len(h.rooms[clientID]))
	for c := range h.rooms[clientID] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		c.send(msg)
	}
}

// handleEvent maps each lifecycle event to exactly one room-scoped push.
func (h *Hub) handleEvent(ev event.Event) {
	switch data := ev.Data.(type) {
	case event.QRData:
		h.broadcast(data.ClientID, Message{
			Event: "qr",
			Data:  map[string]any{"qr": data.QR},
		})

	case event.StatusData:
		payload := map[string]any{"status": data.Status}
		if data.Error != "" {
			payload["error"] = data.Error
		}
		if data.Reason != "" {
			payload["reason"] = data.Reason
		}
		h.broadcast(data.ClientID, Message{Event: "status", Data: payload})

	case event.CleanedData:
		h.broadcast(data.ClientID, Message{
			Event: "session_cleaned",
			Data:  map[string]any{"status": data.Status, "motivo": data.Reason},
		})
	}
}

// joinRequest is the client->server subscription message.
type joinRequest struct {
	Event string `json:"event"`
	Data  struct {
		ClientID string `json:"clientId"`
	} `json:"data"`
}

// handleInbound processes one client->server frame.
func (h *Hub) handleInbound(c *client, raw []byte) {
	var req joinRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}
	if req.Event == "join" && req.Data.ClientID != "" {
		h.join(c, req.Data.ClientID)
	}
}
