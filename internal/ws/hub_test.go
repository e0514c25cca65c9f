package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genialityco/wa-multi-session-backend/internal/event"
)

type hubFixture struct {
	bus *event.Bus
	hub *Hub
	srv *httptest.Server
}

func newHubFixture(t *testing.T, status StatusFunc) *hubFixture {
	t.Helper()
	bus := event.New()
	hub := NewHub(bus, status)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		bus.Close()
	})
	return &hubFixture{bus: bus, hub: hub, srv: srv}
}

func (f *hubFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func join(t *testing.T, conn *websocket.Conn, clientID string) {
	t.Helper()
	req := map[string]any{"event": "join", "data": map[string]any{"clientId": clientID}}
	require.NoError(t, conn.WriteJSON(req))
}

// readMessage reads one push with a deadline so a broken test fails fast.
func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

// waitForRoom blocks until the hub registered a member for the clientId, so
// tests do not publish before the join frame is processed.
func (f *hubFixture) waitForRoom(t *testing.T, clientID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.hub.mu.Lock()
		n := len(f.hub.rooms[clientID])
		f.hub.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no members joined room %q", clientID)
}

// member returns one connection registered in a room, the same way broadcast
// snapshots them.
func (f *hubFixture) member(t *testing.T, clientID string) *client {
	t.Helper()
	f.hub.mu.Lock()
	defer f.hub.mu.Unlock()
	for c := range f.hub.rooms[clientID] {
		return c
	}
	t.Fatalf("no members in room %q", clientID)
	return nil
}

func TestHub_RoomScopedBroadcast(t *testing.T) {
	f := newHubFixture(t, nil)

	connA := f.dial(t)
	connB := f.dial(t)
	join(t, connA, "A")
	join(t, connB, "B")
	f.waitForRoom(t, "A")
	f.waitForRoom(t, "B")

	f.bus.PublishSync(event.Event{
		Type: event.SessionQR,
		Data: event.QRData{ClientID: "A", QR: "code-a"},
	})
	f.bus.PublishSync(event.Event{
		Type: event.SessionStatus,
		Data: event.StatusData{ClientID: "B", Status: "ready"},
	})

	msgA := readMessage(t, connA)
	assert.Equal(t, "qr", msgA.Event)
	assert.Equal(t, map[string]any{"qr": "code-a"}, msgA.Data)

	msgB := readMessage(t, connB)
	assert.Equal(t, "status", msgB.Event)
	assert.Equal(t, map[string]any{"status": "ready"}, msgB.Data)
}

func TestHub_StatusCarriesErrorAndReason(t *testing.T) {
	f := newHubFixture(t, nil)

	conn := f.dial(t)
	join(t, conn, "A")
	f.waitForRoom(t, "A")

	f.bus.PublishSync(event.Event{
		Type: event.SessionStatus,
		Data: event.StatusData{ClientID: "A", Status: "disconnected", Reason: "remote logout"},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "status", msg.Event)
	assert.Equal(t, map[string]any{"status": "disconnected", "reason": "remote logout"}, msg.Data)
}

func TestHub_SessionCleanedUsesMotivo(t *testing.T) {
	f := newHubFixture(t, nil)

	conn := f.dial(t)
	join(t, conn, "A")
	f.waitForRoom(t, "A")

	f.bus.PublishSync(event.Event{
		Type: event.SessionCleaned,
		Data: event.CleanedData{ClientID: "A", Status: "cleaned", Reason: "disconnected"},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "session_cleaned", msg.Event)
	assert.Equal(t, map[string]any{"status": "cleaned", "motivo": "disconnected"}, msg.Data)
}

func TestHub_LateJoinerGetsSyntheticReady(t *testing.T) {
	f := newHubFixture(t, func(clientID string) (string, bool) {
		if clientID == "A" {
			return "ready", true
		}
		return "", false
	})

	conn := f.dial(t)
	join(t, conn, "A")

	msg := readMessage(t, conn)
	assert.Equal(t, "status", msg.Event)
	assert.Equal(t, map[string]any{"status": "ready"}, msg.Data)
}

func TestHub_NoSyntheticReadyWhilePending(t *testing.T) {
	f := newHubFixture(t, func(clientID string) (string, bool) {
		return "pending", true
	})

	conn := f.dial(t)
	join(t, conn, "A")
	f.waitForRoom(t, "A")

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_SendToDepartedClientDoesNotPanic(t *testing.T) {
	f := newHubFixture(t, nil)

	conn := f.dial(t)
	join(t, conn, "A")
	f.waitForRoom(t, "A")

	// Broadcast snapshots room members outside the hub lock, so the peer can
	// go away between the snapshot and the delivery. The late send must be a
	// no-op, not a panic.
	c := f.member(t, "A")
	c.close()
	c.send(Message{Event: "qr", Data: map[string]any{"qr": "late"}})
	c.close()

	// The hub still serves new subscribers afterwards.
	conn2 := f.dial(t)
	join(t, conn2, "A")
	f.waitForRoom(t, "A")

	f.bus.PublishSync(event.Event{
		Type: event.SessionQR,
		Data: event.QRData{ClientID: "A", QR: "fresh"},
	})
	msg := readMessage(t, conn2)
	assert.Equal(t, "qr", msg.Event)
}

func TestHub_ConcurrentSendAndClose(t *testing.T) {
	f := newHubFixture(t, nil)

	conn := f.dial(t)
	join(t, conn, "A")
	f.waitForRoom(t, "A")
	c := f.member(t, "A")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.send(Message{Event: "status", Data: map[string]any{"status": "ready"}})
			}
		}()
	}
	c.close()
	wg.Wait()
}

func TestHub_MalformedFramesIgnored(t *testing.T) {
	f := newHubFixture(t, nil)

	conn := f.dial(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"join","data":{}}`)))
	join(t, conn, "A")
	f.waitForRoom(t, "A")

	f.bus.PublishSync(event.Event{
		Type: event.SessionQR,
		Data: event.QRData{ClientID: "A", QR: "code"},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "qr", msg.Event)
}
