// Package driver defines the session driver boundary: the opaque component
// that maintains one authenticated messaging connection per clientId and
// reports lifecycle events back to the gateway.
package driver

import (
	"context"
	"errors"

	"github.com/genialityco/wa-multi-session-backend/internal/authstore"
	"github.com/genialityco/wa-multi-session-backend/internal/media"
)

// ErrNotReady is returned by send operations before the driver has finished
// its handshake.
var ErrNotReady = errors.New("driver not ready")

// EventType identifies a lifecycle event emitted by a driver.
type EventType string

const (
	EventQR            EventType = "qr"
	EventAuthenticated EventType = "authenticated"
	EventReady         EventType = "ready"
	EventAuthFailure   EventType = "auth_failure"
	EventDisconnected  EventType = "disconnected"
)

// Event is one lifecycle event. Fields beyond Type are populated per event:
// QR for EventQR, Error for EventAuthFailure, Reason for EventDisconnected.
type Event struct {
	Type   EventType
	QR     string
	Error  string
	Reason string
}

// Info is the driver's resolved identity, available once the session is ready.
type Info struct {
	ID       string
	PushName string
}

// Driver is one live automation-channel connection bound to a single
// clientId. Implementations deliver events on Events() in the order the
// underlying channel emits them and close the channel when destroyed.
type Driver interface {
	// Initialize starts the handshake asynchronously. A non-nil error means
	// the session could not start at all; everything after a successful
	// return is reported through Events().
	Initialize(ctx context.Context) error

	// Events delivers lifecycle events for this session, in emission order.
	Events() <-chan Event

	// Info returns the resolved identity, or nil before the session is ready.
	Info() *Info

	// SendText sends a plain text message and returns the provider-assigned
	// message identifier.
	SendText(ctx context.Context, chatID, text string) (string, error)

	// SendImage sends an image with an optional caption and returns the
	// provider-assigned message identifier.
	SendImage(ctx context.Context, chatID string, img *media.Image, caption string) (string, error)

	// Destroy releases the underlying connection. Idempotent, best effort.
	Destroy(ctx context.Context) error
}

// Factory constructs a driver bound to one clientId and one auth store.
type Factory func(clientID string, store authstore.Store) Driver
