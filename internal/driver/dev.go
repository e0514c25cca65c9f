package driver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/genialityco/wa-multi-session-backend/internal/authstore"
	"github.com/genialityco/wa-multi-session-backend/internal/media"
)

// DevConfig configures the dev driver.
type DevConfig struct {
	// AutoPair simulates the operator scanning the QR after this delay.
	// Zero leaves the session pending until it is torn down.
	AutoPair time.Duration
}

// Dev is an in-process stand-in for the real protocol client, for local
// development and tests. It honours the full lifecycle contract: restored
// credentials go straight to ready, fresh sessions emit a QR and, when
// AutoPair is set, walk qr -> authenticated -> ready while persisting
// credentials to the auth store.
type Dev struct {
	clientID string
	store    authstore.Store
	cfg      DevConfig

	events chan Event

	mu        sync.Mutex
	info      *Info
	destroyed bool
	cancel    context.CancelFunc
}

// NewDev creates a dev driver bound to one clientId.
func NewDev(clientID string, store authstore.Store, cfg DevConfig) *Dev {
	return &Dev{
		clientID: clientID,
		store:    store,
		cfg:      cfg,
		events:   make(chan Event, 16),
	}
}

// DevFactory returns a Factory producing dev drivers with the given config.
func DevFactory(cfg DevConfig) Factory {
	return func(clientID string, store authstore.Store) Driver {
		return NewDev(clientID, store, cfg)
	}
}

// Initialize restores a persisted session or starts a fresh pairing handshake.
func (d *Dev) Initialize(ctx context.Context) error {
	creds, err := d.store.Load(ctx, d.clientID)
	if err != nil && err != authstore.ErrNotFound {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		cancel()
		return nil
	}
	d.cancel = cancel
	d.mu.Unlock()

	if creds != nil {
		// Restored from the store: ready without a new QR scan.
		d.setInfo(&Info{ID: d.clientID + "@c.us", PushName: d.clientID})
		d.emit(Event{Type: EventReady})
		return nil
	}

	d.emit(Event{Type: EventQR, QR: newPairingCode()})

	if d.cfg.AutoPair > 0 {
		go d.pair(runCtx)
	}

	return nil
}

// pair simulates the operator scanning the QR.
func (d *Dev) pair(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(d.cfg.AutoPair):
	}

	d.emit(Event{Type: EventAuthenticated})

	token := make([]byte, 32)
	rand.Read(token)
	creds := &authstore.Credentials{
		ClientID: d.clientID,
		Token:    token,
		PairedAt: time.Now(),
	}
	if err := d.store.Save(ctx, creds); err != nil {
		d.emit(Event{Type: EventAuthFailure, Error: err.Error()})
		return
	}

	d.setInfo(&Info{ID: d.clientID + "@c.us", PushName: d.clientID})
	d.emit(Event{Type: EventReady})
}

// Events delivers lifecycle events for this session.
func (d *Dev) Events() <-chan Event {
	return d.events
}

// Info returns the resolved identity, or nil before ready.
func (d *Dev) Info() *Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}

// SendText sends a plain text message.
func (d *Dev) SendText(ctx context.Context, chatID, text string) (string, error) {
	if d.Info() == nil {
		return "", ErrNotReady
	}
	return messageID(chatID), nil
}

// SendImage sends an image with an optional caption.
func (d *Dev) SendImage(ctx context.Context, chatID string, img *media.Image, caption string) (string, error) {
	if d.Info() == nil {
		return "", ErrNotReady
	}
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("empty image payload")
	}
	return messageID(chatID), nil
}

// Destroy stops the handshake and closes the event channel.
func (d *Dev) Destroy(ctx context.Context) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return nil
	}
	d.destroyed = true
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(d.events)
	return nil
}

// Disconnect injects a disconnect, as if the remote end dropped the session.
func (d *Dev) Disconnect(reason string) {
	d.emit(Event{Type: EventDisconnected, Reason: reason})
}

// setInfo records the resolved identity.
func (d *Dev) setInfo(info *Info) {
	d.mu.Lock()
	d.info = info
	d.mu.Unlock()
}

// emit delivers an event unless the driver is destroyed. Events are dropped
// when the buffer is full; the controller keeps up in practice and a wedged
// consumer must not block the protocol goroutine.
func (d *Dev) emit(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	select {
	case d.events <- ev:
	default:
	}
}

// newPairingCode generates a QR payload.
func newPairingCode() string {
	buf := make([]byte, 24)
	rand.Read(buf)
	return base64.StdEncoding.EncodeToString(buf)
}

// messageID builds a provider-style serialized message identifier.
func messageID(chatID string) string {
	return fmt.Sprintf("true_%s_%s", chatID, ulid.Make().String())
}
