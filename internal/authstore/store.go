// Package authstore persists per-session authentication material behind a
// single capability interface with two backends: a local filesystem store and
// a MongoDB store. The backend is selected at deployment time.
package authstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no credentials exist for a clientId.
	ErrNotFound = errors.New("credentials not found")
)

// Credentials is the opaque auth material a session driver persists once a
// handshake succeeds. The gateway never inspects Token; it only moves it
// between the driver and the backing store.
type Credentials struct {
	ClientID string    `json:"clientId" bson:"_id"`
	Token    []byte    `json:"token" bson:"token"`
	PairedAt time.Time `json:"pairedAt" bson:"pairedAt"`
}

// Store is the auth store capability shared by all backends.
type Store interface {
	// Load retrieves credentials for a clientId, or ErrNotFound.
	Load(ctx context.Context, clientID string) (*Credentials, error)

	// Save persists credentials for a clientId, overwriting any previous set.
	Save(ctx context.Context, creds *Credentials) error

	// Purge removes credentials for a clientId. Purging an absent entry is
	// not an error.
	Purge(ctx context.Context, clientID string) error

	// PurgeOnTeardown reports the backend's default teardown policy: the
	// filesystem store removes auth material when a session is torn down,
	// the durable store keeps it so the session can be restored later.
	PurgeOnTeardown() bool

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// PurgePolicy decides whether teardown purges persisted credentials.
type PurgePolicy string

const (
	// PurgeAuto defers to the backend default (PurgeOnTeardown).
	PurgeAuto PurgePolicy = "auto"
	// PurgeAlways purges on every teardown regardless of backend.
	PurgeAlways PurgePolicy = "always"
	// PurgeNever keeps credentials on every teardown regardless of backend.
	PurgeNever PurgePolicy = "never"
)

// ShouldPurge resolves a policy against a backend default.
func (p PurgePolicy) ShouldPurge(store Store) bool {
	switch p {
	case PurgeAlways:
		return true
	case PurgeNever:
		return false
	default:
		return store.PurgeOnTeardown()
	}
}
