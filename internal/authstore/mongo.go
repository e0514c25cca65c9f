package authstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a MongoDB-backed auth store: one document per clientId in a
// single collection, keyed by _id.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoConfig holds connection parameters for the Mongo store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	// ConnectTimeout bounds the initial connect-and-ping, retries included.
	ConnectTimeout time.Duration
}

// NewMongo connects to MongoDB and returns a store bound to the configured
// collection. The initial ping is retried with exponential backoff; if the
// store is still unreachable when the timeout elapses, the error is fatal to
// the caller (no session can be created without its auth store).
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.Collection == "" {
		cfg.Collection = "wa_sessions"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	ping := func() error {
		return client.Ping(ctx, nil)
	}
	if err := backoff.Retry(ping, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("auth store unreachable: %w", err)
	}

	return &Mongo{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Load retrieves credentials for a clientId.
func (m *Mongo) Load(ctx context.Context, clientID string) (*Credentials, error) {
	var creds Credentials
	err := m.coll.FindOne(ctx, bson.M{"_id": clientID}).Decode(&creds)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return &creds, nil
}

// Save persists credentials for a clientId (upsert).
func (m *Mongo) Save(ctx context.Context, creds *Credentials) error {
	_, err := m.coll.ReplaceOne(
		ctx,
		bson.M{"_id": creds.ClientID},
		creds,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Purge removes credentials for a clientId.
func (m *Mongo) Purge(ctx context.Context, clientID string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": clientID}); err != nil {
		return fmt.Errorf("failed to purge credentials: %w", err)
	}
	return nil
}

// PurgeOnTeardown reports the durable backend default: credentials survive
// teardown so a later create can restore the session without a new QR scan.
func (m *Mongo) PurgeOnTeardown() bool { return false }

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
