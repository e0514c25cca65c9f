package authstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Local is a filesystem-backed auth store. Each clientId owns one directory
// under the root; credentials live in creds.json inside it, written with a
// tmp+rename so readers never observe a partial file.
type Local struct {
	root  string
	mu    sync.Mutex
	locks map[string]*FileLock
}

// NewLocal creates a Local store rooted at the given directory, creating it
// if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create auth root: %w", err)
	}
	return &Local{
		root:  root,
		locks: make(map[string]*FileLock),
	}, nil
}

// Root returns the store's root directory.
func (l *Local) Root() string { return l.root }

// credsPath returns the credentials file for a clientId.
func (l *Local) credsPath(clientID string) string {
	return filepath.Join(l.root, clientID, "creds.json")
}

// Load retrieves credentials for a clientId.
func (l *Local) Load(ctx context.Context, clientID string) (*Credentials, error) {
	data, err := os.ReadFile(l.credsPath(clientID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &creds, nil
}

// Save persists credentials with file locking.
func (l *Local) Save(ctx context.Context, creds *Credentials) error {
	filePath := l.credsPath(creds.ClientID)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	lock := l.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Write to temp file first, then rename (atomic operation)
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Purge removes the whole per-session auth directory.
func (l *Local) Purge(ctx context.Context, clientID string) error {
	dir := filepath.Join(l.root, clientID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove auth directory: %w", err)
	}

	l.mu.Lock()
	delete(l.locks, l.credsPath(clientID))
	l.mu.Unlock()

	return nil
}

// PurgeOnTeardown reports the local backend default: on-disk auth material is
// removed when its session is torn down.
func (l *Local) PurgeOnTeardown() bool { return true }

// Close releases backend resources. The local store holds none.
func (l *Local) Close(ctx context.Context) error { return nil }

// getLock returns a file lock for a path.
func (l *Local) getLock(filePath string) *FileLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[filePath]
	if !ok {
		lock = NewFileLock(filePath)
		l.locks[filePath] = lock
	}

	return lock
}
