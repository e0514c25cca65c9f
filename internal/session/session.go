// Package session owns the lifecycle of every messaging session: the
// registry mapping clientId to a live driver, the state machine driven by
// driver events, and the idempotent teardown path. HTTP handlers and the
// websocket hub are stateless observers of this package.
package session

import (
	"sync"
	"time"

	"github.com/genialityco/wa-multi-session-backend/internal/driver"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
	StatusAuthFailure   Status = "auth_failure"
	StatusDisconnected  Status = "disconnected"
	StatusCleaned       Status = "cleaned"
)

// Teardown reasons broadcast with session.cleaned.
const (
	ReasonAuthFailure  = "auth_failure"
	ReasonDisconnected = "disconnected"
	ReasonInitError    = "init_error"
	ReasonLogout       = "logout_manual"
)

// Session is one registered messaging session. It exclusively owns its
// driver instance; status moves forward only, mutated by the controller in
// response to driver events.
type Session struct {
	ClientID  string
	CreatedAt time.Time

	drv driver.Driver

	mu     sync.Mutex
	status Status
	info   *driver.Info

	teardownOnce sync.Once
}

// Status returns the most recently observed lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Info returns the driver's resolved identity, cached when the session
// became ready. Nil before that.
func (s *Session) Info() *driver.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// setStatus records a state transition.
func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// setInfo caches the resolved identity.
func (s *Session) setInfo(info *driver.Info) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

// Summary is the registry snapshot entry returned by List.
type Summary struct {
	ClientID string `json:"clientId"`
	Status   Status `json:"status"`
}
