// Package testutil provides helpers for the integration suites: a fully
// wired in-process gateway and a websocket subscriber client.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/genialityco/wa-multi-session-backend/internal/authstore"
	"github.com/genialityco/wa-multi-session-backend/internal/driver"
	"github.com/genialityco/wa-multi-session-backend/internal/event"
	"github.com/genialityco/wa-multi-session-backend/internal/server"
	"github.com/genialityco/wa-multi-session-backend/internal/session"
	"github.com/genialityco/wa-multi-session-backend/internal/ws"
)

// Gateway is an in-process gateway instance backed by the dev driver and a
// filesystem auth store.
type Gateway struct {
	Sessions *session.Service
	Store    *authstore.Local
	Bus      *event.Bus

	hub *ws.Hub
	srv *httptest.Server
}

// GatewayConfig parameterizes StartGateway.
type GatewayConfig struct {
	// AuthRoot is the auth store directory. Reuse one across two gateways to
	// exercise session restore.
	AuthRoot string
	// AutoPair simulates the operator scanning the QR after this delay.
	AutoPair time.Duration
	// Purge is the teardown credential policy. Empty means auto.
	Purge authstore.PurgePolicy
}

// StartGateway wires the full stack and serves it over an httptest server.
func StartGateway(cfg GatewayConfig) (*Gateway, error) {
	store, err := authstore.NewLocal(cfg.AuthRoot)
	if err != nil {
		return nil, err
	}

	bus := event.New()
	sessions := session.NewService(
		driver.DevFactory(driver.DevConfig{AutoPair: cfg.AutoPair}),
		store, bus, cfg.Purge,
	)
	hub := ws.NewHub(bus, func(clientID string) (string, bool) {
		sess, ok := sessions.Get(clientID)
		if !ok {
			return "", false
		}
		return string(sess.Status()), true
	})

	s := server.New(server.DefaultConfig(), sessions, hub)
	srv := httptest.NewServer(s.Router())

	return &Gateway{
		Sessions: sessions,
		Store:    store,
		Bus:      bus,
		hub:      hub,
		srv:      srv,
	}, nil
}

// URL returns the gateway's base HTTP URL.
func (g *Gateway) URL() string {
	return g.srv.URL
}

// WSURL returns the gateway's websocket endpoint URL.
func (g *Gateway) WSURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/ws"
}

// Stop shuts the gateway down.
func (g *Gateway) Stop() {
	g.srv.Close()
	g.hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g.Sessions.Shutdown(ctx)
	g.Bus.Close()
}

// PostJSON posts a JSON body and decodes the JSON response.
func (g *Gateway) PostJSON(path string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, err
	}

	resp, err := http.Post(g.srv.URL+path, "application/json", &buf)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// GetJSON fetches a path and decodes the JSON response.
func (g *Gateway) GetJSON(path string, out any) (int, error) {
	resp, err := http.Get(g.srv.URL + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// WaitForStatus polls until the session reaches the wanted status.
func (g *Gateway) WaitForStatus(clientID string, want session.Status, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sess, ok := g.Sessions.Get(clientID); ok && sess.Status() == want {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("session %q never reached status %q", clientID, want)
}

// WaitForRemoval polls until the session disappears from the registry.
func (g *Gateway) WaitForRemoval(clientID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, ok := g.Sessions.Get(clientID); !ok {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("session %q still registered", clientID)
}
