package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.createSession)
		r.Post("/send", s.sendMessage)
		r.Post("/logout", s.logoutSession)
		r.Get("/sessions", s.listSessions)
	})

	// Status pub/sub channel
	r.Get("/ws", s.hub.ServeHTTP)

	r.Get("/health", s.health)
}
