package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/genialityco/wa-multi-session-backend/internal/media"
	"github.com/genialityco/wa-multi-session-backend/internal/session"
)

// CreateSessionRequest is the request body for POST /api/session.
type CreateSessionRequest struct {
	ClientID string `json:"clientId"`
}

// createSession handles POST /api/session: an idempotent upsert into the
// registry. The response is always pending; the actual handshake progress is
// reported over the websocket channel.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "missing clientId")
		return
	}

	s.sessions.GetOrCreate(req.ClientID)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "pending",
		"clientId": req.ClientID,
	})
}

// SendRequest is the request body for POST /api/send. Message and Image may
// not both be empty; when both are set, Message becomes the image caption.
type SendRequest struct {
	ClientID string `json:"clientId"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
	Image    string `json:"image"`
}

// sendMessage handles POST /api/send.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClientID == "" || req.Phone == "" || (req.Message == "" && req.Image == "") {
		writeError(w, http.StatusBadRequest, "missing data: at least message or image is required")
		return
	}

	if _, ok := s.sessions.Get(req.ClientID); !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	chatID := NormalizePhone(req.Phone)

	var img *media.Image
	if req.Image != "" {
		var err error
		img, err = media.Resolve(r.Context(), s.mediaClient, req.Image)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	id, err := s.sessions.Send(r.Context(), req.ClientID, chatID, req.Message, img)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "sent",
		"id":     id,
	})
}

// LogoutRequest is the request body for POST /api/logout.
type LogoutRequest struct {
	ClientID string `json:"clientId"`
}

// logoutSession handles POST /api/logout. Teardown runs in the background;
// the response does not wait for it.
func (s *Server) logoutSession(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "missing clientId")
		return
	}

	s.sessions.Logout(req.ClientID)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "logout",
		"clientId": req.ClientID,
	})
}

// listSessions handles GET /api/sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	summaries := s.sessions.List()
	if summaries == nil {
		summaries = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
