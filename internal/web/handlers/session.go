package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendance-scanner/internal/session"
)

// SessionHandler serves recent activity and daily counters.
type SessionHandler struct {
	collector *session.Collector
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(collector *session.Collector) *SessionHandler {
	return &SessionHandler{collector: collector}
}

// SessionResponse is the recent-activity panel payload.
type SessionResponse struct {
	Recent []session.Entry `json:"recent"`
	Stats  session.Stats   `json:"stats"`
}

// Get returns the recent activity list and counters.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	recent := h.collector.Recent()
	if recent == nil {
		recent = []session.Entry{}
	}
	respondJSON(w, http.StatusOK, SessionResponse{
		Recent: recent,
		Stats:  h.collector.Stats(),
	})
}

// Reset clears recent activity and counters.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.collector.Reset()
	w.WriteHeader(http.StatusNoContent)
}
