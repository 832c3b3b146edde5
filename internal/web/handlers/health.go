package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendance-scanner/internal/capture"
)

// HealthHandler reports liveness along with where the capture loop stands.
// It never calls the recognizer; /recognizer/health does that.
type HealthHandler struct {
	scheduler *capture.Scheduler
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(scheduler *capture.Scheduler) *HealthHandler {
	return &HealthHandler{scheduler: scheduler}
}

type healthResponse struct {
	Status    string        `json:"status"`
	Capture   capture.State `json:"capture"`
	SessionID string        `json:"session_id,omitempty"`
	InFlight  bool          `json:"in_flight"`
	Paused    bool          `json:"paused"`
	Tracks    int           `json:"tracks"`
	Members   int           `json:"members_today"`
}

// Check handles GET /api/v1/health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	st := h.scheduler.Status()
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Capture:   st.State,
		SessionID: st.SessionID,
		InFlight:  st.InFlight,
		Paused:    st.Paused,
		Tracks:    st.Tracks,
		Members:   h.scheduler.Collector().Stats().UniqueMembers,
	})
}
