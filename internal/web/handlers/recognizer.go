package handlers

import (
	"context"
	"net/http"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/recognition"
)

// HealthChecker probes the recognition service.
type HealthChecker interface {
	Health(ctx context.Context) (*recognition.Health, error)
}

// RecognizerHandler reports recognition service health to the dashboard.
type RecognizerHandler struct {
	checker HealthChecker
}

// NewRecognizerHandler creates a new recognizer handler.
func NewRecognizerHandler(checker HealthChecker) *RecognizerHandler {
	return &RecognizerHandler{checker: checker}
}

// Health probes the recognition service. An unreachable service is reported
// as not ready with a 503 so the start control can be disabled.
func (h *RecognizerHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.HealthTimeout)
	defer cancel()

	health, err := h.checker.Health(ctx)
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, recognition.Health{
			Ready:  false,
			Status: err.Error(),
		})
		return
	}

	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}
