package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
)

// CameraHandler ingests browser camera frames over a WebSocket.
type CameraHandler struct {
	source   *camera.PushSource
	upgrader websocket.Upgrader
}

// NewCameraHandler creates a camera handler. source is nil when the server
// reads from an MJPEG camera instead.
func NewCameraHandler(source *camera.PushSource, checkOrigin func(*http.Request) bool) *CameraHandler {
	return &CameraHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Stream upgrades the connection and reads binary JPEG frames until the
// socket closes.
func (h *CameraHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		respondError(w, http.StatusConflict, "server is configured with an MJPEG camera")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("camera websocket upgrade failed", "error", err)
		return
	}

	slog.Info("camera client connected", "remote", logSafe(r.RemoteAddr))
	if err := h.source.ReadFrom(r.Context(), conn); err != nil {
		slog.Warn("camera client disconnected", "error", err)
	}
}
