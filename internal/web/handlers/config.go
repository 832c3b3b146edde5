package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendance-scanner/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse is the client-facing part of the configuration.
type ConfigResponse struct {
	CameraMode      string   `json:"camera_mode"` // "mjpeg" or "push"
	CameraWidth     int      `json:"camera_width"`
	CameraHeight    int      `json:"camera_height"`
	RefreshHz       int      `json:"refresh_hz"`
	FrameIntervalMS int64    `json:"frame_interval_ms"`
	CooldownMS      int64    `json:"cooldown_ms"`
	Palette         []string `json:"palette"`
	SuccessColor    string   `json:"success_color"`
	OrganizationSet bool     `json:"organization_set"`
}

// Get returns settings the dashboard needs to open the camera and draw.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	mode := "push"
	if h.config.Camera.URL != "" {
		mode = "mjpeg"
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		CameraMode:      mode,
		CameraWidth:     h.config.Camera.Width,
		CameraHeight:    h.config.Camera.Height,
		RefreshHz:       h.config.Capture.RefreshHz,
		FrameIntervalMS: h.config.Tuning.Capture.FrameInterval().Milliseconds(),
		CooldownMS:      h.config.Tuning.Capture.Cooldown().Milliseconds(),
		Palette:         h.config.Tuning.Overlay.Palette,
		SuccessColor:    h.config.Tuning.Overlay.Success,
		OrganizationSet: h.config.Recognition.OrganizationID != "",
	})
}
