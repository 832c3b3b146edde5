package handlers

import (
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/capture"
	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
	"github.com/kozaktomas/attendance-scanner/internal/overlay"
)

// CaptureHandler controls the capture session and exposes its live state.
type CaptureHandler struct {
	scheduler *capture.Scheduler
	renderer  *overlay.Renderer
	now       func() time.Time
}

// NewCaptureHandler creates a new capture handler.
func NewCaptureHandler(scheduler *capture.Scheduler, renderer *overlay.Renderer) *CaptureHandler {
	return &CaptureHandler{
		scheduler: scheduler,
		renderer:  renderer,
		now:       time.Now,
	}
}

// Start begins a capture session.
func (h *CaptureHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.scheduler.Start(r.Context())
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, h.scheduler.Status())
	case errors.Is(err, capture.ErrAlreadyRunning), errors.Is(err, capture.ErrStartCanceled):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, capture.ErrRecognizerUnavailable):
		respondError(w, http.StatusServiceUnavailable, "recognition service is not ready")
	case errors.Is(err, camera.ErrCameraUnavailable):
		slog.Warn("capture start failed", "error", logSafe(err.Error()))
		respondError(w, http.StatusServiceUnavailable, "camera unavailable: check the camera connection and permissions")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// Stop ends the capture session.
func (h *CaptureHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	respondJSON(w, http.StatusOK, h.scheduler.Status())
}

// Status returns the scheduler status.
func (h *CaptureHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.Status())
}

// OverlayResponse is the rendered overlay for one container size.
type OverlayResponse struct {
	Video       geometry.Size        `json:"video"`
	Container   geometry.Size        `json:"container"`
	Decorations []overlay.Decoration `json:"decorations"`
	RenderedAt  time.Time            `json:"rendered_at"`
}

// Overlay renders decorations for the container size given by the width and
// height query parameters. Without them the container matches the video.
func (h *CaptureHandler) Overlay(w http.ResponseWriter, r *http.Request) {
	video := h.scheduler.Source().Size()
	container := video

	if r.URL.Query().Has("width") || r.URL.Query().Has("height") {
		width, errW := strconv.ParseFloat(r.URL.Query().Get("width"), 64)
		height, errH := strconv.ParseFloat(r.URL.Query().Get("height"), 64)
		if errW != nil || errH != nil || width < 0 || height < 0 {
			respondError(w, http.StatusBadRequest, "width and height must be non-negative numbers")
			return
		}
		container = geometry.Size{Width: width, Height: height}
	}

	now := h.now()
	decorations := h.renderer.Render(overlay.Input{
		Snapshot:  h.scheduler.Snapshot(),
		Video:     video,
		Container: container,
		Now:       now,
	})
	if decorations == nil {
		decorations = []overlay.Decoration{}
	}

	respondJSON(w, http.StatusOK, OverlayResponse{
		Video:       video,
		Container:   container,
		Decorations: decorations,
		RenderedAt:  now,
	})
}

// Snapshot returns the latest frame as JPEG with the overlay drawn on it.
func (h *CaptureHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.scheduler.Status().State != capture.StateActive {
		respondError(w, http.StatusConflict, "capture is not running")
		return
	}

	frame, err := h.scheduler.Source().Latest()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	bounds := frame.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), frame, bounds.Min, draw.Src)

	size := geometry.Size{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	h.renderer.Draw(canvas, h.renderer.Render(overlay.Input{
		Snapshot:  h.scheduler.Snapshot(),
		Video:     size,
		Container: size,
		Now:       h.now(),
	}))

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if err := jpeg.Encode(w, canvas, &jpeg.Options{Quality: constants.FrameJPEGQuality}); err != nil {
		slog.Warn("snapshot encode failed", "error", err)
	}
}

// Events streams scheduler events via SSE.
func (h *CaptureHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.scheduler.Events(), h.scheduler.Status())
}
