package web

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/capture"
	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
	"github.com/kozaktomas/attendance-scanner/internal/overlay"
	"github.com/kozaktomas/attendance-scanner/internal/recognition"
)

type idleSource struct{}

func (idleSource) Start(context.Context) error          { return camera.ErrCameraUnavailable }
func (idleSource) Stop()                                {}
func (idleSource) CaptureFrame() (*camera.Frame, error) { return nil, camera.ErrFrameNotReady }
func (idleSource) Latest() (image.Image, error)         { return nil, camera.ErrFrameNotReady }
func (idleSource) Size() geometry.Size                  { return geometry.Size{} }

type readyRecognizer struct{}

func (readyRecognizer) Recognize(context.Context, []byte, string) (*recognition.Response, error) {
	return &recognition.Response{Success: true}, nil
}

func (readyRecognizer) Health(context.Context) (*recognition.Health, error) {
	return &recognition.Health{Ready: true, Status: "ok"}, nil
}

func testServer() *Server {
	cfg := &config.Config{
		Web:    config.WebConfig{Host: "127.0.0.1", Port: 0},
		Tuning: config.LoadTuning(),
	}
	scheduler := capture.NewScheduler(idleSource{}, readyRecognizer{}, nil, capture.Options{})
	return NewServer(cfg, scheduler, readyRecognizer{}, nil, overlay.NewRenderer(overlay.DefaultStyle()))
}

func TestRoutes(t *testing.T) {
	router := testServer().Router()

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/config", http.StatusOK},
		{http.MethodGet, "/api/v1/recognizer/health", http.StatusOK},
		{http.MethodGet, "/api/v1/capture/status", http.StatusOK},
		{http.MethodPost, "/api/v1/capture/start", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/v1/capture/stop", http.StatusOK},
		{http.MethodGet, "/api/v1/capture/overlay", http.StatusOK},
		{http.MethodGet, "/api/v1/capture/snapshot.jpg", http.StatusConflict},
		{http.MethodGet, "/api/v1/camera/ws", http.StatusConflict},
		{http.MethodGet, "/api/v1/session", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodPut, "/api/v1/capture/start", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServeDashboard(t *testing.T) {
	recorder := httptest.NewRecorder()
	testServer().Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html, got %s", ct)
	}
	if !strings.Contains(recorder.Body.String(), "Attendance Scanner") {
		t.Error("dashboard page missing title")
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	if err := testServer().Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
