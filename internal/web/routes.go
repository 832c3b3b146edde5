package web

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/attendance-scanner/internal/web/handlers"
	"github.com/kozaktomas/attendance-scanner/internal/web/static"
)

func (s *Server) setupRoutes() {
	captureHandler := handlers.NewCaptureHandler(s.scheduler, s.renderer)
	recognizerHandler := handlers.NewRecognizerHandler(s.recognizer)
	sessionHandler := handlers.NewSessionHandler(s.scheduler.Collector())
	cameraHandler := handlers.NewCameraHandler(s.push, s.origins.AllowsSocket)
	configHandler := handlers.NewConfigHandler(s.config)
	healthHandler := handlers.NewHealthHandler(s.scheduler)

	s.router.Get("/api/v1/health", healthHandler.Check)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived streams
		r.Get("/capture/events", captureHandler.Events)
		r.Get("/camera/ws", cameraHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Get("/config", configHandler.Get)
			r.Get("/recognizer/health", recognizerHandler.Health)

			r.Post("/capture/start", captureHandler.Start)
			r.Post("/capture/stop", captureHandler.Stop)
			r.Get("/capture/status", captureHandler.Status)
			r.Get("/capture/overlay", captureHandler.Overlay)
			r.Get("/capture/snapshot.jpg", captureHandler.Snapshot)

			r.Get("/session", sessionHandler.Get)
			r.Delete("/session", sessionHandler.Reset)
		})
	})

	s.router.Get("/", s.serveDashboard)
}

// serveDashboard serves the embedded capture page.
func (s *Server) serveDashboard(w http.ResponseWriter, r *http.Request) {
	f, err := static.Open("index.html")
	if err != nil {
		http.Error(w, "dashboard not available", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
