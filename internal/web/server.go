package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/capture"
	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/overlay"
	"github.com/kozaktomas/attendance-scanner/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	scheduler  *capture.Scheduler
	recognizer capture.Recognizer
	push       *camera.PushSource
	renderer   *overlay.Renderer
	origins    middleware.Origins
	runCtx     context.Context
	stopRun    context.CancelFunc
	runDone    chan struct{}
	running    atomic.Bool
}

// NewServer creates a new web server. push is nil unless frames are pushed
// by the browser.
func NewServer(cfg *config.Config, scheduler *capture.Scheduler, recognizer capture.Recognizer, push *camera.PushSource, renderer *overlay.Renderer) *Server {
	r := chi.NewRouter()

	runCtx, stopRun := context.WithCancel(context.Background())
	s := &Server{
		runCtx:     runCtx,
		stopRun:    stopRun,
		runDone:    make(chan struct{}),
		config:     cfg,
		router:     r,
		scheduler:  scheduler,
		recognizer: recognizer,
		push:       push,
		renderer:   renderer,
		origins:    middleware.LoadOrigins(),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(s.origins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	// Streams (SSE, camera socket) stay open, so there is no write timeout.
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start runs the capture loop and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.running.Store(true)
	go func() {
		defer close(s.runDone)
		s.scheduler.Run(s.runCtx)
	}()

	slog.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.stopRun()
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops the capture session and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down web server")

	s.stopRun()
	if s.running.Load() {
		select {
		case <-s.runDone:
		case <-ctx.Done():
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
