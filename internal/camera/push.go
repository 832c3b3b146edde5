package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
)

// PushSource receives JPEG frames from a browser that owns the camera and
// streams them over a websocket.
type PushSource struct {
	readyTimeout time.Duration
	slot         *frameSlot

	mu      sync.Mutex
	started bool
	conns   map[*websocket.Conn]struct{}
}

// NewPushSource creates a source fed by Push or ReadFrom.
func NewPushSource(readyTimeout time.Duration) *PushSource {
	if readyTimeout <= 0 {
		readyTimeout = constants.CameraReadyTimeout
	}
	return &PushSource{
		readyTimeout: readyTimeout,
		slot:         newFrameSlot(),
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// Start waits until a frame has been pushed.
func (s *PushSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.slot.reset()
	s.started = true
	ready := s.slot.readyCh()
	s.mu.Unlock()

	timer := time.NewTimer(s.readyTimeout)
	defer timer.Stop()

	select {
	case <-ready:
		slog.Info("camera: push stream ready", "size", s.slot.size())
		return nil
	case <-timer.C:
		s.Stop()
		return fmt.Errorf("%w: no frame pushed within %s", ErrCameraUnavailable, s.readyTimeout)
	case <-ctx.Done():
		s.Stop()
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, ctx.Err())
	}
}

// Push stores a JPEG frame. Frames pushed while stopped are dropped.
func (s *PushSource) Push(data []byte) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	return s.slot.store(data)
}

// ReadFrom pushes every binary message from conn until the connection closes,
// ctx ends, or Stop is called.
func (s *PushSource) ReadFrom(ctx context.Context, conn *websocket.Conn) error {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadLimit(constants.MaxFrameBytes)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading camera frame: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := s.Push(data); err != nil {
			slog.Debug("camera: dropping pushed frame", "error", err)
		}
	}
}

// Stop drops the current frame and asks connected browsers to release the
// camera by closing their sockets.
func (s *PushSource) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture stopped")
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	s.slot.reset()
	slog.Info("camera: push stream released", "clients", len(conns))
}

func (s *PushSource) CaptureFrame() (*Frame, error) {
	return s.slot.capture()
}

func (s *PushSource) Latest() (image.Image, error) {
	return s.slot.latest()
}

func (s *PushSource) Size() geometry.Size {
	return s.slot.size()
}
