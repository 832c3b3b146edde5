package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/capture"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
	"github.com/kozaktomas/attendance-scanner/internal/overlay"
	"github.com/kozaktomas/attendance-scanner/internal/recognition"
)

// stubSource serves a fixed 640x480 gray frame.
type stubSource struct {
	mu       sync.Mutex
	startErr error
}

func (s *stubSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startErr
}

func (s *stubSource) Stop() {}

func (s *stubSource) CaptureFrame() (*camera.Frame, error) {
	return &camera.Frame{
		Data:   []byte{0xff, 0xd8, 0xff, 0xd9},
		Width:  640,
		Height: 480,
		Source: geometry.Size{Width: 640, Height: 480},
	}, nil
}

func (s *stubSource) Latest() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img, nil
}

func (s *stubSource) Size() geometry.Size {
	return geometry.Size{Width: 640, Height: 480}
}

// stubRecognizer always reports member m1 (Ada) confirmed.
type stubRecognizer struct {
	ready     bool
	healthErr error
}

func (r *stubRecognizer) Recognize(context.Context, []byte, string) (*recognition.Response, error) {
	conf := 0.93
	return &recognition.Response{
		Success: true,
		Faces: []recognition.Face{{
			BBox:       []float64{100, 100, 200, 260},
			ID:         "m1",
			Name:       "Ada",
			Status:     recognition.StatusConfirmed,
			Confidence: &conf,
		}},
	}, nil
}

func (r *stubRecognizer) Health(context.Context) (*recognition.Health, error) {
	if r.healthErr != nil {
		return nil, r.healthErr
	}
	status := "ok"
	if !r.ready {
		status = "error"
	}
	return &recognition.Health{Ready: r.ready, Status: status}, nil
}

func testScheduler(src camera.Source, rec capture.Recognizer) *capture.Scheduler {
	return capture.NewScheduler(src, rec, nil, capture.Options{})
}

func testRenderer() *overlay.Renderer {
	return overlay.NewRenderer(overlay.DefaultStyle())
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// testJPEG encodes a small solid-color JPEG.
func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 0x40, G: 0x80, B: 0xc0, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}
