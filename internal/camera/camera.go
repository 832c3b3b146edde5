// Package camera owns the live video stream and turns it into encoded still
// frames for recognition.
package camera

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/geometry"
)

var (
	// ErrCameraUnavailable is returned by Start when the stream is refused,
	// fails, or never produces a decodable frame within the readiness timeout.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrFrameNotReady is returned by CaptureFrame before the first decoded
	// frame or when the frame has zero dimensions.
	ErrFrameNotReady = errors.New("frame not ready")
)

// Source is a live camera stream.
type Source interface {
	// Start acquires the stream and returns once the first frame is decodable.
	Start(ctx context.Context) error
	// Stop releases the stream. Safe to call repeatedly.
	Stop()
	// CaptureFrame returns the latest frame encoded for submission.
	CaptureFrame() (*Frame, error)
	// Latest returns the latest decoded frame at intrinsic resolution.
	Latest() (image.Image, error)
	// Size returns the last known intrinsic frame size.
	Size() geometry.Size
}

// Frame is an encoded still ready to be sent to the recognizer.
type Frame struct {
	Data       []byte // JPEG
	Width      int    // encoded width
	Height     int    // encoded height
	Source     geometry.Size
	CapturedAt time.Time
}

// ToSource maps a bbox reported in encoded-frame pixels back to the intrinsic
// frame coordinate space used by the overlay.
func (f *Frame) ToSource(b geometry.BBox) geometry.BBox {
	if f.Width <= 0 || f.Height <= 0 {
		return b
	}
	return b.Scale(f.Source.Width/float64(f.Width), f.Source.Height/float64(f.Height))
}
