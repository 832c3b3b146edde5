package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/geometry"
)

// frameSlot holds the most recent raw frame. Older frames are overwritten;
// nothing is queued.
type frameSlot struct {
	mu         sync.RWMutex
	data       []byte
	width      int
	height     int
	receivedAt time.Time
	ready      chan struct{}
	readyOnce  *sync.Once
}

func newFrameSlot() *frameSlot {
	s := &frameSlot{}
	s.reset()
	return s
}

// reset drops the stored frame and re-arms the readiness signal.
func (s *frameSlot) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.width, s.height = 0, 0
	s.ready = make(chan struct{})
	s.readyOnce = &sync.Once{}
}

// store keeps data as the latest frame if its header decodes to a non-empty image.
func (s *frameSlot) store(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding frame header: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("frame has zero size %dx%d", cfg.Width, cfg.Height)
	}

	s.mu.Lock()
	s.data = data
	s.width, s.height = cfg.Width, cfg.Height
	s.receivedAt = time.Now()
	ready, once := s.ready, s.readyOnce
	s.mu.Unlock()

	once.Do(func() { close(ready) })
	return nil
}

// readyCh is closed once the first frame has been stored since the last reset.
func (s *frameSlot) readyCh() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *frameSlot) size() geometry.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return geometry.Size{Width: float64(s.width), Height: float64(s.height)}
}

// latest decodes the stored frame.
func (s *frameSlot) latest() (image.Image, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()

	if len(data) == 0 {
		return nil, ErrFrameNotReady
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameNotReady, err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, ErrFrameNotReady
	}
	return img, nil
}

// capture decodes the stored frame and encodes it for submission.
func (s *frameSlot) capture() (*Frame, error) {
	img, err := s.latest()
	if err != nil {
		return nil, err
	}
	return EncodeFrame(img)
}
