package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
)

// MJPEGSource reads a multipart/x-mixed-replace JPEG stream over HTTP, the
// format served by IP cameras and webcam servers.
type MJPEGSource struct {
	url          string
	width        int
	height       int
	readyTimeout time.Duration
	client       *http.Client
	slot         *frameSlot
	maxPartBytes int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMJPEGSource creates a source for the given stream URL. The requested
// resolution is passed as width/height query parameters.
func NewMJPEGSource(streamURL string, width, height int, readyTimeout time.Duration) *MJPEGSource {
	if width <= 0 {
		width = constants.TargetCameraWidth
	}
	if height <= 0 {
		height = constants.TargetCameraHeight
	}
	if readyTimeout <= 0 {
		readyTimeout = constants.CameraReadyTimeout
	}
	return &MJPEGSource{
		url:          streamURL,
		width:        width,
		height:       height,
		readyTimeout: readyTimeout,
		client:       &http.Client{},
		slot:         newFrameSlot(),
		maxPartBytes: constants.MaxFrameBytes,
	}
}

// streamURL appends the resolution hint to the configured URL.
func (s *MJPEGSource) streamURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("invalid camera URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported camera URL scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("width", strconv.Itoa(s.width))
	q.Set("height", strconv.Itoa(s.height))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start connects to the stream and waits for the first decodable frame.
func (s *MJPEGSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	target, err := s.streamURL()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	s.slot.reset()
	streamCtx, cancel := context.WithCancel(context.Background())
	// Abandoning Start must also abort a dial or read still in progress.
	unwatch := context.AfterFunc(ctx, cancel)
	defer unwatch()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: could not create request: %v", ErrCameraUnavailable, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: stream returned status %d", ErrCameraUnavailable, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: not an MJPEG stream (Content-Type %q)", ErrCameraUnavailable, resp.Header.Get("Content-Type"))
	}

	done := make(chan struct{})
	readErr := make(chan error, 1)
	go func() {
		defer close(done)
		defer resp.Body.Close()
		err := s.readParts(multipart.NewReader(resp.Body, params["boundary"]))
		if streamCtx.Err() == nil {
			slog.Warn("camera: MJPEG stream ended", "url", s.url, "error", err)
		}
		readErr <- err
	}()

	timer := time.NewTimer(s.readyTimeout)
	defer timer.Stop()

	select {
	case <-s.slot.readyCh():
		if !unwatch() {
			<-done
			return fmt.Errorf("%w: %v", ErrCameraUnavailable, ctx.Err())
		}
		s.cancel = cancel
		s.done = done
		slog.Info("camera: MJPEG stream ready", "url", s.url, "size", s.slot.size())
		return nil
	case err := <-readErr:
		cancel()
		<-done
		return fmt.Errorf("%w: stream ended before first frame: %v", ErrCameraUnavailable, err)
	case <-timer.C:
		cancel()
		<-done
		return fmt.Errorf("%w: no frame within %s", ErrCameraUnavailable, s.readyTimeout)
	case <-ctx.Done():
		cancel()
		<-done
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, ctx.Err())
	}
}

// readParts stores every JPEG part until the stream ends.
func (s *MJPEGSource) readParts(mr *multipart.Reader) error {
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("stream closed")
			}
			return err
		}
		data, err := io.ReadAll(io.LimitReader(part, s.maxPartBytes+1))
		part.Close()
		if err != nil {
			return err
		}
		if int64(len(data)) > s.maxPartBytes {
			slog.Warn("camera: skipping oversized part", "limit", s.maxPartBytes)
			continue
		}
		if err := s.slot.store(data); err != nil {
			slog.Debug("camera: skipping undecodable part", "error", err)
		}
	}
}

// Stop closes the stream and waits for the reader to exit.
func (s *MJPEGSource) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.slot.reset()
	slog.Info("camera: MJPEG stream released", "url", s.url)
}

func (s *MJPEGSource) CaptureFrame() (*Frame, error) {
	return s.slot.capture()
}

func (s *MJPEGSource) Latest() (image.Image, error) {
	return s.slot.latest()
}

func (s *MJPEGSource) Size() geometry.Size {
	return s.slot.size()
}
