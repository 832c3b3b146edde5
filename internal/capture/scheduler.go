// Package capture decides when a frame is submitted for recognition and
// applies the responses to the track registry.
//
// Every tick, response and prune runs under the scheduler's mutex, so they
// observe each other in a single total order. Only the recognition round trip
// runs on its own goroutine, and at most one is in flight at a time.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
	"github.com/kozaktomas/attendance-scanner/internal/recognition"
	"github.com/kozaktomas/attendance-scanner/internal/session"
	"github.com/kozaktomas/attendance-scanner/internal/tracking"
)

var (
	// ErrRecognizerUnavailable is returned by Start when the health probe fails.
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")

	// ErrAlreadyRunning is returned by Start when capture is not idle.
	ErrAlreadyRunning = errors.New("capture already running")

	// ErrStartCanceled is returned by a Start that was overtaken by Stop.
	ErrStartCanceled = errors.New("capture stopped while starting")
)

// State is the scheduler lifecycle state.
type State string

// Scheduler states.
const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
)

// Recognizer submits frames and reports service health.
type Recognizer interface {
	Recognize(ctx context.Context, frame []byte, organizationID string) (*recognition.Response, error)
	Health(ctx context.Context) (*recognition.Health, error)
}

// Options configures a Scheduler. Zero values fall back to the defaults in
// the constants package.
type Options struct {
	OrganizationID string
	FrameInterval  time.Duration
	Cooldown       time.Duration
	Staleness      time.Duration
	RefreshHz      int
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State         State      `json:"state"`
	SessionID     string     `json:"session_id,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	InFlight      bool       `json:"in_flight"`
	Paused        bool       `json:"paused"`
	PausedUntil   *time.Time `json:"paused_until,omitempty"`
	LastCaptureAt *time.Time `json:"last_capture_at,omitempty"`
	Submitted     int        `json:"submitted"`
	Failed        int        `json:"failed"`
	Tracks        int        `json:"tracks"`
	VideoWidth    float64    `json:"video_width"`
	VideoHeight   float64    `json:"video_height"`
}

// Scheduler owns the capture session: source lifecycle, submission timing,
// pause window and the track registry.
type Scheduler struct {
	source     camera.Source
	recognizer Recognizer
	collector  *session.Collector
	events     *Broadcaster
	opts       Options
	now        func() time.Time

	mu             sync.Mutex
	registry       *tracking.Registry
	state          State
	generation     uint64
	sessionID      string
	startedAt      time.Time
	inFlight       bool
	cancelInFlight context.CancelFunc
	cancelStart    context.CancelFunc
	startDone      chan struct{}
	lastCaptureAt  time.Time
	pausedUntil    time.Time
	submitted      int
	failed         int

	requests sync.WaitGroup
}

// NewScheduler creates an idle scheduler.
func NewScheduler(source camera.Source, recognizer Recognizer, collector *session.Collector, opts Options) *Scheduler {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = constants.FrameInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = constants.CooldownWindow
	}
	if opts.Staleness <= 0 {
		opts.Staleness = constants.StalenessBudget
	}
	if opts.RefreshHz <= 0 {
		opts.RefreshHz = constants.DefaultRefreshHz
	}
	if collector == nil {
		collector = session.NewCollector()
	}
	return &Scheduler{
		source:     source,
		recognizer: recognizer,
		collector:  collector,
		events:     &Broadcaster{},
		opts:       opts,
		now:        time.Now,
		registry:   tracking.NewRegistry(opts.Staleness),
		state:      StateIdle,
	}
}

// Events returns the broadcaster scheduler events are published on.
func (s *Scheduler) Events() *Broadcaster {
	return s.events
}

// Collector returns the session collector fed by confirmed tracks.
func (s *Scheduler) Collector() *session.Collector {
	return s.collector
}

// Source returns the frame source.
func (s *Scheduler) Source() camera.Source {
	return s.source
}

// Start probes the recognizer, acquires the camera and activates ticking.
// A Stop issued meanwhile cancels ctx for the probe and camera acquisition.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	defer close(done)
	defer cancel()
	s.state = StateStarting
	s.generation++
	gen := s.generation
	s.cancelStart, s.startDone = cancel, done
	s.mu.Unlock()
	s.publishState(StateStarting)

	if err := s.checkHealth(ctx); err != nil {
		return s.abortStart(gen, err)
	}

	if err := s.source.Start(ctx); err != nil {
		return s.abortStart(gen, fmt.Errorf("failed to start camera: %w", err))
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.source.Stop()
		return s.abortStart(gen, ErrStartCanceled)
	}
	s.state = StateActive
	s.cancelStart, s.startDone = nil, nil
	s.sessionID = uuid.NewString()
	s.startedAt = s.now()
	s.lastCaptureAt = time.Time{}
	s.pausedUntil = time.Time{}
	sessionID := s.sessionID
	s.mu.Unlock()

	slog.Info("capture started", "session", sessionID)
	s.publishState(StateActive)
	return nil
}

func (s *Scheduler) checkHealth(ctx context.Context) error {
	if s.recognizer == nil {
		return ErrRecognizerUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, constants.HealthTimeout)
	defer cancel()

	health, err := s.recognizer.Health(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}
	if !health.Ready {
		return fmt.Errorf("%w: status %s", ErrRecognizerUnavailable, health.Status)
	}
	return nil
}

// abortStart returns a failed or canceled start to idle. The source has
// already been released or never acquired.
func (s *Scheduler) abortStart(gen uint64, err error) error {
	s.mu.Lock()
	if s.generation != gen {
		err = ErrStartCanceled
	}
	s.state = StateIdle
	s.cancelStart, s.startDone = nil, nil
	s.mu.Unlock()
	s.publishState(StateIdle)
	return err
}

// Stop ends the session. A response still in flight is discarded when it
// arrives. Stopping while a start is pending cancels it and waits until the
// camera is released again. Calling Stop while idle does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return
	case StateStarting:
		s.generation++
		cancel, done := s.cancelStart, s.startDone
		s.mu.Unlock()
		cancel()
		<-done
		slog.Info("capture start canceled")
		return
	}
	sessionID := s.sessionID
	s.resetLocked()
	s.mu.Unlock()

	s.source.Stop()
	slog.Info("capture stopped", "session", sessionID)
	s.publishState(StateIdle)
}

func (s *Scheduler) resetLocked() {
	s.generation++
	if s.cancelInFlight != nil {
		s.cancelInFlight()
		s.cancelInFlight = nil
	}
	s.inFlight = false
	s.state = StateIdle
	s.sessionID = ""
	s.startedAt = time.Time{}
	s.lastCaptureAt = time.Time{}
	s.pausedUntil = time.Time{}
	s.registry.Clear()
}

// Tick evaluates one refresh signal. It reports whether a frame was submitted.
func (s *Scheduler) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}
	if now.Before(s.pausedUntil) {
		return false
	}
	if !s.lastCaptureAt.IsZero() && now.Sub(s.lastCaptureAt) < s.opts.FrameInterval {
		return false
	}
	if s.inFlight {
		return false
	}

	frame, err := s.source.CaptureFrame()
	if err != nil {
		if !errors.Is(err, camera.ErrFrameNotReady) {
			slog.Warn("capture: frame capture failed", "error", err)
		}
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.inFlight = true
	s.cancelInFlight = cancel
	s.submitted++
	gen := s.generation

	s.requests.Add(1)
	go func() {
		defer s.requests.Done()
		defer cancel()
		resp, err := s.recognizer.Recognize(ctx, frame.Data, s.opts.OrganizationID)
		s.handleResponse(gen, frame, resp, err)
	}()
	return true
}

func (s *Scheduler) handleResponse(gen uint64, frame *camera.Frame, resp *recognition.Response, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.state != StateActive {
		slog.Debug("capture: discarding late response")
		return
	}

	now := s.now()
	s.inFlight = false
	s.cancelInFlight = nil
	s.lastCaptureAt = now

	if err == nil && resp == nil {
		err = fmt.Errorf("%w: empty response", recognition.ErrTransport)
	}
	if err != nil {
		s.failed++
		slog.Warn("capture: recognition failed", "error", err)
		s.events.Publish(Event{Type: EventError, Message: err.Error()})
		return
	}

	result := s.registry.Merge(observations(frame, resp.Faces), now)
	if result.Rejected > 0 {
		slog.Debug("capture: rejected observations", "count", result.Rejected)
	}

	for _, t := range result.Confirmed {
		entry := s.collector.Record(t, now)
		s.events.Publish(Event{Type: EventRecognized, Message: entry.Message, Data: entry})
	}

	if resp.ShouldPause {
		s.pausedUntil = now.Add(s.opts.Cooldown)
		s.events.Publish(Event{Type: EventPaused, Data: map[string]any{"until": s.pausedUntil}})
	}

	s.events.Publish(Event{Type: EventTracks, Data: s.registry.Snapshot(now)})
}

// observations converts service faces into registry observations in
// intrinsic frame coordinates. Malformed bboxes are passed through as zero
// boxes so the registry counts them as rejected.
func observations(frame *camera.Frame, faces []recognition.Face) []tracking.Observation {
	out := make([]tracking.Observation, 0, len(faces))
	for _, f := range faces {
		obs := tracking.Observation{
			ID:     string(f.ID),
			Name:   f.Name,
			Status: tracking.Status(f.Status),
		}
		if box, ok := geometry.FromSlice(f.BBox); ok {
			obs.BBox = frame.ToSource(box)
		}
		if f.Confidence != nil {
			obs.Confidence = *f.Confidence
		}
		out = append(out, obs)
	}
	return out
}

// Prune drops stale tracks and reports how many were removed.
func (s *Scheduler) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return 0
	}
	removed := s.registry.Prune(now)
	if removed > 0 {
		s.events.Publish(Event{Type: EventTracks, Data: s.registry.Snapshot(now)})
	}
	return removed
}

// Run drives Tick from a refresh ticker and Prune from a slower ticker until
// ctx ends, then stops the session.
func (s *Scheduler) Run(ctx context.Context) {
	refresh := time.NewTicker(time.Second / time.Duration(s.opts.RefreshHz))
	defer refresh.Stop()
	prune := time.NewTicker(constants.PruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-refresh.C:
			s.Tick(s.now())
		case <-prune.C:
			s.Prune(s.now())
		}
	}
}

// Snapshot returns the registry contents.
func (s *Scheduler) Snapshot() tracking.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Snapshot(s.now())
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Status{
		State:     s.state,
		SessionID: s.sessionID,
		InFlight:  s.inFlight,
		Paused:    now.Before(s.pausedUntil),
		Submitted: s.submitted,
		Failed:    s.failed,
		Tracks:    s.registry.Len(),
	}
	st.StartedAt = timePtr(s.startedAt)
	st.LastCaptureAt = timePtr(s.lastCaptureAt)
	if st.Paused {
		st.PausedUntil = timePtr(s.pausedUntil)
	}
	if s.state == StateActive {
		size := s.source.Size()
		st.VideoWidth, st.VideoHeight = size.Width, size.Height
	}
	return st
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Scheduler) publishState(state State) {
	s.events.Publish(Event{Type: EventState, Data: map[string]any{"state": state}})
}
