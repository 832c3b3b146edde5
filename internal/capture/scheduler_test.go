package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/camera"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
	"github.com/kozaktomas/attendance-scanner/internal/recognition"
	"github.com/kozaktomas/attendance-scanner/internal/tracking"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeSource struct {
	mu       sync.Mutex
	startErr error
	notReady bool
	starts   int
	stops    int
}

func (f *fakeSource) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

// CaptureFrame returns a half-resolution frame of a 640x480 source.
func (f *fakeSource) CaptureFrame() (*camera.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notReady {
		return nil, camera.ErrFrameNotReady
	}
	return &camera.Frame{
		Data:   []byte{0xff, 0xd8, 0xff, 0xd9},
		Width:  320,
		Height: 240,
		Source: geometry.Size{Width: 640, Height: 480},
	}, nil
}

func (f *fakeSource) Latest() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 640, 480)), nil
}

func (f *fakeSource) Size() geometry.Size {
	return geometry.Size{Width: 640, Height: 480}
}

type fakeRecognizer struct {
	mu        sync.Mutex
	calls     int
	canceled  int
	health    *recognition.Health
	healthErr error
	release   chan struct{} // when set, Recognize blocks until it can receive
	respond   func(call int) (*recognition.Response, error)
}

func (f *fakeRecognizer) Recognize(ctx context.Context, _ []byte, _ string) (*recognition.Response, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if ctx.Err() != nil {
		f.mu.Lock()
		f.canceled++
		f.mu.Unlock()
	}
	if f.respond == nil {
		return &recognition.Response{Success: true}, nil
	}
	return f.respond(n)
}

func (f *fakeRecognizer) Health(context.Context) (*recognition.Health, error) {
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	if f.health != nil {
		return f.health, nil
	}
	return &recognition.Health{Ready: true, Status: "ok"}, nil
}

func (f *fakeRecognizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func confidence(v float64) *float64 { return &v }

// adaResponse reports member m1 confirmed at [100,100,200,260] in source
// pixels, which is [50,50,100,130] in the half-size submitted frame.
func adaResponse(int) (*recognition.Response, error) {
	return &recognition.Response{
		Success: true,
		Faces: []recognition.Face{{
			BBox:       []float64{50, 50, 100, 130},
			ID:         "m1",
			Name:       "Ada",
			Status:     recognition.StatusConfirmed,
			Confidence: confidence(0.93),
		}},
		ShouldPause: true,
	}, nil
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, src *fakeSource, rec *fakeRecognizer) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: t0}
	s := NewScheduler(src, rec, nil, Options{OrganizationID: "org-1"})
	s.now = clock.Now
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s, clock
}

func TestScheduler_FourTickScenario(t *testing.T) {
	rec := &fakeRecognizer{respond: adaResponse}
	s, _ := newTestScheduler(t, &fakeSource{}, rec)

	if !s.Tick(t0) {
		t.Fatal("first tick should submit")
	}
	s.requests.Wait()

	snap := s.Snapshot()
	if len(snap.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(snap.Tracks))
	}
	track := snap.Tracks[0]
	if track.ID != "m1" || track.Status != tracking.StatusConfirmed || track.Confidence != 0.93 {
		t.Errorf("unexpected track %+v", track)
	}
	if want := (geometry.BBox{100, 100, 200, 260}); track.BBox != want {
		t.Errorf("bbox = %v, want %v (source pixels)", track.BBox, want)
	}

	recent := s.Collector().Recent()
	if len(recent) != 1 || recent[0].Name != "Ada" {
		t.Fatalf("recent = %+v, want one Ada entry", recent)
	}

	st := s.Status()
	if st.PausedUntil == nil || !st.PausedUntil.Equal(t0.Add(3*time.Second)) {
		t.Fatalf("paused until = %v, want %v", st.PausedUntil, t0.Add(3*time.Second))
	}

	for _, at := range []time.Time{t0.Add(time.Second), t0.Add(2 * time.Second)} {
		if s.Tick(at) {
			t.Errorf("tick at %v submitted during pause", at.Sub(t0))
		}
	}
	if got := rec.callCount(); got != 1 {
		t.Errorf("recognizer calls = %d, want 1", got)
	}

	if !s.Tick(t0.Add(3 * time.Second)) {
		t.Error("tick after pause window should submit")
	}
}

func TestScheduler_SingleInFlight(t *testing.T) {
	rec := &fakeRecognizer{release: make(chan struct{})}
	s, clock := newTestScheduler(t, &fakeSource{}, rec)

	submitted := 0
	now := t0
	for range 200 {
		if s.Tick(now) {
			submitted++
		}
		now = now.Add(16 * time.Millisecond)
	}
	if submitted != 1 {
		t.Fatalf("submitted %d requests while one was in flight, want 1", submitted)
	}
	if !s.Status().InFlight {
		t.Error("status should report in flight")
	}

	clock.Set(now)
	rec.release <- struct{}{}
	s.requests.Wait()

	if s.Status().InFlight {
		t.Error("in flight not cleared after response")
	}
	close(rec.release)
	if !s.Tick(now.Add(150 * time.Millisecond)) {
		t.Error("tick after response and frame interval should submit")
	}
}

func TestScheduler_Throttle(t *testing.T) {
	tests := []struct {
		name string
		at   time.Duration
		want bool
	}{
		{"within frame interval", 100 * time.Millisecond, false},
		{"just before interval", 149 * time.Millisecond, false},
		{"at interval", 150 * time.Millisecond, true},
		{"after interval", time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler(t, &fakeSource{}, &fakeRecognizer{})
			if !s.Tick(t0) {
				t.Fatal("first tick should submit")
			}
			s.requests.Wait()
			if got := s.Tick(t0.Add(tt.at)); got != tt.want {
				t.Errorf("Tick(+%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestScheduler_PauseInvariant(t *testing.T) {
	rec := &fakeRecognizer{respond: adaResponse}
	s, _ := newTestScheduler(t, &fakeSource{}, rec)

	s.Tick(t0)
	s.requests.Wait()

	for at := t0; at.Before(t0.Add(3 * time.Second)); at = at.Add(16 * time.Millisecond) {
		if s.Tick(at) {
			t.Fatalf("submitted at +%v inside pause window", at.Sub(t0))
		}
	}
	if got := rec.callCount(); got != 1 {
		t.Errorf("recognizer calls = %d, want 1", got)
	}
}

func TestScheduler_FrameNotReadySkipsTick(t *testing.T) {
	rec := &fakeRecognizer{}
	s, _ := newTestScheduler(t, &fakeSource{notReady: true}, rec)

	for i := range 10 {
		if s.Tick(t0.Add(time.Duration(i) * time.Second)) {
			t.Fatal("tick submitted without a frame")
		}
	}
	if rec.callCount() != 0 {
		t.Errorf("recognizer called %d times", rec.callCount())
	}
	if st := s.Status(); st.InFlight || st.LastCaptureAt != nil {
		t.Errorf("state changed on skipped tick: %+v", st)
	}
}

func TestScheduler_TransportFailureSkips(t *testing.T) {
	rec := &fakeRecognizer{respond: func(int) (*recognition.Response, error) {
		return nil, recognition.ErrTransport
	}}
	s, _ := newTestScheduler(t, &fakeSource{}, rec)
	events := s.Events().Subscribe()

	s.Tick(t0)
	s.requests.Wait()

	st := s.Status()
	if st.InFlight {
		t.Error("in flight not cleared after failure")
	}
	if st.Failed != 1 || st.Tracks != 0 || st.Paused {
		t.Errorf("unexpected status after failure: %+v", st)
	}
	if st.LastCaptureAt == nil {
		t.Error("last capture not recorded after failure")
	}
	if !hasEvent(events, EventError) {
		t.Error("no error event published")
	}
	if !s.Tick(t0.Add(150 * time.Millisecond)) {
		t.Error("next tick after failure should submit")
	}
}

func TestScheduler_LateResponseAfterStop(t *testing.T) {
	rec := &fakeRecognizer{release: make(chan struct{}), respond: adaResponse}
	src := &fakeSource{}
	s, _ := newTestScheduler(t, src, rec)

	s.Tick(t0)
	s.Stop()
	close(rec.release)
	s.requests.Wait()

	if rec.canceled != 1 {
		t.Errorf("in-flight request context not canceled")
	}
	if n := len(s.Snapshot().Tracks); n != 0 {
		t.Errorf("late response created %d tracks", n)
	}
	if n := len(s.Collector().Recent()); n != 0 {
		t.Errorf("late response recorded %d entries", n)
	}
	st := s.Status()
	if st.State != StateIdle || st.PausedUntil != nil || st.InFlight {
		t.Errorf("unexpected status after stop: %+v", st)
	}
	if src.stops != 1 {
		t.Errorf("source stopped %d times, want 1", src.stops)
	}
}

func TestScheduler_StopClearsSession(t *testing.T) {
	rec := &fakeRecognizer{respond: adaResponse}
	src := &fakeSource{}
	s, _ := newTestScheduler(t, src, rec)

	s.Tick(t0)
	s.requests.Wait()
	s.Stop()
	s.Stop()

	st := s.Status()
	if st.Tracks != 0 || st.Paused || st.LastCaptureAt != nil || st.SessionID != "" {
		t.Errorf("session state survived stop: %+v", st)
	}
	if src.stops != 1 {
		t.Errorf("source stopped %d times, want 1", src.stops)
	}
	if s.Tick(t0.Add(time.Second)) {
		t.Error("idle scheduler submitted a frame")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !s.Tick(t0.Add(time.Second)) {
		t.Error("pause window should not survive a restart")
	}
}

func TestScheduler_Prune(t *testing.T) {
	rec := &fakeRecognizer{respond: adaResponse}
	s, _ := newTestScheduler(t, &fakeSource{}, rec)

	s.Tick(t0)
	s.requests.Wait()

	if n := s.Prune(t0.Add(500 * time.Millisecond)); n != 0 {
		t.Errorf("pruned %d fresh tracks", n)
	}
	if n := s.Prune(t0.Add(1500 * time.Millisecond)); n != 1 {
		t.Errorf("pruned %d tracks, want 1", n)
	}
	if st := s.Status(); st.Tracks != 0 {
		t.Errorf("tracks = %d after prune", st.Tracks)
	}
}

func TestScheduler_StartErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     *fakeSource
		rec     *fakeRecognizer
		wantErr error
		starts  int
	}{
		{
			name:    "health not ready",
			src:     &fakeSource{},
			rec:     &fakeRecognizer{health: &recognition.Health{Ready: false, Status: "error"}},
			wantErr: ErrRecognizerUnavailable,
		},
		{
			name:    "health probe failed",
			src:     &fakeSource{},
			rec:     &fakeRecognizer{healthErr: errors.New("connection refused")},
			wantErr: ErrRecognizerUnavailable,
		},
		{
			name:    "camera unavailable",
			src:     &fakeSource{startErr: camera.ErrCameraUnavailable},
			rec:     &fakeRecognizer{},
			wantErr: camera.ErrCameraUnavailable,
			starts:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(tt.src, tt.rec, nil, Options{})
			err := s.Start(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start error = %v, want %v", err, tt.wantErr)
			}
			if tt.src.starts != tt.starts {
				t.Errorf("source started %d times, want %d", tt.src.starts, tt.starts)
			}
			if st := s.Status(); st.State != StateIdle {
				t.Errorf("state = %s, want idle", st.State)
			}
		})
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeSource{}, &fakeRecognizer{})
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v, want ErrAlreadyRunning", err)
	}
}

func TestScheduler_Events(t *testing.T) {
	rec := &fakeRecognizer{respond: adaResponse}
	s, _ := newTestScheduler(t, &fakeSource{}, rec)
	events := s.Events().Subscribe()
	defer s.Events().Unsubscribe(events)

	s.Tick(t0)
	s.requests.Wait()

	got := drain(events)
	want := []string{EventRecognized, EventPaused, EventTracks}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	rec := &fakeRecognizer{}
	src := &fakeSource{}
	s := NewScheduler(src, rec, nil, Options{RefreshHz: 200})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for rec.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("run loop never submitted a frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	s.requests.Wait()

	if st := s.Status(); st.State != StateIdle {
		t.Errorf("state = %s after run ended, want idle", st.State)
	}
}

func drain(ch chan Event) []string {
	var types []string
	for {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func hasEvent(ch chan Event, typ string) bool {
	for _, got := range drain(ch) {
		if got == typ {
			return true
		}
	}
	return false
}

// gatedSource blocks Start until gate is closed. With honorCtx it gives up
// when the start context ends.
type gatedSource struct {
	fakeSource
	gate     chan struct{}
	entered  chan struct{}
	honorCtx bool
	running  bool
}

func (g *gatedSource) Start(ctx context.Context) error {
	g.mu.Lock()
	g.starts++
	g.mu.Unlock()
	g.entered <- struct{}{}

	if g.honorCtx {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		<-g.gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = true
	return nil
}

func (g *gatedSource) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	g.stops++
}

func (g *gatedSource) isRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestScheduler_StopDuringStartThenRestart(t *testing.T) {
	tests := []struct {
		name     string
		honorCtx bool
	}{
		{name: "camera ignores cancellation", honorCtx: false},
		{name: "camera honors cancellation", honorCtx: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &gatedSource{
				gate:     make(chan struct{}),
				entered:  make(chan struct{}, 4),
				honorCtx: tt.honorCtx,
			}
			s := NewScheduler(src, &fakeRecognizer{}, nil, Options{})
			s.now = (&fakeClock{t: t0}).Now
			t.Cleanup(s.Stop)

			first := make(chan error, 1)
			go func() { first <- s.Start(context.Background()) }()
			select {
			case <-src.entered:
			case <-time.After(2 * time.Second):
				t.Fatal("camera start never began")
			}

			stopped := make(chan struct{})
			go func() {
				s.Stop()
				close(stopped)
			}()
			waitFor(t, "stop to cancel the pending start", func() bool {
				s.mu.Lock()
				defer s.mu.Unlock()
				return s.generation == 2
			})

			if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
				t.Errorf("Start while unwinding = %v, want ErrAlreadyRunning", err)
			}

			if !tt.honorCtx {
				select {
				case <-stopped:
					t.Fatal("Stop returned before the camera start unwound")
				case <-time.After(20 * time.Millisecond):
				}
				close(src.gate)
			}
			select {
			case <-stopped:
			case <-time.After(2 * time.Second):
				t.Fatal("Stop did not return")
			}
			if tt.honorCtx {
				close(src.gate)
			}

			if err := <-first; !errors.Is(err, ErrStartCanceled) {
				t.Errorf("canceled Start = %v, want ErrStartCanceled", err)
			}
			if src.isRunning() {
				t.Error("camera still held after canceled start")
			}
			if st := s.Status(); st.State != StateIdle {
				t.Fatalf("state = %s, want idle", st.State)
			}

			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("restart: %v", err)
			}
			if !src.isRunning() {
				t.Fatal("camera not running after restart")
			}
			if st := s.Status(); st.State != StateActive {
				t.Errorf("state = %s, want active", st.State)
			}
			if !s.Tick(t0) {
				t.Error("restarted session did not submit a frame")
			}
			s.requests.Wait()
		})
	}
}
