// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Capture scheduling constants
const (
	// FrameInterval is the minimum gap between two recognition submissions
	// (soft cap of ~6-7 submissions per second)
	FrameInterval = 150 * time.Millisecond

	// CooldownWindow is how long submissions are paused after a confirmed match
	CooldownWindow = 3 * time.Second

	// DefaultRefreshHz is the tick rate standing in for the display refresh signal
	DefaultRefreshHz = 60

	// PruneInterval is how often the track registry is swept for stale tracks
	PruneInterval = time.Second
)

// Track registry constants
const (
	// StalenessBudget is the maximum age of a track's last sighting before pruning
	StalenessBudget = time.Second

	// MinBoxSize is the minimum bbox width and height in source pixels;
	// smaller boxes are treated as noise
	MinBoxSize = 10.0
)

// Frame source constants
const (
	// CameraReadyTimeout bounds how long Start waits for the first decodable frame
	CameraReadyTimeout = 10 * time.Second

	// TargetCameraWidth and TargetCameraHeight are the requested camera resolution
	TargetCameraWidth  = 640
	TargetCameraHeight = 480

	// MaxFrameSize is the maximum dimension (width or height) of a submitted frame
	MaxFrameSize = 800

	// FrameJPEGQuality is the JPEG quality of submitted frames
	FrameJPEGQuality = 80

	// MaxFrameBytes limits a single camera frame, pushed or streamed
	MaxFrameBytes = 4 << 20
)

// Recognition client constants
const (
	// DefaultRecognitionTimeout is the per-request timeout for the recognition endpoint
	DefaultRecognitionTimeout = 10 * time.Second

	// HealthTimeout bounds the health probe
	HealthTimeout = 5 * time.Second
)
