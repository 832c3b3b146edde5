package tracking

import (
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/geometry"
)

// ErrInvalidObservation marks an observation whose bbox fails the ordering or
// minimum-size check. Such observations never reach the registry.
var ErrInvalidObservation = errors.New("invalid observation")

// Status is the lifecycle state of a tracked face.
type Status string

// Track states. A track only ever moves from detecting to confirmed.
const (
	StatusDetecting Status = "detecting"
	StatusConfirmed Status = "confirmed"
)

// Observation is one face reported by the recognizer, in source-frame pixels.
type Observation struct {
	BBox       geometry.BBox
	ID         string // member id, empty while the face is unidentified
	Name       string
	Status     Status
	Confidence float64
}

// Validate checks the observation's bbox against the minimum box size.
func (o Observation) Validate(minSize float64) error {
	if err := o.BBox.Validate(minSize); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}
	return nil
}

// Track is a face the registry believes is on screen.
type Track struct {
	ID          string        `json:"id"`
	BBox        geometry.BBox `json:"bbox"`
	Name        string        `json:"name,omitempty"`
	Status      Status        `json:"status"`
	Confidence  float64       `json:"confidence,omitempty"` // only set once confirmed
	FirstSeenAt time.Time     `json:"first_seen_at"`
	LastSeenAt  time.Time     `json:"last_seen_at"`
	Sightings   int           `json:"sightings"`
}

// ScanningBox is an unidentified face from the most recent response. Its ID is
// synthetic and never carried across responses.
type ScanningBox struct {
	ID     string        `json:"id"`
	BBox   geometry.BBox `json:"bbox"`
	SeenAt time.Time     `json:"seen_at"`
}

// MergeResult summarizes a single Merge call.
type MergeResult struct {
	Confirmed []Track // tracks that became confirmed in this merge
	Updated   int     // identified observations applied
	Scanning  int     // unidentified observations kept as scanning boxes
	Rejected  int     // observations dropped as invalid
}

// Snapshot is a copy of the registry state, sorted by track ID.
type Snapshot struct {
	Tracks   []Track       `json:"tracks"`
	Scanning []ScanningBox `json:"scanning"`
	TakenAt  time.Time     `json:"taken_at"`
}
