// Package tracking keeps the set of faces currently believed visible, keyed by
// the member identity reported by the recognition service.
//
// Identified faces persist across responses by ID. Unidentified faces are
// never re-identified by geometry: each response replaces them wholesale with
// fresh scanning boxes.
package tracking

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// Registry is not safe for concurrent use; the capture scheduler serializes
// every call.
type Registry struct {
	tracks    map[string]*Track
	scanning  []ScanningBox
	staleness time.Duration
	minSize   float64
	newID     func() string
}

// NewRegistry creates a registry pruning tracks older than staleness.
func NewRegistry(staleness time.Duration) *Registry {
	if staleness <= 0 {
		staleness = constants.StalenessBudget
	}
	return &Registry{
		tracks:    make(map[string]*Track),
		staleness: staleness,
		minSize:   constants.MinBoxSize,
		newID:     uuid.NewString,
	}
}

// Merge applies one recognition response observed at now.
func (r *Registry) Merge(observations []Observation, now time.Time) MergeResult {
	var res MergeResult
	scanning := make([]ScanningBox, 0, len(observations))

	for _, obs := range observations {
		if err := obs.Validate(r.minSize); err != nil {
			res.Rejected++
			slog.Debug("tracking: dropping observation", "id", obs.ID, "error", err)
			continue
		}

		if obs.ID == "" {
			scanning = append(scanning, ScanningBox{ID: r.newID(), BBox: obs.BBox, SeenAt: now})
			continue
		}

		t, ok := r.tracks[obs.ID]
		if !ok {
			t = &Track{ID: obs.ID, Status: StatusDetecting, FirstSeenAt: now}
			r.tracks[obs.ID] = t
		}
		t.BBox = obs.BBox
		t.LastSeenAt = now
		t.Sightings++
		if obs.Name != "" {
			t.Name = obs.Name
		}
		if obs.Status == StatusConfirmed {
			t.Confidence = obs.Confidence
			if t.Status != StatusConfirmed {
				t.Status = StatusConfirmed
				res.Confirmed = append(res.Confirmed, *t)
			}
		}
		res.Updated++
	}

	r.scanning = scanning
	res.Scanning = len(scanning)
	return res
}

// Prune removes tracks and scanning boxes not seen within the staleness
// budget and returns how many tracks were removed.
func (r *Registry) Prune(now time.Time) int {
	removed := 0
	for id, t := range r.tracks {
		if now.Sub(t.LastSeenAt) > r.staleness {
			delete(r.tracks, id)
			removed++
		}
	}

	kept := r.scanning[:0]
	for _, b := range r.scanning {
		if now.Sub(b.SeenAt) <= r.staleness {
			kept = append(kept, b)
		}
	}
	r.scanning = kept

	return removed
}

// Clear drops all tracks and scanning boxes.
func (r *Registry) Clear() {
	clear(r.tracks)
	r.scanning = nil
}

// Len returns the number of tracks.
func (r *Registry) Len() int {
	return len(r.tracks)
}

// Get returns a copy of the track with the given ID.
func (r *Registry) Get(id string) (Track, bool) {
	t, ok := r.tracks[id]
	if !ok {
		return Track{}, false
	}
	return *t, true
}

// Snapshot copies the current state.
func (r *Registry) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Tracks:   make([]Track, 0, len(r.tracks)),
		Scanning: make([]ScanningBox, len(r.scanning)),
		TakenAt:  now,
	}
	for _, t := range r.tracks {
		snap.Tracks = append(snap.Tracks, *t)
	}
	sort.Slice(snap.Tracks, func(i, j int) bool {
		return snap.Tracks[i].ID < snap.Tracks[j].ID
	})
	copy(snap.Scanning, r.scanning)
	return snap
}
