// Package session turns confirmed recognitions into the recent-activity list
// and the daily counters shown next to the camera.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/tracking"
)

// Entry is one line of the recent-activity list.
type Entry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Repeat     bool      `json:"repeat"`
	Message    string    `json:"message"`
}

// Stats are the running counters for the current day.
type Stats struct {
	Day           string `json:"day"`
	Recognized    int    `json:"recognized"`
	UniqueMembers int    `json:"unique_members"`
	Repeats       int    `json:"repeats"`
}

// Collector never touches the track registry; it only consumes confirmed
// tracks handed to Record.
type Collector struct {
	mu       sync.Mutex
	entries  []Entry
	lastSeen map[string]time.Time
	members  map[string]struct{}
	stats    Stats
	window   time.Duration
	limit    int
}

// NewCollector creates a collector with the default window and list size.
func NewCollector() *Collector {
	return &Collector{
		lastSeen: make(map[string]time.Time),
		members:  make(map[string]struct{}),
		window:   constants.RecentDedupWindow,
		limit:    constants.RecentActivityLimit,
	}
}

// Record registers a newly confirmed track. A member seen again within the
// dedup window is reported as a repeat and not added to the list.
func (c *Collector) Record(t tracking.Track, now time.Time) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollDay(now)

	entry := Entry{
		ID:         t.ID,
		Name:       t.Name,
		Confidence: t.Confidence,
		Timestamp:  now,
	}
	if entry.Name == "" {
		entry.Name = t.ID
	}

	if last, ok := c.lastSeen[t.ID]; ok && now.Sub(last) < c.window {
		entry.Repeat = true
		entry.Message = fmt.Sprintf("%s already recorded", entry.Name)
		c.stats.Repeats++
		return entry
	}

	c.lastSeen[t.ID] = now
	entry.Message = fmt.Sprintf("Attendance recorded for %s", entry.Name)
	c.stats.Recognized++
	if _, ok := c.members[t.ID]; !ok {
		c.members[t.ID] = struct{}{}
		c.stats.UniqueMembers++
	}

	c.entries = append([]Entry{entry}, c.entries...)
	if len(c.entries) > c.limit {
		c.entries = c.entries[:c.limit]
	}
	return entry
}

// rollDay resets the counters when the local date changes. Caller holds mu.
func (c *Collector) rollDay(now time.Time) {
	day := now.Local().Format(time.DateOnly)
	if c.stats.Day == day {
		return
	}
	c.stats = Stats{Day: day}
	clear(c.members)
}

// Recent returns the recent-activity list, newest first.
func (c *Collector) Recent() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Stats returns the current counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Reset clears the list, counters and dedup window.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	clear(c.lastSeen)
	clear(c.members)
	c.stats = Stats{}
}
