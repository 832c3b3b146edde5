package capture

import (
	"sync"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// Event types published by the scheduler.
const (
	EventState      = "state"
	EventTracks     = "tracks"
	EventRecognized = "recognized"
	EventPaused     = "paused"
	EventError      = "error"
)

// Event is a single notification for dashboard subscribers.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Broadcaster fans events out to subscribers. Slow subscribers miss events
// rather than blocking the scheduler.
type Broadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// Subscribe adds an event listener.
func (b *Broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// Unsubscribe removes and closes an event listener.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all listeners.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Subscribers returns the number of active listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
