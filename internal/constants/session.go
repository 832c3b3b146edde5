package constants

import "time"

// Session collector constants
const (
	// RecentActivityLimit is the number of recent recognitions kept for display
	RecentActivityLimit = 20

	// RecentDedupWindow suppresses duplicate attendance entries for the same member
	RecentDedupWindow = 30 * time.Second
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for capture event subscribers
	EventChannelBuffer = 100
)
