package constants

import "time"

// Overlay constants
const (
	// PaletteTick is how often detecting boxes advance to the next accent color
	PaletteTick = 150 * time.Millisecond

	// BracketLength is the corner bracket length in screen pixels before the
	// BracketFraction cap applies
	BracketLength = 20.0

	// BracketFraction caps corner bracket length relative to the box side
	BracketFraction = 0.25

	// LabelOffset is the gap in screen pixels between a box and its label
	LabelOffset = 6.0
)
