// Package geometry provides bounding box helpers shared by the tracking
// registry and the overlay renderer.
package geometry

// BBox is an axis-aligned bounding box [x1, y1, x2, y2] in pixels.
type BBox [4]float64

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether either dimension is non-positive.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}
