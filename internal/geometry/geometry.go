package geometry

import "fmt"

// FromSlice converts a wire bbox [x1, y1, x2, y2] into a BBox.
// Returns false if the slice does not hold exactly four values.
func FromSlice(v []float64) (BBox, bool) {
	if len(v) != 4 {
		return BBox{}, false
	}
	return BBox{v[0], v[1], v[2], v[3]}, true
}

// Width returns x2 - x1.
func (b BBox) Width() float64 {
	return b[2] - b[0]
}

// Height returns y2 - y1.
func (b BBox) Height() float64 {
	return b[3] - b[1]
}

// Validate checks corner ordering and the minimum side length.
func (b BBox) Validate(minSize float64) error {
	if b[2] <= b[0] || b[3] <= b[1] {
		return fmt.Errorf("bbox %v has inverted corners", [4]float64(b))
	}
	if b.Width() < minSize || b.Height() < minSize {
		return fmt.Errorf("bbox %v smaller than %.0fpx", [4]float64(b), minSize)
	}
	return nil
}

// Valid is Validate without the error detail.
func (b BBox) Valid(minSize float64) bool {
	return b.Validate(minSize) == nil
}

// Scale multiplies x coordinates by sx and y coordinates by sy.
func (b BBox) Scale(sx, sy float64) BBox {
	return BBox{b[0] * sx, b[1] * sy, b[2] * sx, b[3] * sy}
}

// ScaleFactors returns the per-axis factors mapping the source frame onto the
// container. A zero-sized source or container yields (0, 0).
func ScaleFactors(source, container Size) (float64, float64) {
	if source.IsZero() || container.IsZero() {
		return 0, 0
	}
	return container.Width / source.Width, container.Height / source.Height
}

// FitWithin returns dimensions that fit within maxSize on both sides while
// keeping the aspect ratio. Dimensions already within bounds are returned unchanged.
func FitWithin(width, height, maxSize int) (int, int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		return maxSize, max(1, int(float64(height)*float64(maxSize)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxSize)/float64(height))), maxSize
}
