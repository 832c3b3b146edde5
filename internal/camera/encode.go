package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
	"golang.org/x/image/draw"
)

// EncodeFrame downscales img so neither side exceeds constants.MaxFrameSize
// and encodes it as JPEG.
func EncodeFrame(img image.Image) (*Frame, error) {
	return Encode(img, constants.MaxFrameSize, constants.FrameJPEGQuality)
}

// Encode resizes an image to fit within maxSize (width or height) while keeping
// aspect ratio, then encodes it as JPEG with the given quality.
func Encode(img image.Image, maxSize, quality int) (*Frame, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, ErrFrameNotReady
	}

	newWidth, newHeight := geometry.FitWithin(width, height, maxSize)

	out := img
	if newWidth != width || newHeight != height {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	return &Frame{
		Data:       buf.Bytes(),
		Width:      newWidth,
		Height:     newHeight,
		Source:     geometry.Size{Width: float64(width), Height: float64(height)},
		CapturedAt: time.Now(),
	}, nil
}
