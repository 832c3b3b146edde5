package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/kozaktomas/attendance-scanner/internal/config"
)

// Style holds the overlay colors and stroke settings.
type Style struct {
	Palette []color.RGBA
	Success color.RGBA
	Glow    float64
	Stroke  float64
}

// StyleFromTuning parses the configured hex colors.
func StyleFromTuning(t config.OverlayTuning) (Style, error) {
	if len(t.Palette) == 0 {
		return Style{}, fmt.Errorf("overlay palette is empty")
	}
	style := Style{Glow: t.Glow, Stroke: t.Stroke}
	if style.Stroke <= 0 {
		style.Stroke = 3
	}
	for _, hex := range t.Palette {
		c, err := ParseHexColor(hex)
		if err != nil {
			return Style{}, fmt.Errorf("palette: %w", err)
		}
		style.Palette = append(style.Palette, c)
	}
	success, err := ParseHexColor(t.Success)
	if err != nil {
		return Style{}, fmt.Errorf("success color: %w", err)
	}
	style.Success = success
	return style, nil
}

// DefaultStyle returns the style from the embedded tuning file.
func DefaultStyle() Style {
	style, err := StyleFromTuning(config.LoadTuning().Overlay)
	if err != nil {
		panic("invalid embedded overlay tuning: " + err.Error())
	}
	return style
}

// ParseHexColor parses "#rrggbb" into an opaque color.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// hexColor formats c as "#rrggbb".
func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
