package overlay

import (
	"image"
	"image/color"
	"math"
	"strings"
	"unicode"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// labelBackground sits behind label text so it stays readable on bright frames.
var labelBackground = color.RGBA{A: 0xb0}

// Draw rasterizes decorations onto dst. Coordinates are dst pixels, so the
// decorations must have been rendered with Container equal to dst's size.
func (r *Renderer) Draw(dst draw.Image, decorations []Decoration) {
	stroke := max(1, int(math.Round(r.style.Stroke)))
	for _, d := range decorations {
		c := r.colorOf(d)
		if d.Glow > 0 {
			drawGlow(dst, d.Rect, c, int(d.Glow))
		}
		for _, s := range d.Brackets {
			drawSegment(dst, s, stroke, c)
		}
		if d.Label != nil {
			drawLabel(dst, d.Label, c)
		}
	}
}

func (r *Renderer) colorOf(d Decoration) color.RGBA {
	if d.paletteIndex >= 0 && d.paletteIndex < len(r.style.Palette) {
		return r.style.Palette[d.paletteIndex]
	}
	if c, err := ParseHexColor(d.Color); err == nil {
		return c
	}
	return r.style.Success
}

// drawSegment fills an axis-aligned stroke of the given thickness.
func drawSegment(dst draw.Image, s Segment, stroke int, c color.RGBA) {
	x1, x2 := math.Min(s.X1, s.X2), math.Max(s.X1, s.X2)
	y1, y2 := math.Min(s.Y1, s.Y2), math.Max(s.Y1, s.Y2)
	half := stroke / 2
	rect := image.Rect(
		int(x1)-half, int(y1)-half,
		int(math.Ceil(x2))+stroke-half, int(math.Ceil(y2))+stroke-half,
	)
	fill(dst, rect, c)
}

// drawGlow strokes progressively fainter outlines around rect.
func drawGlow(dst draw.Image, rect [4]float64, c color.RGBA, radius int) {
	base := image.Rect(int(rect[0]), int(rect[1]), int(rect[2]), int(rect[3]))
	for i := 1; i <= radius; i += 2 {
		alpha := uint8(0x60 * (radius - i + 1) / (radius + 1))
		if alpha == 0 {
			continue
		}
		outline(dst, base.Inset(-i), premultiply(c, alpha))
	}
}

func outline(dst draw.Image, r image.Rectangle, c color.Color) {
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fill(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

func premultiply(c color.RGBA, alpha uint8) color.RGBA {
	scale := func(v uint8) uint8 { return uint8(uint16(v) * uint16(alpha) / 0xff) }
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: alpha}
}

func drawLabel(dst draw.Image, l *Label, c color.RGBA) {
	text := FoldLabel(l.Text)
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	x, y := int(l.X), int(l.Y)
	fill(dst, image.Rect(x-2, y-1, x+width+2, y+height+1), labelBackground)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// FoldLabel reduces a name to the ASCII glyphs the bitmap font can draw
// ("Jiří" -> "Jiri"). Remaining non-ASCII runes become '?'.
func FoldLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, folded)
}
