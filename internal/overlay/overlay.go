// Package overlay converts the tracking snapshot into screen-space
// decorations: corner brackets, colors and name labels.
//
// Render is a pure function of its input. The only time-dependent output is
// the palette phase of unconfirmed boxes, and that is derived from Input.Now,
// so equal inputs always give equal decorations.
package overlay

import (
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/geometry"
	"github.com/kozaktomas/attendance-scanner/internal/tracking"
)

// Kind tells the client how to draw a decoration.
type Kind string

// Decoration kinds.
const (
	KindScanning  Kind = "scanning"
	KindDetecting Kind = "detecting"
	KindConfirmed Kind = "confirmed"
)

// Input is everything Render depends on.
type Input struct {
	Snapshot  tracking.Snapshot
	Video     geometry.Size // intrinsic frame size
	Container geometry.Size // on-screen size of the video element
	Now       time.Time
}

// Segment is a straight line in screen pixels.
type Segment struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Label is text anchored at its top-left corner.
type Label struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Decoration is one box to draw.
type Decoration struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Rect     geometry.BBox `json:"rect"`
	Color    string        `json:"color"`
	Brackets []Segment     `json:"brackets"`
	Glow     float64       `json:"glow,omitempty"`
	Label    *Label        `json:"label,omitempty"`

	paletteIndex int // -1 for the success color
}

// Renderer holds no per-frame state.
type Renderer struct {
	style Style
}

// NewRenderer creates a renderer with the given style.
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Style returns the renderer's style.
func (r *Renderer) Style() Style {
	return r.style
}

// Render lays out decorations for the snapshot: scanning boxes first, then
// detecting tracks, then confirmed tracks so identified faces draw on top.
func (r *Renderer) Render(in Input) []Decoration {
	sx, sy := geometry.ScaleFactors(in.Video, in.Container)
	if sx == 0 || sy == 0 {
		return nil
	}

	phase := 0
	if n := len(r.style.Palette); n > 0 {
		phase = int((in.Now.UnixMilli() / constants.PaletteTick.Milliseconds()) % int64(n))
	}

	var scanning, detecting, confirmed []Decoration
	accent := 0

	for _, box := range in.Snapshot.Scanning {
		if !box.BBox.Valid(constants.MinBoxSize) {
			continue
		}
		scanning = append(scanning, r.accentBox(box.ID, KindScanning, box.BBox.Scale(sx, sy), phase+accent))
		accent++
	}

	for _, t := range in.Snapshot.Tracks {
		if !t.BBox.Valid(constants.MinBoxSize) {
			continue
		}
		rect := t.BBox.Scale(sx, sy)
		if t.Status != tracking.StatusConfirmed {
			detecting = append(detecting, r.accentBox(t.ID, KindDetecting, rect, phase+accent))
			accent++
			continue
		}
		confirmed = append(confirmed, r.confirmedBox(t, rect))
	}

	out := make([]Decoration, 0, len(scanning)+len(detecting)+len(confirmed))
	out = append(out, scanning...)
	out = append(out, detecting...)
	return append(out, confirmed...)
}

func (r *Renderer) accentBox(id string, kind Kind, rect geometry.BBox, idx int) Decoration {
	d := Decoration{ID: id, Kind: kind, Rect: rect, Brackets: Brackets(rect), paletteIndex: -1}
	if n := len(r.style.Palette); n > 0 {
		d.paletteIndex = idx % n
		d.Color = hexColor(r.style.Palette[d.paletteIndex])
	}
	return d
}

func (r *Renderer) confirmedBox(t tracking.Track, rect geometry.BBox) Decoration {
	return Decoration{
		ID:           t.ID,
		Kind:         KindConfirmed,
		Rect:         rect,
		Color:        hexColor(r.style.Success),
		Brackets:     Brackets(rect),
		Glow:         r.style.Glow,
		Label:        &Label{Text: LabelText(t), X: rect[0], Y: rect[3] + constants.LabelOffset},
		paletteIndex: -1,
	}
}

// LabelText is the name with the confidence as a whole percentage.
func LabelText(t tracking.Track) string {
	name := t.Name
	if name == "" {
		name = t.ID
	}
	if t.Confidence <= 0 {
		return name
	}
	return fmt.Sprintf("%s %d%%", name, int(math.Round(t.Confidence*100)))
}

// Brackets returns the eight corner strokes of rect. Each stroke is at most
// BracketLength long and never longer than BracketFraction of its side.
func Brackets(rect geometry.BBox) []Segment {
	x1, y1, x2, y2 := rect[0], rect[1], rect[2], rect[3]
	lx := min(constants.BracketLength, rect.Width()*constants.BracketFraction)
	ly := min(constants.BracketLength, rect.Height()*constants.BracketFraction)

	return []Segment{
		{x1, y1, x1 + lx, y1}, {x1, y1, x1, y1 + ly}, // top-left
		{x2 - lx, y1, x2, y1}, {x2, y1, x2, y1 + ly}, // top-right
		{x1, y2, x1 + lx, y2}, {x1, y2 - ly, x1, y2}, // bottom-left
		{x2 - lx, y2, x2, y2}, {x2, y2 - ly, x2, y2}, // bottom-right
	}
}
