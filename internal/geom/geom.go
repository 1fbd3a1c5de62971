// Package geom holds the small set of screen-space primitives shared by the
// layout engine and its geometry providers. All coordinates are CSS pixels
// with y growing downwards.
package geom

import (
	"fmt"
	"math"
)

// Point is a position in a coordinate frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Scale multiplies both components by f.
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

// Dist is the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Lerp interpolates from p to q at t.
func (p Point) Lerp(q Point, t float64) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

func (p Point) String() string {
	return fmt.Sprintf("(%s, %s)", FormatNumber(p.X), FormatNumber(p.Y))
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// Rect is an axis-aligned rectangle, shaped like a DOMRect.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// RectXYWH builds a Rect from origin and size.
func RectXYWH(x, y, w, h float64) Rect {
	return Rect{Left: x, Top: y, Right: x + w, Bottom: y + h}
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }
func (r Rect) Size() Size      { return Size{Width: r.Width(), Height: r.Height()} }

// Center returns the middle of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width()/2, Y: r.Top + r.Height()/2}
}

// Origin is the top-left corner.
func (r Rect) Origin() Point { return Point{X: r.Left, Y: r.Top} }

// Translate moves the rectangle by -origin, i.e. into the frame whose
// top-left corner is origin.
func (r Rect) Translate(origin Point) Rect {
	return Rect{
		Left:   r.Left - origin.X,
		Top:    r.Top - origin.Y,
		Right:  r.Right - origin.X,
		Bottom: r.Bottom - origin.Y,
	}
}

// Valid reports whether the rectangle has finite, non-inverted bounds.
func (r Rect) Valid() bool {
	for _, v := range []float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.Right >= r.Left && r.Bottom >= r.Top
}

// Lane is the side of the centre column a card is placed on.
type Lane int

const (
	// LaneLeft cards sit left of the centre column; their right edge faces it.
	LaneLeft Lane = iota
	// LaneRight cards sit right of the centre column; their left edge faces it.
	LaneRight
)

// LaneFor derives the lane from a card's position in the overall sequence:
// even positions go left, odd positions go right.
func LaneFor(index int) Lane {
	if index%2 == 0 {
		return LaneLeft
	}
	return LaneRight
}

func (l Lane) String() string {
	if l == LaneRight {
		return "right"
	}
	return "left"
}

// InnerEdge returns the x coordinate of the card edge that faces the centre
// column for a card in this lane.
func (l Lane) InnerEdge(card Rect) float64 {
	if l == LaneRight {
		return card.Left
	}
	return card.Right
}

// MarshalText lets lanes travel as "left"/"right" in JSON and YAML.
func (l Lane) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lane) UnmarshalText(b []byte) error {
	switch string(b) {
	case "left", "even":
		*l = LaneLeft
	case "right", "odd":
		*l = LaneRight
	default:
		return fmt.Errorf("geom: unknown lane %q", string(b))
	}
	return nil
}

// FormatNumber renders a coordinate compactly and deterministically for path
// data: at most three decimals, trailing zeros trimmed, no negative zero.
func FormatNumber(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		return "0"
	}
	s := fmt.Sprintf("%.3f", r)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
