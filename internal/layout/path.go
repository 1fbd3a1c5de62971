package layout

import (
	"math"
	"strings"

	"gitline/internal/geom"
)

// DefaultCurveThreshold is the horizontal delta (px) below which a bridge is
// drawn straight instead of as a cubic.
const DefaultCurveThreshold = 5.0

// Path is one drawable connector piece: a straight line, or a cubic Bezier
// when Controls holds two control points.
type Path struct {
	Start    geom.Point   `json:"start"`
	End      geom.Point   `json:"end"`
	Controls []geom.Point `json:"controls,omitempty"`
}

// Straight builds a line from a to b.
func Straight(a, b geom.Point) Path {
	return Path{Start: a, End: b}
}

// Bridge builds the middle piece between two marker centres. When the
// horizontal delta reaches threshold it is a cubic whose control points sit
// halfway between each endpoint and the midpoint; otherwise it degrades to
// a straight line.
func Bridge(a, b geom.Point, threshold float64) Path {
	if math.Abs(a.X-b.X) < threshold {
		return Straight(a, b)
	}
	mid := a.Lerp(b, 0.5)
	c1 := a.Add(mid.Sub(a).Scale(0.5))
	c2 := b.Sub(b.Sub(mid).Scale(0.5))
	return Path{Start: a, End: b, Controls: []geom.Point{c1, c2}}
}

// Curved reports whether the path is a cubic.
func (p Path) Curved() bool { return len(p.Controls) == 2 }

// D renders SVG path data ("M x y L x y" or "M x y C ...").
func (p Path) D() string {
	var b strings.Builder
	b.WriteString("M ")
	writePoint(&b, p.Start)
	if p.Curved() {
		b.WriteString(" C ")
		writePoint(&b, p.Controls[0])
		b.WriteString(", ")
		writePoint(&b, p.Controls[1])
		b.WriteString(", ")
	} else {
		b.WriteString(" L ")
	}
	writePoint(&b, p.End)
	return b.String()
}

func writePoint(b *strings.Builder, pt geom.Point) {
	b.WriteString(geom.FormatNumber(pt.X))
	b.WriteByte(' ')
	b.WriteString(geom.FormatNumber(pt.Y))
}

// Length is the total arc length of the path.
func (p Path) Length() float64 {
	if !p.Curved() {
		return p.Start.Dist(p.End)
	}
	return cubicArcLength(p.Start, p.Controls[0], p.Controls[1], p.End)
}

// Eight-point Gauss-Legendre nodes/weights on [-1, 1] (positive half).
var (
	glNodes   = [4]float64{0.1834346424956498, 0.5255324099163290, 0.7966664774136267, 0.9602898564975363}
	glWeights = [4]float64{0.3626837833783620, 0.3137066458778873, 0.2223810344533745, 0.1012285362903763}
)

// cubicArcLength integrates |B'(t)| with composite Gauss-Legendre over four
// sub-intervals, which is well below a hundredth of a pixel for the connector
// sizes drawn here.
func cubicArcLength(p0, p1, p2, p3 geom.Point) float64 {
	const parts = 4
	speed := func(t float64) float64 {
		mt := 1 - t
		a := p1.Sub(p0).Scale(3 * mt * mt)
		b := p2.Sub(p1).Scale(6 * mt * t)
		c := p3.Sub(p2).Scale(3 * t * t)
		d := a.Add(b).Add(c)
		return math.Hypot(d.X, d.Y)
	}

	total := 0.0
	h := 1.0 / parts
	for i := 0; i < parts; i++ {
		lo := float64(i) * h
		mid := lo + h/2
		half := h / 2
		for k, x := range glNodes {
			w := glWeights[k]
			total += w * half * (speed(mid-half*x) + speed(mid+half*x))
		}
	}
	return total
}
