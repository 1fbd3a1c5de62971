// Package layout is the branch layout engine: it connects chronologically
// consecutive events of the same branch with three-piece connectors, the way
// a version-control graph draws its lanes.
//
// The engine never measures anything itself. Card and marker rectangles come
// from a Geometry provider (a live browser, a recorded snapshot, or a
// synthetic layout), which keeps the pass deterministic and testable.
package layout

import (
	"fmt"

	"gitline/internal/geom"
	appLog "gitline/internal/log"
	"gitline/internal/model"
)

// Geometry measures rendered elements on demand. All rectangles share one
// coordinate frame (typically the viewport); Frame is the rectangle of the
// drawing surface's container and defines the origin of the output.
// A false second return means "not rendered (yet)".
type Geometry interface {
	Frame() (geom.Rect, bool)
	Card(eventID string) (geom.Rect, bool)
	Marker(eventID string) (geom.Rect, bool)
}

// RenderedCard is the renderer's record of one event card. Lane is assigned
// once, at render time, from the card's position in the overall sequence.
type RenderedCard struct {
	EventID string    `json:"event_id"`
	Index   int       `json:"index"`
	Lane    geom.Lane `json:"lane"`
}

// CardsFor assigns lanes to events in their rendered order.
func CardsFor(events []model.Event) []RenderedCard {
	cards := make([]RenderedCard, len(events))
	for i, ev := range events {
		cards[i] = RenderedCard{EventID: ev.ID, Index: i, Lane: geom.LaneFor(i)}
	}
	return cards
}

// SegmentKind names the three pieces of a connector.
type SegmentKind string

const (
	KindStubOut SegmentKind = "stub-out"
	KindBridge  SegmentKind = "bridge"
	KindStubIn  SegmentKind = "stub-in"
)

// Segment is one drawable connector piece between two same-branch events.
type Segment struct {
	Kind   SegmentKind `json:"kind"`
	Branch string      `json:"branch"`
	Color  string      `json:"color"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Path   Path        `json:"path"`
	D      string      `json:"d"`
	Length float64     `json:"length"`
}

func newSegment(kind SegmentKind, branch, color, from, to string, p Path) Segment {
	return Segment{
		Kind:   kind,
		Branch: branch,
		Color:  color,
		From:   from,
		To:     to,
		Path:   p,
		D:      p.D(),
		Length: p.Length(),
	}
}

// Surface is the persistent drawing container owned by one engine. It keeps
// the segments of the latest pass and the dimensions they were drawn for.
type Surface struct {
	size     geom.Size
	segments []Segment
}

func NewSurface() *Surface { return &Surface{} }

func (s *Surface) Size() geom.Size { return s.size }

// ViewBox is the SVG viewBox matching the current dimensions.
func (s *Surface) ViewBox() string {
	return fmt.Sprintf("0 0 %s %s", geom.FormatNumber(s.size.Width), geom.FormatNumber(s.size.Height))
}

// Segments returns a copy of the segments drawn by the last pass.
func (s *Surface) Segments() []Segment {
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// TotalLength sums the lengths of all drawn segments.
func (s *Surface) TotalLength() float64 {
	total := 0.0
	for _, seg := range s.segments {
		total += seg.Length
	}
	return total
}

// Options tune path construction.
type Options struct {
	// CurveThreshold is the |x1-x2| (px) from which bridges are curved.
	CurveThreshold float64
	// DefaultColor strokes branches that have no colour assigned.
	DefaultColor string
}

func (o Options) withDefaults() Options {
	if o.CurveThreshold <= 0 {
		o.CurveThreshold = DefaultCurveThreshold
	}
	if o.DefaultColor == "" {
		o.DefaultColor = model.DefaultColor
	}
	return o
}

// Input is everything a layout pass reads.
type Input struct {
	Events   []model.Event
	Branches map[string]model.Branch
	Viewport geom.Size
	Cards    []RenderedCard
}

// Engine computes branch connectors. It starts uninitialised and becomes
// ready once a surface is attached; it is not safe for concurrent use.
type Engine struct {
	geo     Geometry
	opts    Options
	surface *Surface
}

// New returns an engine reading geometry from geo.
func New(geo Geometry, opts Options) *Engine {
	return &Engine{geo: geo, opts: opts.withDefaults()}
}

// Attach binds the drawing surface. Only the first attach takes effect; the
// attached surface is returned either way.
func (e *Engine) Attach(s *Surface) *Surface {
	if e.surface == nil {
		if s == nil {
			s = NewSurface()
		}
		e.surface = s
	}
	return e.surface
}

// Ready reports whether a surface is attached.
func (e *Engine) Ready() bool { return e.surface != nil }

// Surface returns the attached surface, or nil.
func (e *Engine) Surface() *Surface { return e.surface }

type branchGroup struct {
	name    string
	members []model.Event
}

// groupByBranch partitions events by branch key, keeping catalog order inside
// each group and ordering groups by first appearance.
func groupByBranch(events []model.Event) []branchGroup {
	pos := make(map[string]int)
	var groups []branchGroup
	for _, ev := range events {
		if ev.Branch == "" {
			continue
		}
		gi, ok := pos[ev.Branch]
		if !ok {
			gi = len(groups)
			pos[ev.Branch] = gi
			groups = append(groups, branchGroup{name: ev.Branch})
		}
		groups[gi].members = append(groups[gi].members, ev)
	}
	return groups
}

// anchor is one endpoint of a connector in frame coordinates.
type anchor struct {
	edgeX   float64
	centerX float64
	y       float64
}

func (e *Engine) measure(card RenderedCard, origin geom.Point) (anchor, bool) {
	cardRect, ok := e.geo.Card(card.EventID)
	if !ok || !cardRect.Valid() {
		return anchor{}, false
	}
	markerRect, ok := e.geo.Marker(card.EventID)
	if !ok || !markerRect.Valid() {
		return anchor{}, false
	}
	cardRect = cardRect.Translate(origin)
	c := markerRect.Translate(origin).Center()
	return anchor{edgeX: card.Lane.InnerEdge(cardRect), centerX: c.X, y: c.Y}, true
}

// Layout runs one pass: it discards the previous segments, resizes the
// surface to the measured frame and connects consecutive events of every
// branch. It degrades to an empty result instead of failing: no surface,
// no frame or no cards yield nothing, and events whose card cannot be
// measured are skipped for this pass.
func (e *Engine) Layout(in Input) []Segment {
	if e.surface == nil {
		return nil
	}
	e.surface.segments = nil
	if e.geo == nil || len(in.Cards) == 0 {
		return nil
	}
	frame, ok := e.geo.Frame()
	if !ok || !frame.Valid() {
		return nil
	}

	size := frame.Size()
	if size.Empty() {
		size = in.Viewport
	}
	e.surface.size = size

	cards := make(map[string]RenderedCard, len(in.Cards))
	for _, c := range in.Cards {
		cards[c.EventID] = c
	}
	origin := frame.Origin()

	var segments []Segment
	skipped := 0
	for _, g := range groupByBranch(in.Events) {
		if len(g.members) < 2 {
			continue
		}
		color := e.opts.DefaultColor
		if b, ok := in.Branches[g.name]; ok && b.Color != "" {
			color = b.Color
		}

		for i := 0; i+1 < len(g.members); i++ {
			cur, next := g.members[i], g.members[i+1]

			curCard, ok1 := cards[cur.ID]
			nextCard, ok2 := cards[next.ID]
			if !ok1 || !ok2 {
				skipped++
				continue
			}
			a, ok1 := e.measure(curCard, origin)
			b, ok2 := e.measure(nextCard, origin)
			if !ok1 || !ok2 {
				skipped++
				continue
			}

			segments = append(segments,
				newSegment(KindStubOut, g.name, color, cur.ID, next.ID,
					Straight(geom.Point{X: a.edgeX, Y: a.y}, geom.Point{X: a.centerX, Y: a.y})),
				newSegment(KindBridge, g.name, color, cur.ID, next.ID,
					Bridge(geom.Point{X: a.centerX, Y: a.y}, geom.Point{X: b.centerX, Y: b.y}, e.opts.CurveThreshold)),
				newSegment(KindStubIn, g.name, color, cur.ID, next.ID,
					Straight(geom.Point{X: b.centerX, Y: b.y}, geom.Point{X: b.edgeX, Y: b.y})),
			)
		}
	}

	e.surface.segments = segments
	appLog.Debug("branch layout pass",
		"segments", len(segments),
		"skipped_pairs", skipped,
		"surface", e.surface.ViewBox(),
	)
	return e.surface.Segments()
}
