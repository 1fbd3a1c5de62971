package render

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gitline/internal/animate"
	"gitline/internal/geom"
	"gitline/internal/layout"
	"gitline/internal/measure"
	"gitline/internal/model"
)

// SVGOptions controls the standalone drawing.
type SVGOptions struct {
	Lang        string
	Background  string
	LineColor   string
	TextColor   string
	StrokeWidth float64
	Opacity     float64
	// Animate adds SMIL draw animations following the branch tweens.
	Animate bool
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.Background == "" {
		o.Background = "#171321"
	}
	if o.LineColor == "" {
		o.LineColor = "#3A383F"
	}
	if o.TextColor == "" {
		o.TextColor = "#ECECEF"
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = 2
	}
	if o.Opacity <= 0 {
		o.Opacity = 0.3
	}
	return o
}

// Timeline lays the catalog out with a synthetic geometry and writes the
// complete SVG. It returns the segments that were drawn.
func Timeline(w io.Writer, cat *model.Catalog, static measure.StaticOptions, lopts layout.Options, opts SVGOptions) ([]layout.Segment, error) {
	var events []model.Event
	var branches map[string]model.Branch
	if cat != nil {
		events, branches = cat.Events, cat.Branches
	}
	cards := layout.CardsFor(events)
	geo := measure.NewStatic(cards, static)

	eng := layout.New(geo, lopts)
	surface := eng.Attach(nil)
	segments := eng.Layout(layout.Input{
		Events:   events,
		Branches: branches,
		Viewport: geo.Snapshot().Viewport,
		Cards:    cards,
	})

	var tweens []animate.Tween
	if opts.Animate {
		tweens = animate.New(animate.Config{}).Branches(segments)
	}
	return segments, WriteSVG(w, cat, geo, surface, tweens, opts)
}

// WriteSVG draws cards, markers and the surface's branch segments. Rects
// from geo are translated into the frame's coordinates.
func WriteSVG(w io.Writer, cat *model.Catalog, geo layout.Geometry, surface *layout.Surface, tweens []animate.Tween, opts SVGOptions) error {
	opts = opts.withDefaults()
	frame, ok := geo.Frame()
	if !ok {
		return fmt.Errorf("render: svg: no frame geometry")
	}
	size := surface.Size()
	if size.Empty() {
		size = frame.Size()
	}
	origin := frame.Origin()
	n := geom.FormatNumber

	var svg strings.Builder
	svg.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="%s" height="%s" viewBox="0 0 %s %s" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, n(size.Width), n(size.Height), n(size.Width), n(size.Height), opts.Background))

	cx := size.Width / 2
	svg.WriteString(fmt.Sprintf(`<line class="timeline-center" x1="%s" y1="0" x2="%s" y2="%s" stroke="%s" stroke-width="2"/>
`, n(cx), n(cx), n(size.Height), opts.LineColor))

	svg.WriteString(`<g class="timeline-branches">
`)
	for i, seg := range surface.Segments() {
		drawSegment(&svg, i, seg, tweenFor(tweens, i), opts)
	}
	svg.WriteString("</g>\n")

	for _, c := range Cards(cat, opts.Lang) {
		card, ok1 := geo.Card(c.Event.ID)
		marker, ok2 := geo.Marker(c.Event.ID)
		if !ok1 || !ok2 {
			continue
		}
		drawCard(&svg, c, card.Translate(origin), opts)
		drawMarker(&svg, c, marker.Translate(origin))
	}

	svg.WriteString("</svg>\n")
	_, err := io.WriteString(w, svg.String())
	return err
}

func tweenFor(tweens []animate.Tween, i int) *animate.Tween {
	if i < len(tweens) {
		return &tweens[i]
	}
	return nil
}

func drawSegment(svg *strings.Builder, i int, seg layout.Segment, tw *animate.Tween, opts SVGOptions) {
	n := geom.FormatNumber
	offset := 0.0
	if tw != nil {
		offset = seg.Length
	}
	svg.WriteString(fmt.Sprintf(`<path class="timeline-branch-line" data-branch="%s" data-segment="%d" d="%s" stroke="%s" stroke-width="%s" fill="none" opacity="%s" stroke-dasharray="%s" stroke-dashoffset="%s"`,
		escapeXML(seg.Branch), i, seg.D, escapeXML(seg.Color), n(opts.StrokeWidth), n(opts.Opacity), n(seg.Length), n(offset)))
	if tw == nil {
		svg.WriteString("/>\n")
		return
	}
	// SMIL has no power2.inOut; the closest keySplines approximation is used.
	svg.WriteString(fmt.Sprintf(`>
  <animate attributeName="stroke-dashoffset" from="%s" to="0" begin="%ss" dur="%ss" fill="freeze" calcMode="spline" keyTimes="0;1" keySplines="0.45 0 0.55 1"/>
</path>
`, n(seg.Length), n(tw.Delay), n(tw.Duration)))
}

func drawCard(svg *strings.Builder, c Card, r geom.Rect, opts SVGOptions) {
	n := geom.FormatNumber
	svg.WriteString(fmt.Sprintf(`<g class="timeline-event-item %s" data-event-id="%s">
`, c.Side(), escapeXML(c.Event.ID)))
	svg.WriteString(fmt.Sprintf(`  <rect class="timeline-event-card" x="%s" y="%s" width="%s" height="%s" rx="6" fill="#28262E" stroke="%s" stroke-opacity="0.4"/>
`, n(r.Left), n(r.Top), n(r.Width()), n(r.Height()), escapeXML(c.Color)))
	svg.WriteString(fmt.Sprintf(`  <rect x="%s" y="%s" width="3" height="%s" fill="%s"/>
`, n(r.Left), n(r.Top), n(r.Height()), escapeXML(c.Color)))

	// Rough glyph budget for 14px text.
	chars := int((r.Width() - 32) / 8)
	x := r.Left + 16
	svg.WriteString(fmt.Sprintf(`  <text x="%s" y="%s" font-family="sans-serif" font-size="14" font-weight="bold" fill="%s">%s</text>
`, n(x), n(r.Top+28), opts.TextColor, escapeXML(truncate(c.Event.Title, chars))))
	svg.WriteString(fmt.Sprintf(`  <text x="%s" y="%s" font-family="sans-serif" font-size="12" fill="%s" opacity="0.7">%s</text>
`, n(x), n(r.Top+48), opts.TextColor, escapeXML(c.Date)))

	badge := r.Top + 74
	svg.WriteString(fmt.Sprintf(`  <circle cx="%s" cy="%s" r="11" fill="%s"/>
  <text x="%s" y="%s" text-anchor="middle" font-family="sans-serif" font-size="10" font-weight="bold" fill="#FFFFFF">%s</text>
`, n(x+11), n(badge), escapeXML(c.Color), n(x+11), n(badge+3.5), escapeXML(c.Initials)))
	svg.WriteString(fmt.Sprintf(`  <text x="%s" y="%s" font-family="sans-serif" font-size="12" fill="%s">%s</text>
`, n(x+30), n(badge+4), opts.TextColor, escapeXML(truncate(c.Event.Author, chars-4))))
	svg.WriteString(fmt.Sprintf(`  <text x="%s" y="%s" font-family="sans-serif" font-size="12" fill="%s" opacity="0.8">%s</text>
`, n(x), n(r.Top+106), opts.TextColor, escapeXML(truncate(c.Event.Description, chars+6))))
	if c.BranchLabel != "" {
		svg.WriteString(fmt.Sprintf(`  <text class="event-branch" x="%s" y="%s" font-family="monospace" font-size="11" fill="%s">%s</text>
`, n(x), n(r.Top+132), escapeXML(c.Color), escapeXML(truncate(c.BranchLabel, chars))))
	}
	svg.WriteString("</g>\n")
}

func drawMarker(svg *strings.Builder, c Card, r geom.Rect) {
	n := geom.FormatNumber
	center := r.Center()
	radius := r.Width() / 2
	switch c.Event.Type {
	case "merge":
		half := radius
		svg.WriteString(fmt.Sprintf(`<rect class="event-type-indicator merge" x="%s" y="%s" width="%s" height="%s" fill="%s" transform="rotate(45 %s %s)"/>
`, n(center.X-half), n(center.Y-half), n(2*half), n(2*half), escapeXML(c.Color), n(center.X), n(center.Y)))
	case "release":
		svg.WriteString(fmt.Sprintf(`<circle class="event-type-indicator release" cx="%s" cy="%s" r="%s" fill="%s" stroke="#FFFFFF" stroke-width="2"/>
`, n(center.X), n(center.Y), n(radius), escapeXML(c.Color)))
	default:
		svg.WriteString(fmt.Sprintf(`<circle class="event-type-indicator %s" cx="%s" cy="%s" r="%s" fill="%s"/>
`, escapeXML(c.Event.Type), n(center.X), n(center.Y), n(radius), escapeXML(c.Color)))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

// escapeXML escapes special XML characters in a string to ensure valid SVG output.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
