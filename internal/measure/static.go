package measure

import (
	"gitline/internal/geom"
	"gitline/internal/layout"
)

// StaticOptions describes the synthetic timeline layout: a centre column with
// cards alternating left and right of it, one row per event.
type StaticOptions struct {
	// Width of the drawing surface; the centre column sits at Width/2.
	Width float64 `yaml:"width" json:"width"`
	// MinHeight pads the frame when the rows are shorter than the viewport.
	MinHeight float64 `yaml:"min_height" json:"min_height"`

	CardHeight   float64 `yaml:"card_height" json:"card_height"`
	MinCardWidth float64 `yaml:"min_card_width" json:"min_card_width"`
	MaxCardWidth float64 `yaml:"max_card_width" json:"max_card_width"`
	// CenterGap is the distance between the centre column and a card's inner edge.
	CenterGap  float64 `yaml:"center_gap" json:"center_gap"`
	Margin     float64 `yaml:"margin" json:"margin"`
	RowGap     float64 `yaml:"row_gap" json:"row_gap"`
	MarkerSize float64 `yaml:"marker_size" json:"marker_size"`
	PaddingTop float64 `yaml:"padding_top" json:"padding_top"`
}

// DefaultStaticOptions mirrors the proportions of the web page.
func DefaultStaticOptions() StaticOptions {
	return StaticOptions{
		Width:        1200,
		CardHeight:   150,
		MinCardWidth: 160,
		MaxCardWidth: 480,
		CenterGap:    48,
		Margin:       24,
		RowGap:       40,
		MarkerSize:   16,
		PaddingTop:   40,
	}
}

func (o StaticOptions) normalized() StaticOptions {
	d := DefaultStaticOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.CardHeight <= 0 {
		o.CardHeight = d.CardHeight
	}
	if o.MinCardWidth <= 0 {
		o.MinCardWidth = d.MinCardWidth
	}
	if o.MaxCardWidth < o.MinCardWidth {
		o.MaxCardWidth = d.MaxCardWidth
		if o.MaxCardWidth < o.MinCardWidth {
			o.MaxCardWidth = o.MinCardWidth
		}
	}
	if o.CenterGap <= 0 {
		o.CenterGap = d.CenterGap
	}
	if o.Margin <= 0 {
		o.Margin = d.Margin
	}
	if o.RowGap <= 0 {
		o.RowGap = d.RowGap
	}
	if o.MarkerSize <= 0 {
		o.MarkerSize = d.MarkerSize
	}
	if o.PaddingTop <= 0 {
		o.PaddingTop = d.PaddingTop
	}
	return o
}

// Static lays out cards deterministically and serves the result as geometry.
// Resize recomputes every rectangle, like a browser reflow would.
type Static struct {
	opts  StaticOptions
	cards []layout.RenderedCard
	snap  *Snapshot
}

// NewStatic lays out the given cards.
func NewStatic(cards []layout.RenderedCard, opts StaticOptions) *Static {
	s := &Static{opts: opts.normalized(), cards: cards}
	s.reflow()
	return s
}

// Options returns the effective options.
func (s *Static) Options() StaticOptions { return s.opts }

// Resize changes the surface size and reflows all cards.
func (s *Static) Resize(size geom.Size) {
	if size.Width > 0 {
		s.opts.Width = size.Width
	}
	s.opts.MinHeight = size.Height
	s.reflow()
}

// Snapshot exposes the current measurements.
func (s *Static) Snapshot() *Snapshot { return s.snap }

// CardWidth is the width every card gets at the current surface width.
func (s *Static) CardWidth() float64 {
	w := s.opts.Width/2 - s.opts.CenterGap - s.opts.Margin
	if w < s.opts.MinCardWidth {
		w = s.opts.MinCardWidth
	}
	if w > s.opts.MaxCardWidth {
		w = s.opts.MaxCardWidth
	}
	return w
}

func (s *Static) reflow() {
	o := s.opts
	center := o.Width / 2
	cw := s.CardWidth()
	pitch := o.CardHeight + o.RowGap

	height := o.PaddingTop * 2
	if n := len(s.cards); n > 0 {
		height += float64(n)*pitch - o.RowGap
	}
	if height < o.MinHeight {
		height = o.MinHeight
	}

	snap := NewSnapshot(geom.RectXYWH(0, 0, o.Width, height))
	snap.Viewport = geom.Size{Width: o.Width, Height: height}
	for _, c := range s.cards {
		top := o.PaddingTop + float64(c.Index)*pitch
		var card geom.Rect
		if c.Lane == geom.LaneLeft {
			card = geom.RectXYWH(center-o.CenterGap-cw, top, cw, o.CardHeight)
		} else {
			card = geom.RectXYWH(center+o.CenterGap, top, cw, o.CardHeight)
		}
		half := o.MarkerSize / 2
		marker := geom.RectXYWH(center-half, top+o.CardHeight/2-half, o.MarkerSize, o.MarkerSize)
		snap.Set(c.EventID, card, marker)
	}
	s.snap = snap
}

func (s *Static) Frame() (geom.Rect, bool)           { return s.snap.Frame() }
func (s *Static) Card(id string) (geom.Rect, bool)   { return s.snap.Card(id) }
func (s *Static) Marker(id string) (geom.Rect, bool) { return s.snap.Marker(id) }
