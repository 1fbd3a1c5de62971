// Package measure provides geometry for the layout engine without a live
// page: recorded snapshots (what the browser reports) and a deterministic
// synthetic layout used for server-side rendering.
package measure

import (
	"encoding/json"
	"fmt"
	"io"

	"gitline/internal/geom"
)

// Element holds the measured rectangles of one rendered card.
type Element struct {
	Card   geom.Rect `json:"card"`
	Marker geom.Rect `json:"marker"`
}

// Snapshot is a frozen set of measurements, as produced by getBoundingClientRect
// calls in the page. It implements layout.Geometry.
type Snapshot struct {
	FrameRect geom.Rect          `json:"frame"`
	Viewport  geom.Size          `json:"viewport"`
	Elements  map[string]Element `json:"elements"`
}

// NewSnapshot returns an empty snapshot for the given frame.
func NewSnapshot(frame geom.Rect) *Snapshot {
	return &Snapshot{FrameRect: frame, Elements: make(map[string]Element)}
}

// Set records the rectangles for one event.
func (s *Snapshot) Set(eventID string, card, marker geom.Rect) {
	if s.Elements == nil {
		s.Elements = make(map[string]Element)
	}
	s.Elements[eventID] = Element{Card: card, Marker: marker}
}

func (s *Snapshot) Frame() (geom.Rect, bool) {
	if s == nil {
		return geom.Rect{}, false
	}
	return s.FrameRect, s.FrameRect.Valid()
}

func (s *Snapshot) Card(eventID string) (geom.Rect, bool) {
	if s == nil {
		return geom.Rect{}, false
	}
	el, ok := s.Elements[eventID]
	return el.Card, ok
}

func (s *Snapshot) Marker(eventID string) (geom.Rect, bool) {
	if s == nil {
		return geom.Rect{}, false
	}
	el, ok := s.Elements[eventID]
	return el.Marker, ok
}

// DecodeSnapshot reads a JSON snapshot and validates its rectangles.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("measure: decode snapshot: %w", err)
	}
	if !s.FrameRect.Valid() {
		return nil, fmt.Errorf("measure: invalid frame rect %+v", s.FrameRect)
	}
	for id, el := range s.Elements {
		if !el.Card.Valid() || !el.Marker.Valid() {
			// Half-rendered cards are dropped rather than failing the pass.
			delete(s.Elements, id)
		}
	}
	return &s, nil
}
