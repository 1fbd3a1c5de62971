package measure

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"gitline/internal/geom"
	"gitline/internal/layout"
	"gitline/internal/model"
)

func sampleEvents() []model.Event {
	branches := []string{"core", "gnu", "core", "linux", "gnu", "core"}
	events := make([]model.Event, len(branches))
	for i, b := range branches {
		events[i] = model.Event{
			ID:     fmt.Sprintf("ev-%d", i),
			Branch: b,
			Date:   time.Date(1983+i, time.September, 27, 0, 0, 0, 0, time.UTC),
		}
	}
	return events
}

func TestStaticLanes(t *testing.T) {
	cards := layout.CardsFor(sampleEvents())
	s := NewStatic(cards, StaticOptions{Width: 800})
	center := 400.0

	for _, c := range cards {
		card, ok := s.Card(c.EventID)
		if !ok {
			t.Fatalf("missing card %s", c.EventID)
		}
		marker, _ := s.Marker(c.EventID)
		if marker.Center().X != center {
			t.Errorf("%s marker x = %v, want %v", c.EventID, marker.Center().X, center)
		}
		if c.Lane == geom.LaneLeft && card.Right > center {
			t.Errorf("%s left-lane card crosses centre: %+v", c.EventID, card)
		}
		if c.Lane == geom.LaneRight && card.Left < center {
			t.Errorf("%s right-lane card crosses centre: %+v", c.EventID, card)
		}
	}
}

func TestStaticResizeRecomputesSegments(t *testing.T) {
	events := sampleEvents()
	cards := layout.CardsFor(events)
	in := layout.Input{Events: events, Cards: cards, Viewport: geom.Size{Width: 800, Height: 600}}

	static := NewStatic(cards, StaticOptions{Width: 800, MinHeight: 600})
	engine := layout.New(static, layout.Options{})
	engine.Attach(layout.NewSurface())

	before := engine.Layout(in)
	if len(before) == 0 {
		t.Fatal("expected segments before resize")
	}
	if got := engine.Surface().Size().Width; got != 800 {
		t.Fatalf("surface width = %v, want 800", got)
	}

	static.Resize(geom.Size{Width: 1200, Height: 600})
	in.Viewport = geom.Size{Width: 1200, Height: 600}
	after := engine.Layout(in)

	if len(after) != len(before) {
		t.Fatalf("segment count changed: %d -> %d", len(before), len(after))
	}
	if got := engine.Surface().Size().Width; got != 1200 {
		t.Errorf("surface width = %v, want 1200", got)
	}

	fresh := layout.New(NewStatic(cards, StaticOptions{Width: 1200, MinHeight: 600}), layout.Options{})
	fresh.Attach(nil)
	if want := fresh.Layout(in); !reflect.DeepEqual(after, want) {
		t.Errorf("resized pass differs from a fresh pass at the new size")
	}

	for i := range after {
		if after[i].Path.Start == before[i].Path.Start && after[i].Path.End == before[i].Path.End {
			t.Errorf("segment %d still uses pre-resize coordinates: %s", i, after[i].D)
		}
		if after[i].Kind == layout.KindBridge {
			ratio := after[i].Path.Start.X / before[i].Path.Start.X
			if math.Abs(ratio-1.5) > 1e-9 {
				t.Errorf("bridge %d centre x scaled by %v, want 1.5", i, ratio)
			}
		}
	}
}

func TestStaticMinHeight(t *testing.T) {
	s := NewStatic(nil, StaticOptions{Width: 800, MinHeight: 600})
	frame, ok := s.Frame()
	if !ok {
		t.Fatal("expected frame")
	}
	if frame.Size() != (geom.Size{Width: 800, Height: 600}) {
		t.Errorf("frame size = %+v", frame.Size())
	}
}

func TestDecodeSnapshot(t *testing.T) {
	body := `{
		"frame": {"left": 0, "top": 100, "right": 800, "bottom": 700},
		"viewport": {"width": 800, "height": 600},
		"elements": {
			"a": {"card": {"left": 10, "top": 120, "right": 300, "bottom": 200},
			      "marker": {"left": 392, "top": 150, "right": 408, "bottom": 166}},
			"broken": {"card": {"left": 10, "top": 120, "right": 0, "bottom": 200},
			           "marker": {"left": 392, "top": 150, "right": 408, "bottom": 166}}
		}
	}`
	s, err := DecodeSnapshot(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if _, ok := s.Card("a"); !ok {
		t.Error("expected card a")
	}
	if _, ok := s.Card("broken"); ok {
		t.Error("inverted card rect should be dropped")
	}
	if s.Viewport.Width != 800 {
		t.Errorf("viewport = %+v", s.Viewport)
	}

	if _, err := DecodeSnapshot(strings.NewReader(`{"frame": {"left": 5, "right": 1}}`)); err == nil {
		t.Error("expected error for invalid frame")
	}
	if _, err := DecodeSnapshot(strings.NewReader(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestNilSnapshot(t *testing.T) {
	var s *Snapshot
	if _, ok := s.Frame(); ok {
		t.Error("nil snapshot must report no frame")
	}
	if _, ok := s.Card("a"); ok {
		t.Error("nil snapshot must report no card")
	}
}
