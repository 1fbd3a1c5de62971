// Package animate builds the draw plan for the timeline: which element
// animates from which values, for how long and when. The page plays the plan
// back; the SVG renderer turns the branch part into SMIL.
package animate

import (
	"fmt"
	"strings"

	"gitline/internal/layout"
	"gitline/internal/model"
)

// Easing names as understood by the page's tween library.
const (
	EasePower2InOut = "power2.inOut"
	EasePower2Out   = "power2.out"
	EasePower3Out   = "power3.out"
	EaseBackOut     = "back.out(1.7)"
)

// Props maps an animated property to its value.
type Props map[string]float64

// Trigger ties a tween to the scroll position of an element.
type Trigger struct {
	Target        string  `json:"trigger"`
	Start         string  `json:"start"`
	End           string  `json:"end,omitempty"`
	ToggleActions string  `json:"toggleActions,omitempty"`
	Scrub         float64 `json:"scrub,omitempty"`
}

// Tween is one property animation of the elements matched by Target.
type Tween struct {
	Target   string   `json:"target"`
	From     Props    `json:"from,omitempty"`
	To       Props    `json:"to"`
	Duration float64  `json:"duration"`
	Delay    float64  `json:"delay,omitempty"`
	Stagger  float64  `json:"stagger,omitempty"`
	Ease     string   `json:"ease"`
	Scroll   *Trigger `json:"scrollTrigger,omitempty"`
}

// ScrollTrigger binds tweens to scroll positions. Bind returns nil when the
// element should play on load instead.
type ScrollTrigger interface {
	Bind(target, start, end string) *Trigger
}

// ViewportTrigger plays when the element enters the viewport and reverses
// when it leaves.
type ViewportTrigger struct{}

func (ViewportTrigger) Bind(target, start, end string) *Trigger {
	return &Trigger{
		Target:        target,
		Start:         start,
		End:           end,
		ToggleActions: "play none none reverse",
	}
}

// Config configures a Driver. A nil Scroll disables scroll-linked playback:
// tweens are staggered by index instead.
type Config struct {
	Scroll ScrollTrigger

	BranchDuration float64 // seconds
	Stagger        float64 // seconds between consecutive items
}

func (c Config) withDefaults() Config {
	if c.BranchDuration <= 0 {
		c.BranchDuration = 1.5
	}
	if c.Stagger <= 0 {
		c.Stagger = 0.1
	}
	return c
}

// Plan is the full animation plan of one timeline view.
type Plan struct {
	Header   Tween   `json:"header"`
	MainLine Tween   `json:"mainLine"`
	Events   []Tween `json:"events"`
	Branches []Tween `json:"branches"`
}

// Driver builds plans. It keeps no state between calls.
type Driver struct {
	cfg Config
}

// New returns a driver for cfg.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg.withDefaults()}
}

// Scrolling reports whether tweens are scroll-linked.
func (d *Driver) Scrolling() bool { return d.cfg.Scroll != nil }

func (d *Driver) bind(target, start, end string) *Trigger {
	if d.cfg.Scroll == nil {
		return nil
	}
	return d.cfg.Scroll.Bind(target, start, end)
}

// SegmentSelector addresses the drawn path of segment i.
func SegmentSelector(i int) string {
	return fmt.Sprintf(`.timeline-branch-line[data-segment="%d"]`, i)
}

// EventSelector addresses the card item of an event.
func EventSelector(id string) string {
	return `.timeline-event-item[data-event-id=` + cssString(id) + `]`
}

// cssString quotes s as a CSS string token: quote and backslash are
// backslash-escaped, control characters become hex escapes and NUL becomes
// U+FFFD, as in CSS.escape.
func cssString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\%x `, r)
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Branches draws every segment from a fully offset dash to a solid stroke,
// staggered by segment order.
func (d *Driver) Branches(segments []layout.Segment) []Tween {
	out := make([]Tween, 0, len(segments))
	for i, seg := range segments {
		target := SegmentSelector(i)
		out = append(out, Tween{
			Target:   target,
			From:     Props{"strokeDashoffset": seg.Length},
			To:       Props{"strokeDashoffset": 0},
			Duration: d.cfg.BranchDuration,
			Delay:    float64(i) * d.cfg.Stagger,
			Ease:     EasePower2InOut,
			Scroll:   d.bind(target, "top 90%", ""),
		})
	}
	return out
}

// Events plans the entrance of each card, its type indicator and its tags.
// Without scroll triggers the entrance is staggered by the event's index.
func (d *Driver) Events(events []model.Event) []Tween {
	out := make([]Tween, 0, len(events)*3)
	for i, ev := range events {
		item := EventSelector(ev.ID)
		stagger := float64(i) * d.cfg.Stagger
		if d.Scrolling() {
			stagger = 0
		}

		out = append(out, Tween{
			Target:   item + " .timeline-event-card",
			From:     Props{"opacity": 0, "y": 50, "scale": 0.95},
			To:       Props{"opacity": 1, "y": 0, "scale": 1},
			Duration: 0.8,
			Delay:    stagger,
			Ease:     EasePower3Out,
			Scroll:   d.bind(item, "top 80%", "top 50%"),
		})
		out = append(out, Tween{
			Target:   item + " .event-type-indicator",
			From:     Props{"scale": 0, "opacity": 0},
			To:       Props{"scale": 1, "opacity": 1},
			Duration: 0.5,
			Delay:    stagger + 0.2,
			Ease:     EaseBackOut,
			Scroll:   d.bind(item, "top 80%", ""),
		})
		if len(ev.Tags) > 0 {
			out = append(out, Tween{
				Target:   item + " .event-tag",
				From:     Props{"opacity": 0, "x": -20},
				To:       Props{"opacity": 1, "x": 0},
				Duration: 0.4,
				Delay:    stagger + 0.4,
				Stagger:  0.1,
				Ease:     EasePower2Out,
				Scroll:   d.bind(item, "top 75%", ""),
			})
		}
	}
	return out
}

// Plan assembles the header, centre line, card and branch tweens.
func (d *Driver) Plan(events []model.Event, segments []layout.Segment) Plan {
	main := Tween{
		Target:   ".timeline",
		From:     Props{"--timeline-progress": 0},
		To:       Props{"--timeline-progress": 100},
		Duration: 2,
		Ease:     EasePower2InOut,
	}
	if t := d.bind(".timeline", "top center", "bottom center"); t != nil {
		t.ToggleActions = ""
		t.Scrub = 1
		main.Scroll = t
	}
	return Plan{
		Header: Tween{
			Target:   ".timeline-header",
			From:     Props{"opacity": 0, "y": -30},
			To:       Props{"opacity": 1, "y": 0},
			Duration: 1,
			Ease:     EasePower3Out,
		},
		MainLine: main,
		Events:   d.Events(events),
		Branches: d.Branches(segments),
	}
}
