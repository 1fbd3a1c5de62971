package model

import "time"

// DefaultColor is the accent used when neither branch nor event carry a colour.
const DefaultColor = "#FC6D26"

// Event is a single dated, attributed entry of the timeline catalog.
// Events are immutable once the catalog has been loaded.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Author      string    `json:"author"`
	Description string    `json:"description"`

	// Branch is the key into Catalog.Branches; empty means the event
	// belongs to no branch and is never connected.
	Branch string `json:"branch,omitempty"`

	// Type drives the marker style (commit, merge, release, ...).
	Type string   `json:"type"`
	Tags []string `json:"tags,omitempty"`

	// Color is an optional per-event fallback for the card accent.
	Color string `json:"color,omitempty"`
}

// Branch is a named thematic lane of related events.
type Branch struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Label returns the display label, falling back to the key.
func (b Branch) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return b.Key
}

// Catalog is the loaded, date-sorted collection of events plus branch metadata.
type Catalog struct {
	Events   []Event           `json:"events"`
	Branches map[string]Branch `json:"branches"`
}

// BranchColor resolves the stroke colour for a branch key.
func (c *Catalog) BranchColor(key string) string {
	if c != nil {
		if b, ok := c.Branches[key]; ok && b.Color != "" {
			return b.Color
		}
	}
	return DefaultColor
}

// CardColor resolves the accent for an event card: branch colour, then the
// event's own colour, then DefaultColor.
func (c *Catalog) CardColor(ev Event) string {
	if c != nil {
		if b, ok := c.Branches[ev.Branch]; ok && b.Color != "" {
			return b.Color
		}
	}
	if ev.Color != "" {
		return ev.Color
	}
	return DefaultColor
}

// BranchOrder lists branch keys in order of first appearance among events.
func (c *Catalog) BranchOrder() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(c.Branches))
	for _, ev := range c.Events {
		if ev.Branch == "" || seen[ev.Branch] {
			continue
		}
		seen[ev.Branch] = true
		out = append(out, ev.Branch)
	}
	return out
}
