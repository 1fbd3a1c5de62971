package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gitline/internal/model"
)

// document is the on-disk shape shared by the JSON, YAML and TOML formats:
//
//	{"events": [{"id": "...", "date": "1983-09-27", ...}],
//	 "branches": {"gnu": {"name": "GNU", "color": "#A8201A"}}}
type document struct {
	Events   []eventRecord           `json:"events" yaml:"events" toml:"events"`
	Branches map[string]branchRecord `json:"branches" yaml:"branches" toml:"branches"`
}

type eventRecord struct {
	ID          string   `json:"id" yaml:"id" toml:"id"`
	Title       string   `json:"title" yaml:"title" toml:"title"`
	Date        string   `json:"date" yaml:"date" toml:"date"`
	Author      string   `json:"author" yaml:"author" toml:"author"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Branch      string   `json:"branch" yaml:"branch" toml:"branch"`
	Type        string   `json:"type" yaml:"type" toml:"type"`
	Tags        []string `json:"tags" yaml:"tags" toml:"tags"`
	Color       string   `json:"color" yaml:"color" toml:"color"`
}

type branchRecord struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Color string `json:"color" yaml:"color" toml:"color"`
}

func decodeDocument(body []byte, format Format, loc *time.Location) (*model.Catalog, error) {
	var doc document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(body, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(body, &doc)
	case FormatTOML:
		err = toml.Unmarshal(body, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	if loc == nil {
		loc = time.UTC
	}
	cat := &model.Catalog{
		Events:   make([]model.Event, 0, len(doc.Events)),
		Branches: make(map[string]model.Branch, len(doc.Branches)),
	}
	for key, b := range doc.Branches {
		cat.Branches[key] = model.Branch{Key: key, Name: b.Name, Color: b.Color}
	}
	for _, rec := range doc.Events {
		date, err := ParseDate(rec.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", rec.ID, err)
		}
		typ := rec.Type
		if typ == "" {
			typ = "commit"
		}
		cat.Events = append(cat.Events, model.Event{
			ID:          rec.ID,
			Title:       rec.Title,
			Date:        date,
			Author:      rec.Author,
			Description: rec.Description,
			Branch:      rec.Branch,
			Type:        typ,
			Tags:        rec.Tags,
			Color:       rec.Color,
		})
	}
	return cat, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDate accepts full timestamps down to a bare year. Values without a
// zone are read in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
