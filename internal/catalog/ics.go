package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "gitline/internal/log"
	"gitline/internal/model"
)

const (
	defaultMaxOccurrences = 500

	propAuthor = ical.ComponentProperty("X-GITLINE-AUTHOR")
	propType   = ical.ComponentProperty("X-GITLINE-TYPE")
	propColor  = ical.ComponentProperty("X-GITLINE-COLOR")
)

// vevent is the subset of a VEVENT the catalog cares about.
type vevent struct {
	uid         string
	summary     string
	description string
	author      string
	typ         string
	color       string
	categories  []string
	start       time.Time
	rawRRule    string
	exDates     []time.Time
}

// decodeICS maps VEVENTs to events: CATEGORIES[0] is the branch, the rest
// become tags. Recurring events are expanded inside the configured window.
func decodeICS(body []byte, opts Options) (*model.Catalog, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	cat := &model.Catalog{Branches: make(map[string]model.Branch)}
	for _, comp := range cal.Events() {
		ve, err := parseVEvent(comp, loc)
		if err != nil {
			appLog.Error("ics vevent skipped", err)
			continue
		}
		cat.Events = append(cat.Events, expandVEvent(ve, opts)...)
	}

	for _, ev := range cat.Events {
		if ev.Branch == "" {
			continue
		}
		if _, ok := cat.Branches[ev.Branch]; !ok {
			cat.Branches[ev.Branch] = model.Branch{Key: ev.Branch}
		}
	}
	return cat, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.uid = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.description = p.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 {
			out.author = cn[0]
		} else {
			out.author = strings.TrimPrefix(p.Value, "mailto:")
		}
	}
	if p := ve.GetProperty(propAuthor); p != nil && p.Value != "" {
		out.author = p.Value
	}
	if p := ve.GetProperty(propType); p != nil {
		out.typ = strings.ToLower(strings.TrimSpace(p.Value))
	}
	if out.typ == "" {
		out.typ = "commit"
	}
	if p := ve.GetProperty(propColor); p != nil {
		out.color = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.categories = append(out.categories, c)
			}
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		// Date-only values (VALUE=DATE) are read by hand.
		dt := ve.GetProperty(ical.ComponentPropertyDtStart)
		if dt == nil {
			return out, fmt.Errorf("%s: missing DTSTART", out.uid)
		}
		start, err = parseICSTime(dt.Value, loc)
		if err != nil {
			return out, fmt.Errorf("%s: %w", out.uid, err)
		}
	}
	out.start = start

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rawRRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}
	return out, nil
}

func (v vevent) event(id string, date time.Time) model.Event {
	ev := model.Event{
		ID:          id,
		Title:       v.summary,
		Date:        date,
		Author:      v.author,
		Description: v.description,
		Type:        v.typ,
		Color:       v.color,
	}
	if len(v.categories) > 0 {
		ev.Branch = v.categories[0]
		if len(v.categories) > 1 {
			ev.Tags = append([]string(nil), v.categories[1:]...)
		}
	}
	return ev
}

// expandVEvent returns the single event, or one event per RRULE occurrence
// with ids of the form UID@YYYY-MM-DD.
func expandVEvent(v vevent, opts Options) []model.Event {
	if v.rawRRule == "" {
		return []model.Event{v.event(v.uid, v.start)}
	}

	r, err := rrule.StrToRRule(v.rawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed; keeping first occurrence", err, "uid", v.uid, "rrule", v.rawRRule)
		return []model.Event{v.event(v.uid, v.start)}
	}
	r.DTStart(v.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range v.exDates {
		set.ExDate(ex.In(v.start.Location()))
	}

	from := v.start
	if !opts.RecurrenceStart.IsZero() && opts.RecurrenceStart.After(from) {
		from = opts.RecurrenceStart
	}
	until := opts.RecurrenceEnd
	if until.IsZero() {
		until = time.Now()
	}
	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = defaultMaxOccurrences
	}

	times := set.Between(from.In(v.start.Location()), until.In(v.start.Location()), true)
	if len(times) > limit {
		appLog.Warn("ics occurrences truncated", "uid", v.uid, "cap", limit, "found", len(times))
		times = times[:limit]
	}

	out := make([]model.Event, 0, len(times))
	for _, t := range times {
		out = append(out, v.event(v.uid+"@"+t.Format("2006-01-02"), t))
	}
	return out
}

// parseICSTime parses DATE and DATE-TIME values (UTC or floating).
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
