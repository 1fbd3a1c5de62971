// Package catalog loads the timeline's event catalog: an ordered list of
// dated events plus branch metadata. Catalogs come from local files or
// remote URLs, as JSON, YAML, TOML or iCalendar.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	appLog "gitline/internal/log"
	"gitline/internal/model"
)

// ErrLoad marks every catalog loading failure. Host views check for it with
// errors.Is to switch to their fallback rendering.
var ErrLoad = errors.New("catalog: load failed")

// LoadError carries the failing source and the underlying cause.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("catalog: load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLoad) hold for any LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Format is a catalog encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatICS  Format = "ics"
)

// Source locates a catalog. Exactly one of Path and URL should be set; when
// both are, URL wins.
type Source struct {
	Path string
	URL  string
	// Format overrides detection from the file extension.
	Format Format
	// CacheDir stores remote bodies for conditional requests and offline
	// fallback.
	CacheDir string
}

// Name is a log-safe identifier for the source.
func (s Source) Name() string {
	if s.URL != "" {
		return redactURL(s.URL)
	}
	return s.Path
}

func (s Source) format() (Format, error) {
	if s.Format != "" {
		return s.Format, nil
	}
	name := s.Path
	if s.URL != "" {
		name = s.URL
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".ics", ".ical":
		return FormatICS, nil
	default:
		return "", fmt.Errorf("cannot detect catalog format of %q", name)
	}
}

// Options adjust how a loaded catalog is completed.
type Options struct {
	// Branches is merged over the branches found in the source; entries here
	// win. iCalendar sources rely on it for colours and labels.
	Branches map[string]model.Branch

	// RecurrenceStart/RecurrenceEnd bound RRULE expansion for iCalendar
	// sources. A zero end means "now".
	RecurrenceStart time.Time
	RecurrenceEnd   time.Time
	// MaxOccurrences caps expansion per recurring event.
	MaxOccurrences int
	// Location is used for floating iCalendar times and date-only values.
	Location *time.Location
}

// Load reads, decodes and validates a catalog. The returned events are
// sorted by date; events sharing a date keep their source order.
func Load(ctx context.Context, src Source, opts Options) (*model.Catalog, error) {
	cat, err := load(ctx, src, opts)
	if err != nil {
		appLog.Error("catalog load failed", err, "source", src.Name())
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	appLog.Info("catalog loaded",
		"source", src.Name(),
		"events", len(cat.Events),
		"branches", len(cat.Branches),
	)
	return cat, nil
}

func load(ctx context.Context, src Source, opts Options) (*model.Catalog, error) {
	if src.Path == "" && src.URL == "" {
		return nil, errors.New("no catalog path or URL configured")
	}
	format, err := src.format()
	if err != nil {
		return nil, err
	}

	var body []byte
	if src.URL != "" {
		res, err := NewFetcher(src.CacheDir).Fetch(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		body = res.Body
	} else {
		body, err = os.ReadFile(src.Path)
		if err != nil {
			return nil, err
		}
	}
	return Decode(body, format, opts)
}

// Decode builds a catalog from an in-memory body.
func Decode(body []byte, format Format, opts Options) (*model.Catalog, error) {
	if len(body) == 0 {
		return nil, errors.New("empty catalog body")
	}

	var (
		cat *model.Catalog
		err error
	)
	switch format {
	case FormatJSON, FormatYAML, FormatTOML:
		cat, err = decodeDocument(body, format, opts.Location)
	case FormatICS:
		cat, err = decodeICS(body, opts)
	default:
		err = fmt.Errorf("unsupported catalog format %q", format)
	}
	if err != nil {
		return nil, err
	}

	mergeBranches(cat, opts.Branches)
	if err := validate(cat); err != nil {
		return nil, err
	}
	sortEvents(cat.Events)
	return cat, nil
}

func mergeBranches(cat *model.Catalog, overrides map[string]model.Branch) {
	if cat.Branches == nil {
		cat.Branches = make(map[string]model.Branch)
	}
	for key, b := range overrides {
		base := cat.Branches[key]
		if b.Name != "" {
			base.Name = b.Name
		}
		if b.Color != "" {
			base.Color = b.Color
		}
		cat.Branches[key] = base
	}
	for key, b := range cat.Branches {
		b.Key = key
		cat.Branches[key] = b
	}
}

func validate(cat *model.Catalog) error {
	seen := make(map[string]bool, len(cat.Events))
	for i, ev := range cat.Events {
		if ev.ID == "" {
			return fmt.Errorf("event #%d has no id", i)
		}
		if seen[ev.ID] {
			return fmt.Errorf("duplicate event id %q", ev.ID)
		}
		seen[ev.ID] = true
		if ev.Date.IsZero() {
			return fmt.Errorf("event %q has no date", ev.ID)
		}
	}
	return nil
}

func sortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
}
