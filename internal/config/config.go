package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gitline/internal/catalog"
	"gitline/internal/layout"
	"gitline/internal/measure"
	"gitline/internal/model"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// ErrEmptyPath is returned by Load and Save when no config path is given.
var ErrEmptyPath = errors.New("config path is empty")

// BranchConfig overrides the label and colour of one branch.
type BranchConfig struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

// CatalogConfig locates the event catalog.
type CatalogConfig struct {
	// Path is a local catalog file (.json, .yaml, .toml or .ics).
	Path string `yaml:"path" json:"path"`
	// URL, when set, takes precedence over Path.
	URL string `yaml:"url" json:"url"`
	// Format overrides detection from the file extension.
	Format string `yaml:"format" json:"format"`
	// CacheDir keeps remote bodies for conditional requests.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Timezone is the IANA zone used for dates without an offset.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Branches is merged over the branches found in the catalog.
	Branches map[string]BranchConfig `yaml:"branches" json:"branches"`

	// RecurrenceFrom/RecurrenceUntil bound RRULE expansion of ICS catalogs
	// (YYYY-MM-DD). An empty until means "now".
	RecurrenceFrom  string `yaml:"recurrence_from" json:"recurrence_from"`
	RecurrenceUntil string `yaml:"recurrence_until" json:"recurrence_until"`
	MaxOccurrences  int    `yaml:"max_occurrences" json:"max_occurrences"`
}

// PageConfig holds the text of the timeline page.
type PageConfig struct {
	Title        string `yaml:"title" json:"title"`
	Subtitle     string `yaml:"subtitle" json:"subtitle"`
	ErrorMessage string `yaml:"error_message" json:"error_message"`
	// Lang is the html lang attribute and drives date formatting.
	Lang string `yaml:"lang" json:"lang"`
}

// LayoutConfig tunes the branch connectors and the server-side layout.
type LayoutConfig struct {
	// CurveThreshold is the horizontal offset (px) from which bridges curve.
	CurveThreshold float64 `yaml:"curve_threshold" json:"curve_threshold"`
	DefaultColor   string  `yaml:"default_color" json:"default_color"`
	StrokeWidth    float64 `yaml:"stroke_width" json:"stroke_width"`
	Opacity        float64 `yaml:"opacity" json:"opacity"`

	// ResizeDebounceMS is how long the page waits after the last window
	// resize before measuring and laying out again.
	ResizeDebounceMS int `yaml:"resize_debounce_ms" json:"resize_debounce_ms"`

	// Static is the synthetic layout used by /timeline.svg and `gitline render`.
	Static measure.StaticOptions `yaml:"static" json:"static"`
}

// AnimationConfig controls the draw plan sent to the page.
type AnimationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ScrollTrigger ties each branch tween to its scroll position instead of
	// a fixed stagger.
	ScrollTrigger bool `yaml:"scroll_trigger" json:"scroll_trigger"`
}

// CaptureConfig drives the headless browser.
type CaptureConfig struct {
	// URL is the page to capture; empty means the local server.
	URL            string `yaml:"url" json:"url"`
	Output         string `yaml:"output" json:"output"`
	Width          int    `yaml:"width" json:"width"`
	Height         int    `yaml:"height" json:"height"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	// OnRefresh captures a preview after every scheduled refresh.
	OnRefresh bool `yaml:"on_refresh" json:"on_refresh"`
}

// WatchConfig enables reload on local catalog changes.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	DebounceMS int  `yaml:"debounce_ms" json:"debounce_ms"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the page and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the timeline page and API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic catalog reloads.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Catalog   CatalogConfig   `yaml:"catalog" json:"catalog"`
	Page      PageConfig      `yaml:"page" json:"page"`
	Layout    LayoutConfig    `yaml:"layout" json:"layout"`
	Animation AnimationConfig `yaml:"animation" json:"animation"`
	Capture   CaptureConfig   `yaml:"capture" json:"capture"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		LogLevel:    "info",
		RefreshCron: "*/15 * * * *",
		Catalog: CatalogConfig{
			Path:           "data/timeline-events.json",
			CacheDir:       "./cache/catalog",
			Timezone:       "UTC",
			Branches:       map[string]BranchConfig{},
			MaxOccurrences: 500,
		},
		Page: PageConfig{
			Title:        "Histoire de l'Open Source",
			Subtitle:     "Une timeline interactive inspirée de GitLab",
			ErrorMessage: "Erreur lors du chargement de la timeline",
			Lang:         "fr",
		},
		Layout: LayoutConfig{
			CurveThreshold:   5,
			DefaultColor:     model.DefaultColor,
			StrokeWidth:      2,
			Opacity:          0.3,
			ResizeDebounceMS: 200,
			Static:           measure.DefaultStaticOptions(),
		},
		Animation: AnimationConfig{
			Enabled:       true,
			ScrollTrigger: true,
		},
		Capture: CaptureConfig{
			Output:         "./cache/preview.png",
			Width:          1200,
			Height:         900,
			TimeoutSeconds: 30,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMS: 200,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Listen == "" {
		c.Listen = d.Listen
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = d.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}

	if c.Catalog.Path == "" && c.Catalog.URL == "" {
		c.Catalog.Path = d.Catalog.Path
	}
	if c.Catalog.CacheDir == "" {
		c.Catalog.CacheDir = d.Catalog.CacheDir
	}
	if c.Catalog.Timezone == "" {
		c.Catalog.Timezone = d.Catalog.Timezone
	}
	if c.Catalog.Branches == nil {
		c.Catalog.Branches = map[string]BranchConfig{}
	}
	if c.Catalog.MaxOccurrences <= 0 {
		c.Catalog.MaxOccurrences = d.Catalog.MaxOccurrences
	}

	if c.Page.Title == "" {
		c.Page.Title = d.Page.Title
	}
	if c.Page.Subtitle == "" {
		c.Page.Subtitle = d.Page.Subtitle
	}
	if c.Page.ErrorMessage == "" {
		c.Page.ErrorMessage = d.Page.ErrorMessage
	}
	if c.Page.Lang == "" {
		c.Page.Lang = d.Page.Lang
	}

	if c.Layout.CurveThreshold <= 0 {
		c.Layout.CurveThreshold = d.Layout.CurveThreshold
	}
	if c.Layout.DefaultColor == "" {
		c.Layout.DefaultColor = d.Layout.DefaultColor
	}
	if c.Layout.StrokeWidth <= 0 {
		c.Layout.StrokeWidth = d.Layout.StrokeWidth
	}
	if c.Layout.Opacity <= 0 || c.Layout.Opacity > 1 {
		c.Layout.Opacity = d.Layout.Opacity
	}
	if c.Layout.ResizeDebounceMS <= 0 {
		c.Layout.ResizeDebounceMS = d.Layout.ResizeDebounceMS
	}
	// Partially set static options are completed by measure.NewStatic.
	if c.Layout.Static == (measure.StaticOptions{}) {
		c.Layout.Static = d.Layout.Static
	}

	if c.Capture.Output == "" {
		c.Capture.Output = d.Capture.Output
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = d.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = d.Capture.Height
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = d.Capture.TimeoutSeconds
	}

	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = d.Watch.DebounceMS
	}
}

// Location resolves Catalog.Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Catalog.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Catalog.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CatalogSource converts the catalog section for catalog.Load.
func (c *Config) CatalogSource() catalog.Source {
	return catalog.Source{
		Path:     c.Catalog.Path,
		URL:      c.Catalog.URL,
		Format:   catalog.Format(strings.ToLower(c.Catalog.Format)),
		CacheDir: c.Catalog.CacheDir,
	}
}

// CatalogOptions converts branch overrides and the recurrence window.
// Unparseable window bounds are reported rather than silently ignored.
func (c *Config) CatalogOptions() (catalog.Options, error) {
	loc := c.Location()
	opts := catalog.Options{
		MaxOccurrences: c.Catalog.MaxOccurrences,
		Location:       loc,
	}
	if len(c.Catalog.Branches) > 0 {
		opts.Branches = make(map[string]model.Branch, len(c.Catalog.Branches))
		for key, b := range c.Catalog.Branches {
			opts.Branches[key] = model.Branch{Key: key, Name: b.Name, Color: b.Color}
		}
	}
	if c.Catalog.RecurrenceFrom != "" {
		t, err := catalog.ParseDate(c.Catalog.RecurrenceFrom, loc)
		if err != nil {
			return opts, fmt.Errorf("config: recurrence_from: %w", err)
		}
		opts.RecurrenceStart = t
	}
	if c.Catalog.RecurrenceUntil != "" {
		t, err := catalog.ParseDate(c.Catalog.RecurrenceUntil, loc)
		if err != nil {
			return opts, fmt.Errorf("config: recurrence_until: %w", err)
		}
		opts.RecurrenceEnd = t
	}
	return opts, nil
}

// LayoutOptions converts the layout section for layout.New.
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{
		CurveThreshold: c.Layout.CurveThreshold,
		DefaultColor:   c.Layout.DefaultColor,
	}
}

// Debounce is the watch debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// CaptureTimeout is the capture timeout as a duration.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gitline-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
