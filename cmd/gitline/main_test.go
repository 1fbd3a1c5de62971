package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"gitline/internal/config"
	"gitline/internal/model"
)

func sampleCatalog() *model.Catalog {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	return &model.Catalog{
		Events: []model.Event{
			{ID: "gnu", Date: day(1983, 9, 27), Branch: "fsf"},
			{ID: "linux", Date: day(1991, 9, 17), Branch: "kernel"},
			{ID: "gnome", Date: day(1997, 8, 15), Branch: "fsf"},
			{ID: "osi", Date: day(1998, 2, 3)},
			{ID: "git", Date: day(2005, 4, 7), Branch: "kernel"},
			{ID: "gpl3", Date: day(2007, 6, 29), Branch: "fsf"},
		},
		Branches: map[string]model.Branch{
			"fsf": {Key: "fsf", Name: "Free Software", Color: "#A8201A"},
		},
	}
}

func TestBranchStats(t *testing.T) {
	stats := branchStats(sampleCatalog(), "en")
	if len(stats) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	tests := []struct {
		key, label, color string
		events, conns     int
		first, last       string
	}{
		{"fsf", "Free Software", "#A8201A", 3, 2, "Sep 27, 1983", "Jun 29, 2007"},
		{"kernel", "kernel", model.DefaultColor, 2, 1, "Sep 17, 1991", "Apr 7, 2005"},
	}
	for i, tt := range tests {
		st := stats[i]
		if st.Key != tt.key || st.Label != tt.label || st.Color != tt.color {
			t.Errorf("stats[%d] = %+v", i, st)
		}
		if st.Events != tt.events || st.Connectors != tt.conns {
			t.Errorf("%s: events=%d connectors=%d, want %d/%d", tt.key, st.Events, st.Connectors, tt.events, tt.conns)
		}
		if st.First != tt.first || st.Last != tt.last {
			t.Errorf("%s: span %q..%q, want %q..%q", tt.key, st.First, st.Last, tt.first, tt.last)
		}
	}
}

func TestPrintBranches(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	var buf bytes.Buffer
	if err := printBranches(&buf, sampleCatalog(), "en"); err != nil {
		t.Fatalf("printBranches: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"6 events, 2 branches", "Free Software", "kernel", "1 events without branch"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCaptureOptions(t *testing.T) {
	tests := []struct {
		listen, url, want string
	}{
		{"127.0.0.1:8080", "", "http://127.0.0.1:8080/"},
		{":9000", "", "http://127.0.0.1:9000/"},
		{":9000", "https://timeline.example.org/", "https://timeline.example.org/"},
	}
	for _, tt := range tests {
		cfg := config.DefaultConfig()
		cfg.Listen = tt.listen
		cfg.Capture.URL = tt.url
		opts := captureOptions(cfg)
		if opts.URL != tt.want {
			t.Errorf("listen=%q url=%q: URL = %q, want %q", tt.listen, tt.url, opts.URL, tt.want)
		}
		if opts.Width != cfg.Capture.Width || opts.Timeout != cfg.CaptureTimeout() {
			t.Errorf("options = %+v", opts)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "render": false, "branches": false, "capture": false, "measure": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, ok := range want {
		if !ok {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as terminal")
	}
}
