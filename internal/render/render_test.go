package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gitline/internal/geom"
	"gitline/internal/layout"
	"gitline/internal/measure"
	"gitline/internal/model"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func testCatalog() *model.Catalog {
	return &model.Catalog{
		Events: []model.Event{
			{ID: "gnu", Title: "GNU <announced>", Date: day(1983, 9, 27), Author: "richard m. stallman", Branch: "gnu", Type: "commit", Tags: []string{"usenet"}},
			{ID: "linux", Title: "Linux 0.01", Date: day(1991, 9, 17), Author: "Linus Torvalds", Branch: "linux", Type: "release"},
			{ID: "gpl3", Title: "GPLv3", Date: day(2007, 6, 29), Author: "FSF", Branch: "gnu", Type: "merge"},
			{ID: "loose", Title: "No branch", Date: day(2010, 1, 5), Author: "", Color: "#123456"},
		},
		Branches: map[string]model.Branch{
			"gnu":   {Key: "gnu", Name: "GNU", Color: "#A8201A"},
			"linux": {Key: "linux"},
		},
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		t    time.Time
		lang string
		want string
	}{
		{day(2024, 1, 5), "fr", "5 janv. 2024"},
		{day(1991, 8, 25), "fr-FR", "25 août 1991"},
		{day(2007, 6, 29), "fr", "29 juin 2007"},
		{day(2024, 1, 5), "en", "Jan 5, 2024"},
		{time.Time{}, "fr", ""},
	}
	for _, tt := range tests {
		if got := FormatDate(tt.t, tt.lang); got != tt.want {
			t.Errorf("FormatDate(%v, %q) = %q, want %q", tt.t, tt.lang, got, tt.want)
		}
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"Linus Torvalds":      "LT",
		"richard m. stallman": "RM",
		"FSF":                 "F",
		"  Éric   Lévénez ":   "ÉL",
		"":                    "",
	}
	for in, want := range tests {
		if got := Initials(in); got != want {
			t.Errorf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCards(t *testing.T) {
	cards := Cards(testCatalog(), "fr")
	if len(cards) != 4 {
		t.Fatalf("got %d cards", len(cards))
	}
	wantLanes := []geom.Lane{geom.LaneLeft, geom.LaneRight, geom.LaneLeft, geom.LaneRight}
	for i, c := range cards {
		if c.Lane != wantLanes[i] || c.Index != i {
			t.Errorf("card %d lane=%v index=%d", i, c.Lane, c.Index)
		}
	}
	if cards[0].Color != "#A8201A" || cards[0].BranchLabel != "GNU" {
		t.Errorf("gnu card = %+v", cards[0])
	}
	if cards[1].Color != model.DefaultColor || cards[1].BranchLabel != "linux" {
		t.Errorf("linux card = %+v", cards[1])
	}
	if cards[3].Color != "#123456" || cards[3].BranchLabel != "" {
		t.Errorf("loose card = %+v", cards[3])
	}
	if Cards(nil, "fr") != nil {
		t.Error("nil catalog should give no cards")
	}
}

func TestPageWrite(t *testing.T) {
	p := NewPage(testCatalog(), "fr", "Histoire de l'Open Source", "Une timeline")
	p.StrokeWidth, p.Opacity = 2, 0.3
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`data-event-id="gnu"`,
		`data-lane="right"`,
		`GNU &lt;announced&gt;`,
		`27 sept. 1983`,
		`<span class="event-tag">usenet</span>`,
		`event-type-indicator release`,
		`svg class="timeline-branches"`,
		`data-stroke-width="2"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, "timeline-loading") {
		t.Error("loaded page shows the loading error")
	}
	if got := strings.Count(html, `class="event-branch"`); got != 3 {
		t.Errorf("branch labels = %d, want 3", got)
	}
}

func TestErrorPage(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorPage("fr", "T", "S", "Erreur lors du chargement de la timeline").Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, `class="timeline-loading"`) || !strings.Contains(html, "Erreur lors du chargement de la timeline") {
		t.Errorf("error page = %s", html)
	}
	if strings.Contains(html, "timeline-branches") {
		t.Error("error page should not contain a drawing surface")
	}
}

func TestTimelineSVG(t *testing.T) {
	var buf bytes.Buffer
	segs, err := Timeline(&buf, testCatalog(), measure.StaticOptions{Width: 1000}, layout.Options{}, SVGOptions{Lang: "fr"})
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("segments = %d, want 3 (one gnu pair)", len(segs))
	}
	svg := buf.String()
	if got := strings.Count(svg, `class="timeline-branch-line"`); got != 3 {
		t.Errorf("paths = %d, want 3", got)
	}
	if !strings.Contains(svg, `viewBox="0 0 1000 `) {
		t.Errorf("viewBox missing: %.200s", svg)
	}
	if !strings.Contains(svg, `GNU &lt;announced&gt;`) {
		t.Error("title not escaped")
	}
	if strings.Contains(svg, "<animate ") {
		t.Error("unexpected animation")
	}
	if !strings.Contains(svg, `stroke-dashoffset="0"`) {
		t.Error("static paths should be fully drawn")
	}

	buf.Reset()
	if _, err := Timeline(&buf, testCatalog(), measure.StaticOptions{}, layout.Options{}, SVGOptions{Animate: true}); err != nil {
		t.Fatalf("Timeline animated: %v", err)
	}
	if got := strings.Count(buf.String(), "<animate "); got != 3 {
		t.Errorf("animations = %d, want 3", got)
	}
}

func TestTimelineSVGEmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	segs, err := Timeline(&buf, &model.Catalog{}, measure.StaticOptions{}, layout.Options{}, SVGOptions{})
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("segments = %d", len(segs))
	}
	if !strings.HasSuffix(buf.String(), "</svg>\n") {
		t.Error("incomplete svg")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Errorf("truncate = %q", got)
	}
}
